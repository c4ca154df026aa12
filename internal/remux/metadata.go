package remux

import (
	"fmt"
	"strings"
	"time"

	"uhfremux/internal/recordings"
)

// sourceTag is embedded in every remuxed container so files remain
// attributable after they leave the library.
const sourceTag = "Source: UHF-Server (https://www.uhfapp.com/)"

// sanitizeMetadataValue strips double quotes, which would otherwise break
// the tool's key=value argument parsing, replacing them with single quotes.
func sanitizeMetadataValue(value string) string {
	return strings.ReplaceAll(value, `"`, "'")
}

// recordingWindow renders the recording's start and end as literal strings.
// Unparseable or missing start times degrade to "unknown" rather than
// failing the remux.
func recordingWindow(rec *recordings.Recording) (string, string) {
	if strings.TrimSpace(rec.StartTime) == "" {
		return "unknown", "unknown"
	}
	_, end, err := rec.Window()
	if err != nil {
		return "unknown", "unknown"
	}
	// The start literal is carried verbatim; only the end is computed.
	return rec.StartTime, end.Format(time.RFC3339Nano)
}

// buildComment assembles the composite comment tag persisted in the output
// container: original id, recording window, duration, status, and the fixed
// source attribution.
func buildComment(rec *recordings.Recording) string {
	startStr, endStr := recordingWindow(rec)
	parts := []string{
		fmt.Sprintf("Original Title: %s", rec.ID),
		fmt.Sprintf("Recording: %s - %s", startStr, endStr),
		fmt.Sprintf("Duration: %d seconds", rec.DurationSeconds),
		fmt.Sprintf("Status: %s", rec.Status),
		sourceTag,
	}
	return sanitizeMetadataValue(strings.Join(parts, " | "))
}

// globalMetadata returns the ffmpeg global metadata arguments embedded in
// every remuxed container.
func globalMetadata(rec *recordings.Recording, now time.Time) []string {
	pairs := []string{
		"title=" + sanitizeMetadataValue(rec.Name),
		"publisher=" + sanitizeMetadataValue(rec.Description),
		"genre=TV-Show",
		"description=" + sanitizeMetadataValue(rec.Description+"-"+rec.Name),
		"language=eng",
		"creation_time=" + sanitizeMetadataValue(rec.StartTime),
		"encoded_date=" + now.Format(time.RFC3339Nano),
		"comment=" + buildComment(rec),
	}

	args := make([]string, 0, len(pairs)*2)
	for _, pair := range pairs {
		args = append(args, "-metadata:g", pair)
	}
	return args
}

// remuxArgs builds the full ffmpeg argument list for a stream-copy remux.
func remuxArgs(inputPath, outputPath string, rec *recordings.Recording, now time.Time) []string {
	args := []string{"-hide_banner", "-loglevel", "error", "-y", "-i", inputPath, "-c", "copy"}
	args = append(args, globalMetadata(rec, now)...)
	args = append(args, outputPath)
	return args
}
