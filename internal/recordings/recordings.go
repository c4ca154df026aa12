package recordings

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Status reflects the recorder's view of a recording.
type Status string

const (
	StatusRecording Status = "recording"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusFailed    Status = "failed"
)

// Recording is one entry of the recorder's snapshot document. The document is
// produced externally and read-only; fields are carried verbatim.
type Recording struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Description     string `json:"description"`
	FilePath        string `json:"file_path"`
	Status          Status `json:"status"`
	StartTime       string `json:"start_time"`
	DurationSeconds int64  `json:"duration_seconds"`
	CreatedAt       string `json:"created_at"`
}

// IsActive reports whether the recorder is still writing this recording.
func (r *Recording) IsActive() bool {
	return Status(strings.ToLower(string(r.Status))) == StatusRecording
}

// IsCancelled reports whether the recorder cancelled this recording.
func (r *Recording) IsCancelled() bool {
	return Status(strings.ToLower(string(r.Status))) == StatusCancelled
}

// Window returns the recording start and end times derived from start_time
// and duration_seconds.
func (r *Recording) Window() (time.Time, time.Time, error) {
	start, err := ParseTime(r.StartTime)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end := start.Add(time.Duration(r.DurationSeconds) * time.Second)
	return start, end, nil
}

var isoLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
}

// ParseTime parses recorder timestamps. Literals containing a '+' carry an
// explicit offset and parse as-is; otherwise a trailing 'Z' is mapped to
// UTC and zone-less literals are taken verbatim. The asymmetry matches the
// recorder's own output handling and is preserved deliberately; negative
// offsets fall through to the replacement branch, which leaves them intact.
func ParseTime(value string) (time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return time.Time{}, errors.New("empty timestamp")
	}
	if strings.Contains(trimmed, "+") {
		return parseISO(trimmed)
	}
	return parseISO(strings.Replace(trimmed, "Z", "+00:00", 1))
}

func parseISO(value string) (time.Time, error) {
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", value)
}

// FormatCompact renders a timestamp as yyyymmddhhmmss, the form used in
// legacy filenames and Plex sort titles.
func FormatCompact(t time.Time) string {
	return t.Format("20060102150405")
}
