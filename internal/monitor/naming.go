package monitor

import (
	"strings"

	"uhfremux/internal/recordings"
)

// CleanName makes a recording field safe for use in file and folder names.
// Characters that are invalid on common filesystems become underscores,
// leading and trailing spaces and dots are stripped, and an empty result
// falls back to a placeholder.
func CleanName(name string) string {
	const invalid = `<>:"/\|?*`
	cleaned := strings.Map(func(r rune) rune {
		if strings.ContainsRune(invalid, r) {
			return '_'
		}
		return r
	}, name)
	cleaned = strings.Trim(cleaned, " .")
	if cleaned == "" {
		return "unnamed"
	}
	return cleaned
}

// OutputName derives the destination folder and file name for a recording.
// The folder is the cleaned description; the file name carries the cleaned
// recording name plus the broadcast window. Missing or unparseable start
// times degrade to tagged fallback names rather than failing the file.
func OutputName(rec *recordings.Recording) (folder, filename string) {
	folder = CleanName(rec.Description)
	name := CleanName(rec.Name)

	if strings.TrimSpace(rec.StartTime) == "" {
		return folder, name + "_unknown_time.mkv"
	}
	start, end, err := rec.Window()
	if err != nil {
		return folder, name + "_invalid_time.mkv"
	}
	filename = name + "_" + start.Format("2006-01-02") + "_" +
		start.Format("15:04") + "-" + end.Format("15:04") + ".mkv"
	return folder, filename
}

// LegacyFilename derives the flat name-description-timestamp file name used
// by earlier deployments. Kept so existing libraries remain matchable.
func LegacyFilename(rec *recordings.Recording) string {
	dateFormatted := "unknown_date"
	if strings.TrimSpace(rec.CreatedAt) != "" {
		if created, err := recordings.ParseTime(rec.CreatedAt); err == nil {
			dateFormatted = recordings.FormatCompact(created)
		}
	}
	return CleanName(rec.Name) + "-" + CleanName(rec.Description) + "-" + dateFormatted + ".mkv"
}
