// Package librarysync coordinates the Plex side of a finished remux: it
// gates on the duration acceptance threshold, waits for a quiet scanner,
// triggers a targeted refresh of the output folder, locates the newly
// indexed item by file path, and patches its metadata with locked fields.
//
// The coordinator is deliberately tolerant of the remote service. A failed
// refresh or a missing item marks the job's plex status failed; a failed
// metadata patch after a successful match is only logged. Threshold
// rejections are a distinct skipped outcome, not an error.
package librarysync
