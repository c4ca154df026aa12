// Package recordings reads the recorder's snapshot document and answers
// per-file metadata lookups.
//
// The snapshot maps recorder-internal IDs to recording objects; lookups here
// are keyed by file_path, which is how the discovery loop identifies
// candidates. The snapshot is externally produced and never mutated; this
// package also owns the shared timestamp parsing rules for its fields.
package recordings
