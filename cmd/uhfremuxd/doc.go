// Command uhfremuxd watches a recorder's output directory for finished
// transport-stream captures, remuxes them into a Matroska media library,
// and keeps the configured Plex section in sync.
package main
