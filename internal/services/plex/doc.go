// Package plex is a thin HTTP client for the Plex Media Server endpoints
// used by library sync: section lookup, scan status, targeted path refresh,
// item lookup by on-disk file, and metadata patching.
//
// Responses are XML MediaContainer payloads; only the attributes library
// sync needs are decoded. All calls authenticate with the X-Plex-Token
// header and share a 10s client timeout.
package plex
