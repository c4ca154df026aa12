// Package daemon wires the discovery loop, job store, and instance lock
// into a long-running background service with explicit start/stop lifecycle.
package daemon
