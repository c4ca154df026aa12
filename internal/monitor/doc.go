// Package monitor implements the top-level discovery loop: a minute-gated
// scan of the watch directory for finished transport-stream recordings,
// deduplication against the job ledger, snapshot-driven filtering, and
// fan-out into remux and library-sync processing per candidate file.
package monitor
