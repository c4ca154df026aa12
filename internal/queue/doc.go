// Package queue persists remux jobs in SQLite and enforces their lifecycle.
//
// The Store is the single source of truth for whether a file has been
// handled: the discovery loop keys jobs by original path and never tracks
// processing state in memory across scan cycles. Two independent state
// machines live on each job: the remux machine (pending, started,
// completed/failed) and the library-sync machine (pending,
// completed/failed/skipped), the latter meaningful only after a completed
// remux. Transitions are validated and applied as single conditional writes.
//
// Jobs are never deleted; the ledger doubles as permanent audit history.
package queue
