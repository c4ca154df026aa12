// Package remux executes ffmpeg stream-copy remuxes from the recorder's
// transport-stream output to Matroska, embedding recording metadata in the
// destination container.
//
// A weighted semaphore caps how many ffmpeg processes run at once; callers
// beyond the cap block until a slot frees. Every invocation is tracked on
// the job ledger: started before the tool launches, completed or failed
// with captured diagnostics when it exits. Ownership fixups and duration
// probing after a successful remux are best-effort.
package remux
