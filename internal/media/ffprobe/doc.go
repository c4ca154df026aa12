// Package ffprobe wraps the ffprobe binary for container inspection.
//
// The remux pipeline uses it for one thing: probing the duration of a
// freshly remuxed file so the job ledger can compare broadcast versus
// recorded length. Probe failures are soft; callers treat a zero duration
// as unknown rather than failing the job.
package ffprobe
