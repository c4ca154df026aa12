package queue

import (
	"strings"
	"time"
)

// RemuxStatus represents the remux lifecycle of a job.
type RemuxStatus string

const (
	RemuxPending   RemuxStatus = "pending"
	RemuxStarted   RemuxStatus = "started"
	RemuxCompleted RemuxStatus = "completed"
	RemuxFailed    RemuxStatus = "failed"
)

// PlexStatus represents the library-sync sub-machine, meaningful only once
// the remux machine has reached completed.
type PlexStatus string

const (
	PlexPending   PlexStatus = "pending"
	PlexCompleted PlexStatus = "completed"
	PlexFailed    PlexStatus = "failed"
	PlexSkipped   PlexStatus = "skipped"
)

// remuxTransitions enumerates the forward-only remux machine. Failed is
// reachable from any non-terminal state; completed jobs never move again.
var remuxTransitions = map[RemuxStatus]map[RemuxStatus]struct{}{
	RemuxPending: {RemuxStarted: {}, RemuxFailed: {}},
	RemuxStarted: {RemuxCompleted: {}, RemuxFailed: {}},
}

// plexTransitions: a single hop from pending to one terminal outcome.
var plexTransitions = map[PlexStatus]map[PlexStatus]struct{}{
	PlexPending: {PlexCompleted: {}, PlexFailed: {}, PlexSkipped: {}},
}

// CanTransitionRemux reports whether from may move to to.
func CanTransitionRemux(from, to RemuxStatus) bool {
	allowed, ok := remuxTransitions[from]
	if !ok {
		return false
	}
	_, ok = allowed[to]
	return ok
}

// CanTransitionPlex reports whether from may move to to.
func CanTransitionPlex(from, to PlexStatus) bool {
	allowed, ok := plexTransitions[from]
	if !ok {
		return false
	}
	_, ok = allowed[to]
	return ok
}

// ParseRemuxStatus converts a string into a known RemuxStatus.
func ParseRemuxStatus(value string) (RemuxStatus, bool) {
	normalized := RemuxStatus(strings.ToLower(strings.TrimSpace(value)))
	switch normalized {
	case RemuxPending, RemuxStarted, RemuxCompleted, RemuxFailed:
		return normalized, true
	}
	return "", false
}

// Job is one row of the remux ledger. A job is created per original file
// path and never deleted; it is the permanent record of what happened to
// that recording.
type Job struct {
	ID           int64
	OriginalPath string
	OutputPath   string

	// Snapshot fields copied from the recording at admission; immutable.
	RecordingName        string
	RecordingDescription string
	RecordingCreatedAt   string
	RecordingDuration    float64

	RemuxStatus      RemuxStatus
	RemuxStartedAt   *time.Time
	RemuxCompletedAt *time.Time
	RemuxDuration    float64

	PlexStatus      PlexStatus
	PlexCompletedAt *time.Time

	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsTerminal reports whether the remux machine can no longer move.
func (j *Job) IsTerminal() bool {
	return j.RemuxStatus == RemuxCompleted || j.RemuxStatus == RemuxFailed
}
