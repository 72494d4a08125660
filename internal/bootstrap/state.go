// Package bootstrap tracks the first (or forced) synchronization of a
// mirrored index and delivers start and finish notifications to listeners
// on a single delivery goroutine.
package bootstrap

import "time"

// Phase is the bootstrap position of one index.
type Phase int

const (
	// PhaseIdle means no bootstrap has been attempted.
	PhaseIdle Phase = iota
	// PhaseInProgress means a bootstrap build is queued or running.
	PhaseInProgress
	// PhaseFinished means the last bootstrap completed; see State.Err.
	PhaseFinished
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseInProgress:
		return "in_progress"
	case PhaseFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// State is a snapshot of an index's bootstrap.
type State struct {
	Phase      Phase
	Err        error
	Runs       int
	StartedAt  time.Time
	FinishedAt time.Time
}

// Succeeded reports whether the last bootstrap finished without error.
func (s State) Succeeded() bool {
	return s.Phase == PhaseFinished && s.Err == nil
}
