// Package lifecycle contains the pure rules of the job state machine.
// Nothing here performs I/O; callers pass in the state they observed and the current time.
package lifecycle

import (
	"errors"
	"time"

	"container-dispatch/core/models"
)

var (
	ErrInvalidStage         = errors.New("invalid stage")
	ErrInvalidTransition    = errors.New("invalid transition")
	ErrOutOfOrderTransition = errors.New("out of order transition")
	ErrEmptyProof           = errors.New("empty proof")
	ErrInvalidAssignee      = errors.New("invalid assignee")
	ErrForbidden            = errors.New("forbidden")
)

// ErrJobAlreadyCompleted is returned for any mutation of a finished job.
// It also matches ErrInvalidTransition under errors.Is, since done is terminal.
var ErrJobAlreadyCompleted error = completedError{}

type completedError struct{}

func (completedError) Error() string { return "job already completed" }

func (completedError) Is(target error) bool { return target == ErrInvalidTransition }

// NextStage returns the stage that follows s, or false when s is terminal or unknown.
func NextStage(s models.Stage) (models.Stage, bool) {
	for i, stage := range models.Stages {
		if stage == s && i+1 < len(models.Stages) {
			return models.Stages[i+1], true
		}
	}
	return "", false
}

// IsTerminal reports whether no transition leaves s
func IsTerminal(s models.Stage) bool {
	return s == models.StageDone
}

// InitialStatus returns the status history of a freshly created job.
func InitialStatus(now time.Time) []models.StatusEvent {
	return []models.StatusEvent{{Stage: models.StageAccept, Timestamp: now}}
}

// TransitionResult is the outcome of applying an allowed stage advance.
type TransitionResult struct {
	Event     models.StatusEvent
	Completed bool
}

// ApplyAdvance builds the status entry for an advance to stage.
// The caller must have checked CanAdvance first.
func ApplyAdvance(stage models.Stage, now time.Time) TransitionResult {
	return TransitionResult{
		Event:     models.StatusEvent{Stage: stage, Timestamp: now},
		Completed: IsTerminal(stage),
	}
}

// IsCompleted derives the completion flag from a status history.
func IsCompleted(history []models.StatusEvent) bool {
	if len(history) == 0 {
		return false
	}
	return IsTerminal(history[len(history)-1].Stage)
}

// ValidHistory reports whether history is a prefix of accept, uplift, offload, done.
func ValidHistory(history []models.StatusEvent) bool {
	if len(history) == 0 || len(history) > len(models.Stages) {
		return false
	}
	for i, ev := range history {
		if ev.Stage != models.Stages[i] {
			return false
		}
	}
	return true
}
