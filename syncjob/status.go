package syncjob

import (
	"fmt"
	"time"

	"github.com/xraph/docsync"
)

// Status represents the lifecycle state of a sync job.
type Status string

const (
	// StatusPending means the job is persisted but not yet submitted.
	StatusPending Status = "pending"
	// StatusQueued means a queue message for the job has been submitted.
	StatusQueued Status = "queued"
	// StatusStarted means a worker has claimed the job.
	StatusStarted Status = "started"
	// StatusFinished means the target was written, or the dry-run diff computed.
	StatusFinished Status = "finished"
	// StatusFailed means the last attempt returned an error or timed out.
	StatusFailed Status = "failed"
	// StatusSkipped means there was nothing to do or the operation is disabled.
	StatusSkipped Status = "skipped"
	// StatusRelayed means the job fanned out into child jobs.
	StatusRelayed Status = "relayed"
	// StatusNoTarget means no target document could be resolved.
	StatusNoTarget Status = "no_target"
	// StatusCanceled means an operator canceled the job.
	StatusCanceled Status = "canceled"
)

// Statuses lists every status in lifecycle order.
var Statuses = []Status{
	StatusPending, StatusQueued, StatusStarted,
	StatusFinished, StatusFailed, StatusSkipped,
	StatusRelayed, StatusNoTarget, StatusCanceled,
}

var transitions = map[Status][]Status{
	StatusPending: {StatusQueued, StatusCanceled},
	StatusQueued:  {StatusStarted, StatusCanceled},
	StatusStarted: {StatusFinished, StatusSkipped, StatusNoTarget, StatusRelayed, StatusFailed},
	StatusFailed:  {StatusQueued, StatusCanceled},
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

// IsTerminal reports whether a job in status s is done executing. Failed is
// terminal for execution even though a retry may requeue it.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusFinished, StatusFailed, StatusSkipped, StatusRelayed, StatusNoTarget, StatusCanceled:
		return true
	}
	return false
}

// Cancelable reports whether an operator may cancel a job in status s.
func (s Status) Cancelable() bool {
	return CanTransition(s, StatusCanceled)
}

// CanTransition reports whether from → to is a legal edge.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// TransitionTo moves the job to status to. Entering Started records
// StartedAt; entering a terminal status records FinishedAt; requeueing
// clears FinishedAt.
func (j *Job) TransitionTo(to Status) error {
	if !CanTransition(j.Status, to) {
		return fmt.Errorf("%w: %s → %s", docsync.ErrInvalidTransition, j.Status, to)
	}

	now := time.Now().UTC()
	switch {
	case to == StatusStarted:
		j.StartedAt = &now
		j.FinishedAt = nil
	case to == StatusQueued:
		j.FinishedAt = nil
	case to.IsTerminal():
		j.FinishedAt = &now
	}
	j.Status = to
	j.Touch()
	return nil
}
