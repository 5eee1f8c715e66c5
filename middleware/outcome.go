package middleware

import (
	"context"
	"errors"

	"github.com/xraph/docsync"
)

// Outcome labels recorded by the metrics and tracing middleware.
const (
	OutcomeOK           = "ok"
	OutcomeSkipped      = "skipped"
	OutcomeNotPermitted = "not_permitted"
	OutcomeNoTarget     = "no_target"
	OutcomeTimeout      = "timeout"
	OutcomeCanceled     = "canceled"
	OutcomeError        = "error"
)

// Outcome classifies the error returned by a controller attempt.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, docsync.ErrSkip):
		return OutcomeSkipped
	case errors.Is(err, docsync.ErrOperationNotPermitted):
		return OutcomeNotPermitted
	case errors.Is(err, docsync.ErrResolution):
		return OutcomeNoTarget
	case errors.Is(err, docsync.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return OutcomeTimeout
	case errors.Is(err, context.Canceled):
		return OutcomeCanceled
	default:
		return OutcomeError
	}
}

// benign reports whether an outcome ends the job without a failure.
func benign(outcome string) bool {
	return outcome == OutcomeOK || outcome == OutcomeSkipped || outcome == OutcomeNotPermitted
}
