package docsync

import "errors"

var (
	// Store errors.
	ErrNoStore     = errors.New("docsync: no store configured")
	ErrNoQueue     = errors.New("docsync: no queue configured")
	ErrNoAccessor  = errors.New("docsync: no document accessor configured")
	ErrStoreClosed = errors.New("docsync: store closed")
	ErrQueueClosed = errors.New("docsync: queue closed")

	// Not found errors.
	ErrJobNotFound  = errors.New("docsync: sync job not found")
	ErrTypeNotFound = errors.New("docsync: sync job type not found")

	// Conflict errors.
	ErrJobAlreadyExists  = errors.New("docsync: sync job already exists")
	ErrTypeAlreadyExists = errors.New("docsync: sync job type already exists")

	// State errors.
	ErrInvalidTransition = errors.New("docsync: invalid status transition")
	ErrStatusConflict    = errors.New("docsync: status changed concurrently")
	ErrNotCancelable     = errors.New("docsync: sync job cannot be canceled in its current status")

	// Execution error taxonomy. Workers classify controller errors with
	// errors.Is against these sentinels; anything else is a retryable
	// runtime failure.
	ErrConfiguration         = errors.New("docsync: configuration error")
	ErrResolution            = errors.New("docsync: target could not be resolved")
	ErrOperationNotPermitted = errors.New("docsync: operation not permitted")
	ErrSkip                  = errors.New("docsync: no action required")
	ErrTimeout               = errors.New("docsync: sync job timed out")
)
