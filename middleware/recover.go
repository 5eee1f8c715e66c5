package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/xraph/docsync/syncjob"
)

// PanicError is returned by Recover when a controller panics.
type PanicError struct {
	JobID string
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("sync job %s: controller panic: %v", e.JobID, e.Value)
}

// Unwrap exposes the panic value when it was itself an error.
func (e *PanicError) Unwrap() error {
	err, _ := e.Value.(error)
	return err
}

// Recover turns a controller panic into a *PanicError so the attempt is
// failed and retried like any other error.
func Recover(logger *slog.Logger) Middleware {
	return func(ctx context.Context, j *syncjob.Job, next Handler) (err error) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			logger.Error("sync job controller panicked",
				slog.String("job_id", j.ID.String()),
				slog.String("sync_job_type", j.Type),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
			err = &PanicError{JobID: j.ID.String(), Value: r}
		}()
		return next(ctx)
	}
}
