package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/docsync"
	"github.com/xraph/docsync/syncjob"
)

type timeoutKey struct{}

// WithTimeout returns a context carrying the execution budget read by
// [Timeout]. The worker sets it from the job's type before running the
// chain.
func WithTimeout(ctx context.Context, d time.Duration) context.Context {
	return context.WithValue(ctx, timeoutKey{}, d)
}

// TimeoutFrom returns the budget stored by WithTimeout.
func TimeoutFrom(ctx context.Context) (time.Duration, bool) {
	d, ok := ctx.Value(timeoutKey{}).(time.Duration)
	return d, ok && d > 0
}

// Timeout returns middleware that bounds the rest of the chain by the
// budget in the context. See [Within].
func Timeout(logger *slog.Logger) Middleware {
	return func(ctx context.Context, j *syncjob.Job, next Handler) error {
		d, ok := TimeoutFrom(ctx)
		if !ok {
			return next(ctx)
		}
		return Within(ctx, j, d, logger, next)
	}
}

// Within runs next in its own goroutine under a deadline d from now. When
// the deadline passes it returns docsync.ErrTimeout without waiting for
// next, whose late result is discarded. When ctx is canceled first, as on
// pool shutdown, the error wraps the cause of ctx instead. A zero d runs
// next unbounded.
func Within(ctx context.Context, j *syncjob.Job, d time.Duration, logger *slog.Logger, next Handler) error {
	if d <= 0 {
		return next(ctx)
	}
	if logger == nil {
		logger = slog.Default()
	}

	parent := ctx
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- next(ctx) }()

	select {
	case err := <-done:
		// A handler that gave up because the deadline passed reports the
		// same error as one that was abandoned.
		if err != nil && ctx.Err() != nil &&
			(errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)) {
			return expired(parent, j, d, logger)
		}
		return err
	case <-ctx.Done():
		return expired(parent, j, d, logger)
	}
}

func expired(parent context.Context, j *syncjob.Job, d time.Duration, logger *slog.Logger) error {
	if cause := context.Cause(parent); cause != nil && !errors.Is(cause, context.DeadlineExceeded) {
		logger.Warn("sync job canceled",
			slog.String("job_id", j.ID.String()),
			slog.String("sync_job_type", j.Type),
		)
		return fmt.Errorf("docsync: sync job %s canceled: %w", j.ID, cause)
	}
	logger.Warn("sync job timed out",
		slog.String("job_id", j.ID.String()),
		slog.String("sync_job_type", j.Type),
		slog.Duration("timeout", d),
	)
	return fmt.Errorf("%w: sync job %s exceeded %s", docsync.ErrTimeout, j.ID, d)
}
