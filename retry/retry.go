// Package retry requeues failed sync jobs until their type's MaxRetries is
// used up.
package retry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/docsync/backoff"
	"github.com/xraph/docsync/ext"
	"github.com/xraph/docsync/queue"
	"github.com/xraph/docsync/syncjob"
)

// Scheduler decides whether a failed job runs again and, if so, requeues
// it after the delay its type's backoff policy yields.
type Scheduler struct {
	jobs       syncjob.JobStore
	queue      queue.Queue
	extensions *ext.Registry
	logger     *slog.Logger

	// strategy overrides the per-type policy when set.
	strategy func(t *syncjob.Type) backoff.Strategy
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithStrategy replaces the per-type backoff lookup.
func WithStrategy(f func(t *syncjob.Type) backoff.Strategy) Option {
	return func(s *Scheduler) { s.strategy = f }
}

// New creates a Scheduler.
func New(jobs syncjob.JobStore, q queue.Queue, extensions *ext.Registry, logger *slog.Logger, opts ...Option) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if extensions == nil {
		extensions = ext.NewRegistry(logger)
	}
	s := &Scheduler{
		jobs:       jobs,
		queue:      q,
		extensions: extensions,
		logger:     logger,
		strategy:   backoff.ForType,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Schedule requeues j, which must already be stored as Failed, when its
// RetryCount is below t.MaxRetries. It reports whether a retry was
// scheduled. On success j is Queued with RetryCount incremented and
// RetryAt set to when the delay runs out.
func (s *Scheduler) Schedule(ctx context.Context, j *syncjob.Job, t *syncjob.Type) (bool, error) {
	if j.Status != syncjob.StatusFailed || j.RetryCount >= t.MaxRetries {
		return false, nil
	}

	next := j.Clone()
	next.RetryCount++
	if err := next.TransitionTo(syncjob.StatusQueued); err != nil {
		return false, err
	}
	delay := s.strategy(t).Delay(next.RetryCount)
	next.RetryAt = nil
	if delay > 0 {
		at := time.Now().UTC().Add(delay)
		next.RetryAt = &at
	}

	if err := s.jobs.CompareAndSwapJob(ctx, next, syncjob.StatusFailed); err != nil {
		return false, fmt.Errorf("docsync: requeue sync job %s: %w", j.ID, err)
	}
	*j = *next

	if err := s.queue.Submit(ctx, j.Queue, j.ID.String(), delay); err != nil {
		// The job stays Queued; the sweeper resubmits it.
		s.logger.Warn("retry submit failed",
			slog.String("job_id", j.ID.String()),
			slog.String("queue", j.Queue),
			slog.String("error", err.Error()),
		)
		return true, fmt.Errorf("docsync: submit retry for sync job %s: %w", j.ID, err)
	}

	s.extensions.EmitJobRetrying(ctx, j, j.RetryCount, delay)
	s.logger.Info("sync job scheduled for retry",
		slog.String("job_id", j.ID.String()),
		slog.String("sync_job_type", j.Type),
		slog.Int("retry", j.RetryCount),
		slog.Int("max_retries", t.MaxRetries),
		slog.Duration("delay", delay),
	)
	return true, nil
}

// Defer puts j back on its queue without touching the stored job. It is
// used for messages that arrive before j.RetryAt.
func (s *Scheduler) Defer(ctx context.Context, j *syncjob.Job, delay time.Duration) error {
	if err := s.queue.Submit(ctx, j.Queue, j.ID.String(), delay); err != nil {
		return fmt.Errorf("docsync: defer sync job %s: %w", j.ID, err)
	}
	return nil
}

// NextDelay returns the delay the next retry of j would wait.
func (s *Scheduler) NextDelay(j *syncjob.Job, t *syncjob.Type) time.Duration {
	return s.strategy(t).Delay(j.RetryCount + 1)
}
