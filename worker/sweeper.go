package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/xraph/docsync"
	"github.com/xraph/docsync/queue"
	"github.com/xraph/docsync/syncjob"
)

// Sweeper recovers jobs whose queue message was never delivered: Pending
// jobs whose submission failed and Queued jobs whose message was lost.
// Resubmitting a job that is still on the queue is harmless because only
// one worker wins Queued → Started.
type Sweeper struct {
	store     Store
	queue     queue.Queue
	interval  time.Duration
	threshold time.Duration
	batch     int
	logger    *slog.Logger
}

// SweeperOption configures a Sweeper.
type SweeperOption func(*Sweeper)

// WithSweepInterval sets how often Run sweeps.
func WithSweepInterval(d time.Duration) SweeperOption {
	return func(s *Sweeper) { s.interval = d }
}

// WithSweepThreshold sets how long a job may sit untouched before it is
// resubmitted.
func WithSweepThreshold(d time.Duration) SweeperOption {
	return func(s *Sweeper) { s.threshold = d }
}

// WithSweepBatch limits how many jobs per status one sweep handles.
func WithSweepBatch(n int) SweeperOption {
	return func(s *Sweeper) { s.batch = n }
}

// NewSweeper creates a Sweeper.
func NewSweeper(store Store, q queue.Queue, logger *slog.Logger, opts ...SweeperOption) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Sweeper{
		store:     store,
		queue:     q,
		interval:  time.Minute,
		threshold: 5 * time.Minute,
		batch:     100,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run sweeps every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	if s.interval <= 0 {
		return
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil && ctx.Err() == nil {
				s.logger.Error("sweep error", slog.String("error", err.Error()))
			}
		}
	}
}

// Sweep resubmits stale Pending and Queued jobs once and returns how many
// it resubmitted.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	now := time.Now().UTC()
	cutoff := now.Add(-s.threshold)

	var (
		swept int
		errs  []error
		// Pending jobs resubmitted by this sweep are Queued by the time the
		// second pass lists them.
		seen = make(map[string]struct{})
	)
	for _, status := range []syncjob.Status{syncjob.StatusPending, syncjob.StatusQueued} {
		jobs, err := s.store.ListJobs(ctx, syncjob.ListOpts{
			Status:        status,
			UpdatedBefore: cutoff,
			Limit:         s.batch,
		})
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for _, j := range jobs {
			if _, ok := seen[j.ID.String()]; ok {
				continue
			}
			if s.waitingOnRetry(j, now) {
				continue
			}
			ok, err := s.resubmit(ctx, j)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			if ok {
				seen[j.ID.String()] = struct{}{}
				swept++
			}
		}
	}

	if swept > 0 {
		s.logger.Info("swept stale sync jobs", slog.Int("count", swept))
	}
	return swept, errors.Join(errs...)
}

// waitingOnRetry reports whether j is a requeued job whose RetryAt has
// not yet run out past the threshold. Its delayed message is still on the
// queue.
func (s *Sweeper) waitingOnRetry(j *syncjob.Job, now time.Time) bool {
	if j.Status != syncjob.StatusQueued || j.RetryAt == nil {
		return false
	}
	return now.Before(j.RetryAt.Add(s.threshold))
}

// resubmit puts j back on its queue. Pending jobs move to Queued and
// Queued jobs are rewritten in place to refresh UpdatedAt, so one sweep
// does not pick them up again right away. It reports false when the job
// changed status under it.
func (s *Sweeper) resubmit(ctx context.Context, j *syncjob.Job) (bool, error) {
	expected := j.Status
	next := j.Clone()
	if expected == syncjob.StatusPending {
		if err := next.TransitionTo(syncjob.StatusQueued); err != nil {
			return false, err
		}
	}

	if err := s.queue.Submit(ctx, j.Queue, j.ID.String(), 0); err != nil {
		return false, err
	}
	if err := s.store.CompareAndSwapJob(ctx, next, expected); err != nil {
		if errors.Is(err, docsync.ErrStatusConflict) {
			return false, nil
		}
		return false, err
	}

	s.logger.Debug("resubmitted sync job",
		slog.String("job_id", j.ID.String()),
		slog.String("queue", j.Queue),
		slog.String("status", string(expected)),
	)
	return true, nil
}
