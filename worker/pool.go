package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/xraph/docsync"
	"github.com/xraph/docsync/id"
	"github.com/xraph/docsync/queue"
)

// QueueLimiter gates job starts per queue. queue.Manager implements it.
type QueueLimiter interface {
	// Acquire reports whether a job from queueName may start now.
	Acquire(queueName string) bool
	// Release frees the slot taken by a successful Acquire.
	Release(queueName string)
}

// Pool consumes job IDs from the configured queues and runs them through
// the Executor. Each queue gets its own set of consumer goroutines.
type Pool struct {
	queue        queue.Queue
	executor     *Executor
	concurrency  int
	queues       []string
	pollInterval time.Duration
	workerID     id.WorkerID
	logger       *slog.Logger

	limiter QueueLimiter
	sweeper *Sweeper

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	group   *errgroup.Group

	inflight inflight
}

// inflight tracks the cancel func of every job the pool is executing.
type inflight struct {
	mu   sync.Mutex
	jobs map[string]context.CancelFunc
}

func (f *inflight) add(jobID string, cancel context.CancelFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.jobs == nil {
		f.jobs = make(map[string]context.CancelFunc)
	}
	f.jobs[jobID] = cancel
}

func (f *inflight) remove(jobID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.jobs, jobID)
}

func (f *inflight) len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.jobs)
}

// cancelAll cancels every running job and returns their IDs.
func (f *inflight) cancelAll() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, 0, len(f.jobs))
	for jobID, cancel := range f.jobs {
		cancel()
		ids = append(ids, jobID)
	}
	return ids
}

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithPoolConcurrency sets the number of consumers per queue.
func WithPoolConcurrency(n int) PoolOption {
	return func(p *Pool) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// WithPoolQueues sets the queues the pool consumes.
func WithPoolQueues(queues []string) PoolOption {
	return func(p *Pool) { p.queues = queues }
}

// WithPollInterval sets the resubmit delay for throttled jobs and the
// pause after a consume error.
func WithPollInterval(d time.Duration) PoolOption {
	return func(p *Pool) { p.pollInterval = d }
}

// WithQueueLimiter sets per-queue rate and concurrency limits.
func WithQueueLimiter(l QueueLimiter) PoolOption {
	return func(p *Pool) { p.limiter = l }
}

// WithSweeper runs s alongside the consumers.
func WithSweeper(s *Sweeper) PoolOption {
	return func(p *Pool) { p.sweeper = s }
}

// NewPool creates a worker pool.
func NewPool(q queue.Queue, executor *Executor, logger *slog.Logger, opts ...PoolOption) *Pool {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pool{
		queue:        q,
		executor:     executor,
		concurrency:  4,
		queues:       []string{"default"},
		pollInterval: 500 * time.Millisecond,
		workerID:     id.NewWorkerID(),
		logger:       logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// WorkerID returns the pool's unique worker identifier.
func (p *Pool) WorkerID() id.WorkerID { return p.workerID }

// Start launches the consumers. It returns immediately.
func (p *Pool) Start(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return nil
	}
	p.running = true

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.group, ctx = errgroup.WithContext(ctx)

	p.logger.Info("worker pool starting",
		slog.String("worker_id", p.workerID.String()),
		slog.Int("concurrency", p.concurrency),
		slog.Any("queues", p.queues),
	)

	for _, name := range p.queues {
		for range p.concurrency {
			p.group.Go(func() error { return p.consumeLoop(ctx, name) })
		}
	}
	if p.sweeper != nil {
		p.group.Go(func() error {
			p.sweeper.Run(ctx)
			return nil
		})
	}
	return nil
}

// Stop stops consuming and waits for running jobs. If ctx expires first,
// running jobs are canceled.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	group := p.group
	p.cancel()
	p.mu.Unlock()

	log := p.logger.With(slog.String("worker_id", p.workerID.String()))
	log.Info("worker pool draining", slog.Int("running_jobs", p.inflight.len()))

	done := make(chan error, 1)
	go func() { done <- group.Wait() }()

	select {
	case err := <-done:
		log.Info("worker pool stopped")
		return err
	case <-ctx.Done():
		// Canceled attempts fail with a context error and take the normal
		// retry path.
		log.Warn("worker pool drain deadline passed", slog.Any("canceled_jobs", p.inflight.cancelAll()))
		return <-done
	}
}

// consumeLoop is run by each consumer goroutine until ctx is canceled or
// the queue is closed.
func (p *Pool) consumeLoop(ctx context.Context, queueName string) error {
	for {
		jobID, err := p.queue.Consume(ctx, queueName)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, docsync.ErrQueueClosed) {
				return nil
			}
			p.logger.Error("consume error",
				slog.String("queue", queueName),
				slog.String("error", err.Error()),
			)
			p.sleep(ctx)
			continue
		}

		if p.limiter != nil && !p.limiter.Acquire(queueName) {
			// The job stays Queued; its message comes back after the delay.
			if subErr := p.queue.Submit(context.WithoutCancel(ctx), queueName, jobID, p.pollInterval); subErr != nil {
				p.logger.Error("failed to resubmit throttled sync job",
					slog.String("job_id", jobID),
					slog.String("queue", queueName),
					slog.String("error", subErr.Error()),
				)
			}
			p.sleep(ctx)
			continue
		}

		p.execute(jobID)

		if p.limiter != nil {
			p.limiter.Release(queueName)
		}
	}
}

// execute runs one job on a context detached from the consumers, so Stop
// lets it finish unless the shutdown budget runs out.
func (p *Pool) execute(jobID string) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p.inflight.add(jobID, cancel)
	defer p.inflight.remove(jobID)

	if err := p.executor.Execute(ctx, jobID); err != nil {
		p.logger.Debug("sync job execution failed",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
	}
}

func (p *Pool) sleep(ctx context.Context) {
	t := time.NewTimer(p.pollInterval)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

// ActiveJobs returns the number of jobs currently executing.
func (p *Pool) ActiveJobs() int { return p.inflight.len() }
