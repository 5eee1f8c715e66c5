package docsync

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Option configures a Syncer.
type Option func(*Syncer) error

// Storer is the minimal store interface held by the Syncer. It covers
// lifecycle operations only. Implementations satisfy store.Store, which
// adds the sync job and sync job type collections; the engine package
// type-asserts to it.
type Storer interface {
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// Queuer is the minimal queue contract held by the Syncer. It has the same
// method set as queue.Queue, so any queue backend satisfies both.
type Queuer interface {
	Submit(ctx context.Context, queueName, jobID string, delay time.Duration) error
	Consume(ctx context.Context, queueName string) (string, error)
}

// closer is implemented by queue backends that hold resources.
type closer interface {
	Close() error
}

// poolRunner is an internal interface for worker pool lifecycle.
type poolRunner interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// extensionEmitter is an internal interface for extension lifecycle events.
type extensionEmitter interface {
	EmitShutdown(ctx context.Context)
}

// Syncer is the central holder of configuration, persistence and queue
// backends for the sync job engine.
//
// Create one with New() and functional options, then hand it to
// engine.Build, which creates the worker pool and wires it back in.
type Syncer struct {
	config     Config
	logger     *slog.Logger
	store      Storer
	queue      Queuer
	extensions extensionEmitter
	pool       poolRunner

	mu      sync.Mutex
	started bool
	stopped bool
}

// New creates a new Syncer with the given options.
func New(opts ...Option) (*Syncer, error) {
	s := &Syncer{
		config: DefaultConfig(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Logger returns the syncer's logger.
func (s *Syncer) Logger() *slog.Logger { return s.logger }

// Store returns the syncer's store.
func (s *Syncer) Store() Storer { return s.store }

// Queue returns the syncer's queue backend.
func (s *Syncer) Queue() Queuer { return s.queue }

// Config returns a copy of the syncer's configuration.
func (s *Syncer) Config() Config { return s.config }

// SetPool sets the worker pool (called by the engine package).
func (s *Syncer) SetPool(p poolRunner) { s.pool = p }

// SetQueue sets the queue backend when none was configured (called by the
// engine package).
func (s *Syncer) SetQueue(q Queuer) { s.queue = q }

// SetExtensions sets the extension emitter (called by the engine package).
func (s *Syncer) SetExtensions(e extensionEmitter) { s.extensions = e }

// Start begins consuming queues.
func (s *Syncer) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return ErrStoreClosed
	}
	if s.pool == nil {
		return ErrNoStore
	}
	if err := s.pool.Start(ctx); err != nil {
		return err
	}
	s.started = true
	return nil
}

// Stop gracefully shuts down the workers and closes the queue and store.
// Calls after the first are no-ops.
func (s *Syncer) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil
	}
	s.stopped = true

	if s.pool != nil && s.started {
		if err := s.pool.Stop(ctx); err != nil {
			s.logger.Error("pool stop error", slog.String("error", err.Error()))
		}
		s.started = false
	}
	if s.extensions != nil {
		s.extensions.EmitShutdown(ctx)
	}

	var errs []error
	if c, ok := s.queue.(closer); ok {
		errs = append(errs, c.Close())
	}
	if s.store != nil {
		errs = append(errs, s.store.Close())
	}
	return errors.Join(errs...)
}

// WithConcurrency sets the number of workers per queue.
func WithConcurrency(n int) Option {
	return func(s *Syncer) error {
		if n <= 0 {
			return errors.New("docsync: concurrency must be positive")
		}
		s.config.Concurrency = n
		return nil
	}
}

// WithQueues sets the queues the syncer will consume.
func WithQueues(queues []string) Option {
	return func(s *Syncer) error {
		s.config.Queues = queues
		return nil
	}
}

// WithPollInterval sets the throttle and polling interval.
func WithPollInterval(d time.Duration) Option {
	return func(s *Syncer) error {
		s.config.PollInterval = d
		return nil
	}
}

// WithShutdownTimeout sets the graceful shutdown budget.
func WithShutdownTimeout(d time.Duration) Option {
	return func(s *Syncer) error {
		s.config.ShutdownTimeout = d
		return nil
	}
}

// WithSweep configures the sweeper. A zero interval disables it.
func WithSweep(interval, threshold time.Duration) Option {
	return func(s *Syncer) error {
		s.config.SweepInterval = interval
		s.config.SweepThreshold = threshold
		return nil
	}
}

// WithLogger sets the structured logger for the syncer.
func WithLogger(l *slog.Logger) Option {
	return func(s *Syncer) error {
		s.logger = l
		return nil
	}
}

// WithStore sets the persistence backend. The store must implement Storer
// at minimum; typically it is a store.Store.
func WithStore(st Storer) Option {
	return func(s *Syncer) error {
		s.store = st
		return nil
	}
}

// WithQueue sets the queue backend jobs are submitted to and consumed from.
func WithQueue(q Queuer) Option {
	return func(s *Syncer) error {
		s.queue = q
		return nil
	}
}
