package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/docsync"
	"github.com/xraph/docsync/controller"
	"github.com/xraph/docsync/controller/fieldmap"
	"github.com/xraph/docsync/document"
	"github.com/xraph/docsync/enqueue"
	"github.com/xraph/docsync/ext"
	"github.com/xraph/docsync/id"
	mw "github.com/xraph/docsync/middleware"
	"github.com/xraph/docsync/observability"
	"github.com/xraph/docsync/queue"
	"github.com/xraph/docsync/retry"
	"github.com/xraph/docsync/store"
	"github.com/xraph/docsync/syncjob"
	"github.com/xraph/docsync/worker"
)

const instrumentationName = "github.com/xraph/docsync"

// Engine wraps a Syncer with typed subsystem access.
// Use Build() to create one from a Syncer.
type Engine struct {
	s           *docsync.Syncer
	store       store.Store
	queue       queue.Queue
	accessor    document.Accessor
	controllers *controller.Registry
	extensions  *ext.Registry
	enqueuer    *enqueue.Enqueuer
	retry       *retry.Scheduler
	executor    *worker.Executor
	sweeper     *worker.Sweeper
	pool        *worker.Pool
	mws         []mw.Middleware
	logger      *slog.Logger

	queueConfigs []queue.Config
	queueManager *queue.Manager

	// OpenTelemetry providers (optional; nil means use global).
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
}

// Option configures an Engine.
type Option func(*Engine)

// WithExtension registers an extension with the engine.
func WithExtension(e ext.Extension) Option {
	return func(eng *Engine) {
		eng.extensions.Register(e)
	}
}

// WithMiddleware adds middleware inside the default chain, closest to the
// controller.
func WithMiddleware(m mw.Middleware) Option {
	return func(eng *Engine) {
		eng.mws = append(eng.mws, m)
	}
}

// WithAccessor sets the document accessor controllers read and write
// records through. It is required.
func WithAccessor(a document.Accessor) Option {
	return func(eng *Engine) {
		eng.accessor = a
	}
}

// WithControllerRegistry replaces the engine's controller registry, e.g. to
// share one between engines.
func WithControllerRegistry(r *controller.Registry) Option {
	return func(eng *Engine) {
		eng.controllers = r
	}
}

// WithQueueConfig registers queue-level rate limiting and concurrency
// configurations. Queues not listed have no limits.
func WithQueueConfig(configs ...queue.Config) Option {
	return func(eng *Engine) {
		eng.queueConfigs = append(eng.queueConfigs, configs...)
	}
}

// WithTracerProvider sets a custom OTel TracerProvider for the tracing
// middleware. If not set, the global otel.GetTracerProvider() is used.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(eng *Engine) {
		eng.tracerProvider = tp
	}
}

// WithMeterProvider sets a custom OTel MeterProvider for the metrics
// middleware and the observability extension.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(eng *Engine) {
		eng.meterProvider = mp
	}
}

// Build creates an Engine from an existing Syncer. The Syncer's store must
// implement store.Store. When the Syncer has no queue an in-process
// queue is created.
func Build(s *docsync.Syncer, opts ...Option) (*Engine, error) {
	logger := s.Logger()

	if s.Store() == nil {
		return nil, docsync.ErrNoStore
	}
	st, ok := s.Store().(store.Store)
	if !ok {
		return nil, fmt.Errorf("%w: store %T does not implement store.Store", docsync.ErrConfiguration, s.Store())
	}

	if s.Queue() == nil {
		s.SetQueue(queue.NewMemory())
	}
	var q queue.Queue = s.Queue()

	eng := &Engine{
		s:           s,
		store:       st,
		queue:       q,
		controllers: controller.NewRegistry(),
		extensions:  ext.NewRegistry(logger),
		logger:      logger,
	}
	for _, opt := range opts {
		opt(eng)
	}
	if eng.accessor == nil {
		return nil, docsync.ErrNoAccessor
	}

	if _, err := eng.controllers.Resolve(fieldmap.Ref); err != nil {
		if regErr := eng.controllers.Register(fieldmap.Ref, fieldmap.Controller{}); regErr != nil {
			return nil, regErr
		}
	}

	var (
		tracingMw mw.Middleware
		metricsMw mw.Middleware
		obsExt    *observability.MetricsExtension
	)
	if eng.tracerProvider != nil {
		tracingMw = mw.TracingWithTracer(eng.tracerProvider.Tracer(instrumentationName))
	} else {
		tracingMw = mw.Tracing()
	}
	if eng.meterProvider != nil {
		metricsMw = mw.MetricsWithMeter(eng.meterProvider.Meter(instrumentationName))
		obsExt = observability.NewMetricsExtensionWithMeter(eng.meterProvider.Meter(instrumentationName + "/observability"))
	} else {
		metricsMw = mw.Metrics()
		obsExt = observability.NewMetricsExtension()
	}
	eng.extensions.Register(obsExt)

	// Recover sits inside Timeout so a panic in the abandoned goroutine is
	// still caught.
	allMws := []mw.Middleware{
		mw.Logging(logger),
		tracingMw,
		metricsMw,
		mw.Timeout(logger),
		mw.Recover(logger),
	}
	allMws = append(allMws, eng.mws...)

	config := s.Config()
	eng.enqueuer = enqueue.New(st, st, q, eng.extensions, logger)
	eng.retry = retry.New(st, q, eng.extensions, logger)
	eng.executor = worker.NewExecutor(st, eng.controllers, eng.accessor, eng.enqueuer, eng.retry, eng.extensions, logger, allMws...)
	eng.sweeper = worker.NewSweeper(st, q, logger,
		worker.WithSweepInterval(config.SweepInterval),
		worker.WithSweepThreshold(config.SweepThreshold),
	)

	poolOpts := []worker.PoolOption{
		worker.WithPoolConcurrency(config.Concurrency),
		worker.WithPoolQueues(config.Queues),
		worker.WithPollInterval(config.PollInterval),
	}
	if config.SweepInterval > 0 {
		poolOpts = append(poolOpts, worker.WithSweeper(eng.sweeper))
	}
	if len(eng.queueConfigs) > 0 {
		eng.queueManager = queue.NewManager(eng.queueConfigs...)
		poolOpts = append(poolOpts, worker.WithQueueLimiter(eng.queueManager))
	}
	eng.pool = worker.NewPool(q, eng.executor, logger, poolOpts...)

	// Wire back into the Syncer.
	s.SetPool(eng.pool)
	s.SetExtensions(eng.extensions)

	return eng, nil
}

// RegisterController makes c available to types whose ControllerRef is
// ref. c must implement controller.Bypass or a target resolver.
func (eng *Engine) RegisterController(ref string, c any) error {
	if err := eng.controllers.Register(ref, c); err != nil {
		return err
	}
	eng.logger.Info("controller registered", slog.String("controller", ref))
	return nil
}

// CreateType validates and persists a new sync job type.
func (eng *Engine) CreateType(ctx context.Context, t *syncjob.Type) error {
	if err := eng.checkType(t); err != nil {
		return err
	}
	if t.CreatedAt.IsZero() {
		t.Entity = docsync.NewEntity()
	}
	return eng.store.CreateType(ctx, t)
}

// UpdateType validates and replaces an existing sync job type. Jobs
// already created keep the flags they were created with.
func (eng *Engine) UpdateType(ctx context.Context, t *syncjob.Type) error {
	if err := eng.checkType(t); err != nil {
		return err
	}
	if t.CreatedAt.IsZero() {
		existing, err := eng.store.GetType(ctx, t.Name)
		if err != nil {
			return err
		}
		t.CreatedAt = existing.CreatedAt
	}
	t.Touch()
	return eng.store.UpdateType(ctx, t)
}

// ApplyType creates t or replaces the stored type of the same name.
func (eng *Engine) ApplyType(ctx context.Context, t *syncjob.Type) error {
	err := eng.CreateType(ctx, t)
	if errors.Is(err, docsync.ErrTypeAlreadyExists) {
		return eng.UpdateType(ctx, t)
	}
	return err
}

func (eng *Engine) checkType(t *syncjob.Type) error {
	if err := t.Validate(); err != nil {
		return err
	}
	if _, err := eng.controllers.Resolve(t.ControllerRef); err != nil {
		return fmt.Errorf("type %q: %w", t.Name, err)
	}
	return nil
}

// GetType returns a sync job type by name.
func (eng *Engine) GetType(ctx context.Context, name string) (*syncjob.Type, error) {
	return eng.store.GetType(ctx, name)
}

// ListTypes returns every sync job type ordered by name.
func (eng *Engine) ListTypes(ctx context.Context) ([]*syncjob.Type, error) {
	return eng.store.ListTypes(ctx)
}

// Enqueue creates one sync job and submits it to its type's queue.
func (eng *Engine) Enqueue(ctx context.Context, req enqueue.Request) (*syncjob.Job, error) {
	return eng.enqueuer.Enqueue(ctx, req)
}

// Cancel moves a Pending, Queued or Failed job to Canceled. Other states
// return docsync.ErrNotCancelable.
func (eng *Engine) Cancel(ctx context.Context, jobID id.SyncJobID) (*syncjob.Job, error) {
	for {
		j, err := eng.store.GetJob(ctx, jobID)
		if err != nil {
			return nil, err
		}
		if !j.Status.Cancelable() {
			return nil, fmt.Errorf("%w: job %s is %s", docsync.ErrNotCancelable, jobID, j.Status)
		}

		expected := j.Status
		if err := j.TransitionTo(syncjob.StatusCanceled); err != nil {
			return nil, err
		}
		err = eng.store.CompareAndSwapJob(ctx, j, expected)
		if errors.Is(err, docsync.ErrStatusConflict) {
			// Status moved under us; re-evaluate.
			continue
		}
		if err != nil {
			return nil, err
		}

		eng.extensions.EmitJobCanceled(ctx, j)
		eng.logger.Info("sync job canceled",
			slog.String("job_id", j.ID.String()),
			slog.String("status", string(expected)),
		)
		return j, nil
	}
}

// GetJob returns a sync job by ID.
func (eng *Engine) GetJob(ctx context.Context, jobID id.SyncJobID) (*syncjob.Job, error) {
	return eng.store.GetJob(ctx, jobID)
}

// ListJobs returns the jobs matching opts.
func (eng *Engine) ListJobs(ctx context.Context, opts syncjob.ListOpts) ([]*syncjob.Job, error) {
	return eng.store.ListJobs(ctx, opts)
}

// CountJobs returns job counts per status.
func (eng *Engine) CountJobs(ctx context.Context, opts syncjob.CountOpts) (map[syncjob.Status]int64, error) {
	return eng.store.CountJobs(ctx, opts)
}

// Sweep runs the sweeper once, outside its schedule.
func (eng *Engine) Sweep(ctx context.Context) (int, error) {
	return eng.sweeper.Sweep(ctx)
}

// Start begins consuming the configured queues.
func (eng *Engine) Start(ctx context.Context) error {
	return eng.s.Start(ctx)
}

// Stop drains the worker pool and closes the queue and store.
func (eng *Engine) Stop(ctx context.Context) error {
	return eng.s.Stop(ctx)
}

// Ping checks the store.
func (eng *Engine) Ping(ctx context.Context) error {
	return eng.store.Ping(ctx)
}

// Extensions returns the extension registry.
func (eng *Engine) Extensions() *ext.Registry { return eng.extensions }

// Controllers returns the controller registry.
func (eng *Engine) Controllers() *controller.Registry { return eng.controllers }

// Syncer returns the underlying Syncer.
func (eng *Engine) Syncer() *docsync.Syncer { return eng.s }

// Store returns the engine's store.
func (eng *Engine) Store() store.Store { return eng.store }

// Executor returns the executor, for running a job inline.
func (eng *Engine) Executor() *worker.Executor { return eng.executor }

// Pool returns the worker pool.
func (eng *Engine) Pool() *worker.Pool { return eng.pool }

// QueueManager returns the queue manager, or nil if no queue configs
// were provided.
func (eng *Engine) QueueManager() *queue.Manager { return eng.queueManager }
