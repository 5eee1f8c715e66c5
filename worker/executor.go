package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/docsync"
	"github.com/xraph/docsync/controller"
	"github.com/xraph/docsync/document"
	"github.com/xraph/docsync/enqueue"
	"github.com/xraph/docsync/ext"
	"github.com/xraph/docsync/id"
	"github.com/xraph/docsync/middleware"
	"github.com/xraph/docsync/retry"
	"github.com/xraph/docsync/syncjob"
)

// Store is the persistence the executor needs.
type Store interface {
	syncjob.TypeStore
	syncjob.JobStore
}

// Executor runs a single sync job: it claims the job, invokes its
// controller through the middleware chain, records the outcome and hands
// failures to the retry scheduler.
type Executor struct {
	store       Store
	controllers controller.Resolver
	accessor    document.Accessor
	enqueuer    *enqueue.Enqueuer
	retry       *retry.Scheduler
	extensions  *ext.Registry
	mw          middleware.Middleware
	logger      *slog.Logger
}

// NewExecutor creates an Executor with the given dependencies.
func NewExecutor(
	store Store,
	controllers controller.Resolver,
	accessor document.Accessor,
	enqueuer *enqueue.Enqueuer,
	scheduler *retry.Scheduler,
	extensions *ext.Registry,
	logger *slog.Logger,
	mws ...middleware.Middleware,
) *Executor {
	return &Executor{
		store:       store,
		controllers: controllers,
		accessor:    accessor,
		enqueuer:    enqueuer,
		retry:       scheduler,
		extensions:  extensions,
		mw:          middleware.Chain(mws...),
		logger:      logger,
	}
}

// outcome is what a successful controller run produced.
type outcome struct {
	status   syncjob.Status
	reason   error
	children []*syncjob.Job
}

// Execute processes the job a queue message referred to. Messages for
// jobs that are not Queued (already claimed, canceled, finished) are
// dropped and return nil. A message that arrives before the job's RetryAt
// is put back on the queue for the remaining delay.
func (e *Executor) Execute(ctx context.Context, jobID string) error {
	jid, err := id.ParseSyncJobID(jobID)
	if err != nil {
		return fmt.Errorf("docsync: invalid job id in queue message %q: %w", jobID, err)
	}

	j, err := e.store.GetJob(ctx, jid)
	if err != nil {
		return err
	}

	if j.Status == syncjob.StatusPending {
		if j, err = e.advancePending(ctx, j); err != nil {
			return err
		}
	}
	if j.Status != syncjob.StatusQueued {
		e.logger.Debug("dropping message for sync job not queued",
			slog.String("job_id", jobID),
			slog.String("status", string(j.Status)),
		)
		return nil
	}

	if wait := j.RetryDelay(time.Now().UTC()); wait > 0 {
		e.logger.Debug("sync job not due yet, deferring message",
			slog.String("job_id", jobID),
			slog.Duration("wait", wait),
		)
		return e.retry.Defer(ctx, j, wait)
	}

	typ, typErr := e.store.GetType(ctx, j.Type)

	claimed, err := e.claim(ctx, j)
	if err != nil || claimed == nil {
		return err
	}
	j = claimed
	e.extensions.EmitJobStarted(ctx, j)

	if typErr != nil {
		if errors.Is(typErr, docsync.ErrTypeNotFound) {
			typErr = fmt.Errorf("%w: %w", docsync.ErrConfiguration, typErr)
		}
		return e.fail(ctx, j, nil, typErr)
	}

	unit, err := e.controllers.Resolve(typ.ControllerRef)
	if err != nil {
		return e.fail(ctx, j, typ, err)
	}

	start := time.Now()
	work := j.Clone()
	var out *outcome
	terminal := func(ctx context.Context) error {
		res, runErr := e.run(ctx, work, typ, unit)
		if runErr == nil {
			out = res
		}
		return runErr
	}

	// The budget holds whether or not the chain carries Timeout.
	bounded := func(ctx context.Context) error {
		return middleware.Within(ctx, j, typ.Timeout(), e.logger, terminal)
	}
	runErr := e.mw(middleware.WithTimeout(ctx, typ.Timeout()), j.Clone(), bounded)

	// Outcomes are recorded even when the pool canceled the attempt.
	ctx = context.WithoutCancel(ctx)
	if runErr != nil {
		if !errors.Is(runErr, docsync.ErrTimeout) && !errors.Is(runErr, context.Canceled) {
			// The controller returned, so its view of the job is settled.
			j = work
		}
		return e.fail(ctx, j, typ, runErr)
	}
	if out == nil {
		return e.fail(ctx, j, typ, fmt.Errorf("%w: middleware did not run the controller", docsync.ErrSkip))
	}
	return e.complete(ctx, work, typ, out, time.Since(start))
}

// advancePending moves a job whose message outran the enqueuer's own
// Pending → Queued update.
func (e *Executor) advancePending(ctx context.Context, j *syncjob.Job) (*syncjob.Job, error) {
	next := j.Clone()
	if err := next.TransitionTo(syncjob.StatusQueued); err != nil {
		return nil, err
	}
	err := e.store.CompareAndSwapJob(ctx, next, syncjob.StatusPending)
	switch {
	case err == nil:
		return next, nil
	case errors.Is(err, docsync.ErrStatusConflict):
		return e.store.GetJob(ctx, j.ID)
	default:
		return nil, err
	}
}

// claim moves j from Queued to Started. A nil job means another worker
// won the race.
func (e *Executor) claim(ctx context.Context, j *syncjob.Job) (*syncjob.Job, error) {
	next := j.Clone()
	next.Attempts++
	next.RetryAt = nil
	if err := next.TransitionTo(syncjob.StatusStarted); err != nil {
		return nil, err
	}
	if err := e.store.CompareAndSwapJob(ctx, next, syncjob.StatusQueued); err != nil {
		if errors.Is(err, docsync.ErrStatusConflict) {
			e.logger.Debug("sync job claimed elsewhere", slog.String("job_id", j.ID.String()))
			return nil, nil
		}
		return nil, err
	}
	return next, nil
}

// run drives the controller for one attempt. It only touches work, a
// private copy of the job.
func (e *Executor) run(ctx context.Context, work *syncjob.Job, typ *syncjob.Type, unit *controller.Unit) (*outcome, error) {
	source, err := document.LoadOptional(ctx, e.accessor, work.SourceDocumentType, work.SourceDocumentName)
	if err != nil {
		return nil, fmt.Errorf("load source %s/%s: %w", work.SourceDocumentType, work.SourceDocumentName, err)
	}
	if typ.VerboseLogging && source != nil {
		work.SourceSnapshot = source.Clone().Fields
	}

	if unit.Mode == controller.ModeBypass {
		return e.runBypass(ctx, work, typ, unit, source)
	}
	return e.runStandard(ctx, work, typ, unit, source)
}

// complete records a successful attempt.
func (e *Executor) complete(ctx context.Context, j *syncjob.Job, typ *syncjob.Type, out *outcome, elapsed time.Duration) error {
	if out.reason != nil {
		j.RecordError(out.reason, typ.VerboseLogging)
	}
	if err := e.finish(ctx, j, out.status); err != nil {
		return err
	}

	switch out.status {
	case syncjob.StatusFinished:
		e.extensions.EmitJobFinished(ctx, j, elapsed)
	case syncjob.StatusRelayed:
		e.extensions.EmitJobRelayed(ctx, j, out.children)
	case syncjob.StatusNoTarget:
		e.extensions.EmitJobNoTarget(ctx, j)
	case syncjob.StatusSkipped:
		e.extensions.EmitJobSkipped(ctx, j, out.reason)
	}

	e.logger.Info("sync job done",
		slog.String("job_id", j.ID.String()),
		slog.String("sync_job_type", j.Type),
		slog.String("status", string(out.status)),
		slog.Duration("elapsed", elapsed),
	)
	return nil
}

// fail classifies runErr and records the resulting status. Plain errors
// and timeouts go to the retry scheduler.
func (e *Executor) fail(ctx context.Context, j *syncjob.Job, typ *syncjob.Type, runErr error) error {
	verbose := typ != nil && typ.VerboseLogging

	var status syncjob.Status
	switch {
	case errors.Is(runErr, docsync.ErrResolution):
		status = syncjob.StatusNoTarget
	case errors.Is(runErr, docsync.ErrOperationNotPermitted), errors.Is(runErr, docsync.ErrSkip):
		status = syncjob.StatusSkipped
	default:
		status = syncjob.StatusFailed
	}

	j.RecordError(runErr, verbose)
	if err := e.finish(ctx, j, status); err != nil {
		return errors.Join(runErr, err)
	}

	switch status {
	case syncjob.StatusNoTarget:
		e.extensions.EmitJobNoTarget(ctx, j)
		return nil
	case syncjob.StatusSkipped:
		e.extensions.EmitJobSkipped(ctx, j, runErr)
		return nil
	}

	if typ != nil && !errors.Is(runErr, docsync.ErrConfiguration) {
		scheduled, err := e.retry.Schedule(ctx, j, typ)
		if err != nil {
			e.logger.Error("failed to schedule retry",
				slog.String("job_id", j.ID.String()),
				slog.String("error", err.Error()),
			)
		}
		if scheduled {
			return runErr
		}
	}

	e.extensions.EmitJobFailed(ctx, j, runErr)
	e.logger.Error("sync job failed",
		slog.String("job_id", j.ID.String()),
		slog.String("sync_job_type", j.Type),
		slog.Int("retry_count", j.RetryCount),
		slog.String("error", runErr.Error()),
	)
	return runErr
}

// finish moves a Started job to status and persists it.
func (e *Executor) finish(ctx context.Context, j *syncjob.Job, status syncjob.Status) error {
	if err := j.TransitionTo(status); err != nil {
		return err
	}
	if err := e.store.CompareAndSwapJob(ctx, j, syncjob.StatusStarted); err != nil {
		e.logger.Error("failed to record sync job outcome",
			slog.String("job_id", j.ID.String()),
			slog.String("status", string(status)),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("docsync: record sync job %s as %s: %w", j.ID, status, err)
	}
	return nil
}
