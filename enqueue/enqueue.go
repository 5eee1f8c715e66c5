// Package enqueue creates sync jobs and hands them to their queue.
package enqueue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/xraph/docsync"
	"github.com/xraph/docsync/controller"
	"github.com/xraph/docsync/document"
	"github.com/xraph/docsync/ext"
	"github.com/xraph/docsync/id"
	"github.com/xraph/docsync/queue"
	"github.com/xraph/docsync/syncjob"
)

// Request describes one job to create.
type Request struct {
	// Type is the sync job type name.
	Type string `json:"sync_job_type"`
	// SourceDocumentType defaults to the type's source type. Both source
	// fields may be empty; controllers then see a nil source.
	SourceDocumentType string         `json:"source_document_type,omitempty"`
	SourceDocumentName string         `json:"source_document_name,omitempty"`
	Context            map[string]any `json:"context,omitempty"`
	TriggerRef         string         `json:"trigger_ref,omitempty"`
	DryRun             bool           `json:"dry_run,omitempty"`

	// Capability overrides. Nil keeps the type's default.
	InsertEnabled               *bool `json:"insert_enabled,omitempty"`
	UpdateEnabled               *bool `json:"update_enabled,omitempty"`
	DeleteEnabled               *bool `json:"delete_enabled,omitempty"`
	UpdateWithoutChangesEnabled *bool `json:"update_without_changes_enabled,omitempty"`

	// Preset target, used for relay children.
	ParentJob          id.SyncJobID       `json:"-"`
	TargetDocumentType string             `json:"-"`
	TargetDocumentName string             `json:"-"`
	Operation          document.Operation `json:"-"`
}

// Enqueuer persists new jobs and submits them to the type's queue.
type Enqueuer struct {
	types      syncjob.TypeStore
	jobs       syncjob.JobStore
	queue      queue.Queue
	extensions *ext.Registry
	logger     *slog.Logger
}

// New creates an Enqueuer.
func New(types syncjob.TypeStore, jobs syncjob.JobStore, q queue.Queue, extensions *ext.Registry, logger *slog.Logger) *Enqueuer {
	if logger == nil {
		logger = slog.Default()
	}
	if extensions == nil {
		extensions = ext.NewRegistry(logger)
	}
	return &Enqueuer{types: types, jobs: jobs, queue: q, extensions: extensions, logger: logger}
}

// Enqueue creates exactly one job for req. The job is persisted Pending,
// submitted by ID, then moved to Queued. When submission fails the Pending
// job is returned together with the error.
func (e *Enqueuer) Enqueue(ctx context.Context, req Request) (*syncjob.Job, error) {
	typ, err := e.lookupType(ctx, req.Type)
	if err != nil {
		return nil, err
	}

	j, err := buildJob(typ, req)
	if err != nil {
		return nil, err
	}

	if err := e.jobs.CreateJob(ctx, j); err != nil {
		return nil, fmt.Errorf("docsync: create sync job: %w", err)
	}

	if err := e.queue.Submit(ctx, j.Queue, j.ID.String(), 0); err != nil {
		e.logger.Warn("sync job left pending, queue submit failed",
			slog.String("job_id", j.ID.String()),
			slog.String("sync_job_type", j.Type),
			slog.String("queue", j.Queue),
			slog.String("error", err.Error()),
		)
		return j, fmt.Errorf("docsync: submit sync job %s: %w", j.ID, err)
	}

	if err := e.markQueued(ctx, j); err != nil {
		return j, err
	}

	e.extensions.EmitJobEnqueued(ctx, j)
	e.logger.Debug("sync job enqueued",
		slog.String("job_id", j.ID.String()),
		slog.String("sync_job_type", j.Type),
		slog.String("queue", j.Queue),
	)
	return j, nil
}

func (e *Enqueuer) lookupType(ctx context.Context, name string) (*syncjob.Type, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: sync job type is required", docsync.ErrConfiguration)
	}
	typ, err := e.types.GetType(ctx, name)
	if err != nil {
		if errors.Is(err, docsync.ErrTypeNotFound) {
			return nil, fmt.Errorf("%w: %w", docsync.ErrConfiguration, err)
		}
		return nil, fmt.Errorf("docsync: load sync job type: %w", err)
	}
	if typ.Disabled {
		return nil, fmt.Errorf("%w: sync job type %q is disabled", docsync.ErrConfiguration, name)
	}
	return typ, nil
}

func buildJob(typ *syncjob.Type, req Request) (*syncjob.Job, error) {
	srcType := req.SourceDocumentType
	if srcType == "" {
		srcType = typ.SourceType
	}
	if typ.SourceType != "" && srcType != typ.SourceType {
		return nil, fmt.Errorf("%w: sync job type %q expects source %q, got %q",
			docsync.ErrConfiguration, typ.Name, typ.SourceType, srcType)
	}
	// The source is optional; a job without one carries its data in Context.
	if srcType == "" && req.SourceDocumentName != "" {
		return nil, fmt.Errorf("%w: source document %q has no type", docsync.ErrConfiguration, req.SourceDocumentName)
	}
	if req.Operation != "" && !req.Operation.Valid() {
		return nil, fmt.Errorf("%w: invalid operation %q", docsync.ErrConfiguration, req.Operation)
	}

	syncCtx, err := controller.NormalizeContext(req.Context)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", docsync.ErrConfiguration, err)
	}

	j := syncjob.NewJob(typ, srcType, req.SourceDocumentName)
	j.Context = syncCtx
	j.TriggerRef = req.TriggerRef
	j.DryRun = req.DryRun
	j.ParentJob = req.ParentJob
	j.TargetDocumentType = req.TargetDocumentType
	j.TargetDocumentName = req.TargetDocumentName
	j.Operation = req.Operation

	override(&j.InsertEnabled, req.InsertEnabled)
	override(&j.UpdateEnabled, req.UpdateEnabled)
	override(&j.DeleteEnabled, req.DeleteEnabled)
	override(&j.UpdateWithoutChangesEnabled, req.UpdateWithoutChangesEnabled)
	return j, nil
}

func override(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

// markQueued moves j from Pending to Queued. A worker that consumed the
// message first has already done so, which is not an error.
func (e *Enqueuer) markQueued(ctx context.Context, j *syncjob.Job) error {
	next := j.Clone()
	if err := next.TransitionTo(syncjob.StatusQueued); err != nil {
		return err
	}
	err := e.jobs.CompareAndSwapJob(ctx, next, syncjob.StatusPending)
	switch {
	case err == nil:
		*j = *next
		return nil
	case errors.Is(err, docsync.ErrStatusConflict):
		current, getErr := e.jobs.GetJob(ctx, j.ID)
		if getErr != nil {
			return fmt.Errorf("docsync: reload sync job %s: %w", j.ID, getErr)
		}
		*j = *current
		return nil
	default:
		return fmt.Errorf("docsync: mark sync job %s queued: %w", j.ID, err)
	}
}

// Bool returns a pointer to v, for capability overrides.
func Bool(v bool) *bool { return &v }
