package audithook

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/docsync/ext"
	"github.com/xraph/docsync/syncjob"
)

var (
	_ ext.Extension   = (*Extension)(nil)
	_ ext.JobEnqueued = (*Extension)(nil)
	_ ext.JobStarted  = (*Extension)(nil)
	_ ext.JobFinished = (*Extension)(nil)
	_ ext.JobFailed   = (*Extension)(nil)
	_ ext.JobRetrying = (*Extension)(nil)
	_ ext.JobRelayed  = (*Extension)(nil)
	_ ext.JobSkipped  = (*Extension)(nil)
	_ ext.JobNoTarget = (*Extension)(nil)
	_ ext.JobCanceled = (*Extension)(nil)
)

// Recorder persists audit events.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is one audit trail entry.
type AuditEvent struct {
	Time     time.Time `json:"time"`
	Action   string    `json:"action"`
	Resource string    `json:"resource"`
	Category string    `json:"category"`

	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record calls f.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Severity levels.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Extension bridges sync job lifecycle events to a Recorder. Recorder
// errors are logged and never fail the job.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through r.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements ext.Extension.
func (e *Extension) Name() string { return "audit-hook" }

// OnJobEnqueued implements ext.JobEnqueued.
func (e *Extension) OnJobEnqueued(ctx context.Context, j *syncjob.Job) error {
	return e.record(ctx, ActionJobEnqueued, SeverityInfo, OutcomeSuccess, j, nil,
		"trigger_ref", j.TriggerRef,
		"dry_run", j.DryRun,
	)
}

// OnJobStarted implements ext.JobStarted.
func (e *Extension) OnJobStarted(ctx context.Context, j *syncjob.Job) error {
	return e.record(ctx, ActionJobStarted, SeverityInfo, OutcomeSuccess, j, nil,
		"attempt", j.Attempts,
	)
}

// OnJobFinished implements ext.JobFinished.
func (e *Extension) OnJobFinished(ctx context.Context, j *syncjob.Job, elapsed time.Duration) error {
	return e.record(ctx, ActionJobFinished, SeverityInfo, OutcomeSuccess, j, nil,
		"target_document_type", j.TargetDocumentType,
		"target_document_name", j.TargetDocumentName,
		"operation", string(j.Operation),
		"changed_fields", j.Diff.Fields(),
		"elapsed_ms", elapsed.Milliseconds(),
	)
}

// OnJobFailed implements ext.JobFailed.
func (e *Extension) OnJobFailed(ctx context.Context, j *syncjob.Job, jobErr error) error {
	return e.record(ctx, ActionJobFailed, SeverityCritical, OutcomeFailure, j, jobErr,
		"attempts", j.Attempts,
		"retry_count", j.RetryCount,
	)
}

// OnJobRetrying implements ext.JobRetrying.
func (e *Extension) OnJobRetrying(ctx context.Context, j *syncjob.Job, attempt int, delay time.Duration) error {
	return e.record(ctx, ActionJobRetrying, SeverityWarning, OutcomeFailure, j, nil,
		"attempt", attempt,
		"delay_ms", delay.Milliseconds(),
		"last_error", j.ErrorMessage,
	)
}

// OnJobRelayed implements ext.JobRelayed.
func (e *Extension) OnJobRelayed(ctx context.Context, j *syncjob.Job, children []*syncjob.Job) error {
	ids := make([]string, len(children))
	for i, c := range children {
		ids[i] = c.ID.String()
	}
	return e.record(ctx, ActionJobRelayed, SeverityInfo, OutcomeSuccess, j, nil,
		"children", ids,
	)
}

// OnJobSkipped implements ext.JobSkipped.
func (e *Extension) OnJobSkipped(ctx context.Context, j *syncjob.Job, reason error) error {
	return e.record(ctx, ActionJobSkipped, SeverityWarning, OutcomeSuccess, j, reason,
		"operation", string(j.Operation),
	)
}

// OnJobNoTarget implements ext.JobNoTarget.
func (e *Extension) OnJobNoTarget(ctx context.Context, j *syncjob.Job) error {
	return e.record(ctx, ActionJobNoTarget, SeverityWarning, OutcomeFailure, j, nil,
		"error_message", j.ErrorMessage,
	)
}

// OnJobCanceled implements ext.JobCanceled.
func (e *Extension) OnJobCanceled(ctx context.Context, j *syncjob.Job) error {
	return e.record(ctx, ActionJobCanceled, SeverityInfo, OutcomeSuccess, j, nil)
}

// record builds and sends an audit event if the action is enabled.
// kvPairs are added to Metadata after the common job fields.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	j *syncjob.Job,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+4)
	meta["sync_job_type"] = j.Type
	meta["queue"] = j.Queue
	meta["source_document_type"] = j.SourceDocumentType
	meta["source_document_name"] = j.SourceDocumentName
	if !j.ParentJob.IsNil() {
		meta["parent_job"] = j.ParentJob.String()
	}
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
	}

	evt := &AuditEvent{
		Time:       time.Now().UTC(),
		Action:     action,
		Resource:   ResourceSyncJob,
		Category:   CategorySync,
		ResourceID: j.ID.String(),
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			slog.String("action", action),
			slog.String("job_id", j.ID.String()),
			slog.String("error", recErr.Error()),
		)
	}
	return nil
}
