package streamhook

import (
	"context"
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

// Event is one published lifecycle event.
type Event struct {
	Type string
	Time time.Time
	Data any
}

// Publisher delivers events to subscribers.
type Publisher interface {
	Publish(ctx context.Context, evt *Event) error
}

// PublisherFunc is an adapter to use a plain function as a Publisher.
type PublisherFunc func(ctx context.Context, evt *Event) error

// Publish calls f.
func (f PublisherFunc) Publish(ctx context.Context, evt *Event) error {
	return f(ctx, evt)
}

// Extension publishes sync job lifecycle events. Publish errors are
// returned to the registry, which logs them without failing the job.
type Extension struct {
	pub      Publisher
	enabled  map[string]bool        // nil = all enabled
	payloads map[string]PayloadFunc // custom payload builders
}

// New creates an Extension publishing through pub.
func New(pub Publisher, opts ...Option) *Extension {
	h := &Extension{pub: pub}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Name implements ext.Extension.
func (h *Extension) Name() string { return "stream-hook" }

// OnJobEnqueued implements ext.JobEnqueued.
func (h *Extension) OnJobEnqueued(ctx context.Context, j *syncjob.Job) error {
	return h.send(ctx, EventJobEnqueued, newJobPayload(j))
}

// OnJobStarted implements ext.JobStarted.
func (h *Extension) OnJobStarted(ctx context.Context, j *syncjob.Job) error {
	return h.send(ctx, EventJobStarted, newJobPayload(j))
}

// OnJobFinished implements ext.JobFinished.
func (h *Extension) OnJobFinished(ctx context.Context, j *syncjob.Job, elapsed time.Duration) error {
	return h.send(ctx, EventJobFinished, &jobFinishedPayload{
		JobPayload:    *newJobPayload(j),
		ChangedFields: j.Diff.Fields(),
		ElapsedMs:     elapsed.Milliseconds(),
	})
}

// OnJobFailed implements ext.JobFailed.
func (h *Extension) OnJobFailed(ctx context.Context, j *syncjob.Job, jobErr error) error {
	return h.send(ctx, EventJobFailed, &jobErrorPayload{
		JobPayload: *newJobPayload(j),
		Error:      jobErr.Error(),
	})
}

// OnJobRetrying implements ext.JobRetrying.
func (h *Extension) OnJobRetrying(ctx context.Context, j *syncjob.Job, attempt int, delay time.Duration) error {
	return h.send(ctx, EventJobRetrying, &jobRetryingPayload{
		JobPayload: *newJobPayload(j),
		Attempt:    attempt,
		DelayMs:    delay.Milliseconds(),
		Error:      j.ErrorMessage,
	})
}

// OnJobRelayed implements ext.JobRelayed.
func (h *Extension) OnJobRelayed(ctx context.Context, j *syncjob.Job, children []*syncjob.Job) error {
	p := &jobRelayedPayload{JobPayload: *newJobPayload(j)}
	for _, c := range children {
		p.Children = append(p.Children, c.ID.String())
	}
	return h.send(ctx, EventJobRelayed, p)
}

// OnJobSkipped implements ext.JobSkipped.
func (h *Extension) OnJobSkipped(ctx context.Context, j *syncjob.Job, reason error) error {
	p := &jobErrorPayload{JobPayload: *newJobPayload(j)}
	if reason != nil {
		p.Error = reason.Error()
	}
	return h.send(ctx, EventJobSkipped, p)
}

// OnJobNoTarget implements ext.JobNoTarget.
func (h *Extension) OnJobNoTarget(ctx context.Context, j *syncjob.Job) error {
	return h.send(ctx, EventJobNoTarget, &jobErrorPayload{
		JobPayload: *newJobPayload(j),
		Error:      j.ErrorMessage,
	})
}

// OnJobCanceled implements ext.JobCanceled.
func (h *Extension) OnJobCanceled(ctx context.Context, j *syncjob.Job) error {
	return h.send(ctx, EventJobCanceled, newJobPayload(j))
}

// send publishes an event if its type is enabled.
func (h *Extension) send(ctx context.Context, eventType string, defaultData any) error {
	if h.enabled != nil && !h.enabled[eventType] {
		return nil
	}

	data := defaultData
	if fn, ok := h.payloads[eventType]; ok {
		custom, err := fn(defaultData)
		if err != nil {
			return err
		}
		data = custom
	}

	return h.pub.Publish(ctx, &Event{
		Type: eventType,
		Time: time.Now().UTC(),
		Data: data,
	})
}

// JobPayload is the default payload shared by every event.
type JobPayload struct {
	JobID              string `json:"job_id"`
	Type               string `json:"sync_job_type"`
	Queue              string `json:"queue"`
	Status             string `json:"status"`
	SourceDocumentType string `json:"source_document_type"`
	SourceDocumentName string `json:"source_document_name"`
	TargetDocumentType string `json:"target_document_type,omitempty"`
	TargetDocumentName string `json:"target_document_name,omitempty"`
	Operation          string `json:"operation,omitempty"`
	ParentJob          string `json:"parent_job,omitempty"`
	TriggerRef         string `json:"trigger_ref,omitempty"`
}

func newJobPayload(j *syncjob.Job) *JobPayload {
	p := &JobPayload{
		JobID:              j.ID.String(),
		Type:               j.Type,
		Queue:              j.Queue,
		Status:             string(j.Status),
		SourceDocumentType: j.SourceDocumentType,
		SourceDocumentName: j.SourceDocumentName,
		TargetDocumentType: j.TargetDocumentType,
		TargetDocumentName: j.TargetDocumentName,
		Operation:          string(j.Operation),
		TriggerRef:         j.TriggerRef,
	}
	if !j.ParentJob.IsNil() {
		p.ParentJob = j.ParentJob.String()
	}
	return p
}

type jobFinishedPayload struct {
	JobPayload
	ChangedFields []string `json:"changed_fields"`
	ElapsedMs     int64    `json:"elapsed_ms"`
}

type jobErrorPayload struct {
	JobPayload
	Error string `json:"error,omitempty"`
}

type jobRetryingPayload struct {
	JobPayload
	Attempt int    `json:"attempt"`
	DelayMs int64  `json:"delay_ms"`
	Error   string `json:"error,omitempty"`
}

type jobRelayedPayload struct {
	JobPayload
	Children []string `json:"children"`
}
