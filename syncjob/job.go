package syncjob

import (
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/xraph/docsync"
	"github.com/xraph/docsync/document"
	"github.com/xraph/docsync/id"
)

// Job records one attempt to propagate a source document to a target.
type Job struct {
	docsync.Entity

	ID     id.SyncJobID `json:"id"`
	Type   string       `json:"sync_job_type"`
	Queue  string       `json:"queue"`
	Status Status       `json:"status"`

	SourceDocumentType string `json:"source_document_type"`
	SourceDocumentName string `json:"source_document_name"`
	TargetDocumentType string `json:"target_document_type,omitempty"`
	TargetDocumentName string `json:"target_document_name,omitempty"`

	// ParentJob is set on jobs created by relay fan-out.
	ParentJob id.SyncJobID `json:"parent_job"`

	Context    map[string]any     `json:"context,omitempty"`
	TriggerRef string             `json:"trigger_ref,omitempty"`
	Operation  document.Operation `json:"operation,omitempty"`
	Diff       document.Diff      `json:"diff"`

	ErrorMessage string `json:"error_message,omitempty"`
	RetryCount   int    `json:"retry_count"`
	Attempts     int    `json:"attempts"`
	DryRun       bool   `json:"dry_run"`

	InsertEnabled               bool `json:"insert_enabled"`
	UpdateEnabled               bool `json:"update_enabled"`
	DeleteEnabled               bool `json:"delete_enabled"`
	UpdateWithoutChangesEnabled bool `json:"update_without_changes_enabled"`

	// Snapshots are only kept when the job type has VerboseLogging.
	SourceSnapshot map[string]any `json:"source_snapshot,omitempty"`
	TargetSnapshot map[string]any `json:"target_snapshot,omitempty"`

	// RetryAt is when a requeued job becomes due. Messages delivered
	// earlier are put back on the queue.
	RetryAt *time.Time `json:"retry_at,omitempty"`

	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// NewJob returns a pending job for the given type with a fresh ID. Queue and
// capability flags are copied from t.
func NewJob(t *Type, sourceType, sourceName string) *Job {
	return &Job{
		Entity:                      docsync.NewEntity(),
		ID:                          id.NewSyncJobID(),
		Type:                        t.Name,
		Queue:                       t.Queue,
		Status:                      StatusPending,
		SourceDocumentType:          sourceType,
		SourceDocumentName:          sourceName,
		InsertEnabled:               t.InsertEnabled,
		UpdateEnabled:               t.UpdateEnabled,
		DeleteEnabled:               t.DeleteEnabled,
		UpdateWithoutChangesEnabled: t.UpdateWithoutChangesEnabled,
	}
}

// OperationEnabled reports whether the job's capability flags allow op.
func (j *Job) OperationEnabled(op document.Operation) bool {
	switch op {
	case document.OpInsert:
		return j.InsertEnabled
	case document.OpUpdate:
		return j.UpdateEnabled
	case document.OpDelete:
		return j.DeleteEnabled
	}
	return false
}

// RecordError stores err as the job's error message. With history set the
// message is appended, prefixed by the attempt number, instead of
// replacing earlier ones.
func (j *Job) RecordError(err error, history bool) {
	if err == nil {
		return
	}
	if !history || j.ErrorMessage == "" {
		j.ErrorMessage = err.Error()
		if history {
			j.ErrorMessage = fmt.Sprintf("[attempt %d] %s", j.Attempts, err)
		}
		return
	}
	j.ErrorMessage += fmt.Sprintf("\n[attempt %d] %s", j.Attempts, err)
}

// Clone returns a copy of j whose maps, diff and timestamps can be mutated
// without affecting j. Map values are shared.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	cp := *j
	cp.Context = maps.Clone(j.Context)
	cp.SourceSnapshot = maps.Clone(j.SourceSnapshot)
	cp.TargetSnapshot = maps.Clone(j.TargetSnapshot)
	cp.Diff.Changes = slices.Clone(j.Diff.Changes)
	if j.StartedAt != nil {
		t := *j.StartedAt
		cp.StartedAt = &t
	}
	if j.FinishedAt != nil {
		t := *j.FinishedAt
		cp.FinishedAt = &t
	}
	if j.RetryAt != nil {
		t := *j.RetryAt
		cp.RetryAt = &t
	}
	return &cp
}

// RetryDelay returns how long j must still wait before it is due, or zero
// when it carries no RetryAt or that time has passed.
func (j *Job) RetryDelay(now time.Time) time.Duration {
	if j.RetryAt == nil || !now.Before(*j.RetryAt) {
		return 0
	}
	return j.RetryAt.Sub(now)
}
