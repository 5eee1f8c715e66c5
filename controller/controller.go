package controller

import (
	"context"

	"github.com/xraph/docsync/document"
	"github.com/xraph/docsync/syncjob"
)

// Target is one resolved target document. Context entries are overlaid on
// the job context when the target becomes a relay child.
type Target struct {
	DocumentType string             `json:"document_type"`
	DocumentName string             `json:"document_name,omitempty"`
	Operation    document.Operation `json:"operation"`
	Context      map[string]any     `json:"context,omitempty"`
}

// Result is what a bypass controller hands back to the worker.
type Result struct {
	// Target is the desired target record. For deletes only Type, Name and
	// Version matter.
	Target    *document.Record
	Operation document.Operation
	// Diff is optional; when empty the worker diffs Target against the
	// stored record.
	Diff document.Diff
}

// Bypass controllers perform the whole sync in one call.
type Bypass interface {
	Execute(ctx context.Context, j *syncjob.Job, source *document.Record) (*Result, error)
}

// BypassFunc adapts a function to the Bypass interface.
type BypassFunc func(ctx context.Context, j *syncjob.Job, source *document.Record) (*Result, error)

// Execute calls f.
func (f BypassFunc) Execute(ctx context.Context, j *syncjob.Job, source *document.Record) (*Result, error) {
	return f(ctx, j, source)
}

// TargetResolver resolves a single target. A nil target means there is
// nothing to sync to.
type TargetResolver interface {
	GetTargetDocument(ctx context.Context, j *syncjob.Job, source *document.Record) (*Target, error)
}

// MultiTargetResolver resolves any number of targets. It takes precedence
// over TargetResolver when a controller implements both.
type MultiTargetResolver interface {
	GetMultipleTargetDocuments(ctx context.Context, j *syncjob.Job, source *document.Record) ([]Target, error)
}

// TargetUpdater mutates target in place from source. It is required for
// insert and update operations.
type TargetUpdater interface {
	UpdateTargetDoc(ctx context.Context, j *syncjob.Job, source, target *document.Record) error
}

// AfterStart runs once the job is claimed, before target resolution.
type AfterStart interface {
	AfterStart(ctx context.Context, j *syncjob.Job, source *document.Record) error
}

// BeforeRelay runs before child jobs are created for multiple targets.
type BeforeRelay interface {
	BeforeRelay(ctx context.Context, j *syncjob.Job, source *document.Record, targets []Target) error
}

// AfterRelay runs after all child jobs were enqueued.
type AfterRelay interface {
	AfterRelay(ctx context.Context, j *syncjob.Job, source *document.Record, children []*syncjob.Job) error
}

// BeforeSync runs after UpdateTargetDoc mutated the target and the diff
// was computed, before the target is persisted.
type BeforeSync interface {
	BeforeSync(ctx context.Context, j *syncjob.Job, source, target *document.Record) error
}

// AfterSync runs after the target was persisted. In a dry run it runs
// where the save would have happened.
type AfterSync interface {
	AfterSync(ctx context.Context, j *syncjob.Job, source, target *document.Record) error
}

// Finished runs after the target was persisted. It never runs in a dry run.
type Finished interface {
	Finished(ctx context.Context, j *syncjob.Job, source, target *document.Record) error
}
