// Package ext defines the extension system for docsync.
// Extensions are notified of sync job lifecycle events (enqueued, finished,
// failed, relayed, ...) and can react to them.
//
// Each lifecycle hook is a separate interface so extensions opt in only
// to the events they care about.
package ext

import (
	"context"
	"time"

	"github.com/xraph/docsync/syncjob"
)

// Extension is the base interface all extensions must implement.
type Extension interface {
	// Name returns a unique human-readable name for the extension.
	Name() string
}

// JobEnqueued is called after a job is persisted and handed to its queue.
type JobEnqueued interface {
	OnJobEnqueued(ctx context.Context, j *syncjob.Job) error
}

// JobStarted is called after a worker claims a job.
type JobStarted interface {
	OnJobStarted(ctx context.Context, j *syncjob.Job) error
}

// JobFinished is called after a job reaches Finished.
type JobFinished interface {
	OnJobFinished(ctx context.Context, j *syncjob.Job, elapsed time.Duration) error
}

// JobFailed is called when a job fails with no retry scheduled.
type JobFailed interface {
	OnJobFailed(ctx context.Context, j *syncjob.Job, err error) error
}

// JobRetrying is called when a failed job is requeued.
type JobRetrying interface {
	OnJobRetrying(ctx context.Context, j *syncjob.Job, attempt int, delay time.Duration) error
}

// JobRelayed is called after a job fans out into child jobs.
type JobRelayed interface {
	OnJobRelayed(ctx context.Context, j *syncjob.Job, children []*syncjob.Job) error
}

// JobSkipped is called when a job ends Skipped.
type JobSkipped interface {
	OnJobSkipped(ctx context.Context, j *syncjob.Job, reason error) error
}

// JobNoTarget is called when a job ends with no resolvable target.
type JobNoTarget interface {
	OnJobNoTarget(ctx context.Context, j *syncjob.Job) error
}

// JobCanceled is called after an operator cancels a job.
type JobCanceled interface {
	OnJobCanceled(ctx context.Context, j *syncjob.Job) error
}

// Shutdown is called during graceful shutdown.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}
