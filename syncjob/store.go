package syncjob

import (
	"context"
	"time"

	"github.com/xraph/docsync/id"
)

// ListOpts controls pagination and filtering for job list queries. Results
// are ordered by creation time, oldest first.
type ListOpts struct {
	// Status filters by job status. Empty means all statuses.
	Status Status
	// Type filters by sync job type name.
	Type string
	// Parent filters to the children of a relayed job.
	Parent id.SyncJobID
	// Queue filters by queue name.
	Queue string
	// UpdatedBefore keeps only jobs last touched before this time.
	UpdatedBefore time.Time
	// Limit is the maximum number of jobs to return. Zero means no limit.
	Limit int
	// Offset is the number of jobs to skip.
	Offset int
}

// CountOpts controls filtering for job count queries.
type CountOpts struct {
	// Type filters by sync job type name. Empty means all types.
	Type string
}

// TypeStore defines the persistence contract for sync job types.
type TypeStore interface {
	// CreateType persists a new type. Returns docsync.ErrTypeAlreadyExists
	// if the name is taken.
	CreateType(ctx context.Context, t *Type) error

	// GetType retrieves a type by name. Returns docsync.ErrTypeNotFound.
	GetType(ctx context.Context, name string) (*Type, error)

	// UpdateType replaces an existing type. Returns docsync.ErrTypeNotFound.
	UpdateType(ctx context.Context, t *Type) error

	// ListTypes returns all types ordered by name.
	ListTypes(ctx context.Context) ([]*Type, error)
}

// JobStore defines the persistence contract for sync jobs.
type JobStore interface {
	// CreateJob persists a new job. Returns docsync.ErrJobAlreadyExists if
	// the ID is taken.
	CreateJob(ctx context.Context, j *Job) error

	// GetJob retrieves a job by ID. Returns docsync.ErrJobNotFound.
	GetJob(ctx context.Context, jobID id.SyncJobID) (*Job, error)

	// CompareAndSwapJob replaces the stored job with j only if the stored
	// status still equals expected. Returns docsync.ErrStatusConflict when it
	// does not, and docsync.ErrJobNotFound when the job is missing. The
	// check and write are atomic.
	CompareAndSwapJob(ctx context.Context, j *Job, expected Status) error

	// ListJobs returns jobs matching opts.
	ListJobs(ctx context.Context, opts ListOpts) ([]*Job, error)

	// CountJobs returns the number of jobs per status.
	CountJobs(ctx context.Context, opts CountOpts) (map[Status]int64, error)
}

// Matches reports whether j satisfies the filters in opts, ignoring paging.
// Backends that filter in memory share it.
func (opts ListOpts) Matches(j *Job) bool {
	if opts.Status != "" && j.Status != opts.Status {
		return false
	}
	if opts.Type != "" && j.Type != opts.Type {
		return false
	}
	if !opts.Parent.IsNil() && j.ParentJob.String() != opts.Parent.String() {
		return false
	}
	if opts.Queue != "" && j.Queue != opts.Queue {
		return false
	}
	if !opts.UpdatedBefore.IsZero() && !j.UpdatedAt.Before(opts.UpdatedBefore) {
		return false
	}
	return true
}

// Page applies Offset and Limit to an ordered result slice.
func Page[T any](items []T, offset, limit int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return nil
		}
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
