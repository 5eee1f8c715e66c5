// Package memory implements store.Store in process memory. Safe for
// concurrent access. Intended for unit testing and development.
package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/xraph/docsync"
	"github.com/xraph/docsync/id"
	"github.com/xraph/docsync/syncjob"
)

var (
	_ syncjob.TypeStore = (*Store)(nil)
	_ syncjob.JobStore  = (*Store)(nil)
)

// Store keeps copies of every type and job; callers never share memory
// with it.
type Store struct {
	mu    sync.RWMutex
	types map[string]*syncjob.Type
	jobs  map[string]*syncjob.Job
}

// New returns a new empty Store.
func New() *Store {
	return &Store{
		types: make(map[string]*syncjob.Type),
		jobs:  make(map[string]*syncjob.Job),
	}
}

// Migrate is a no-op for the memory store.
func (m *Store) Migrate(context.Context) error { return nil }

// Ping always succeeds for the memory store.
func (m *Store) Ping(context.Context) error { return nil }

// Close is a no-op for the memory store.
func (m *Store) Close() error { return nil }

// CreateType persists a new type.
func (m *Store) CreateType(_ context.Context, t *syncjob.Type) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.types[t.Name]; exists {
		return fmt.Errorf("%w: %q", docsync.ErrTypeAlreadyExists, t.Name)
	}
	cp := *t
	m.types[t.Name] = &cp
	return nil
}

// GetType retrieves a type by name.
func (m *Store) GetType(_ context.Context, name string) (*syncjob.Type, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.types[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", docsync.ErrTypeNotFound, name)
	}
	cp := *t
	return &cp, nil
}

// UpdateType replaces an existing type.
func (m *Store) UpdateType(_ context.Context, t *syncjob.Type) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.types[t.Name]; !ok {
		return fmt.Errorf("%w: %q", docsync.ErrTypeNotFound, t.Name)
	}
	cp := *t
	cp.UpdatedAt = time.Now().UTC()
	m.types[t.Name] = &cp
	return nil
}

// ListTypes returns all types ordered by name.
func (m *Store) ListTypes(context.Context) ([]*syncjob.Type, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*syncjob.Type, 0, len(m.types))
	for _, t := range m.types {
		cp := *t
		out = append(out, &cp)
	}
	slices.SortFunc(out, func(a, b *syncjob.Type) int { return cmp.Compare(a.Name, b.Name) })
	return out, nil
}

// CreateJob persists a new job.
func (m *Store) CreateJob(_ context.Context, j *syncjob.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := j.ID.String()
	if _, exists := m.jobs[key]; exists {
		return fmt.Errorf("%w: %s", docsync.ErrJobAlreadyExists, key)
	}
	m.jobs[key] = j.Clone()
	return nil
}

// GetJob retrieves a job by ID.
func (m *Store) GetJob(_ context.Context, jobID id.SyncJobID) (*syncjob.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	j, ok := m.jobs[jobID.String()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", docsync.ErrJobNotFound, jobID)
	}
	return j.Clone(), nil
}

// CompareAndSwapJob replaces the stored job if its status is expected.
func (m *Store) CompareAndSwapJob(_ context.Context, j *syncjob.Job, expected syncjob.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := j.ID.String()
	cur, ok := m.jobs[key]
	if !ok {
		return fmt.Errorf("%w: %s", docsync.ErrJobNotFound, key)
	}
	if cur.Status != expected {
		return fmt.Errorf("%w: %s is %s, expected %s", docsync.ErrStatusConflict, key, cur.Status, expected)
	}
	cp := j.Clone()
	cp.UpdatedAt = time.Now().UTC()
	m.jobs[key] = cp
	j.UpdatedAt = cp.UpdatedAt
	return nil
}

// ListJobs returns jobs matching opts, oldest first.
func (m *Store) ListJobs(_ context.Context, opts syncjob.ListOpts) ([]*syncjob.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*syncjob.Job, 0)
	for _, j := range m.jobs {
		if opts.Matches(j) {
			out = append(out, j.Clone())
		}
	}
	slices.SortFunc(out, func(a, b *syncjob.Job) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID.String(), b.ID.String())
	})
	return syncjob.Page(out, opts.Offset, opts.Limit), nil
}

// CountJobs returns the number of jobs per status.
func (m *Store) CountJobs(_ context.Context, opts syncjob.CountOpts) (map[syncjob.Status]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	counts := make(map[syncjob.Status]int64)
	for _, j := range m.jobs {
		if opts.Type != "" && j.Type != opts.Type {
			continue
		}
		counts[j.Status]++
	}
	return counts, nil
}
