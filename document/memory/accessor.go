// Package memory provides an in-memory document.Accessor with optimistic
// versioning. Safe for concurrent access. Intended for tests, examples and
// applications that embed the engine next to their own in-process records.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/xraph/docsync/document"
)

var _ document.Accessor = (*Accessor)(nil)

// Accessor stores records in a map keyed by type and name.
type Accessor struct {
	mu      sync.RWMutex
	records map[string]*document.Record
}

// New returns an empty Accessor.
func New() *Accessor {
	return &Accessor{records: make(map[string]*document.Record)}
}

func key(docType, name string) string { return docType + "\x00" + name }

// Put stores a record unconditionally, bypassing version checks. It is
// meant for seeding fixtures.
func (a *Accessor) Put(rec *document.Record) {
	a.mu.Lock()
	defer a.mu.Unlock()
	cp := rec.Clone()
	if cp.Version == 0 {
		cp.Version = 1
	}
	a.records[key(cp.Type, cp.Name)] = cp
}

// Len returns the number of stored records.
func (a *Accessor) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.records)
}

// Load returns a copy of the stored record.
func (a *Accessor) Load(_ context.Context, docType, name string) (*document.Record, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	rec, ok := a.records[key(docType, name)]
	if !ok {
		return nil, fmt.Errorf("%w: %s %q", document.ErrNotFound, docType, name)
	}
	return rec.Clone(), nil
}

// Save applies op. Updates and deletes must carry the version that was
// loaded; a mismatch returns document.ErrVersionConflict.
func (a *Accessor) Save(ctx context.Context, rec *document.Record, op document.Operation) (*document.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("document/memory: save nil record")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	cp := rec.Clone()
	switch op {
	case document.OpInsert:
		if cp.Name == "" {
			cp.Name = uuid.NewString()
		}
		if _, exists := a.records[key(cp.Type, cp.Name)]; exists {
			return nil, fmt.Errorf("%w: %s %q", document.ErrAlreadyExists, cp.Type, cp.Name)
		}
		cp.Version = 1
		a.records[key(cp.Type, cp.Name)] = cp
		return cp.Clone(), nil

	case document.OpUpdate, document.OpDelete:
		k := key(cp.Type, cp.Name)
		stored, ok := a.records[k]
		if !ok {
			return nil, fmt.Errorf("%w: %s %q", document.ErrNotFound, cp.Type, cp.Name)
		}
		if cp.Version != stored.Version {
			return nil, fmt.Errorf("%w: %s %q has version %d, saving %d",
				document.ErrVersionConflict, cp.Type, cp.Name, stored.Version, cp.Version)
		}
		if op == document.OpDelete {
			delete(a.records, k)
			return cp, nil
		}
		cp.Version++
		a.records[k] = cp
		return cp.Clone(), nil

	default:
		return nil, fmt.Errorf("document/memory: unknown operation %q", op)
	}
}

// Diff compares field maps with document.DiffFields.
func (a *Accessor) Diff(before, after *document.Record) document.Diff {
	return document.DiffFields(before, after)
}
