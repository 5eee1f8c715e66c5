package document

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned by Load when no record has the given type and
	// name.
	ErrNotFound = errors.New("document: not found")

	// ErrVersionConflict is returned by Save when the stored record changed
	// since it was loaded.
	ErrVersionConflict = errors.New("document: version conflict")

	// ErrAlreadyExists is returned by Save for an insert whose name is taken.
	ErrAlreadyExists = errors.New("document: already exists")
)

// Accessor loads, saves and diffs records. Implementations must be safe for
// concurrent use; concurrency control between writers (e.g. optimistic
// versioning) is the accessor's responsibility, not the engine's.
type Accessor interface {
	// Load returns the record, or ErrNotFound.
	Load(ctx context.Context, docType, name string) (*Record, error)

	// Save persists rec according to op and returns the stored record. For
	// OpInsert an empty Name is assigned by the accessor.
	Save(ctx context.Context, rec *Record, op Operation) (*Record, error)

	// Diff describes the field changes from before to after. Either side may
	// be nil (insert or delete).
	Diff(before, after *Record) Diff
}

// LoadOptional loads a record and maps ErrNotFound to (nil, nil). An empty
// name also yields (nil, nil).
func LoadOptional(ctx context.Context, a Accessor, docType, name string) (*Record, error) {
	if docType == "" || name == "" {
		return nil, nil
	}
	rec, err := a.Load(ctx, docType, name)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}
