// Package id holds the TypeID identifiers used for sync jobs and worker
// pools. An ID prints as "<kind>_<suffix>", sorts by creation time and is
// safe to place in URLs. Sync job types are keyed by name and do not use
// this package.
package id

import (
	"database/sql/driver"
	"errors"
	"fmt"

	"go.jetify.com/typeid/v2"
)

// Kind is the TypeID prefix naming what an ID identifies.
type Kind string

const (
	KindSyncJob Kind = "sjob"
	KindWorker  Kind = "wkr"
)

// ErrEmpty is returned when parsing an empty string.
var ErrEmpty = errors.New("id: empty")

// ID is a kind-qualified TypeID. The zero value is Nil and encodes as an
// empty string or SQL NULL.
//
//nolint:recvcheck // pointer receivers only where the ID is decoded into.
type ID struct {
	tid typeid.TypeID
	set bool
}

// Nil is the unset ID.
var Nil ID

type (
	// SyncJobID identifies a sync job and doubles as its public name.
	SyncJobID = ID
	// WorkerID identifies a worker pool instance.
	WorkerID = ID
)

// New returns a fresh ID of kind k. An invalid kind is a programming
// error and panics.
func New(k Kind) ID {
	tid, err := typeid.Generate(string(k))
	if err != nil {
		panic(fmt.Sprintf("id: generate %q: %v", k, err))
	}
	return ID{tid: tid, set: true}
}

func NewSyncJobID() SyncJobID { return New(KindSyncJob) }
func NewWorkerID() WorkerID   { return New(KindWorker) }

// Parse decodes s and, when want is non-empty, checks its kind.
func Parse(s string, want Kind) (ID, error) {
	if s == "" {
		return Nil, ErrEmpty
	}
	tid, err := typeid.Parse(s)
	if err != nil {
		return Nil, fmt.Errorf("id: %q: %w", s, err)
	}
	got := ID{tid: tid, set: true}
	if want != "" && got.Kind() != want {
		return Nil, fmt.Errorf("id: %q is a %s id, want %s", s, got.Kind(), want)
	}
	return got, nil
}

// ParseSyncJobID parses a job ID, rejecting other kinds.
func ParseSyncJobID(s string) (SyncJobID, error) { return Parse(s, KindSyncJob) }

// ParseWorkerID parses a worker ID, rejecting other kinds.
func ParseWorkerID(s string) (WorkerID, error) { return Parse(s, KindWorker) }

func (i ID) String() string {
	if !i.set {
		return ""
	}
	return i.tid.String()
}

// Kind returns the ID's prefix, or "" for Nil.
func (i ID) Kind() Kind {
	if !i.set {
		return ""
	}
	return Kind(i.tid.Prefix())
}

// IsNil reports whether the ID is unset.
func (i ID) IsNil() bool { return !i.set }

func (i ID) MarshalText() ([]byte, error) { return []byte(i.String()), nil }

func (i *ID) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*i = Nil
		return nil
	}
	parsed, err := Parse(string(b), "")
	if err != nil {
		return err
	}
	*i = parsed
	return nil
}

// Value stores Nil as NULL so parent_job stays nullable.
func (i ID) Value() (driver.Value, error) {
	if !i.set {
		return nil, nil //nolint:nilnil // NULL
	}
	return i.tid.String(), nil
}

func (i *ID) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*i = Nil
		return nil
	case string:
		return i.UnmarshalText([]byte(v))
	case []byte:
		return i.UnmarshalText(v)
	default:
		return fmt.Errorf("id: cannot scan %T", src)
	}
}
