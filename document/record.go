package document

import "maps"

// Operation is what a sync does to its target record.
type Operation string

const (
	// OpInsert creates a new target record.
	OpInsert Operation = "insert"
	// OpUpdate mutates an existing target record.
	OpUpdate Operation = "update"
	// OpDelete removes an existing target record.
	OpDelete Operation = "delete"
)

// Valid reports whether op is one of the known operations.
func (op Operation) Valid() bool {
	switch op {
	case OpInsert, OpUpdate, OpDelete:
		return true
	}
	return false
}

// Record is a named record of a given type with mutable fields.
type Record struct {
	Type    string         `json:"type"`
	Name    string         `json:"name"`
	Version int64          `json:"version"`
	Fields  map[string]any `json:"fields"`
}

// New returns an empty record of the given type and name.
func New(docType, name string) *Record {
	return &Record{Type: docType, Name: name, Fields: make(map[string]any)}
}

// Get returns the value of a field and whether it is set.
func (r *Record) Get(field string) (any, bool) {
	if r == nil || r.Fields == nil {
		return nil, false
	}
	v, ok := r.Fields[field]
	return v, ok
}

// Set assigns a field value.
func (r *Record) Set(field string, value any) {
	if r.Fields == nil {
		r.Fields = make(map[string]any)
	}
	r.Fields[field] = value
}

// Clone returns a copy of r whose field map can be mutated independently.
// Field values themselves are shared. Clone of nil is nil.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	cp := *r
	cp.Fields = maps.Clone(r.Fields)
	if cp.Fields == nil {
		cp.Fields = make(map[string]any)
	}
	return &cp
}
