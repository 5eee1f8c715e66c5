package document

import (
	"reflect"
	"slices"
	"strings"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

// Change is a single field-level difference.
type Change struct {
	Field string `json:"field"`
	Old   any    `json:"old,omitempty"`
	New   any    `json:"new,omitempty"`
}

// Diff is a structured description of the fields changed between two
// versions of a record.
type Diff struct {
	Changes []Change `json:"changes,omitempty"`
}

// IsEmpty reports whether the diff has no changes.
func (d Diff) IsEmpty() bool { return len(d.Changes) == 0 }

// Fields returns the names of the changed fields in order.
func (d Diff) Fields() []string {
	out := make([]string, len(d.Changes))
	for i, c := range d.Changes {
		out[i] = c.Field
	}
	return out
}

// String renders the changed field names, e.g. "status, total".
func (d Diff) String() string {
	return strings.Join(d.Fields(), ", ")
}

var equalOpts = []cmp.Option{
	cmpopts.EquateEmpty(),
	cmp.Exporter(func(reflect.Type) bool { return true }),
}

// DiffFields compares the field maps of two records. Nil records are treated
// as having no fields. Changes are sorted by field name. Values are compared
// with go-cmp, so nested maps and slices compare structurally and nil and
// empty collections are equal.
func DiffFields(before, after *Record) Diff {
	var oldFields, newFields map[string]any
	if before != nil {
		oldFields = before.Fields
	}
	if after != nil {
		newFields = after.Fields
	}

	names := make([]string, 0, len(oldFields)+len(newFields))
	for k := range oldFields {
		names = append(names, k)
	}
	for k := range newFields {
		if _, ok := oldFields[k]; !ok {
			names = append(names, k)
		}
	}
	slices.Sort(names)

	var d Diff
	for _, name := range names {
		ov, inOld := oldFields[name]
		nv, inNew := newFields[name]
		if inOld && inNew && cmp.Equal(ov, nv, equalOpts...) {
			continue
		}
		d.Changes = append(d.Changes, Change{Field: name, Old: ov, New: nv})
	}
	return d
}
