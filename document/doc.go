// Package document defines the boundary between the sync job engine and
// the system that owns source and target records.
//
// A [Record] is opaque to the engine: a type, a name, a version used for
// optimistic concurrency, and a bag of mutable fields. An [Accessor] loads
// and saves records and computes a field-level [Diff] between two versions.
//
// The engine consumes Accessor; it never implements the document model
// itself. Two reference accessors are provided: document/memory for tests
// and embedding, and document/sqldoc which stores records as JSON rows.
package document
