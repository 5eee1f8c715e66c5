// Package docsync provides a queue-based sync job engine for Go. It
// propagates changes from a source record to one or more target records
// asynchronously and keeps every propagation attempt as a durable,
// inspectable sync job.
//
// docsync is a library, not a service. Import it, configure a store and a
// queue, register controllers as ordinary Go values, and enqueue jobs.
//
// # Quick Start
//
//	s, err := docsync.New(
//	    docsync.WithStore(memory.New()),
//	    docsync.WithQueue(queue.NewMemory()),
//	    docsync.WithConcurrency(4),
//	)
//	eng, err := engine.Build(s, engine.WithAccessor(accessor))
//	eng.RegisterController("order_to_invoice", &OrderToInvoice{})
//
// # Architecture
//
// Sync job types (configuration templates) and sync jobs (execution
// instances) live in independent store collections. Every status change is
// a compare-and-swap on the stored status, so any number of workers can
// share one store without application-level locks.
//
// Controllers are resolved by reference string and run in one of two
// modes: Bypass (a single Execute function owns the whole sync) or Standard
// (resolution, mutation and lifecycle hooks orchestrated by the worker).
//
// All job IDs use TypeID: type-prefixed, K-sortable, UUIDv7-based
// identifiers.
package docsync
