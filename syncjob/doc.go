// Package syncjob defines the sync job and sync job type entities, the job
// status state machine, and the store interfaces every backend implements.
//
// # Status
//
// A [Job] moves through a fixed set of edges:
//
//	pending → queued → started → finished | skipped | no_target | relayed | failed
//	failed  → queued              (retry while RetryCount < MaxRetries)
//	pending | queued | failed → canceled
//
// [CanTransition] reports whether an edge is legal and [Job.TransitionTo]
// applies it, stamping StartedAt and FinishedAt.
//
// # Types
//
// A [Type] names the source document type, the controller that performs the
// sync, the queue its jobs run on, and the timeout and retry policy. Jobs
// copy the queue and capability flags from their type at enqueue time.
//
// # Stores
//
// [TypeStore] and [JobStore] are the persistence contracts. Status changes
// go through [JobStore.CompareAndSwapJob] so that concurrent workers and
// operators never overwrite each other's transitions.
package syncjob
