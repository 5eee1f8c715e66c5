// Package queue defines the message queue that carries sync job IDs from
// the enqueuer to the workers, an in-process implementation, message
// codecs for durable backends, and per-queue rate and concurrency limits.
//
// A queue only transports job IDs. The job record in the store is the
// source of truth, so a lost or duplicated message is harmless: the
// sweeper resubmits stale jobs and only one worker wins the
// queued → started transition.
//
// # Per-Queue Limits
//
// Use [Config] with a [Manager] to cap how fast and how many jobs of a
// queue run on the local pool:
//
//	queue.NewManager(queue.Config{
//	    Name:           "long",
//	    MaxConcurrency: 2,   // at most 2 long jobs at once
//	    RateLimit:      5,   // at most 5 jobs/s
//	    RateBurst:      10,
//	})
//
// A throttled message is resubmitted with a short delay; the job stays
// queued.
package queue
