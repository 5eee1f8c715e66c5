package docsync

import "time"

// Config holds configuration for the Syncer.
type Config struct {
	// Concurrency is the number of workers consuming each queue.
	Concurrency int

	// Queues is the list of queues this syncer will consume.
	Queues []string

	// PollInterval is how long a throttled job waits before it is
	// resubmitted, and how often polling queue backends check for work.
	PollInterval time.Duration

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout time.Duration

	// SweepInterval is how often the sweeper looks for jobs whose queue
	// message was never delivered. Zero disables the sweeper.
	SweepInterval time.Duration

	// SweepThreshold is how long a job may sit in Pending or Queued before
	// the sweeper resubmits it.
	SweepThreshold time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Concurrency:     4,
		Queues:          []string{"default"},
		PollInterval:    500 * time.Millisecond,
		ShutdownTimeout: 30 * time.Second,
		SweepInterval:   1 * time.Minute,
		SweepThreshold:  5 * time.Minute,
	}
}
