// Package store defines the aggregate persistence interface. The syncjob
// package defines the type and job store contracts; the composite Store
// composes them with lifecycle methods. Backends: Memory, Postgres,
// SQLite, Redis and MongoDB.
package store

import (
	"context"

	"github.com/xraph/docsync/syncjob"
)

// Store is the aggregate persistence interface. A single backend
// implements every collection.
type Store interface {
	syncjob.TypeStore
	syncjob.JobStore

	// Migrate runs all schema migrations.
	Migrate(ctx context.Context) error

	// Ping checks database connectivity.
	Ping(ctx context.Context) error

	// Close closes the store connection.
	Close() error
}
