package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongod "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/xraph/docsync/syncjob"
)

// Collection names.
const (
	colTypes = "docsync_sync_job_types"
	colJobs  = "docsync_sync_jobs"
)

var (
	_ syncjob.TypeStore = (*Store)(nil)
	_ syncjob.JobStore  = (*Store)(nil)
)

// Store implements store.Store backed by MongoDB.
type Store struct {
	db     *mongod.Database
	logger *slog.Logger
}

// Option configures the Store.
type Option func(*Store)

// WithLogger sets the logger for the store.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// New creates a MongoDB store on db. The caller owns the client; Close
// does not disconnect it.
func New(db *mongod.Database, opts ...Option) *Store {
	s := &Store{
		db:     db,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Database returns the underlying database handle.
func (s *Store) Database() *mongod.Database {
	return s.db
}

// Migrate creates the indexes for both collections. It is idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	for col, models := range migrationIndexes() {
		if _, err := s.db.Collection(col).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("docsync/mongo: migrate %s indexes: %w", col, err)
		}
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Client().Ping(ctx, readpref.Primary())
}

// Close is a no-op because the caller owns the client.
func (s *Store) Close() error {
	return nil
}

func isNoDocuments(err error) bool {
	return errors.Is(err, mongod.ErrNoDocuments)
}

func migrationIndexes() map[string][]mongod.IndexModel {
	return map[string][]mongod.IndexModel{
		colJobs: {
			// Listing by status, oldest first.
			{Keys: bson.D{
				{Key: "status", Value: 1},
				{Key: "created_at", Value: 1},
			}},
			// Sweeper scans.
			{Keys: bson.D{
				{Key: "status", Value: 1},
				{Key: "updated_at", Value: 1},
			}},
			{Keys: bson.D{{Key: "sync_job_type", Value: 1}}},
			{
				Keys:    bson.D{{Key: "parent_job", Value: 1}},
				Options: options.Index().SetSparse(true),
			},
		},
	}
}
