package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongod "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/docsync"
	"github.com/xraph/docsync/syncjob"
)

// CreateType persists a new type keyed by name.
func (s *Store) CreateType(ctx context.Context, t *syncjob.Type) error {
	_, err := s.db.Collection(colTypes).InsertOne(ctx, toTypeModel(t))
	if err != nil {
		if mongod.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %q", docsync.ErrTypeAlreadyExists, t.Name)
		}
		return fmt.Errorf("docsync/mongo: create type: %w", err)
	}
	return nil
}

// GetType retrieves a type by name.
func (s *Store) GetType(ctx context.Context, name string) (*syncjob.Type, error) {
	var m typeModel
	err := s.db.Collection(colTypes).FindOne(ctx, bson.M{"_id": name}).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, fmt.Errorf("%w: %q", docsync.ErrTypeNotFound, name)
		}
		return nil, fmt.Errorf("docsync/mongo: get type: %w", err)
	}
	return fromTypeModel(&m), nil
}

// UpdateType replaces an existing type.
func (s *Store) UpdateType(ctx context.Context, t *syncjob.Type) error {
	res, err := s.db.Collection(colTypes).ReplaceOne(ctx, bson.M{"_id": t.Name}, toTypeModel(t))
	if err != nil {
		return fmt.Errorf("docsync/mongo: update type: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: %q", docsync.ErrTypeNotFound, t.Name)
	}
	return nil
}

// ListTypes returns all types ordered by name.
func (s *Store) ListTypes(ctx context.Context) ([]*syncjob.Type, error) {
	cursor, err := s.db.Collection(colTypes).Find(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("docsync/mongo: list types: %w", err)
	}
	defer cursor.Close(ctx)

	var models []typeModel
	if err := cursor.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("docsync/mongo: list types decode: %w", err)
	}
	out := make([]*syncjob.Type, 0, len(models))
	for i := range models {
		out = append(out, fromTypeModel(&models[i]))
	}
	return out, nil
}
