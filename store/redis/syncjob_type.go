package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/docsync"
	"github.com/xraph/docsync/syncjob"
)

// CreateType persists a new type.
func (s *Store) CreateType(ctx context.Context, t *syncjob.Type) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("docsync/redis: encode type: %w", err)
	}
	ok, err := s.client.SetNX(ctx, typeKey(t.Name), data, 0).Result()
	if err != nil {
		return fmt.Errorf("docsync/redis: create type: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %q", docsync.ErrTypeAlreadyExists, t.Name)
	}
	if err := s.client.SAdd(ctx, typeNamesKey, t.Name).Err(); err != nil {
		return fmt.Errorf("docsync/redis: index type: %w", err)
	}
	return nil
}

// GetType retrieves a type by name.
func (s *Store) GetType(ctx context.Context, name string) (*syncjob.Type, error) {
	data, err := s.client.Get(ctx, typeKey(name)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, fmt.Errorf("%w: %q", docsync.ErrTypeNotFound, name)
		}
		return nil, fmt.Errorf("docsync/redis: get type: %w", err)
	}
	var t syncjob.Type
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("docsync/redis: decode type %q: %w", name, err)
	}
	return &t, nil
}

// UpdateType replaces an existing type.
func (s *Store) UpdateType(ctx context.Context, t *syncjob.Type) error {
	cp := *t
	cp.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(&cp)
	if err != nil {
		return fmt.Errorf("docsync/redis: encode type: %w", err)
	}
	ok, err := s.client.SetXX(ctx, typeKey(t.Name), data, goredis.KeepTTL).Result()
	if err != nil {
		return fmt.Errorf("docsync/redis: update type: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %q", docsync.ErrTypeNotFound, t.Name)
	}
	t.UpdatedAt = cp.UpdatedAt
	return nil
}

// ListTypes returns all types ordered by name.
func (s *Store) ListTypes(ctx context.Context) ([]*syncjob.Type, error) {
	names, err := s.client.SMembers(ctx, typeNamesKey).Result()
	if err != nil {
		return nil, fmt.Errorf("docsync/redis: list types: %w", err)
	}
	slices.Sort(names)

	out := make([]*syncjob.Type, 0, len(names))
	for _, name := range names {
		t, getErr := s.GetType(ctx, name)
		if getErr != nil {
			if errors.Is(getErr, docsync.ErrTypeNotFound) {
				continue
			}
			return nil, getErr
		}
		out = append(out, t)
	}
	return out, nil
}
