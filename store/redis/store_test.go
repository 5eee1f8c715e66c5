package redis_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/docsync/store"
	"github.com/xraph/docsync/store/redis"
	"github.com/xraph/docsync/store/storetest"
	"github.com/xraph/docsync/syncjob"
)

func newStore(t *testing.T) *redis.Store {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return redis.New(client)
}

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store { return newStore(t) })
}

func TestJobHashMirrorsStatus(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	j := syncjob.NewJob(storetest.NewType("mirror"), "Order", "O-1")
	require.NoError(t, s.CreateJob(ctx, j))

	require.NoError(t, j.TransitionTo(syncjob.StatusQueued))
	require.NoError(t, s.CompareAndSwapJob(ctx, j, syncjob.StatusPending))

	status, err := s.Client().HGet(ctx, "docsync:sjob:"+j.ID.String(), "status").Result()
	require.NoError(t, err)
	assert.Equal(t, string(syncjob.StatusQueued), status)
}
