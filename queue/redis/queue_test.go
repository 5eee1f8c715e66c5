package redis_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/docsync"
	"github.com/xraph/docsync/queue"
	redisqueue "github.com/xraph/docsync/queue/redis"
)

func setup(t *testing.T, opts ...redisqueue.Option) (*redisqueue.Queue, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	opts = append([]redisqueue.Option{redisqueue.WithPollInterval(10 * time.Millisecond)}, opts...)
	return redisqueue.New(client, opts...), mr
}

func TestSubmitConsume(t *testing.T) {
	for _, codec := range []queue.Codec{queue.MsgpackCodec{}, queue.JSONCodec{}} {
		t.Run(codec.Name(), func(t *testing.T) {
			q, _ := setup(t, redisqueue.WithCodec(codec))
			ctx := context.Background()

			require.NoError(t, q.Submit(ctx, "default", "sjob_a", 0))
			time.Sleep(2 * time.Millisecond)
			require.NoError(t, q.Submit(ctx, "default", "sjob_b", 0))

			first, err := q.Consume(ctx, "default")
			require.NoError(t, err)
			second, err := q.Consume(ctx, "default")
			require.NoError(t, err)

			assert.Equal(t, "sjob_a", first)
			assert.Equal(t, "sjob_b", second)
		})
	}
}

func TestDelayedMessageHidden(t *testing.T) {
	q, _ := setup(t)
	ctx := context.Background()

	require.NoError(t, q.Submit(ctx, "default", "sjob_later", time.Hour))
	n, err := q.Len(ctx, "default")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	cctx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	_, err = q.Consume(cctx, "default")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDelayedMessageBecomesVisible(t *testing.T) {
	q, _ := setup(t)
	ctx := context.Background()

	require.NoError(t, q.Submit(ctx, "default", "sjob_soon", 30*time.Millisecond))

	cctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	id, err := q.Consume(cctx, "default")
	require.NoError(t, err)
	assert.Equal(t, "sjob_soon", id)
}

func TestUndecodableMessageDropped(t *testing.T) {
	q, mr := setup(t, redisqueue.WithCodec(queue.JSONCodec{}))
	ctx := context.Background()

	_, err := mr.ZAdd("docsync:queue:default", 0, "not json")
	require.NoError(t, err)
	require.NoError(t, q.Submit(ctx, "default", "sjob_ok", 0))

	id, err := q.Consume(ctx, "default")
	require.NoError(t, err)
	assert.Equal(t, "sjob_ok", id)
}

func TestClose(t *testing.T) {
	q, _ := setup(t)
	require.NoError(t, q.Close())

	err := q.Submit(context.Background(), "default", "x", 0)
	assert.True(t, errors.Is(err, docsync.ErrQueueClosed))

	_, err = q.Consume(context.Background(), "default")
	assert.ErrorIs(t, err, docsync.ErrQueueClosed)
}
