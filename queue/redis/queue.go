// Package redis implements queue.Queue on Redis sorted sets. Each queue is
// a sorted set whose members are encoded queue.Message values scored by
// the time they become visible, so delayed submissions need no extra
// machinery. Consumers pop with a Lua script and poll while the set holds
// no visible message.
//
// Usage:
//
//	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	q := redisqueue.New(client)
package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/docsync"
	"github.com/xraph/docsync/queue"
)

var _ queue.Queue = (*Queue)(nil)

const defaultKeyPrefix = "docsync:"

// popScript removes and returns the oldest visible member, or nil.
var popScript = goredis.NewScript(`
local items = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, 1)
if #items == 0 then
	return false
end
redis.call('ZREM', KEYS[1], items[1])
return items[1]
`)

// Option configures the Queue.
type Option func(*Queue)

// WithCodec sets the message codec. Defaults to msgpack.
func WithCodec(c queue.Codec) Option {
	return func(q *Queue) { q.codec = c }
}

// WithPollInterval sets how long Consume waits between empty pops.
func WithPollInterval(d time.Duration) Option {
	return func(q *Queue) { q.poll = d }
}

// WithKeyPrefix overrides the "docsync:" key prefix.
func WithKeyPrefix(p string) Option {
	return func(q *Queue) { q.prefix = p }
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(q *Queue) { q.logger = l }
}

// Queue is a Redis-backed queue.Queue.
type Queue struct {
	client goredis.Cmdable
	codec  queue.Codec
	poll   time.Duration
	prefix string
	logger *slog.Logger
	closed atomic.Bool
}

// New creates a Redis queue. The caller owns the Redis client lifecycle.
func New(client goredis.Cmdable, opts ...Option) *Queue {
	q := &Queue{
		client: client,
		codec:  queue.MsgpackCodec{},
		poll:   250 * time.Millisecond,
		prefix: defaultKeyPrefix,
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(q)
	}
	return q
}

// key returns the sorted set key for a queue: docsync:queue:{name}
func (q *Queue) key(name string) string { return q.prefix + "queue:" + name }

// Submit adds jobID to the queue's sorted set, visible after delay.
func (q *Queue) Submit(ctx context.Context, queueName, jobID string, delay time.Duration) error {
	if q.closed.Load() {
		return docsync.ErrQueueClosed
	}
	msg := queue.NewMessage(queueName, jobID, delay)
	data, err := q.codec.Encode(msg)
	if err != nil {
		return err
	}

	err = q.client.ZAdd(ctx, q.key(queueName), goredis.Z{
		Score:  float64(msg.VisibleAt.UnixMilli()),
		Member: data,
	}).Err()
	if err != nil {
		return fmt.Errorf("docsync/redis: submit %s to %q: %w", jobID, queueName, err)
	}
	return nil
}

// Consume pops the oldest visible message, polling until one is available.
func (q *Queue) Consume(ctx context.Context, queueName string) (string, error) {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-timer.C:
		}
		if q.closed.Load() {
			return "", docsync.ErrQueueClosed
		}

		jobID, err := q.pop(ctx, queueName)
		if err != nil {
			return "", err
		}
		if jobID != "" {
			return jobID, nil
		}
		timer.Reset(q.poll)
	}
}

func (q *Queue) pop(ctx context.Context, queueName string) (string, error) {
	now := strconv.FormatInt(time.Now().UnixMilli(), 10)
	raw, err := popScript.Run(ctx, q.client, []string{q.key(queueName)}, now).Text()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return "", nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("docsync/redis: pop %q: %w", queueName, err)
	}

	msg, err := q.codec.Decode([]byte(raw))
	if err != nil {
		// An undecodable member is dropped; the sweeper recovers its job.
		q.logger.Warn("dropping undecodable queue message",
			slog.String("queue", queueName),
			slog.String("codec", q.codec.Name()),
			slog.String("error", err.Error()),
		)
		return "", nil
	}
	return msg.JobID, nil
}

// Len returns the number of messages, visible or delayed, on queueName.
func (q *Queue) Len(ctx context.Context, queueName string) (int64, error) {
	n, err := q.client.ZCard(ctx, q.key(queueName)).Result()
	if err != nil {
		return 0, fmt.Errorf("docsync/redis: len %q: %w", queueName, err)
	}
	return n, nil
}

// Close stops consumers at their next poll. The Redis client is not closed.
func (q *Queue) Close() error {
	q.closed.Store(true)
	return nil
}
