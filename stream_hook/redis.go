package streamhook

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// RedisPublisher appends events to a Redis stream with XADD.
type RedisPublisher struct {
	client goredis.Cmdable
	stream string
	maxLen int64
}

// RedisOption configures a RedisPublisher.
type RedisOption func(*RedisPublisher)

// WithMaxLen caps the stream at roughly n entries. Zero keeps every entry.
func WithMaxLen(n int64) RedisOption {
	return func(p *RedisPublisher) { p.maxLen = n }
}

// NewRedisPublisher returns a Publisher writing to stream. The caller owns
// the client.
func NewRedisPublisher(client goredis.Cmdable, stream string, opts ...RedisOption) *RedisPublisher {
	p := &RedisPublisher{client: client, stream: stream}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Publish implements Publisher.
func (p *RedisPublisher) Publish(ctx context.Context, evt *Event) error {
	data, err := json.Marshal(evt.Data)
	if err != nil {
		return fmt.Errorf("stream_hook: encode %s payload: %w", evt.Type, err)
	}
	args := &goredis.XAddArgs{
		Stream: p.stream,
		Values: map[string]any{
			"type": evt.Type,
			"time": evt.Time.Format(time.RFC3339Nano),
			"data": string(data),
		},
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}
	if err := p.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("stream_hook: xadd %s: %w", p.stream, err)
	}
	return nil
}
