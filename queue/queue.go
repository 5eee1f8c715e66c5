package queue

import (
	"context"
	"time"
)

// Queue submits and consumes job IDs on named queues.
type Queue interface {
	// Submit makes jobID available on queueName after delay.
	Submit(ctx context.Context, queueName, jobID string, delay time.Duration) error

	// Consume blocks until a job ID is available on queueName, the context
	// is done, or the queue is closed (docsync.ErrQueueClosed).
	Consume(ctx context.Context, queueName string) (string, error)
}

// Message is the payload durable backends store for each submission.
type Message struct {
	JobID       string    `json:"job_id" msgpack:"job_id"`
	Queue       string    `json:"queue" msgpack:"queue"`
	SubmittedAt time.Time `json:"submitted_at" msgpack:"submitted_at"`
	VisibleAt   time.Time `json:"visible_at" msgpack:"visible_at"`
}

// NewMessage stamps a message for jobID that becomes visible after delay.
func NewMessage(queueName, jobID string, delay time.Duration) Message {
	now := time.Now().UTC()
	return Message{
		JobID:       jobID,
		Queue:       queueName,
		SubmittedAt: now,
		VisibleAt:   now.Add(delay),
	}
}
