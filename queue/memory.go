package queue

import (
	"context"
	"sync"
	"time"

	"github.com/xraph/docsync"
)

var _ Queue = (*Memory)(nil)

// Memory is an in-process queue. Delayed submissions are held by timers.
// Messages are lost when the process exits; the sweeper recovers their jobs.
type Memory struct {
	mu     sync.Mutex
	ready  map[string][]string
	signal map[string]chan struct{}
	timers map[*time.Timer]struct{}
	closed bool
	done   chan struct{}
}

// NewMemory creates an empty in-process queue.
func NewMemory() *Memory {
	return &Memory{
		ready:  make(map[string][]string),
		signal: make(map[string]chan struct{}),
		timers: make(map[*time.Timer]struct{}),
		done:   make(chan struct{}),
	}
}

// Submit enqueues jobID, immediately or after delay.
func (m *Memory) Submit(ctx context.Context, queueName, jobID string, delay time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return docsync.ErrQueueClosed
	}

	if delay <= 0 {
		m.pushLocked(queueName, jobID)
		return nil
	}

	var t *time.Timer
	t = time.AfterFunc(delay, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.timers, t)
		if !m.closed {
			m.pushLocked(queueName, jobID)
		}
	})
	m.timers[t] = struct{}{}
	return nil
}

// Consume pops the oldest job ID on queueName, blocking until one arrives.
func (m *Memory) Consume(ctx context.Context, queueName string) (string, error) {
	for {
		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			return "", docsync.ErrQueueClosed
		}
		if items := m.ready[queueName]; len(items) > 0 {
			jobID := items[0]
			m.ready[queueName] = items[1:]
			m.mu.Unlock()
			return jobID, nil
		}
		wake := m.signalLocked(queueName)
		m.mu.Unlock()

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-m.done:
			return "", docsync.ErrQueueClosed
		case <-wake:
		}
	}
}

// Len returns the number of messages ready on queueName, excluding delayed
// ones.
func (m *Memory) Len(queueName string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.ready[queueName])
}

// Close stops pending timers and wakes blocked consumers.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	for t := range m.timers {
		t.Stop()
	}
	clear(m.timers)
	close(m.done)
	return nil
}

func (m *Memory) pushLocked(queueName, jobID string) {
	m.ready[queueName] = append(m.ready[queueName], jobID)
	if ch, ok := m.signal[queueName]; ok {
		close(ch)
		delete(m.signal, queueName)
	}
}

func (m *Memory) signalLocked(queueName string) chan struct{} {
	ch, ok := m.signal[queueName]
	if !ok {
		ch = make(chan struct{})
		m.signal[queueName] = ch
	}
	return ch
}
