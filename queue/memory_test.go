package queue_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/xraph/docsync"
	"github.com/xraph/docsync/queue"
)

func TestMemory_FIFO(t *testing.T) {
	q := queue.NewMemory()
	defer q.Close()
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		if err := q.Submit(ctx, "default", id, 0); err != nil {
			t.Fatalf("Submit(%s): %v", id, err)
		}
	}
	for _, want := range []string{"a", "b", "c"} {
		got, err := q.Consume(ctx, "default")
		if err != nil {
			t.Fatalf("Consume: %v", err)
		}
		if got != want {
			t.Errorf("got %q, want %q", got, want)
		}
	}
}

func TestMemory_QueuesAreIndependent(t *testing.T) {
	q := queue.NewMemory()
	defer q.Close()
	ctx := context.Background()

	_ = q.Submit(ctx, "long", "x", 0)
	if q.Len("default") != 0 || q.Len("long") != 1 {
		t.Fatalf("Len default=%d long=%d", q.Len("default"), q.Len("long"))
	}
}

func TestMemory_ConsumeBlocksUntilSubmit(t *testing.T) {
	q := queue.NewMemory()
	defer q.Close()
	ctx := context.Background()

	got := make(chan string, 1)
	go func() {
		id, err := q.Consume(ctx, "default")
		if err == nil {
			got <- id
		}
	}()

	time.Sleep(20 * time.Millisecond)
	if err := q.Submit(ctx, "default", "late", 0); err != nil {
		t.Fatal(err)
	}

	select {
	case id := <-got:
		if id != "late" {
			t.Errorf("got %q, want late", id)
		}
	case <-time.After(time.Second):
		t.Fatal("Consume did not wake up")
	}
}

func TestMemory_Delay(t *testing.T) {
	q := queue.NewMemory()
	defer q.Close()
	ctx := context.Background()

	start := time.Now()
	if err := q.Submit(ctx, "default", "later", 50*time.Millisecond); err != nil {
		t.Fatal(err)
	}
	if q.Len("default") != 0 {
		t.Fatal("delayed message visible immediately")
	}

	cctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	id, err := q.Consume(cctx, "default")
	if err != nil {
		t.Fatalf("Consume: %v", err)
	}
	if id != "later" {
		t.Errorf("got %q", id)
	}
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Errorf("delivered after %v, want >= 50ms", elapsed)
	}
}

func TestMemory_ContextCancel(t *testing.T) {
	q := queue.NewMemory()
	defer q.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := q.Consume(ctx, "default"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want DeadlineExceeded", err)
	}
}

func TestMemory_Close(t *testing.T) {
	q := queue.NewMemory()
	ctx := context.Background()

	errCh := make(chan error, 1)
	go func() {
		_, err := q.Consume(ctx, "default")
		errCh <- err
	}()
	time.Sleep(10 * time.Millisecond)

	if err := q.Close(); err != nil {
		t.Fatal(err)
	}
	select {
	case err := <-errCh:
		if !errors.Is(err, docsync.ErrQueueClosed) {
			t.Errorf("err = %v, want ErrQueueClosed", err)
		}
	case <-time.After(time.Second):
		t.Fatal("blocked consumer not released by Close")
	}

	if err := q.Submit(ctx, "default", "x", 0); !errors.Is(err, docsync.ErrQueueClosed) {
		t.Errorf("Submit after Close err = %v, want ErrQueueClosed", err)
	}
}
