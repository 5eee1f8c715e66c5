package worker_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/xraph/docsync/syncjob"
	"github.com/xraph/docsync/worker"
)

func (h *harness) pendingJob(t *testing.T, typeName string) *syncjob.Job {
	t.Helper()
	typ, err := h.store.GetType(context.Background(), typeName)
	if err != nil {
		t.Fatal(err)
	}
	j := syncjob.NewJob(typ, "Order", "O-1")
	if err := h.store.CreateJob(context.Background(), j); err != nil {
		t.Fatal(err)
	}
	return j
}

func TestSweeper_ResubmitsPendingJobs(t *testing.T) {
	h := newHarness(t)
	h.addType(t, "order-to-invoice", "invoice", nil)
	j := h.pendingJob(t, "order-to-invoice")

	s := worker.NewSweeper(h.store, h.queue, slog.Default(), worker.WithSweepThreshold(-time.Minute))
	n, err := s.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if n != 1 {
		t.Fatalf("swept = %d, want 1", n)
	}
	if got := h.job(t, j.ID); got.Status != syncjob.StatusQueued {
		t.Errorf("status = %s, want queued", got.Status)
	}
	if l := h.queue.Len(syncjob.DefaultQueue); l != 1 {
		t.Errorf("queue length = %d, want 1", l)
	}
}

func TestSweeper_ResubmitsLostQueuedJobs(t *testing.T) {
	h := newHarness(t)
	h.addType(t, "order-to-invoice", "invoice", nil)
	j := h.pendingJob(t, "order-to-invoice")
	queued := j.Clone()
	if err := queued.TransitionTo(syncjob.StatusQueued); err != nil {
		t.Fatal(err)
	}
	if err := h.store.CompareAndSwapJob(context.Background(), queued, syncjob.StatusPending); err != nil {
		t.Fatal(err)
	}

	s := worker.NewSweeper(h.store, h.queue, slog.Default(), worker.WithSweepThreshold(-time.Minute))
	if n, err := s.Sweep(context.Background()); err != nil || n != 1 {
		t.Fatalf("Sweep = %d, %v; want 1, nil", n, err)
	}
	got := h.job(t, j.ID)
	if got.Status != syncjob.StatusQueued {
		t.Errorf("status = %s, want queued", got.Status)
	}
	if l := h.queue.Len(syncjob.DefaultQueue); l != 1 {
		t.Errorf("queue length = %d, want 1", l)
	}
}

func TestSweeper_LeavesFreshJobs(t *testing.T) {
	h := newHarness(t)
	h.addType(t, "order-to-invoice", "invoice", nil)
	h.pendingJob(t, "order-to-invoice")

	s := worker.NewSweeper(h.store, h.queue, slog.Default(), worker.WithSweepThreshold(time.Hour))
	if n, err := s.Sweep(context.Background()); err != nil || n != 0 {
		t.Fatalf("Sweep = %d, %v; want 0, nil", n, err)
	}
	if l := h.queue.Len(syncjob.DefaultQueue); l != 0 {
		t.Errorf("queue length = %d, want 0", l)
	}
}

func TestSweeper_SkipsRetriesStillBackingOff(t *testing.T) {
	h := newHarness(t)
	h.addType(t, "order-to-invoice", "invoice", func(typ *syncjob.Type) {
		typ.RetryDelaySeconds = 3600
		typ.MaxRetries = 3
	})
	j := h.pendingJob(t, "order-to-invoice")
	queued := j.Clone()
	queued.RetryCount = 1
	retryAt := time.Now().UTC().Add(time.Hour)
	queued.RetryAt = &retryAt
	if err := queued.TransitionTo(syncjob.StatusQueued); err != nil {
		t.Fatal(err)
	}
	if err := h.store.CompareAndSwapJob(context.Background(), queued, syncjob.StatusPending); err != nil {
		t.Fatal(err)
	}

	s := worker.NewSweeper(h.store, h.queue, slog.Default(), worker.WithSweepThreshold(-time.Minute))
	if n, err := s.Sweep(context.Background()); err != nil || n != 0 {
		t.Fatalf("Sweep = %d, %v; want 0, nil", n, err)
	}
}

func TestSweeper_ResubmitsRetriesPastRetryAt(t *testing.T) {
	h := newHarness(t)
	h.addType(t, "order-to-invoice", "invoice", func(typ *syncjob.Type) {
		typ.RetryDelaySeconds = 3600
		typ.MaxRetries = 3
	})
	j := h.pendingJob(t, "order-to-invoice")
	queued := j.Clone()
	queued.RetryCount = 1
	retryAt := time.Now().UTC().Add(-2 * time.Minute)
	queued.RetryAt = &retryAt
	if err := queued.TransitionTo(syncjob.StatusQueued); err != nil {
		t.Fatal(err)
	}
	if err := h.store.CompareAndSwapJob(context.Background(), queued, syncjob.StatusPending); err != nil {
		t.Fatal(err)
	}

	s := worker.NewSweeper(h.store, h.queue, slog.Default(), worker.WithSweepThreshold(-time.Minute))
	if n, err := s.Sweep(context.Background()); err != nil || n != 1 {
		t.Fatalf("Sweep = %d, %v; want 1, nil", n, err)
	}
	if l := h.queue.Len(syncjob.DefaultQueue); l != 1 {
		t.Errorf("queue length = %d, want 1", l)
	}
}
