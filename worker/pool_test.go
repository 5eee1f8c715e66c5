package worker_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/xraph/docsync/document"
	"github.com/xraph/docsync/enqueue"
	"github.com/xraph/docsync/id"
	"github.com/xraph/docsync/queue"
	"github.com/xraph/docsync/syncjob"
	"github.com/xraph/docsync/worker"
)

func waitForStatus(t *testing.T, h *harness, jobID id.SyncJobID, want syncjob.Status) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		j, err := h.store.GetJob(context.Background(), jobID)
		if err == nil && j.Status == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	j, err := h.store.GetJob(context.Background(), jobID)
	if err != nil {
		t.Fatalf("job %s: %v", jobID, err)
	}
	t.Fatalf("job %s: status = %s, want %s", jobID, j.Status, want)
}

func TestPool_RunsQueuedJobs(t *testing.T) {
	h := newHarness(t)
	h.register(t, "invoice", &invoiceSync{})
	h.addType(t, "order-to-invoice", "invoice", nil)

	pool := worker.NewPool(h.queue, h.executor, slog.Default(),
		worker.WithPoolConcurrency(2),
		worker.WithPoolQueues([]string{syncjob.DefaultQueue}),
		worker.WithPollInterval(10*time.Millisecond),
		worker.WithQueueLimiter(queue.NewManager(queue.Config{Name: syncjob.DefaultQueue, MaxConcurrency: 1})),
	)
	if err := pool.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer func() { _ = pool.Stop(context.Background()) }()

	var ids []id.SyncJobID
	for i := range 5 {
		name := "O-" + string(rune('1'+i))
		h.seedOrder(name, float64(i))
		ids = append(ids, h.enqueue(t, enqueue.Request{Type: "order-to-invoice", SourceDocumentName: name}).ID)
	}
	for _, jobID := range ids {
		waitForStatus(t, h, jobID, syncjob.StatusFinished)
	}
	if got := h.docs.Len(); got != 10 {
		t.Errorf("records = %d, want 5 orders and 5 invoices", got)
	}
}

func TestPool_StartStopIdempotent(t *testing.T) {
	h := newHarness(t)
	pool := worker.NewPool(h.queue, h.executor, nil)
	ctx := context.Background()

	if err := pool.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if err := pool.Start(ctx); err != nil {
		t.Fatalf("second Start: %v", err)
	}
	if err := pool.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := pool.Stop(ctx); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
	if pool.WorkerID().IsNil() {
		t.Error("expected a worker ID")
	}
}

func TestPool_StopCancelsActiveJobsAfterDeadline(t *testing.T) {
	h := newHarness(t)
	h.register(t, "blocking", blocking{})
	h.addType(t, "slow", "blocking", func(typ *syncjob.Type) { typ.TimeoutSeconds = 60 })

	pool := worker.NewPool(h.queue, h.executor, slog.Default(), worker.WithPoolConcurrency(1))
	if err := pool.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	j := h.enqueue(t, enqueue.Request{Type: "slow", SourceDocumentName: "O-1"})
	waitForStatus(t, h, j.ID, syncjob.StatusStarted)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := pool.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if n := pool.ActiveJobs(); n != 0 {
		t.Errorf("active jobs after stop = %d", n)
	}
	waitForStatus(t, h, j.ID, syncjob.StatusFailed)
}

func TestPool_WaitsForRunningJobs(t *testing.T) {
	h := newHarness(t)
	h.register(t, "invoice", &invoiceSync{name: "I-1", op: document.OpUpdate})
	h.addType(t, "order-to-invoice", "invoice", nil)
	h.seedOrder("O-1", 5.0)
	h.seedInvoice("I-1", 1.0)

	pool := worker.NewPool(h.queue, h.executor, slog.Default())
	if err := pool.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	j := h.enqueue(t, enqueue.Request{Type: "order-to-invoice", SourceDocumentName: "O-1"})
	waitForStatus(t, h, j.ID, syncjob.StatusFinished)

	if err := pool.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}
