package enqueue_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/xraph/docsync"
	"github.com/xraph/docsync/enqueue"
	"github.com/xraph/docsync/ext"
	"github.com/xraph/docsync/queue"
	"github.com/xraph/docsync/store/memory"
	"github.com/xraph/docsync/syncjob"
)

type failingQueue struct{}

func (failingQueue) Submit(context.Context, string, string, time.Duration) error {
	return errors.New("broker unavailable")
}

func (failingQueue) Consume(ctx context.Context, _ string) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

type countingExt struct{ enqueued int }

func (c *countingExt) Name() string { return "counting" }

func (c *countingExt) OnJobEnqueued(context.Context, *syncjob.Job) error {
	c.enqueued++
	return nil
}

func setup(t *testing.T, q queue.Queue) (*enqueue.Enqueuer, *memory.Store, *countingExt) {
	t.Helper()
	s := memory.New()

	typ := syncjob.NewType("order-to-invoice")
	typ.SourceType = "Order"
	typ.TargetType = "Invoice"
	typ.ControllerRef = "fieldmap"
	if err := s.CreateType(context.Background(), typ); err != nil {
		t.Fatal(err)
	}

	off := syncjob.NewType("disabled")
	off.SourceType = "Order"
	off.ControllerRef = "fieldmap"
	off.Disabled = true
	if err := s.CreateType(context.Background(), off); err != nil {
		t.Fatal(err)
	}

	counter := &countingExt{}
	reg := ext.NewRegistry(slog.Default())
	reg.Register(counter)
	return enqueue.New(s, s, q, reg, slog.Default()), s, counter
}

func TestEnqueue_QueuesJob(t *testing.T) {
	q := queue.NewMemory()
	e, s, counter := setup(t, q)
	ctx := context.Background()

	j, err := e.Enqueue(ctx, enqueue.Request{
		Type:               "order-to-invoice",
		SourceDocumentName: "O-1",
		Context:            map[string]any{"n": 3},
		TriggerRef:         "on_submit",
		UpdateEnabled:      enqueue.Bool(false),
	})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if j.Status != syncjob.StatusQueued {
		t.Errorf("status = %s, want queued", j.Status)
	}
	if j.SourceDocumentType != "Order" {
		t.Errorf("source type = %q, want default from type", j.SourceDocumentType)
	}
	if j.UpdateEnabled || !j.InsertEnabled {
		t.Errorf("capability override not applied: %+v", j)
	}
	if j.Context["n"] != float64(3) {
		t.Errorf("context not normalized: %#v", j.Context["n"])
	}

	stored, err := s.GetJob(ctx, j.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Status != syncjob.StatusQueued || stored.TriggerRef != "on_submit" {
		t.Errorf("stored job = %+v", stored)
	}
	if q.Len("default") != 1 {
		t.Errorf("queue length = %d, want 1", q.Len("default"))
	}
	if counter.enqueued != 1 {
		t.Errorf("JobEnqueued fired %d times", counter.enqueued)
	}
}

func TestEnqueue_NoDeduplication(t *testing.T) {
	e, s, _ := setup(t, queue.NewMemory())
	ctx := context.Background()
	req := enqueue.Request{Type: "order-to-invoice", SourceDocumentName: "O-1"}

	for range 3 {
		if _, err := e.Enqueue(ctx, req); err != nil {
			t.Fatal(err)
		}
	}
	jobs, _ := s.ListJobs(ctx, syncjob.ListOpts{})
	if len(jobs) != 3 {
		t.Errorf("jobs = %d, want 3", len(jobs))
	}
}

func TestEnqueue_ConfigurationErrors(t *testing.T) {
	e, s, _ := setup(t, queue.NewMemory())
	ctx := context.Background()

	tests := []struct {
		name string
		req  enqueue.Request
	}{
		{"missing type", enqueue.Request{SourceDocumentName: "O-1"}},
		{"unknown type", enqueue.Request{Type: "nope", SourceDocumentName: "O-1"}},
		{"disabled type", enqueue.Request{Type: "disabled", SourceDocumentName: "O-1"}},
		{"wrong source type", enqueue.Request{Type: "order-to-invoice", SourceDocumentType: "Quote", SourceDocumentName: "Q-1"}},
		{"unserializable context", enqueue.Request{Type: "order-to-invoice", SourceDocumentName: "O-1", Context: map[string]any{"f": func() {}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := e.Enqueue(ctx, tt.req); !errors.Is(err, docsync.ErrConfiguration) {
				t.Errorf("err = %v, want ErrConfiguration", err)
			}
		})
	}

	jobs, _ := s.ListJobs(ctx, syncjob.ListOpts{})
	if len(jobs) != 0 {
		t.Errorf("configuration errors created %d jobs", len(jobs))
	}
}

func TestEnqueue_SourceIsOptional(t *testing.T) {
	e, s, _ := setup(t, queue.NewMemory())
	ctx := context.Background()

	j, err := e.Enqueue(ctx, enqueue.Request{
		Type:    "order-to-invoice",
		Context: map[string]any{"order_total": 99.5, "deleted_order": "O-7"},
	})
	if err != nil {
		t.Fatalf("Enqueue without source: %v", err)
	}
	if j.Status != syncjob.StatusQueued {
		t.Errorf("status = %s, want queued", j.Status)
	}
	if j.SourceDocumentName != "" || j.SourceDocumentType != "Order" {
		t.Errorf("source = %s/%q, want Order/\"\"", j.SourceDocumentType, j.SourceDocumentName)
	}

	stored, err := s.GetJob(ctx, j.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Context["deleted_order"] != "O-7" {
		t.Errorf("context = %v", stored.Context)
	}
}

func TestEnqueue_SubmitFailureLeavesOnePending(t *testing.T) {
	e, s, counter := setup(t, failingQueue{})
	ctx := context.Background()

	j, err := e.Enqueue(ctx, enqueue.Request{Type: "order-to-invoice", SourceDocumentName: "O-1"})
	if err == nil {
		t.Fatal("expected submit error")
	}
	if j == nil || j.Status != syncjob.StatusPending {
		t.Fatalf("returned job = %+v, want pending job", j)
	}

	jobs, _ := s.ListJobs(ctx, syncjob.ListOpts{})
	if len(jobs) != 1 || jobs[0].Status != syncjob.StatusPending {
		t.Fatalf("stored jobs = %+v, want exactly one pending", jobs)
	}
	if counter.enqueued != 0 {
		t.Error("JobEnqueued fired for a pending job")
	}
}
