package retry_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/xraph/docsync/backoff"
	"github.com/xraph/docsync/queue"
	"github.com/xraph/docsync/retry"
	"github.com/xraph/docsync/store/memory"
	"github.com/xraph/docsync/syncjob"
)

func failedJob(t *testing.T, s *memory.Store, typ *syncjob.Type) *syncjob.Job {
	t.Helper()
	ctx := context.Background()
	j := syncjob.NewJob(typ, "Order", "O-1")
	if err := s.CreateJob(ctx, j); err != nil {
		t.Fatal(err)
	}
	for _, st := range []syncjob.Status{syncjob.StatusQueued, syncjob.StatusStarted, syncjob.StatusFailed} {
		prev := j.Status
		if err := j.TransitionTo(st); err != nil {
			t.Fatal(err)
		}
		if err := s.CompareAndSwapJob(ctx, j, prev); err != nil {
			t.Fatal(err)
		}
	}
	return j
}

func newType(maxRetries int) *syncjob.Type {
	typ := syncjob.NewType("order-to-invoice")
	typ.SourceType = "Order"
	typ.ControllerRef = "fieldmap"
	typ.MaxRetries = maxRetries
	typ.RetryDelaySeconds = 0
	return typ
}

func TestSchedule_RequeuesUntilMaxRetries(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	q := queue.NewMemory()
	sched := retry.New(s, q, nil, slog.Default())

	typ := newType(1)
	j := failedJob(t, s, typ)

	ok, err := sched.Schedule(ctx, j, typ)
	if err != nil || !ok {
		t.Fatalf("Schedule = %v, %v; want retry", ok, err)
	}
	if j.Status != syncjob.StatusQueued || j.RetryCount != 1 {
		t.Errorf("job after retry = %s/%d", j.Status, j.RetryCount)
	}
	if j.RetryAt != nil {
		t.Errorf("RetryAt = %v, want none without a delay", j.RetryAt)
	}
	stored, _ := s.GetJob(ctx, j.ID)
	if stored.Status != syncjob.StatusQueued || stored.RetryCount != 1 {
		t.Errorf("stored job = %s/%d", stored.Status, stored.RetryCount)
	}
	if q.Len("default") != 1 {
		t.Errorf("queue length = %d, want 1", q.Len("default"))
	}

	// Fail again: retries are used up.
	for _, st := range []syncjob.Status{syncjob.StatusStarted, syncjob.StatusFailed} {
		prev := j.Status
		_ = j.TransitionTo(st)
		if err := s.CompareAndSwapJob(ctx, j, prev); err != nil {
			t.Fatal(err)
		}
	}
	ok, err = sched.Schedule(ctx, j, typ)
	if err != nil || ok {
		t.Fatalf("Schedule = %v, %v; want no retry", ok, err)
	}
	stored, _ = s.GetJob(ctx, j.ID)
	if stored.Status != syncjob.StatusFailed {
		t.Errorf("status = %s, want failed", stored.Status)
	}
}

func TestSchedule_ZeroMaxRetries(t *testing.T) {
	s := memory.New()
	sched := retry.New(s, queue.NewMemory(), nil, slog.Default())
	typ := newType(0)

	ok, err := sched.Schedule(context.Background(), failedJob(t, s, typ), typ)
	if err != nil || ok {
		t.Fatalf("Schedule = %v, %v; want no retry", ok, err)
	}
}

func TestSchedule_UsesBackoffDelay(t *testing.T) {
	s := memory.New()
	q := queue.NewMemory()
	sched := retry.New(s, q, nil, slog.Default(),
		retry.WithStrategy(func(*syncjob.Type) backoff.Strategy { return backoff.NewConstant(time.Hour) }),
	)
	typ := newType(3)
	j := failedJob(t, s, typ)

	if d := sched.NextDelay(j, typ); d != time.Hour {
		t.Errorf("NextDelay = %s, want 1h", d)
	}
	if _, err := sched.Schedule(context.Background(), j, typ); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := q.Consume(ctx, "default"); err == nil {
		t.Error("delayed retry was visible immediately")
	}

	stored, err := s.GetJob(context.Background(), j.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.RetryAt == nil || time.Until(*stored.RetryAt) < 59*time.Minute {
		t.Errorf("RetryAt = %v, want about an hour from now", stored.RetryAt)
	}
}
