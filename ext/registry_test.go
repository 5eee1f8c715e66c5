package ext_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/xraph/docsync/ext"
	"github.com/xraph/docsync/syncjob"
)

// allHooksExt implements every lifecycle hook.
type allHooksExt struct {
	calls []string
}

func (e *allHooksExt) Name() string { return "all-hooks" }

func (e *allHooksExt) record(name string) error {
	e.calls = append(e.calls, name)
	return nil
}

func (e *allHooksExt) OnJobEnqueued(context.Context, *syncjob.Job) error {
	return e.record("OnJobEnqueued")
}

func (e *allHooksExt) OnJobStarted(context.Context, *syncjob.Job) error {
	return e.record("OnJobStarted")
}

func (e *allHooksExt) OnJobFinished(context.Context, *syncjob.Job, time.Duration) error {
	return e.record("OnJobFinished")
}

func (e *allHooksExt) OnJobFailed(context.Context, *syncjob.Job, error) error {
	return e.record("OnJobFailed")
}

func (e *allHooksExt) OnJobRetrying(context.Context, *syncjob.Job, int, time.Duration) error {
	return e.record("OnJobRetrying")
}

func (e *allHooksExt) OnJobRelayed(context.Context, *syncjob.Job, []*syncjob.Job) error {
	return e.record("OnJobRelayed")
}

func (e *allHooksExt) OnJobSkipped(context.Context, *syncjob.Job, error) error {
	return e.record("OnJobSkipped")
}

func (e *allHooksExt) OnJobNoTarget(context.Context, *syncjob.Job) error {
	return e.record("OnJobNoTarget")
}

func (e *allHooksExt) OnJobCanceled(context.Context, *syncjob.Job) error {
	return e.record("OnJobCanceled")
}

func (e *allHooksExt) OnShutdown(context.Context) error {
	return e.record("OnShutdown")
}

// enqueueOnlyExt only implements OnJobEnqueued.
type enqueueOnlyExt struct {
	calls int
}

func (e *enqueueOnlyExt) Name() string { return "enqueue-only" }

func (e *enqueueOnlyExt) OnJobEnqueued(context.Context, *syncjob.Job) error {
	e.calls++
	return nil
}

// failingExt returns errors from hooks.
type failingExt struct{}

func (e *failingExt) Name() string { return "failing" }

func (e *failingExt) OnJobEnqueued(context.Context, *syncjob.Job) error {
	return errors.New("boom")
}

func (e *failingExt) OnShutdown(context.Context) error {
	return errors.New("shutdown boom")
}

func TestRegistry_Register(t *testing.T) {
	r := ext.NewRegistry(slog.Default())
	r.Register(&allHooksExt{})

	if got := len(r.Extensions()); got != 1 {
		t.Fatalf("expected 1 extension, got %d", got)
	}
	if got := r.Extensions()[0].Name(); got != "all-hooks" {
		t.Fatalf("expected name 'all-hooks', got %q", got)
	}
}

func TestRegistry_EmitFiresOnlyImplementors(t *testing.T) {
	r := ext.NewRegistry(slog.Default())
	all := &allHooksExt{}
	only := &enqueueOnlyExt{}
	r.Register(all)
	r.Register(only)

	ctx := context.Background()
	j := &syncjob.Job{Type: "order-to-invoice"}

	r.EmitJobEnqueued(ctx, j)
	r.EmitJobStarted(ctx, j)

	if len(all.calls) != 2 {
		t.Fatalf("all: expected 2 calls, got %v", all.calls)
	}
	if only.calls != 1 {
		t.Fatalf("enqueue-only: expected 1 call, got %d", only.calls)
	}
}

func TestRegistry_AllHooksFire(t *testing.T) {
	r := ext.NewRegistry(slog.Default())
	all := &allHooksExt{}
	r.Register(all)

	ctx := context.Background()
	j := &syncjob.Job{Type: "order-to-invoice"}

	r.EmitJobEnqueued(ctx, j)
	r.EmitJobStarted(ctx, j)
	r.EmitJobFinished(ctx, j, time.Second)
	r.EmitJobFailed(ctx, j, errors.New("fail"))
	r.EmitJobRetrying(ctx, j, 1, time.Second)
	r.EmitJobRelayed(ctx, j, []*syncjob.Job{{}, {}})
	r.EmitJobSkipped(ctx, j, errors.New("nothing to do"))
	r.EmitJobNoTarget(ctx, j)
	r.EmitJobCanceled(ctx, j)
	r.EmitShutdown(ctx)

	expected := []string{
		"OnJobEnqueued", "OnJobStarted", "OnJobFinished", "OnJobFailed",
		"OnJobRetrying", "OnJobRelayed", "OnJobSkipped", "OnJobNoTarget",
		"OnJobCanceled", "OnShutdown",
	}
	if len(all.calls) != len(expected) {
		t.Fatalf("expected %d calls, got %d: %v", len(expected), len(all.calls), all.calls)
	}
	for i, want := range expected {
		if all.calls[i] != want {
			t.Errorf("call[%d] = %q, want %q", i, all.calls[i], want)
		}
	}
}

func TestRegistry_HookErrorsLoggedNotPropagated(t *testing.T) {
	r := ext.NewRegistry(slog.Default())
	all := &allHooksExt{}
	r.Register(&failingExt{})
	r.Register(all)

	ctx := context.Background()
	r.EmitJobEnqueued(ctx, &syncjob.Job{})
	r.EmitShutdown(ctx)

	if len(all.calls) != 2 {
		t.Fatalf("later extension should still fire, got %v", all.calls)
	}
}

func TestRegistry_EmptyRegistryNoOp(_ *testing.T) {
	r := ext.NewRegistry(slog.Default())
	ctx := context.Background()
	j := &syncjob.Job{}

	r.EmitJobEnqueued(ctx, j)
	r.EmitJobStarted(ctx, j)
	r.EmitJobFinished(ctx, j, time.Second)
	r.EmitJobFailed(ctx, j, errors.New("x"))
	r.EmitJobRetrying(ctx, j, 1, time.Second)
	r.EmitJobRelayed(ctx, j, nil)
	r.EmitJobSkipped(ctx, j, nil)
	r.EmitJobNoTarget(ctx, j)
	r.EmitJobCanceled(ctx, j)
	r.EmitShutdown(ctx)
}
