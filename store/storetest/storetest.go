// Package storetest is the behaviour suite shared by every store.Store
// backend. Backend tests call Run with a constructor returning a fresh,
// migrated store.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/xraph/docsync"
	"github.com/xraph/docsync/document"
	"github.com/xraph/docsync/id"
	"github.com/xraph/docsync/store"
	"github.com/xraph/docsync/syncjob"
)

// Run executes the suite. newStore is called once per subtest.
func Run(t *testing.T, newStore func(t *testing.T) store.Store) {
	t.Helper()

	tests := []struct {
		name string
		fn   func(t *testing.T, s store.Store)
	}{
		{"Lifecycle", testLifecycle},
		{"TypeCRUD", testTypeCRUD},
		{"JobCreateGet", testJobCreateGet},
		{"JobFieldsPersist", testJobFieldsPersist},
		{"CompareAndSwap", testCompareAndSwap},
		{"CompareAndSwapRace", testCompareAndSwapRace},
		{"ListJobs", testListJobs},
		{"CountJobs", testCountJobs},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, newStore(t))
		})
	}
}

// NewType returns a valid type for tests.
func NewType(name string) *syncjob.Type {
	typ := syncjob.NewType(name)
	typ.SourceType = "Order"
	typ.TargetType = "Invoice"
	typ.ControllerRef = "fieldmap"
	typ.MaxRetries = 2
	typ.RetryDelaySeconds = 1
	return typ
}

func newJob(typ *syncjob.Type) *syncjob.Job {
	return syncjob.NewJob(typ, "Order", "O-1")
}

func testLifecycle(t *testing.T, s store.Store) {
	ctx := context.Background()
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
	if err := s.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}

func testTypeCRUD(t *testing.T, s store.Store) {
	ctx := context.Background()

	typ := NewType("b-type")
	if err := s.CreateType(ctx, typ); err != nil {
		t.Fatalf("CreateType: %v", err)
	}
	if err := s.CreateType(ctx, typ); !errors.Is(err, docsync.ErrTypeAlreadyExists) {
		t.Fatalf("duplicate CreateType err = %v, want ErrTypeAlreadyExists", err)
	}
	if err := s.CreateType(ctx, NewType("a-type")); err != nil {
		t.Fatalf("CreateType a-type: %v", err)
	}

	got, err := s.GetType(ctx, "b-type")
	if err != nil {
		t.Fatalf("GetType: %v", err)
	}
	if got.SourceType != "Order" || got.ControllerRef != "fieldmap" || got.MaxRetries != 2 {
		t.Errorf("GetType = %+v", got)
	}
	if !got.InsertEnabled || got.UpdateWithoutChangesEnabled {
		t.Errorf("flags not persisted: %+v", got)
	}

	got.MaxRetries = 7
	got.Disabled = true
	if err := s.UpdateType(ctx, got); err != nil {
		t.Fatalf("UpdateType: %v", err)
	}
	again, err := s.GetType(ctx, "b-type")
	if err != nil {
		t.Fatalf("GetType after update: %v", err)
	}
	if again.MaxRetries != 7 || !again.Disabled {
		t.Errorf("update not persisted: %+v", again)
	}

	if _, err := s.GetType(ctx, "missing"); !errors.Is(err, docsync.ErrTypeNotFound) {
		t.Errorf("GetType missing err = %v, want ErrTypeNotFound", err)
	}
	if err := s.UpdateType(ctx, NewType("missing")); !errors.Is(err, docsync.ErrTypeNotFound) {
		t.Errorf("UpdateType missing err = %v, want ErrTypeNotFound", err)
	}

	list, err := s.ListTypes(ctx)
	if err != nil {
		t.Fatalf("ListTypes: %v", err)
	}
	if len(list) != 2 || list[0].Name != "a-type" || list[1].Name != "b-type" {
		t.Errorf("ListTypes order wrong: %d types", len(list))
	}
}

func testJobCreateGet(t *testing.T, s store.Store) {
	ctx := context.Background()
	j := newJob(NewType("x"))

	if err := s.CreateJob(ctx, j); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if err := s.CreateJob(ctx, j); !errors.Is(err, docsync.ErrJobAlreadyExists) {
		t.Fatalf("duplicate CreateJob err = %v, want ErrJobAlreadyExists", err)
	}

	got, err := s.GetJob(ctx, j.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.ID.String() != j.ID.String() || got.Status != syncjob.StatusPending || got.Queue != "default" {
		t.Errorf("GetJob = %+v", got)
	}

	if _, err := s.GetJob(ctx, id.NewSyncJobID()); !errors.Is(err, docsync.ErrJobNotFound) {
		t.Errorf("GetJob missing err = %v, want ErrJobNotFound", err)
	}
}

func testJobFieldsPersist(t *testing.T, s store.Store) {
	ctx := context.Background()
	parent := newJob(NewType("x"))

	j := newJob(NewType("x"))
	j.ParentJob = parent.ID
	j.Context = map[string]any{"customer": "ACME", "total": 12.5}
	j.TriggerRef = "Order:O-1:on_submit"
	j.DryRun = true
	j.DeleteEnabled = false
	if err := s.CreateJob(ctx, j); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	if err := j.TransitionTo(syncjob.StatusQueued); err != nil {
		t.Fatal(err)
	}
	if err := s.CompareAndSwapJob(ctx, j, syncjob.StatusPending); err != nil {
		t.Fatalf("CAS → queued: %v", err)
	}
	if err := j.TransitionTo(syncjob.StatusStarted); err != nil {
		t.Fatal(err)
	}
	j.Attempts = 1
	if err := s.CompareAndSwapJob(ctx, j, syncjob.StatusQueued); err != nil {
		t.Fatalf("CAS → started: %v", err)
	}

	j.TargetDocumentType = "Invoice"
	j.TargetDocumentName = "I-1"
	j.Operation = document.OpUpdate
	j.Diff = document.Diff{Changes: []document.Change{{Field: "status", Old: "Draft", New: "Paid"}}}
	j.ErrorMessage = "attempt 1: boom"
	j.RetryCount = 1
	j.SourceSnapshot = map[string]any{"name": "O-1"}
	retryAt := time.Now().UTC().Add(time.Hour).Truncate(time.Second)
	j.RetryAt = &retryAt
	if err := j.TransitionTo(syncjob.StatusFinished); err != nil {
		t.Fatal(err)
	}
	if err := s.CompareAndSwapJob(ctx, j, syncjob.StatusStarted); err != nil {
		t.Fatalf("CAS → finished: %v", err)
	}

	got, err := s.GetJob(ctx, j.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}

	switch {
	case got.Status != syncjob.StatusFinished:
		t.Errorf("Status = %s", got.Status)
	case got.ParentJob.String() != parent.ID.String():
		t.Errorf("ParentJob = %q, want %q", got.ParentJob, parent.ID)
	case got.Context["customer"] != "ACME" || got.Context["total"] != 12.5:
		t.Errorf("Context = %v", got.Context)
	case got.TriggerRef != j.TriggerRef || !got.DryRun || got.DeleteEnabled || !got.UpdateEnabled:
		t.Errorf("flags or trigger not persisted: %+v", got)
	case got.TargetDocumentType != "Invoice" || got.TargetDocumentName != "I-1" || got.Operation != document.OpUpdate:
		t.Errorf("target not persisted: %+v", got)
	case got.Diff.String() != "status":
		t.Errorf("Diff = %q", got.Diff.String())
	case got.ErrorMessage != j.ErrorMessage || got.RetryCount != 1 || got.Attempts != 1:
		t.Errorf("error bookkeeping not persisted: %+v", got)
	case got.SourceSnapshot["name"] != "O-1":
		t.Errorf("SourceSnapshot = %v", got.SourceSnapshot)
	case got.StartedAt == nil || got.FinishedAt == nil:
		t.Errorf("timestamps missing: started=%v finished=%v", got.StartedAt, got.FinishedAt)
	case got.RetryAt == nil || !got.RetryAt.Equal(retryAt):
		t.Errorf("RetryAt = %v, want %v", got.RetryAt, retryAt)
	}
}

func testCompareAndSwap(t *testing.T, s store.Store) {
	ctx := context.Background()
	j := newJob(NewType("x"))
	if err := s.CreateJob(ctx, j); err != nil {
		t.Fatal(err)
	}

	stale := j.Clone()
	if err := j.TransitionTo(syncjob.StatusQueued); err != nil {
		t.Fatal(err)
	}
	if err := s.CompareAndSwapJob(ctx, j, syncjob.StatusPending); err != nil {
		t.Fatalf("CAS: %v", err)
	}

	if err := stale.TransitionTo(syncjob.StatusCanceled); err != nil {
		t.Fatal(err)
	}
	err := s.CompareAndSwapJob(ctx, stale, syncjob.StatusPending)
	if !errors.Is(err, docsync.ErrStatusConflict) {
		t.Fatalf("stale CAS err = %v, want ErrStatusConflict", err)
	}

	got, err := s.GetJob(ctx, j.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != syncjob.StatusQueued {
		t.Errorf("Status = %s, want queued", got.Status)
	}

	missing := newJob(NewType("x"))
	if err := s.CompareAndSwapJob(ctx, missing, syncjob.StatusPending); !errors.Is(err, docsync.ErrJobNotFound) {
		t.Errorf("missing CAS err = %v, want ErrJobNotFound", err)
	}
}

func testCompareAndSwapRace(t *testing.T, s store.Store) {
	ctx := context.Background()
	j := newJob(NewType("x"))
	j.Status = syncjob.StatusQueued
	if err := s.CreateJob(ctx, j); err != nil {
		t.Fatal(err)
	}

	const workers = 8
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			claim := j.Clone()
			if err := claim.TransitionTo(syncjob.StatusStarted); err != nil {
				t.Error(err)
				return
			}
			err := s.CompareAndSwapJob(ctx, claim, syncjob.StatusQueued)
			switch {
			case err == nil:
				mu.Lock()
				wins++
				mu.Unlock()
			case !errors.Is(err, docsync.ErrStatusConflict):
				t.Errorf("unexpected CAS error: %v", err)
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Errorf("%d workers claimed the job, want exactly 1", wins)
	}
}

func testListJobs(t *testing.T, s store.Store) {
	ctx := context.Background()
	typA, typB := NewType("a"), NewType("b")
	typB.Queue = "long"

	parent := newJob(typA)
	var created []*syncjob.Job
	for i := range 5 {
		j := newJob(typA)
		if i%2 == 1 {
			j = newJob(typB)
			j.Queue = "long"
		}
		if i >= 3 {
			j.ParentJob = parent.ID
		}
		if err := s.CreateJob(ctx, j); err != nil {
			t.Fatal(err)
		}
		created = append(created, j)
		time.Sleep(2 * time.Millisecond)
	}

	all, err := s.ListJobs(ctx, syncjob.ListOpts{})
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(all) != 5 {
		t.Fatalf("ListJobs returned %d, want 5", len(all))
	}
	for i, j := range all {
		if j.ID.String() != created[i].ID.String() {
			t.Errorf("position %d: got %s, want %s (oldest first)", i, j.ID, created[i].ID)
		}
	}

	tests := []struct {
		name string
		opts syncjob.ListOpts
		want int
	}{
		{"by type", syncjob.ListOpts{Type: "a"}, 3},
		{"by queue", syncjob.ListOpts{Queue: "long"}, 2},
		{"by parent", syncjob.ListOpts{Parent: parent.ID}, 2},
		{"by status", syncjob.ListOpts{Status: syncjob.StatusPending}, 5},
		{"by other status", syncjob.ListOpts{Status: syncjob.StatusFailed}, 0},
		{"updated before future", syncjob.ListOpts{UpdatedBefore: time.Now().Add(time.Hour)}, 5},
		{"updated before past", syncjob.ListOpts{UpdatedBefore: time.Now().Add(-time.Hour)}, 0},
		{"limit", syncjob.ListOpts{Limit: 2}, 2},
		{"offset", syncjob.ListOpts{Offset: 4}, 1},
		{"offset past end", syncjob.ListOpts{Offset: 10}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ListJobs(ctx, tt.opts)
			if err != nil {
				t.Fatalf("ListJobs: %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("got %d jobs, want %d", len(got), tt.want)
			}
		})
	}
}

func testCountJobs(t *testing.T, s store.Store) {
	ctx := context.Background()
	for i := range 3 {
		j := newJob(NewType("a"))
		if i == 0 {
			j = newJob(NewType("b"))
			j.Status = syncjob.StatusQueued
		}
		if err := s.CreateJob(ctx, j); err != nil {
			t.Fatal(err)
		}
	}

	counts, err := s.CountJobs(ctx, syncjob.CountOpts{})
	if err != nil {
		t.Fatalf("CountJobs: %v", err)
	}
	if counts[syncjob.StatusPending] != 2 || counts[syncjob.StatusQueued] != 1 {
		t.Errorf("counts = %v", counts)
	}

	counts, err = s.CountJobs(ctx, syncjob.CountOpts{Type: "a"})
	if err != nil {
		t.Fatalf("CountJobs by type: %v", err)
	}
	if counts[syncjob.StatusPending] != 2 || counts[syncjob.StatusQueued] != 0 {
		t.Errorf("counts for type a = %v", counts)
	}
}
