package syncjob_test

import (
	"errors"
	"testing"
	"time"

	"github.com/xraph/docsync"
	"github.com/xraph/docsync/document"
	"github.com/xraph/docsync/syncjob"
)

func TestNewTypeDefaults(t *testing.T) {
	typ := syncjob.NewType("order-to-invoice")
	if typ.Queue != syncjob.DefaultQueue {
		t.Errorf("Queue = %q, want %q", typ.Queue, syncjob.DefaultQueue)
	}
	if typ.Timeout() != syncjob.DefaultTimeout {
		t.Errorf("Timeout = %v, want %v", typ.Timeout(), syncjob.DefaultTimeout)
	}
	if !typ.InsertEnabled || !typ.UpdateEnabled || !typ.DeleteEnabled {
		t.Error("expected insert, update and delete enabled by default")
	}
	if typ.UpdateWithoutChangesEnabled {
		t.Error("expected update without changes disabled by default")
	}
}

func TestTypeValidate(t *testing.T) {
	valid := func() *syncjob.Type {
		typ := syncjob.NewType("x")
		typ.SourceType = "Order"
		typ.ControllerRef = "fieldmap"
		return typ
	}

	tests := []struct {
		name    string
		mutate  func(*syncjob.Type)
		wantErr bool
	}{
		{"valid", func(*syncjob.Type) {}, false},
		{"missing name", func(t *syncjob.Type) { t.Name = "" }, true},
		{"missing source", func(t *syncjob.Type) { t.SourceType = "" }, true},
		{"missing controller", func(t *syncjob.Type) { t.ControllerRef = "" }, true},
		{"negative retries", func(t *syncjob.Type) { t.MaxRetries = -1 }, true},
		{"unknown backoff", func(t *syncjob.Type) { t.Backoff = "fibonacci" }, true},
		{"empty queue defaults", func(t *syncjob.Type) { t.Queue = "" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			typ := valid()
			tt.mutate(typ)
			err := typ.Validate()
			if tt.wantErr {
				if !errors.Is(err, docsync.ErrConfiguration) {
					t.Fatalf("err = %v, want ErrConfiguration", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if typ.Queue == "" {
				t.Error("queue default not applied")
			}
		})
	}
}

func TestTypeDurations(t *testing.T) {
	typ := syncjob.NewType("x")
	typ.TimeoutSeconds = 30
	typ.RetryDelaySeconds = 5
	if typ.Timeout() != 30*time.Second {
		t.Errorf("Timeout = %v", typ.Timeout())
	}
	if typ.RetryDelay() != 5*time.Second {
		t.Errorf("RetryDelay = %v", typ.RetryDelay())
	}
}

func TestNewJobCopiesType(t *testing.T) {
	typ := syncjob.NewType("x")
	typ.Queue = "long"
	typ.DeleteEnabled = false

	j := syncjob.NewJob(typ, "Order", "O-1")
	if j.Status != syncjob.StatusPending {
		t.Errorf("Status = %s, want pending", j.Status)
	}
	if j.Queue != "long" {
		t.Errorf("Queue = %q, want long", j.Queue)
	}
	if j.OperationEnabled(document.OpDelete) {
		t.Error("delete should be disabled")
	}
	if !j.OperationEnabled(document.OpUpdate) {
		t.Error("update should be enabled")
	}
}

func TestJobCloneIsolation(t *testing.T) {
	j := syncjob.NewJob(syncjob.NewType("x"), "Order", "O-1")
	j.Context = map[string]any{"k": "v"}

	cp := j.Clone()
	cp.Context["k"] = "changed"
	cp.Diff.Changes = append(cp.Diff.Changes, document.Change{Field: "f"})

	if j.Context["k"] != "v" {
		t.Error("clone shares context map")
	}
	if len(j.Diff.Changes) != 0 {
		t.Error("clone shares diff slice")
	}
}

func TestListOptsMatches(t *testing.T) {
	parent := syncjob.NewJob(syncjob.NewType("x"), "Order", "O-1")
	child := syncjob.NewJob(syncjob.NewType("x"), "Order", "O-1")
	child.ParentJob = parent.ID

	if !(syncjob.ListOpts{Parent: parent.ID}).Matches(child) {
		t.Error("child should match parent filter")
	}
	if (syncjob.ListOpts{Parent: parent.ID}).Matches(parent) {
		t.Error("parent should not match its own parent filter")
	}
	if (syncjob.ListOpts{Status: syncjob.StatusQueued}).Matches(child) {
		t.Error("pending job matched queued filter")
	}
}

func TestPage(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}
	if got := syncjob.Page(items, 1, 2); len(got) != 2 || got[0] != 2 {
		t.Errorf("Page(1,2) = %v", got)
	}
	if got := syncjob.Page(items, 10, 0); got != nil {
		t.Errorf("Page past end = %v, want nil", got)
	}
	if got := syncjob.Page(items, 0, 0); len(got) != 5 {
		t.Errorf("Page(0,0) = %v", got)
	}
}

func TestRecordError(t *testing.T) {
	j := &syncjob.Job{Attempts: 1}
	j.RecordError(errors.New("first"), false)
	j.Attempts = 2
	j.RecordError(errors.New("second"), false)
	if j.ErrorMessage != "second" {
		t.Errorf("ErrorMessage = %q, want latest only", j.ErrorMessage)
	}

	v := &syncjob.Job{Attempts: 1}
	v.RecordError(errors.New("first"), true)
	v.Attempts = 2
	v.RecordError(errors.New("second"), true)
	if want := "[attempt 1] first\n[attempt 2] second"; v.ErrorMessage != want {
		t.Errorf("ErrorMessage = %q, want %q", v.ErrorMessage, want)
	}
}
