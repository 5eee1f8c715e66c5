package fieldmap_test

import (
	"context"
	"errors"
	"testing"

	"github.com/xraph/docsync"
	"github.com/xraph/docsync/controller"
	"github.com/xraph/docsync/controller/fieldmap"
	"github.com/xraph/docsync/document"
	"github.com/xraph/docsync/syncjob"
)

func newJob(ctx map[string]any) *syncjob.Job {
	j := syncjob.NewJob(syncjob.NewType("x"), "Order", "O-1")
	j.Context = ctx
	return j
}

func TestRegistersAsStandard(t *testing.T) {
	u, err := controller.NewUnit(fieldmap.Ref, fieldmap.Controller{})
	if err != nil {
		t.Fatalf("NewUnit: %v", err)
	}
	if u.Mode != controller.ModeStandard {
		t.Errorf("Mode = %s, want standard", u.Mode)
	}
	if !u.HasUpdater() {
		t.Error("expected updater")
	}
}

func TestResolveTargets(t *testing.T) {
	c := fieldmap.Controller{}
	ctx := context.Background()

	tests := []struct {
		name    string
		jobCtx  map[string]any
		want    int
		wantOp  document.Operation
		wantErr error
	}{
		{"no target type", nil, 0, "", nil},
		{"named target defaults to update", map[string]any{
			"target_document_type": "Invoice", "target_document_name": "I-1",
		}, 1, document.OpUpdate, nil},
		{"unnamed target defaults to insert", map[string]any{
			"target_document_type": "Invoice",
		}, 1, document.OpInsert, nil},
		{"explicit targets", map[string]any{
			"targets": []any{
				map[string]any{"document_type": "Invoice", "document_name": "I-1", "operation": "update"},
				map[string]any{"document_type": "Invoice", "document_name": "I-2", "operation": "delete"},
			},
		}, 2, document.OpUpdate, nil},
		{"bad operation", map[string]any{
			"target_document_type": "Invoice", "operation": "merge",
		}, 0, "", docsync.ErrConfiguration},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.GetMultipleTargetDocuments(ctx, newJob(tt.jobCtx), nil)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != tt.want {
				t.Fatalf("got %d targets, want %d", len(got), tt.want)
			}
			if tt.want > 0 && got[0].Operation != tt.wantOp {
				t.Errorf("operation = %q, want %q", got[0].Operation, tt.wantOp)
			}
		})
	}
}

func TestUpdateTargetDocMapping(t *testing.T) {
	source := document.New("Order", "O-1")
	source.Set("grand_total", 99.5)
	source.Set("customer", "ACME")
	target := document.New("Invoice", "I-1")

	j := newJob(map[string]any{"field_map": map[string]any{"grand_total": "total"}})
	if err := (fieldmap.Controller{}).UpdateTargetDoc(context.Background(), j, source, target); err != nil {
		t.Fatalf("UpdateTargetDoc: %v", err)
	}
	if v, _ := target.Get("total"); v != 99.5 {
		t.Errorf("total = %v, want 99.5", v)
	}
	if _, ok := target.Get("customer"); ok {
		t.Error("unmapped field copied")
	}
}

func TestUpdateTargetDocMissingSource(t *testing.T) {
	err := (fieldmap.Controller{}).UpdateTargetDoc(context.Background(), newJob(nil), nil, document.New("Invoice", "I-1"))
	if !errors.Is(err, docsync.ErrSkip) {
		t.Errorf("err = %v, want ErrSkip", err)
	}
}

func TestForceUpdate(t *testing.T) {
	j := newJob(map[string]any{"force_update": true})
	if err := (fieldmap.Controller{}).BeforeSync(context.Background(), j, nil, nil); err != nil {
		t.Fatalf("BeforeSync: %v", err)
	}
	if !j.UpdateWithoutChangesEnabled {
		t.Error("force_update did not enable update without changes")
	}
}
