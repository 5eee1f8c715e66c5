package worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/xraph/docsync"
	"github.com/xraph/docsync/controller"
	"github.com/xraph/docsync/document"
	"github.com/xraph/docsync/syncjob"
)

// runBypass hands the whole sync to the controller's Execute and persists
// the record it returns, honoring dry runs and capability flags.
func (e *Executor) runBypass(ctx context.Context, work *syncjob.Job, typ *syncjob.Type, unit *controller.Unit, source *document.Record) (*outcome, error) {
	res, err := unit.Execute(ctx, work, source)
	if err != nil {
		return nil, err
	}
	if res == nil || res.Target == nil {
		return &outcome{
			status: syncjob.StatusSkipped,
			reason: fmt.Errorf("%w: controller %q returned no target", docsync.ErrSkip, unit.Ref),
		}, nil
	}

	op, err := targetOperation(controller.Target{
		DocumentType: res.Target.Type,
		DocumentName: res.Target.Name,
		Operation:    res.Operation,
	})
	if err != nil {
		return nil, err
	}

	work.TargetDocumentType = res.Target.Type
	work.TargetDocumentName = res.Target.Name
	work.Operation = op

	if !work.OperationEnabled(op) {
		return nil, fmt.Errorf("%w: %s is disabled for this job", docsync.ErrOperationNotPermitted, op)
	}

	work.Diff = res.Diff
	if work.Diff.IsEmpty() {
		if work.Diff, err = e.bypassDiff(ctx, res.Target, op); err != nil {
			return nil, err
		}
	}
	if typ.VerboseLogging && op != document.OpDelete {
		work.TargetSnapshot = res.Target.Clone().Fields
	}

	return e.persist(ctx, work, unit, source, res.Target, op)
}

// bypassDiff compares a bypass result with the stored target.
func (e *Executor) bypassDiff(ctx context.Context, target *document.Record, op document.Operation) (document.Diff, error) {
	var stored *document.Record
	if op != document.OpInsert && target.Name != "" {
		var err error
		stored, err = e.accessor.Load(ctx, target.Type, target.Name)
		if err != nil && !errors.Is(err, document.ErrNotFound) {
			return document.Diff{}, fmt.Errorf("load target %s/%s: %w", target.Type, target.Name, err)
		}
	}
	if op == document.OpDelete {
		return e.accessor.Diff(stored, nil), nil
	}
	return e.accessor.Diff(stored, target), nil
}
