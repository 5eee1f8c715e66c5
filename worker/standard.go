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

// runStandard orchestrates a controller that only resolves and mutates
// targets: resolve, then relay or sync the single target.
func (e *Executor) runStandard(ctx context.Context, work *syncjob.Job, typ *syncjob.Type, unit *controller.Unit, source *document.Record) (*outcome, error) {
	if err := unit.AfterStart(ctx, work, source); err != nil {
		return nil, err
	}

	targets, err := e.targets(ctx, work, unit, source)
	if err != nil {
		return nil, err
	}

	switch len(targets) {
	case 0:
		return &outcome{
			status: syncjob.StatusNoTarget,
			reason: fmt.Errorf("%w: controller %q returned no target", docsync.ErrResolution, unit.Ref),
		}, nil
	case 1:
		return e.syncTarget(ctx, work, typ, unit, source, targets[0])
	default:
		children, err := e.relay(ctx, work, unit, source, targets)
		if err != nil {
			return nil, err
		}
		return &outcome{status: syncjob.StatusRelayed, children: children}, nil
	}
}

// targets returns the preset target of a relay child, or asks the
// controller.
func (e *Executor) targets(ctx context.Context, work *syncjob.Job, unit *controller.Unit, source *document.Record) ([]controller.Target, error) {
	if !work.ParentJob.IsNil() && work.TargetDocumentType != "" {
		return []controller.Target{{
			DocumentType: work.TargetDocumentType,
			DocumentName: work.TargetDocumentName,
			Operation:    work.Operation,
		}}, nil
	}
	return unit.ResolveTargets(ctx, work, source)
}

// targetOperation returns t's operation, defaulting to update when the
// target is named and insert when it is not.
func targetOperation(t controller.Target) (document.Operation, error) {
	op := t.Operation
	if op == "" {
		if t.DocumentName == "" {
			return document.OpInsert, nil
		}
		return document.OpUpdate, nil
	}
	if !op.Valid() {
		return "", fmt.Errorf("%w: invalid operation %q for target %s", docsync.ErrConfiguration, op, t.DocumentType)
	}
	return op, nil
}

// syncTarget mutates, diffs and persists one target.
func (e *Executor) syncTarget(ctx context.Context, work *syncjob.Job, typ *syncjob.Type, unit *controller.Unit, source *document.Record, t controller.Target) (*outcome, error) {
	if t.DocumentType == "" {
		return nil, fmt.Errorf("%w: controller %q returned a target without a document type", docsync.ErrResolution, unit.Ref)
	}
	op, err := targetOperation(t)
	if err != nil {
		return nil, err
	}

	work.TargetDocumentType = t.DocumentType
	work.TargetDocumentName = t.DocumentName
	work.Operation = op
	if len(t.Context) > 0 {
		work.Context = controller.MergeContext(work.Context, t.Context)
	}

	if !work.OperationEnabled(op) {
		return nil, fmt.Errorf("%w: %s is disabled for this job", docsync.ErrOperationNotPermitted, op)
	}

	target, before, err := e.loadTarget(ctx, t.DocumentType, t.DocumentName, op)
	if err != nil {
		return nil, err
	}

	var after *document.Record
	if op != document.OpDelete {
		if !unit.HasUpdater() {
			return nil, fmt.Errorf("%w: controller %q cannot %s targets without UpdateTargetDoc",
				docsync.ErrConfiguration, unit.Ref, op)
		}
		if err := unit.UpdateTarget(ctx, work, source, target); err != nil {
			return nil, err
		}
		after = target
	}

	work.Diff = e.accessor.Diff(before, after)
	if typ.VerboseLogging && after != nil {
		work.TargetSnapshot = after.Clone().Fields
	}

	if err := unit.BeforeSync(ctx, work, source, target); err != nil {
		return nil, err
	}
	return e.persist(ctx, work, unit, source, target, op)
}

// loadTarget returns the record to mutate and the stored state to diff
// against. Inserts start from an empty record.
func (e *Executor) loadTarget(ctx context.Context, docType, name string, op document.Operation) (target, before *document.Record, err error) {
	if op == document.OpInsert {
		return document.New(docType, name), nil, nil
	}
	if name == "" {
		return nil, nil, fmt.Errorf("%w: %s of %s needs a target name", docsync.ErrResolution, op, docType)
	}

	stored, err := e.accessor.Load(ctx, docType, name)
	if err != nil {
		if errors.Is(err, document.ErrNotFound) {
			if op == document.OpDelete {
				return nil, nil, fmt.Errorf("%w: target %s/%s already deleted", docsync.ErrSkip, docType, name)
			}
			return nil, nil, fmt.Errorf("%w: target %s/%s not found", docsync.ErrResolution, docType, name)
		}
		return nil, nil, fmt.Errorf("load target %s/%s: %w", docType, name, err)
	}
	return stored, stored.Clone(), nil
}

// persist saves target unless the job is a dry run, then runs AfterSync
// and, outside dry runs, Finished. Updates that change nothing are
// skipped unless UpdateWithoutChangesEnabled.
func (e *Executor) persist(ctx context.Context, work *syncjob.Job, unit *controller.Unit, source, target *document.Record, op document.Operation) (*outcome, error) {
	if !work.DryRun {
		if op == document.OpUpdate && work.Diff.IsEmpty() && !work.UpdateWithoutChangesEnabled {
			return &outcome{
				status: syncjob.StatusSkipped,
				reason: fmt.Errorf("%w: target %s/%s has no changes", docsync.ErrSkip, target.Type, target.Name),
			}, nil
		}
		saved, err := e.accessor.Save(ctx, target, op)
		if err != nil {
			return nil, fmt.Errorf("save target %s/%s: %w", target.Type, target.Name, err)
		}
		if saved != nil {
			target = saved
			work.TargetDocumentName = saved.Name
		}
	}

	if err := unit.AfterSync(ctx, work, source, target); err != nil {
		return nil, err
	}
	if work.DryRun {
		return &outcome{status: syncjob.StatusFinished}, nil
	}
	if err := unit.Finished(ctx, work, source, target); err != nil {
		return nil, err
	}
	return &outcome{status: syncjob.StatusFinished}, nil
}
