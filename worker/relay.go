package worker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xraph/docsync/controller"
	"github.com/xraph/docsync/document"
	"github.com/xraph/docsync/enqueue"
	"github.com/xraph/docsync/syncjob"
)

// relay fans a job with several targets out into one child job per
// target. Children inherit the parent's type, source, dry-run flag,
// capability flags and trigger reference; their context is the parent's
// overlaid by the target entry. Relaying the same parent again reuses the
// children it already has.
func (e *Executor) relay(ctx context.Context, work *syncjob.Job, unit *controller.Unit, source *document.Record, targets []controller.Target) ([]*syncjob.Job, error) {
	if err := unit.BeforeRelay(ctx, work, source, targets); err != nil {
		return nil, err
	}

	// A retried parent finds the children an earlier attempt created.
	existing, err := e.store.ListJobs(ctx, syncjob.ListOpts{Parent: work.ID})
	if err != nil {
		return nil, fmt.Errorf("list relay children of %s: %w", work.ID, err)
	}
	claimed := make([]bool, len(existing))

	children := make([]*syncjob.Job, 0, len(targets))
	for i, t := range targets {
		op, err := targetOperation(t)
		if err != nil {
			return children, err
		}
		if child := matchChild(existing, claimed, t, op); child != nil {
			e.logger.Debug("relay child already exists",
				slog.String("job_id", child.ID.String()),
				slog.String("parent_job", work.ID.String()),
			)
			children = append(children, child)
			continue
		}
		child, err := e.enqueuer.Enqueue(ctx, enqueue.Request{
			Type:                        work.Type,
			SourceDocumentType:          work.SourceDocumentType,
			SourceDocumentName:          work.SourceDocumentName,
			Context:                     controller.MergeContext(work.Context, t.Context),
			TriggerRef:                  work.TriggerRef,
			DryRun:                      work.DryRun,
			InsertEnabled:               enqueue.Bool(work.InsertEnabled),
			UpdateEnabled:               enqueue.Bool(work.UpdateEnabled),
			DeleteEnabled:               enqueue.Bool(work.DeleteEnabled),
			UpdateWithoutChangesEnabled: enqueue.Bool(work.UpdateWithoutChangesEnabled),
			ParentJob:                   work.ID,
			TargetDocumentType:          t.DocumentType,
			TargetDocumentName:          t.DocumentName,
			Operation:                   op,
		})
		if child == nil {
			return children, fmt.Errorf("relay target %d (%s/%s): %w", i, t.DocumentType, t.DocumentName, err)
		}
		if err != nil {
			// Persisted but not submitted; the sweeper picks it up.
			e.logger.Warn("relay child left pending",
				slog.String("job_id", child.ID.String()),
				slog.String("parent_job", work.ID.String()),
				slog.String("error", err.Error()),
			)
		}
		children = append(children, child)
	}

	if err := unit.AfterRelay(ctx, work, source, children); err != nil {
		return children, err
	}

	e.logger.Info("sync job relayed",
		slog.String("job_id", work.ID.String()),
		slog.Int("children", len(children)),
	)
	return children, nil
}

// matchChild returns the first unclaimed child created for the same target
// and operation. A target without a name matches a child of the same type
// whatever name its insert assigned.
func matchChild(existing []*syncjob.Job, claimed []bool, t controller.Target, op document.Operation) *syncjob.Job {
	for i, c := range existing {
		if claimed[i] || c.TargetDocumentType != t.DocumentType || c.Operation != op {
			continue
		}
		if t.DocumentName != "" && c.TargetDocumentName != t.DocumentName {
			continue
		}
		claimed[i] = true
		return c
	}
	return nil
}
