package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/xraph/docsync"
	"github.com/xraph/docsync/document"
	"github.com/xraph/docsync/id"
	"github.com/xraph/docsync/syncjob"
)

const jobColumns = `
	id, sync_job_type, queue, status,
	source_document_type, source_document_name, target_document_type, target_document_name,
	parent_job, context, trigger_ref, operation, diff, error_message,
	retry_count, attempts, dry_run,
	insert_enabled, update_enabled, delete_enabled, update_without_changes_enabled,
	source_snapshot, target_snapshot, started_at, finished_at, created_at, updated_at, retry_at`

// jobArgs returns the values for every column after id, in jobColumns order.
func jobArgs(j *syncjob.Job) ([]any, error) {
	ctxJSON, err := jsonText(j.Context)
	if err != nil {
		return nil, err
	}
	diffJSON, err := json.Marshal(j.Diff)
	if err != nil {
		return nil, fmt.Errorf("docsync/sqlite: encode diff: %w", err)
	}
	srcJSON, err := jsonText(j.SourceSnapshot)
	if err != nil {
		return nil, err
	}
	tgtJSON, err := jsonText(j.TargetSnapshot)
	if err != nil {
		return nil, err
	}
	return []any{
		j.Type, j.Queue, string(j.Status),
		j.SourceDocumentType, j.SourceDocumentName, j.TargetDocumentType, j.TargetDocumentName,
		j.ParentJob.String(), ctxJSON, j.TriggerRef, string(j.Operation), string(diffJSON), j.ErrorMessage,
		j.RetryCount, j.Attempts, j.DryRun,
		j.InsertEnabled, j.UpdateEnabled, j.DeleteEnabled, j.UpdateWithoutChangesEnabled,
		srcJSON, tgtJSON, nullNanos(j.StartedAt), nullNanos(j.FinishedAt), nanos(j.CreatedAt), nanos(j.UpdatedAt),
		nullNanos(j.RetryAt),
	}, nil
}

// CreateJob persists a new job.
func (s *Store) CreateJob(ctx context.Context, j *syncjob.Job) error {
	args, err := jobArgs(j)
	if err != nil {
		return err
	}
	args = append([]any{j.ID.String()}, args...)
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(args)), ", ")

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO docsync_sync_jobs (`+jobColumns+`) VALUES (`+placeholders+`)`,
		args...,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return fmt.Errorf("%w: %s", docsync.ErrJobAlreadyExists, j.ID)
		}
		return fmt.Errorf("docsync/sqlite: create job: %w", err)
	}
	return nil
}

// GetJob retrieves a job by ID.
func (s *Store) GetJob(ctx context.Context, jobID id.SyncJobID) (*syncjob.Job, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM docsync_sync_jobs WHERE id = ?`, jobID.String())
	j, err := scanJob(row)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("%w: %s", docsync.ErrJobNotFound, jobID)
		}
		return nil, fmt.Errorf("docsync/sqlite: get job: %w", err)
	}
	return j, nil
}

// CompareAndSwapJob updates the row only while its status equals expected.
func (s *Store) CompareAndSwapJob(ctx context.Context, j *syncjob.Job, expected syncjob.Status) error {
	now := time.Now().UTC()
	next := *j
	next.UpdatedAt = now
	args, err := jobArgs(&next)
	if err != nil {
		return err
	}
	args = append(args, j.ID.String(), string(expected))

	res, err := s.db.ExecContext(ctx, `
		UPDATE docsync_sync_jobs SET
			sync_job_type = ?, queue = ?, status = ?,
			source_document_type = ?, source_document_name = ?,
			target_document_type = ?, target_document_name = ?,
			parent_job = ?, context = ?, trigger_ref = ?, operation = ?,
			diff = ?, error_message = ?, retry_count = ?, attempts = ?,
			dry_run = ?, insert_enabled = ?, update_enabled = ?,
			delete_enabled = ?, update_without_changes_enabled = ?,
			source_snapshot = ?, target_snapshot = ?,
			started_at = ?, finished_at = ?, created_at = ?, updated_at = ?,
			retry_at = ?
		WHERE id = ? AND status = ?`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("docsync/sqlite: compare and swap job: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return s.casMiss(ctx, j.ID, expected)
	}
	j.UpdatedAt = now
	return nil
}

// casMiss explains a zero-row compare-and-swap.
func (s *Store) casMiss(ctx context.Context, jobID id.SyncJobID, expected syncjob.Status) error {
	var status string
	err := s.db.QueryRowContext(ctx,
		`SELECT status FROM docsync_sync_jobs WHERE id = ?`, jobID.String()).Scan(&status)
	if err != nil {
		if isNoRows(err) {
			return fmt.Errorf("%w: %s", docsync.ErrJobNotFound, jobID)
		}
		return fmt.Errorf("docsync/sqlite: compare and swap job: %w", err)
	}
	return fmt.Errorf("%w: %s is %s, expected %s", docsync.ErrStatusConflict, jobID, status, expected)
}

// ListJobs returns jobs matching opts, oldest first.
func (s *Store) ListJobs(ctx context.Context, opts syncjob.ListOpts) ([]*syncjob.Job, error) {
	where, args := jobFilter(opts)
	query := `SELECT ` + jobColumns + ` FROM docsync_sync_jobs` + where + ` ORDER BY created_at ASC, id ASC`

	switch {
	case opts.Limit > 0:
		query += " LIMIT ? OFFSET ?"
		args = append(args, opts.Limit, opts.Offset)
	case opts.Offset > 0:
		query += " LIMIT -1 OFFSET ?"
		args = append(args, opts.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("docsync/sqlite: list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*syncjob.Job
	for rows.Next() {
		j, scanErr := scanJob(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("docsync/sqlite: scan job row: %w", scanErr)
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("docsync/sqlite: iterate job rows: %w", err)
	}
	return jobs, nil
}

// CountJobs returns the number of jobs per status.
func (s *Store) CountJobs(ctx context.Context, opts syncjob.CountOpts) (map[syncjob.Status]int64, error) {
	where, args := jobFilter(syncjob.ListOpts{Type: opts.Type})
	rows, err := s.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM docsync_sync_jobs`+where+` GROUP BY status`, args...)
	if err != nil {
		return nil, fmt.Errorf("docsync/sqlite: count jobs: %w", err)
	}
	defer rows.Close()

	counts := make(map[syncjob.Status]int64)
	for rows.Next() {
		var (
			status string
			n      int64
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("docsync/sqlite: scan count row: %w", err)
		}
		counts[syncjob.Status(status)] = n
	}
	return counts, rows.Err()
}

func jobFilter(opts syncjob.ListOpts) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if opts.Status != "" {
		conds, args = append(conds, "status = ?"), append(args, string(opts.Status))
	}
	if opts.Type != "" {
		conds, args = append(conds, "sync_job_type = ?"), append(args, opts.Type)
	}
	if !opts.Parent.IsNil() {
		conds, args = append(conds, "parent_job = ?"), append(args, opts.Parent.String())
	}
	if opts.Queue != "" {
		conds, args = append(conds, "queue = ?"), append(args, opts.Queue)
	}
	if !opts.UpdatedBefore.IsZero() {
		conds, args = append(conds, "updated_at < ?"), append(args, nanos(opts.UpdatedBefore))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func scanJob(row scanner) (*syncjob.Job, error) {
	var (
		j                                syncjob.Job
		idStr, status, parent, operation string
		ctxJSON, diffJSON                sql.NullString
		srcJSON, tgtJSON                 sql.NullString
		started, finished, retryAt       sql.NullInt64
		created, updated                 int64
	)
	err := row.Scan(
		&idStr, &j.Type, &j.Queue, &status,
		&j.SourceDocumentType, &j.SourceDocumentName, &j.TargetDocumentType, &j.TargetDocumentName,
		&parent, &ctxJSON, &j.TriggerRef, &operation, &diffJSON, &j.ErrorMessage,
		&j.RetryCount, &j.Attempts, &j.DryRun,
		&j.InsertEnabled, &j.UpdateEnabled, &j.DeleteEnabled, &j.UpdateWithoutChangesEnabled,
		&srcJSON, &tgtJSON, &started, &finished, &created, &updated,
		&retryAt,
	)
	if err != nil {
		return nil, err
	}

	j.Status = syncjob.Status(status)
	j.Operation = document.Operation(operation)
	j.StartedAt = fromNullNanos(started)
	j.FinishedAt = fromNullNanos(finished)
	j.RetryAt = fromNullNanos(retryAt)
	j.CreatedAt = fromNanos(created)
	j.UpdatedAt = fromNanos(updated)

	parsedID, parseErr := id.ParseSyncJobID(idStr)
	if parseErr != nil {
		return nil, fmt.Errorf("docsync/sqlite: parse job id %q: %w", idStr, parseErr)
	}
	j.ID = parsedID

	if parent != "" {
		parsedParent, parentErr := id.ParseSyncJobID(parent)
		if parentErr != nil {
			return nil, fmt.Errorf("docsync/sqlite: parse parent job id %q: %w", parent, parentErr)
		}
		j.ParentJob = parsedParent
	}

	for _, col := range []struct {
		src sql.NullString
		dst any
	}{
		{ctxJSON, &j.Context},
		{diffJSON, &j.Diff},
		{srcJSON, &j.SourceSnapshot},
		{tgtJSON, &j.TargetSnapshot},
	} {
		if err := fromJSONText(col.src, col.dst); err != nil {
			return nil, err
		}
	}
	return &j, nil
}
