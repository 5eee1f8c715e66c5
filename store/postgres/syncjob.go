package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

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

// jobArgs returns the values for jobColumns in order.
func jobArgs(j *syncjob.Job) ([]any, error) {
	ctxJSON, err := jsonb(j.Context)
	if err != nil {
		return nil, err
	}
	diffJSON, err := json.Marshal(j.Diff)
	if err != nil {
		return nil, fmt.Errorf("docsync/postgres: encode diff: %w", err)
	}
	srcJSON, err := jsonb(j.SourceSnapshot)
	if err != nil {
		return nil, err
	}
	tgtJSON, err := jsonb(j.TargetSnapshot)
	if err != nil {
		return nil, err
	}
	return []any{
		j.ID.String(), j.Type, j.Queue, string(j.Status),
		j.SourceDocumentType, j.SourceDocumentName, j.TargetDocumentType, j.TargetDocumentName,
		j.ParentJob.String(), ctxJSON, j.TriggerRef, string(j.Operation), diffJSON, j.ErrorMessage,
		j.RetryCount, j.Attempts, j.DryRun,
		j.InsertEnabled, j.UpdateEnabled, j.DeleteEnabled, j.UpdateWithoutChangesEnabled,
		srcJSON, tgtJSON, j.StartedAt, j.FinishedAt, j.CreatedAt, j.UpdatedAt, j.RetryAt,
	}, nil
}

// CreateJob persists a new job.
func (s *Store) CreateJob(ctx context.Context, j *syncjob.Job) error {
	args, err := jobArgs(j)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO docsync_sync_jobs (`+jobColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
		        $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28)`,
		args...,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return fmt.Errorf("%w: %s", docsync.ErrJobAlreadyExists, j.ID)
		}
		return fmt.Errorf("docsync/postgres: create job: %w", err)
	}
	return nil
}

// GetJob retrieves a job by ID.
func (s *Store) GetJob(ctx context.Context, jobID id.SyncJobID) (*syncjob.Job, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM docsync_sync_jobs WHERE id = $1`, jobID.String())
	j, err := scanJob(row)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("%w: %s", docsync.ErrJobNotFound, jobID)
		}
		return nil, fmt.Errorf("docsync/postgres: get job: %w", err)
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
	args = append(args, string(expected))

	tag, err := s.pool.Exec(ctx, `
		UPDATE docsync_sync_jobs SET
			sync_job_type = $2, queue = $3, status = $4,
			source_document_type = $5, source_document_name = $6,
			target_document_type = $7, target_document_name = $8,
			parent_job = $9, context = $10, trigger_ref = $11, operation = $12,
			diff = $13, error_message = $14, retry_count = $15, attempts = $16,
			dry_run = $17, insert_enabled = $18, update_enabled = $19,
			delete_enabled = $20, update_without_changes_enabled = $21,
			source_snapshot = $22, target_snapshot = $23,
			started_at = $24, finished_at = $25, created_at = $26, updated_at = $27,
			retry_at = $28
		WHERE id = $1 AND status = $29`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("docsync/postgres: compare and swap job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.casMiss(ctx, j.ID, expected)
	}
	j.UpdatedAt = now
	return nil
}

// casMiss explains a zero-row compare-and-swap.
func (s *Store) casMiss(ctx context.Context, jobID id.SyncJobID, expected syncjob.Status) error {
	var status string
	err := s.pool.QueryRow(ctx, `SELECT status FROM docsync_sync_jobs WHERE id = $1`, jobID.String()).Scan(&status)
	if err != nil {
		if isNoRows(err) {
			return fmt.Errorf("%w: %s", docsync.ErrJobNotFound, jobID)
		}
		return fmt.Errorf("docsync/postgres: compare and swap job: %w", err)
	}
	return fmt.Errorf("%w: %s is %s, expected %s", docsync.ErrStatusConflict, jobID, status, expected)
}

// ListJobs returns jobs matching opts, oldest first.
func (s *Store) ListJobs(ctx context.Context, opts syncjob.ListOpts) ([]*syncjob.Job, error) {
	where, args := jobFilter(opts)
	query := `SELECT ` + jobColumns + ` FROM docsync_sync_jobs` + where + ` ORDER BY created_at ASC, id ASC`

	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("docsync/postgres: list jobs: %w", err)
	}
	defer rows.Close()

	return collectJobs(rows)
}

// CountJobs returns the number of jobs per status.
func (s *Store) CountJobs(ctx context.Context, opts syncjob.CountOpts) (map[syncjob.Status]int64, error) {
	where, args := jobFilter(syncjob.ListOpts{Type: opts.Type})
	rows, err := s.pool.Query(ctx,
		`SELECT status, COUNT(*) FROM docsync_sync_jobs`+where+` GROUP BY status`, args...)
	if err != nil {
		return nil, fmt.Errorf("docsync/postgres: count jobs: %w", err)
	}
	defer rows.Close()

	counts := make(map[syncjob.Status]int64)
	for rows.Next() {
		var (
			status string
			n      int64
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("docsync/postgres: scan count row: %w", err)
		}
		counts[syncjob.Status(status)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("docsync/postgres: iterate count rows: %w", err)
	}
	return counts, nil
}

// jobFilter builds a WHERE clause for the filters in opts.
func jobFilter(opts syncjob.ListOpts) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if opts.Status != "" {
		add("status = $%d", string(opts.Status))
	}
	if opts.Type != "" {
		add("sync_job_type = $%d", opts.Type)
	}
	if !opts.Parent.IsNil() {
		add("parent_job = $%d", opts.Parent.String())
	}
	if opts.Queue != "" {
		add("queue = $%d", opts.Queue)
	}
	if !opts.UpdatedBefore.IsZero() {
		add("updated_at < $%d", opts.UpdatedBefore)
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// scanJob scans a single job row.
func scanJob(row pgx.Row) (*syncjob.Job, error) {
	var (
		j                                syncjob.Job
		idStr, status, parent, operation string
		ctxJSON, diffJSON                []byte
		srcJSON, tgtJSON                 []byte
	)
	err := row.Scan(
		&idStr, &j.Type, &j.Queue, &status,
		&j.SourceDocumentType, &j.SourceDocumentName, &j.TargetDocumentType, &j.TargetDocumentName,
		&parent, &ctxJSON, &j.TriggerRef, &operation, &diffJSON, &j.ErrorMessage,
		&j.RetryCount, &j.Attempts, &j.DryRun,
		&j.InsertEnabled, &j.UpdateEnabled, &j.DeleteEnabled, &j.UpdateWithoutChangesEnabled,
		&srcJSON, &tgtJSON, &j.StartedAt, &j.FinishedAt, &j.CreatedAt, &j.UpdatedAt, &j.RetryAt,
	)
	if err != nil {
		return nil, err
	}

	j.Status = syncjob.Status(status)
	j.Operation = document.Operation(operation)

	parsedID, parseErr := id.ParseSyncJobID(idStr)
	if parseErr != nil {
		return nil, fmt.Errorf("docsync/postgres: parse job id %q: %w", idStr, parseErr)
	}
	j.ID = parsedID

	if parent != "" {
		parsedParent, parentErr := id.ParseSyncJobID(parent)
		if parentErr != nil {
			return nil, fmt.Errorf("docsync/postgres: parse parent job id %q: %w", parent, parentErr)
		}
		j.ParentJob = parsedParent
	}

	if err := unjsonb(ctxJSON, &j.Context); err != nil {
		return nil, err
	}
	if err := unjsonb(diffJSON, &j.Diff); err != nil {
		return nil, err
	}
	if err := unjsonb(srcJSON, &j.SourceSnapshot); err != nil {
		return nil, err
	}
	if err := unjsonb(tgtJSON, &j.TargetSnapshot); err != nil {
		return nil, err
	}
	return &j, nil
}

// collectJobs collects all jobs from query rows.
func collectJobs(rows pgx.Rows) ([]*syncjob.Job, error) {
	var jobs []*syncjob.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("docsync/postgres: scan job row: %w", err)
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("docsync/postgres: iterate job rows: %w", err)
	}
	return jobs, nil
}
