package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/xraph/docsync"
	"github.com/xraph/docsync/syncjob"
)

const typeColumns = `
	name, source_document_type, target_document_type, controller, queue,
	timeout_seconds, retry_delay_seconds, max_retries, backoff, verbose_logging,
	insert_enabled, update_enabled, delete_enabled, update_without_changes_enabled,
	disabled, created_at, updated_at`

// CreateType persists a new type.
func (s *Store) CreateType(ctx context.Context, t *syncjob.Type) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO docsync_sync_job_types (`+typeColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		t.Name, t.SourceType, t.TargetType, t.ControllerRef, t.Queue,
		t.TimeoutSeconds, t.RetryDelaySeconds, t.MaxRetries, string(t.Backoff), t.VerboseLogging,
		t.InsertEnabled, t.UpdateEnabled, t.DeleteEnabled, t.UpdateWithoutChangesEnabled,
		t.Disabled, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return fmt.Errorf("%w: %q", docsync.ErrTypeAlreadyExists, t.Name)
		}
		return fmt.Errorf("docsync/postgres: create type: %w", err)
	}
	return nil
}

// GetType retrieves a type by name.
func (s *Store) GetType(ctx context.Context, name string) (*syncjob.Type, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+typeColumns+` FROM docsync_sync_job_types WHERE name = $1`, name)
	t, err := scanType(row)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("%w: %q", docsync.ErrTypeNotFound, name)
		}
		return nil, fmt.Errorf("docsync/postgres: get type: %w", err)
	}
	return t, nil
}

// UpdateType replaces an existing type.
func (s *Store) UpdateType(ctx context.Context, t *syncjob.Type) error {
	now := time.Now().UTC()
	tag, err := s.pool.Exec(ctx, `
		UPDATE docsync_sync_job_types SET
			source_document_type = $2, target_document_type = $3, controller = $4,
			queue = $5, timeout_seconds = $6, retry_delay_seconds = $7,
			max_retries = $8, backoff = $9, verbose_logging = $10,
			insert_enabled = $11, update_enabled = $12, delete_enabled = $13,
			update_without_changes_enabled = $14, disabled = $15, updated_at = $16
		WHERE name = $1`,
		t.Name, t.SourceType, t.TargetType, t.ControllerRef,
		t.Queue, t.TimeoutSeconds, t.RetryDelaySeconds,
		t.MaxRetries, string(t.Backoff), t.VerboseLogging,
		t.InsertEnabled, t.UpdateEnabled, t.DeleteEnabled,
		t.UpdateWithoutChangesEnabled, t.Disabled, now,
	)
	if err != nil {
		return fmt.Errorf("docsync/postgres: update type: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %q", docsync.ErrTypeNotFound, t.Name)
	}
	t.UpdatedAt = now
	return nil
}

// ListTypes returns all types ordered by name.
func (s *Store) ListTypes(ctx context.Context) ([]*syncjob.Type, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+typeColumns+` FROM docsync_sync_job_types ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("docsync/postgres: list types: %w", err)
	}
	defer rows.Close()

	var out []*syncjob.Type
	for rows.Next() {
		t, scanErr := scanType(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("docsync/postgres: scan type row: %w", scanErr)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("docsync/postgres: iterate type rows: %w", err)
	}
	return out, nil
}

func scanType(row pgx.Row) (*syncjob.Type, error) {
	var (
		t       syncjob.Type
		backoff string
	)
	err := row.Scan(
		&t.Name, &t.SourceType, &t.TargetType, &t.ControllerRef, &t.Queue,
		&t.TimeoutSeconds, &t.RetryDelaySeconds, &t.MaxRetries, &backoff, &t.VerboseLogging,
		&t.InsertEnabled, &t.UpdateEnabled, &t.DeleteEnabled, &t.UpdateWithoutChangesEnabled,
		&t.Disabled, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.Backoff = syncjob.BackoffPolicy(backoff)
	return &t, nil
}
