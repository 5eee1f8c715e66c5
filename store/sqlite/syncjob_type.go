package sqlite

import (
	"context"
	"fmt"
	"time"

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
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO docsync_sync_job_types (`+typeColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.Name, t.SourceType, t.TargetType, t.ControllerRef, t.Queue,
		t.TimeoutSeconds, t.RetryDelaySeconds, t.MaxRetries, string(t.Backoff), t.VerboseLogging,
		t.InsertEnabled, t.UpdateEnabled, t.DeleteEnabled, t.UpdateWithoutChangesEnabled,
		t.Disabled, nanos(t.CreatedAt), nanos(t.UpdatedAt),
	)
	if err != nil {
		if isDuplicateKey(err) {
			return fmt.Errorf("%w: %q", docsync.ErrTypeAlreadyExists, t.Name)
		}
		return fmt.Errorf("docsync/sqlite: create type: %w", err)
	}
	return nil
}

// GetType retrieves a type by name.
func (s *Store) GetType(ctx context.Context, name string) (*syncjob.Type, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+typeColumns+` FROM docsync_sync_job_types WHERE name = ?`, name)
	t, err := scanType(row)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("%w: %q", docsync.ErrTypeNotFound, name)
		}
		return nil, fmt.Errorf("docsync/sqlite: get type: %w", err)
	}
	return t, nil
}

// UpdateType replaces an existing type.
func (s *Store) UpdateType(ctx context.Context, t *syncjob.Type) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE docsync_sync_job_types SET
			source_document_type = ?, target_document_type = ?, controller = ?,
			queue = ?, timeout_seconds = ?, retry_delay_seconds = ?,
			max_retries = ?, backoff = ?, verbose_logging = ?,
			insert_enabled = ?, update_enabled = ?, delete_enabled = ?,
			update_without_changes_enabled = ?, disabled = ?, updated_at = ?
		WHERE name = ?`,
		t.SourceType, t.TargetType, t.ControllerRef,
		t.Queue, t.TimeoutSeconds, t.RetryDelaySeconds,
		t.MaxRetries, string(t.Backoff), t.VerboseLogging,
		t.InsertEnabled, t.UpdateEnabled, t.DeleteEnabled,
		t.UpdateWithoutChangesEnabled, t.Disabled, nanos(now),
		t.Name,
	)
	if err != nil {
		return fmt.Errorf("docsync/sqlite: update type: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %q", docsync.ErrTypeNotFound, t.Name)
	}
	t.UpdatedAt = now
	return nil
}

// ListTypes returns all types ordered by name.
func (s *Store) ListTypes(ctx context.Context) ([]*syncjob.Type, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+typeColumns+` FROM docsync_sync_job_types ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("docsync/sqlite: list types: %w", err)
	}
	defer rows.Close()

	var out []*syncjob.Type
	for rows.Next() {
		t, scanErr := scanType(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("docsync/sqlite: scan type row: %w", scanErr)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("docsync/sqlite: iterate type rows: %w", err)
	}
	return out, nil
}

func scanType(row scanner) (*syncjob.Type, error) {
	var (
		t                syncjob.Type
		backoff          string
		created, updated int64
	)
	err := row.Scan(
		&t.Name, &t.SourceType, &t.TargetType, &t.ControllerRef, &t.Queue,
		&t.TimeoutSeconds, &t.RetryDelaySeconds, &t.MaxRetries, &backoff, &t.VerboseLogging,
		&t.InsertEnabled, &t.UpdateEnabled, &t.DeleteEnabled, &t.UpdateWithoutChangesEnabled,
		&t.Disabled, &created, &updated,
	)
	if err != nil {
		return nil, err
	}
	t.Backoff = syncjob.BackoffPolicy(backoff)
	t.CreatedAt = fromNanos(created)
	t.UpdatedAt = fromNanos(updated)
	return &t, nil
}
