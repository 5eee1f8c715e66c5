package postgres

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

func isNoRows(err error) bool { return errors.Is(err, pgx.ErrNoRows) }

func isDuplicateKey(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// jsonb encodes a context or snapshot map. A nil map is stored as NULL so
// jobs without verbose logging carry no snapshot payload.
func jsonb(v map[string]any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("docsync/postgres: jsonb: %w", err)
	}
	return b, nil
}

func unjsonb(b []byte, dst any) error {
	if len(b) == 0 {
		return nil
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return fmt.Errorf("docsync/postgres: jsonb: %w", err)
	}
	return nil
}
