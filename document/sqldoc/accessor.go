// Package sqldoc provides a document.Accessor that stores records as JSON
// rows in a single SQL table. It works with any database/sql driver; the
// CLI wires it to modernc.org/sqlite or pgx's stdlib driver.
//
// Optimistic concurrency uses the version column: updates and deletes only
// apply when the stored version equals the record's version.
package sqldoc

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/xraph/docsync/document"
)

var _ document.Accessor = (*Accessor)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS docsync_documents (
	doc_type TEXT NOT NULL,
	name     TEXT NOT NULL,
	version  BIGINT NOT NULL,
	fields   TEXT NOT NULL,
	PRIMARY KEY (doc_type, name)
)`

// Accessor is a database/sql backed document.Accessor.
type Accessor struct {
	db     *sql.DB
	dollar bool
}

// Option configures the Accessor.
type Option func(*Accessor)

// WithDollarPlaceholders switches bind parameters from "?" to "$n", as
// required by PostgreSQL drivers.
func WithDollarPlaceholders() Option {
	return func(a *Accessor) { a.dollar = true }
}

// New returns an Accessor over db. The caller owns the db lifecycle.
func New(db *sql.DB, opts ...Option) *Accessor {
	a := &Accessor{db: db}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Migrate creates the documents table if it does not exist.
func (a *Accessor) Migrate(ctx context.Context) error {
	if _, err := a.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("document/sqldoc: migrate: %w", err)
	}
	return nil
}

// rebind rewrites "?" placeholders for the configured dialect.
func (a *Accessor) rebind(query string) string {
	if !a.dollar {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Load returns the stored record or document.ErrNotFound.
func (a *Accessor) Load(ctx context.Context, docType, name string) (*document.Record, error) {
	row := a.db.QueryRowContext(ctx, a.rebind(
		`SELECT version, fields FROM docsync_documents WHERE doc_type = ? AND name = ?`),
		docType, name,
	)
	var (
		version int64
		raw     string
	)
	if err := row.Scan(&version, &raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s %q", document.ErrNotFound, docType, name)
		}
		return nil, fmt.Errorf("document/sqldoc: load: %w", err)
	}

	rec := &document.Record{Type: docType, Name: name, Version: version}
	if err := json.Unmarshal([]byte(raw), &rec.Fields); err != nil {
		return nil, fmt.Errorf("document/sqldoc: decode fields of %s %q: %w", docType, name, err)
	}
	if rec.Fields == nil {
		rec.Fields = make(map[string]any)
	}
	return rec, nil
}

// Save applies op using the version column for optimistic concurrency.
func (a *Accessor) Save(ctx context.Context, rec *document.Record, op document.Operation) (*document.Record, error) {
	if rec == nil {
		return nil, fmt.Errorf("document/sqldoc: save nil record")
	}
	out := rec.Clone()

	raw, err := json.Marshal(out.Fields)
	if err != nil {
		return nil, fmt.Errorf("document/sqldoc: encode fields: %w", err)
	}

	switch op {
	case document.OpInsert:
		if out.Name == "" {
			out.Name = uuid.NewString()
		}
		if _, exists := a.exists(ctx, out.Type, out.Name); exists {
			return nil, fmt.Errorf("%w: %s %q", document.ErrAlreadyExists, out.Type, out.Name)
		}
		out.Version = 1
		_, err = a.db.ExecContext(ctx, a.rebind(
			`INSERT INTO docsync_documents (doc_type, name, version, fields) VALUES (?, ?, ?, ?)`),
			out.Type, out.Name, out.Version, string(raw),
		)
		if err != nil {
			return nil, fmt.Errorf("document/sqldoc: insert: %w", err)
		}
		return out, nil

	case document.OpUpdate:
		res, err := a.db.ExecContext(ctx, a.rebind(
			`UPDATE docsync_documents SET fields = ?, version = version + 1
			 WHERE doc_type = ? AND name = ? AND version = ?`),
			string(raw), out.Type, out.Name, out.Version,
		)
		if err != nil {
			return nil, fmt.Errorf("document/sqldoc: update: %w", err)
		}
		if err := a.checkApplied(ctx, res, out); err != nil {
			return nil, err
		}
		out.Version++
		return out, nil

	case document.OpDelete:
		res, err := a.db.ExecContext(ctx, a.rebind(
			`DELETE FROM docsync_documents WHERE doc_type = ? AND name = ? AND version = ?`),
			out.Type, out.Name, out.Version,
		)
		if err != nil {
			return nil, fmt.Errorf("document/sqldoc: delete: %w", err)
		}
		if err := a.checkApplied(ctx, res, out); err != nil {
			return nil, err
		}
		return out, nil

	default:
		return nil, fmt.Errorf("document/sqldoc: unknown operation %q", op)
	}
}

// Diff compares field maps with document.DiffFields.
func (a *Accessor) Diff(before, after *document.Record) document.Diff {
	return document.DiffFields(before, after)
}

func (a *Accessor) exists(ctx context.Context, docType, name string) (int64, bool) {
	var version int64
	err := a.db.QueryRowContext(ctx, a.rebind(
		`SELECT version FROM docsync_documents WHERE doc_type = ? AND name = ?`),
		docType, name,
	).Scan(&version)
	return version, err == nil
}

// checkApplied turns a zero-row write into ErrNotFound or ErrVersionConflict.
func (a *Accessor) checkApplied(ctx context.Context, res sql.Result, rec *document.Record) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("document/sqldoc: rows affected: %w", err)
	}
	if n > 0 {
		return nil
	}
	stored, ok := a.exists(ctx, rec.Type, rec.Name)
	if !ok {
		return fmt.Errorf("%w: %s %q", document.ErrNotFound, rec.Type, rec.Name)
	}
	return fmt.Errorf("%w: %s %q has version %d, saving %d",
		document.ErrVersionConflict, rec.Type, rec.Name, stored, rec.Version)
}
