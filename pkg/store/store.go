// Package store persists template sources in a SQL database and serves
// them to the rendering engine as a load provider.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"
)

// ErrNotFound is returned when a requested template name has no row.
var ErrNotFound = errors.New("template not found")

// SetupSchema initializes the templates table in the provided database.
// It is idempotent and safe to call on an already-initialized database.
func SetupSchema(db *sql.DB) error {
	const schemaTemplates = `
CREATE TABLE IF NOT EXISTS templates (
    name TEXT PRIMARY KEY,
    body TEXT NOT NULL,
    updated_at INTEGER NOT NULL
);
`

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}

	// Commit first on success; the deferred rollback then does nothing.
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	if _, err = tx.Exec(schemaTemplates); err != nil {
		return fmt.Errorf("could not create templates schema: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("could not commit transaction: %w", err)
	}

	return nil
}

// Store provides access to template sources in the database. It holds the
// connection and pre-compiled SQL statements. All methods are safe for
// concurrent use.
type Store struct {
	db         *sql.DB
	stmtGet    *sql.Stmt
	stmtPut    *sql.Stmt
	stmtList   *sql.Stmt
	stmtDelete *sql.Stmt
	logger     *slog.Logger
}

// New creates a Store over db, pre-compiling all necessary SQL statements.
func New(db *sql.DB) (*Store, error) {
	stmtGet, err := db.Prepare(`SELECT body FROM templates WHERE name = ?;`)
	if err != nil {
		return nil, err
	}

	stmtPut, err := db.Prepare(`INSERT INTO templates (name, body, updated_at) VALUES (?, ?, ?) ON CONFLICT(name) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at;`)
	if err != nil {
		return nil, err
	}

	stmtList, err := db.Prepare(`SELECT name FROM templates ORDER BY name;`)
	if err != nil {
		return nil, err
	}

	stmtDelete, err := db.Prepare(`DELETE FROM templates WHERE name = ?;`)
	if err != nil {
		return nil, err
	}

	return &Store{
		db:         db,
		stmtGet:    stmtGet,
		stmtPut:    stmtPut,
		stmtList:   stmtList,
		stmtDelete: stmtDelete,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, nil
}

// Close releases all prepared SQL statements held by the Store.
func (s *Store) Close() {
	_ = s.stmtGet.Close()
	_ = s.stmtPut.Close()
	_ = s.stmtList.Close()
	_ = s.stmtDelete.Close()
}

// SetLogger sets the logger for the Store. By default, all logs are discarded.
func (s *Store) SetLogger(logger *slog.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// Get returns the body of the named template, or ErrNotFound.
func (s *Store) Get(ctx context.Context, name string) (string, error) {
	var body string
	err := s.stmtGet.QueryRowContext(ctx, name).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return "", err
	}
	return body, nil
}

// Put inserts or overwrites the named template body.
func (s *Store) Put(ctx context.Context, name, body string) error {
	_, err := s.stmtPut.ExecContext(ctx, name, body, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to store template %q: %w", name, err)
	}
	s.logger.InfoContext(ctx, "Template stored",
		slog.String("template", name),
		slog.Int("bytes", len(body)),
	)
	return nil
}

// Delete removes the named template. Deleting a missing name is a no-op.
func (s *Store) Delete(ctx context.Context, name string) error {
	_, err := s.stmtDelete.ExecContext(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to delete template %q: %w", name, err)
	}
	s.logger.InfoContext(ctx, "Template removed", slog.String("template", name))
	return nil
}

// List returns the names of all stored templates in name order.
func (s *Store) List(ctx context.Context) ([]string, error) {
	rows, err := s.stmtList.QueryContext(ctx)
	if err != nil {
		return nil, err
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	var names []string
	for rows.Next() {
		var name string
		if err = rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return names, nil
}

// FetchOne satisfies the engine's load provider interface: it returns the
// raw text of one logical template name.
func (s *Store) FetchOne(ctx context.Context, name string) (string, error) {
	return s.Get(ctx, name)
}
