// Package testlog persists validation runs.
package testlog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-sqlite3"
)

// Entry is one logged validation run. ID is assigned by the store.
type Entry struct {
	ID          int64     `json:"id"`
	SessionID   string    `json:"sessionId"`
	Description string    `json:"description"`
	Filters     string    `json:"filters"`
	Processing  string    `json:"processing"`
	Expected    string    `json:"expected"`
	Actual      string    `json:"actual"`
	Status      string    `json:"status"`
	Remarks     string    `json:"remarks"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Store records entries and lists the most recent ones.
type Store interface {
	Record(ctx context.Context, e Entry) (int64, error)
	List(ctx context.Context, limit int) ([]Entry, error)
	Close() error
}

// ConflictError means the log was in use by another writer. Nothing was
// written; the caller may try again.
type ConflictError struct {
	Err error
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("test log is busy, nothing was written: %v", e.Err)
}

func (e *ConflictError) Unwrap() error { return e.Err }

const schema = `
CREATE TABLE IF NOT EXISTS test_cases (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL,
	description TEXT NOT NULL,
	filters TEXT NOT NULL,
	processing TEXT NOT NULL,
	expected TEXT NOT NULL,
	actual TEXT NOT NULL,
	status TEXT NOT NULL,
	remarks TEXT NOT NULL,
	created_at DATETIME NOT NULL
);
`

// SQLiteStore is a Store backed by a SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// DefaultBusyTimeout is how long a write waits for another writer.
const DefaultBusyTimeout = 2 * time.Second

// Open opens or creates the log database at path.
func Open(path string) (*SQLiteStore, error) {
	return OpenTimeout(path, DefaultBusyTimeout)
}

// OpenTimeout is Open with a custom busy timeout.
func OpenTimeout(path string, busy time.Duration) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", fmt.Sprintf("%s?_busy_timeout=%d", path, busy.Milliseconds()))
	if err != nil {
		return nil, fmt.Errorf("open log: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init log schema: %w", asConflict(err))
	}
	return &SQLiteStore{db: db}, nil
}

// Record writes e in a single transaction and returns its new ID.
func (s *SQLiteStore) Record(ctx context.Context, e Entry) (int64, error) {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", asConflict(err))
	}
	res, err := tx.ExecContext(ctx, `INSERT INTO test_cases
		(session_id, description, filters, processing, expected, actual, status, remarks, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.SessionID, e.Description, e.Filters, e.Processing, e.Expected, e.Actual, e.Status, e.Remarks, e.CreatedAt)
	if err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("insert test case: %w", asConflict(err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("insert test case: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", asConflict(err))
	}
	return id, nil
}

// List returns up to limit entries, newest first. A limit of 0 or less
// returns everything.
func (s *SQLiteStore) List(ctx context.Context, limit int) ([]Entry, error) {
	q := `SELECT id, session_id, description, filters, processing, expected, actual, status, remarks, created_at
		FROM test_cases ORDER BY id DESC`
	args := []any{}
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list test cases: %w", asConflict(err))
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Description, &e.Filters, &e.Processing,
			&e.Expected, &e.Actual, &e.Status, &e.Remarks, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

// asConflict turns SQLite busy/locked failures into a ConflictError.
func asConflict(err error) error {
	var se sqlite3.Error
	if errors.As(err, &se) && (se.Code == sqlite3.ErrBusy || se.Code == sqlite3.ErrLocked) {
		return &ConflictError{Err: err}
	}
	return err
}
