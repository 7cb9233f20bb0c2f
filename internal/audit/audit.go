// Package audit records tool invocations in a local sqlite database.
// Conversation history never touches disk; only the fact that a lookup
// happened, its parameters, and its outcome are kept.
package audit

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Entry is one recorded tool invocation.
type Entry struct {
	ID         int64
	SessionID  string
	Tool       string
	NameFilter string
	Limit      sql.NullInt64
	ResultRows int
	ErrorKind  string
	CreatedAt  time.Time
}

// Log appends invocation entries. The nop implementation is used when
// auditing is disabled.
type Log interface {
	Record(ctx context.Context, e Entry) error
	Recent(ctx context.Context, limit int) ([]Entry, error)
	Close() error
}

type SQLiteLog struct {
	path string

	mu sync.Mutex
	db *sql.DB
}

func NewSQLiteLog(path string) *SQLiteLog {
	return &SQLiteLog{path: path}
}

func (l *SQLiteLog) Init(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", l.path)
	if err != nil {
		return err
	}

	if _, err := db.ExecContext(ctx, `PRAGMA journal_mode=WAL;`); err != nil {
		_ = db.Close()
		return err
	}

	schema := `
CREATE TABLE IF NOT EXISTS invocations (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  session_id TEXT NOT NULL DEFAULT '',
  tool TEXT NOT NULL,
  name_filter TEXT NOT NULL DEFAULT '',
  row_limit INTEGER,
  result_rows INTEGER NOT NULL DEFAULT 0,
  error_kind TEXT NOT NULL DEFAULT '',
  created_unix INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_invocations_created ON invocations(created_unix);
CREATE INDEX IF NOT EXISTS idx_invocations_session ON invocations(session_id);
`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return err
	}

	l.db = db
	return nil
}

func (l *SQLiteLog) Record(ctx context.Context, e Entry) error {
	db, err := l.ensureDB(ctx)
	if err != nil {
		return err
	}
	created := e.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err = db.ExecContext(
		ctx,
		`INSERT INTO invocations(session_id, tool, name_filter, row_limit, result_rows, error_kind, created_unix)
		 VALUES(?, ?, ?, ?, ?, ?, ?)`,
		e.SessionID,
		e.Tool,
		e.NameFilter,
		e.Limit,
		e.ResultRows,
		e.ErrorKind,
		created.Unix(),
	)
	return err
}

func (l *SQLiteLog) Recent(ctx context.Context, limit int) ([]Entry, error) {
	db, err := l.ensureDB(ctx)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := db.QueryContext(
		ctx,
		`SELECT id, session_id, tool, name_filter, row_limit, result_rows, error_kind, created_unix
		 FROM invocations ORDER BY id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	entries := make([]Entry, 0, limit)
	for rows.Next() {
		var e Entry
		var createdUnix int64
		if err := rows.Scan(
			&e.ID,
			&e.SessionID,
			&e.Tool,
			&e.NameFilter,
			&e.Limit,
			&e.ResultRows,
			&e.ErrorKind,
			&createdUnix,
		); err != nil {
			return nil, err
		}
		e.CreatedAt = time.Unix(createdUnix, 0)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (l *SQLiteLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.db == nil {
		return nil
	}
	err := l.db.Close()
	l.db = nil
	return err
}

func (l *SQLiteLog) ensureDB(ctx context.Context) (*sql.DB, error) {
	if err := l.Init(ctx); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.db == nil {
		return nil, errors.New("sqlite db not initialized")
	}
	return l.db, nil
}

// NopLog discards all entries.
type NopLog struct{}

func (NopLog) Record(context.Context, Entry) error          { return nil }
func (NopLog) Recent(context.Context, int) ([]Entry, error) { return nil, nil }
func (NopLog) Close() error                                 { return nil }
