// Package querylog persists the question/answer history in SQLite.
package querylog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const schema = `
	CREATE TABLE IF NOT EXISTS query_log (
		id TEXT PRIMARY KEY,
		query TEXT NOT NULL,
		region_code TEXT NOT NULL,
		answer TEXT NOT NULL,
		error TEXT,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_query_log_created ON query_log(created_at);
`

// Entry is one logged query with its outcome.
type Entry struct {
	ID         string    `json:"id"`
	Query      string    `json:"query"`
	RegionCode string    `json:"region_code"`
	Answer     string    `json:"answer"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Store is a SQLite-backed query log.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the log database at path. A path of ":memory:"
// yields an ephemeral store.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("querylog: empty path")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("querylog: create dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("querylog: open %s: %w", path, err)
	}
	// modernc.org/sqlite serialises writes itself; one connection avoids
	// SQLITE_BUSY on concurrent inserts.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("querylog: init schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// Insert records one query outcome and returns its generated id.
func (s *Store) Insert(ctx context.Context, query, region, answer, errText string) (string, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO query_log (id, query, region_code, answer, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		id, query, region, answer, errText, time.Now().Unix())
	if err != nil {
		return "", fmt.Errorf("querylog: insert: %w", err)
	}
	return id, nil
}

// Recent returns up to limit entries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, query, region_code, answer, error, created_at
		 FROM query_log ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querylog: select: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var errText sql.NullString
		var created int64
		if err := rows.Scan(&e.ID, &e.Query, &e.RegionCode, &e.Answer, &errText, &created); err != nil {
			return nil, fmt.Errorf("querylog: scan: %w", err)
		}
		e.Error = errText.String
		e.CreatedAt = time.Unix(created, 0).UTC()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
