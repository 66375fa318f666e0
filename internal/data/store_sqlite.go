package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mednat/tandem-extras/internal/biz"

	_ "modernc.org/sqlite"
)

// SqliteStore keeps namespaces in a SQLite table.
type SqliteStore struct {
	db *sql.DB
}

// NewSqliteStore opens (or creates) the SQLite database at path.
func NewSqliteStore(path string) (*SqliteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	const schema = `CREATE TABLE IF NOT EXISTS namespaces (
		name  TEXT PRIMARY KEY,
		value BLOB NOT NULL
	)`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &SqliteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SqliteStore) Get(ctx context.Context, ns biz.Namespace) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM namespaces WHERE name = ?`, string(ns)).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return value, err
}

func (s *SqliteStore) Set(ctx context.Context, ns biz.Namespace, value []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO namespaces (name, value) VALUES (?, ?)
		 ON CONFLICT(name) DO UPDATE SET value = excluded.value`,
		string(ns), value)
	return err
}
