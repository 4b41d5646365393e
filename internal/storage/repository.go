package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"budgetbook/internal/kv"

	_ "modernc.org/sqlite"
)

// dialect holds the statements that differ between SQL engines.
type dialect struct {
	get    string
	set    string
	getRev string
}

var sqliteDialect = dialect{
	get: `SELECT value FROM kv_entries WHERE key = ?`,
	set: `INSERT INTO kv_entries (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, revision = kv_entries.revision + 1, updated_at = CURRENT_TIMESTAMP`,
	getRev: `SELECT revision FROM kv_entries WHERE key = ?`,
}

// sqlStore is the database/sql implementation shared by the SQL backends.
type sqlStore struct {
	db      *sql.DB
	dialect dialect
	name    string
}

func (s *sqlStore) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, s.dialect.get, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %s from %s: %w", key, s.name, err)
	}
	return value, true, nil
}

func (s *sqlStore) Set(ctx context.Context, key, value string) error {
	if _, err := s.db.ExecContext(ctx, s.dialect.set, key, value); err != nil {
		return fmt.Errorf("set %s in %s: %w", key, s.name, err)
	}
	slog.DebugContext(ctx, "Snapshot saved", "backend", s.name, "key", key, "bytes", len(value))
	return nil
}

// Revision returns how many times key has been written, 0 if never.
func (s *sqlStore) Revision(ctx context.Context, key string) (int64, error) {
	var rev int64
	err := s.db.QueryRowContext(ctx, s.dialect.getRev, key).Scan(&rev)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get revision of %s: %w", key, err)
	}
	return rev, nil
}

func (s *sqlStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SQLiteStore persists ledger snapshots in a local SQLite file.
type SQLiteStore struct {
	sqlStore
}

var (
	_ kv.Store   = (*SQLiteStore)(nil)
	_ kv.Reviser = (*SQLiteStore)(nil)
)

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// Run migrations
	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{sqlStore{db: db, dialect: sqliteDialect, name: "sqlite"}}, nil
}
