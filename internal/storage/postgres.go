package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"budgetbook/internal/kv"

	_ "github.com/lib/pq"
)

var postgresDialect = dialect{
	get: `SELECT value FROM kv_entries WHERE key = $1`,
	set: `INSERT INTO kv_entries (key, value) VALUES ($1, $2)
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, revision = kv_entries.revision + 1, updated_at = NOW()`,
	getRev: `SELECT revision FROM kv_entries WHERE key = $1`,
}

// PostgresStore persists ledger snapshots in a PostgreSQL table.
type PostgresStore struct {
	sqlStore
}

var (
	_ kv.Store   = (*PostgresStore)(nil)
	_ kv.Reviser = (*PostgresStore)(nil)
)

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunPostgresMigrations(databaseURL); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return &PostgresStore{sqlStore{db: db, dialect: postgresDialect, name: "postgres"}}, nil
}
