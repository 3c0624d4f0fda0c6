// Package db provides PostgreSQL storage for accepted content.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DefaultQueryTimeout bounds each database call.
const DefaultQueryTimeout = 5 * time.Second

// DB wraps a PostgreSQL connection pool
type DB struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

// Connect establishes a connection pool to the database
func Connect(ctx context.Context, databaseURL string) (*DB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, DefaultQueryTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{pool: pool, timeout: DefaultQueryTimeout}, nil
}

// Close closes the connection pool
func (db *DB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}

// Ping checks that the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()
	return db.pool.Ping(ctx)
}

// schemaStatements create the content table. The column names match tables
// created by earlier deployments, so an existing table is reused and only gains
// the id column.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS content (
		id               UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		topic            TEXT NOT NULL,
		contenttype      TEXT NOT NULL,
		wordlength       INTEGER NOT NULL,
		prompt           TEXT NOT NULL,
		content          TEXT NOT NULL,
		plagiarism_score DOUBLE PRECISION NOT NULL,
		generatedat      TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`ALTER TABLE content ADD COLUMN IF NOT EXISTS id UUID DEFAULT gen_random_uuid()`,
	`CREATE INDEX IF NOT EXISTS content_generatedat_idx ON content (generatedat DESC)`,
}

// EnsureSchema creates the content table and index if they do not exist.
func (db *DB) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := db.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}

func (db *DB) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := db.timeout
	if timeout <= 0 {
		timeout = DefaultQueryTimeout
	}
	return context.WithTimeout(ctx, timeout)
}
