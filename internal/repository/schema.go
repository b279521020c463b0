package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// The gateway owns two small tables and manages them itself; there is no
// separate migration tooling for a cache this size.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS console_sessions (
		id TEXT PRIMARY KEY,
		access_token TEXT NOT NULL DEFAULT '',
		refresh_token TEXT NOT NULL DEFAULT '',
		user_id TEXT NOT NULL DEFAULT '',
		user_email TEXT NOT NULL DEFAULT '',
		user_full_name TEXT NOT NULL DEFAULT '',
		user_role TEXT NOT NULL DEFAULT '',
		authenticated BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS schedule_snapshots (
		id TEXT PRIMARY KEY,
		payload JSONB NOT NULL,
		active_id TEXT NOT NULL DEFAULT '',
		updated_at TIMESTAMPTZ NOT NULL
	)`,
}

// EnsureSchema creates the gateway's tables when missing.
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
