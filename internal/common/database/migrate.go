// internal/common/database/migrate.go
package database

import (
	"context"
	"fmt"
)

// migrations are applied in order on startup. Statements are idempotent so a
// fleet of replicas can all run them safely.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS subscriptions (
		id                      BIGSERIAL PRIMARY KEY,
		email                   TEXT NOT NULL UNIQUE,
		unsubscribe_token       TEXT NOT NULL UNIQUE,
		verification_token      TEXT UNIQUE,
		verification_expires_at TIMESTAMPTZ,
		consumed_token          TEXT,
		verified_at             TIMESTAMPTZ,
		is_active               BOOLEAN NOT NULL DEFAULT TRUE,
		created_at              TIMESTAMPTZ NOT NULL,
		updated_at              TIMESTAMPTZ NOT NULL,
		CONSTRAINT verification_pair CHECK ((verification_token IS NULL) = (verification_expires_at IS NULL))
	)`,
	`CREATE TABLE IF NOT EXISTS subscription_preferences (
		subscription_id BIGINT PRIMARY KEY REFERENCES subscriptions(id) ON DELETE CASCADE,
		frequency       TEXT NOT NULL,
		weekly_day      TEXT,
		monthly_timing  TEXT,
		pairs           TEXT[] NOT NULL,
		timezone        TEXT NOT NULL,
		updated_at      TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS rate_limit_windows (
		identifier    TEXT NOT NULL,
		client_key    TEXT NOT NULL,
		window_start  TIMESTAMPTZ NOT NULL,
		request_count INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (identifier, client_key, window_start)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_rate_limit_windows_start ON rate_limit_windows (window_start)`,
}

// Migrate applies the schema to the connected database.
func (c *PostgresClient) Migrate(ctx context.Context) error {
	for i, stmt := range migrations {
		if _, err := c.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d failed: %w", i, err)
		}
	}
	return nil
}
