// Package postgres opens the application database and applies the schema.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Schema is idempotent; Migrate applies it on startup and test setup. The
// partial unique index is the storage-level guarantee behind the bureau-role
// invariant.
const Schema = `
CREATE TABLE IF NOT EXISTS members (
	id BIGSERIAL PRIMARY KEY,
	email TEXT NOT NULL,
	first_name TEXT NOT NULL,
	last_name TEXT NOT NULL,
	phone TEXT NOT NULL DEFAULT '',
	discord_handle TEXT NOT NULL DEFAULT '',
	telegram_handle TEXT NOT NULL DEFAULT '',
	student_id TEXT NOT NULL DEFAULT '',
	enrollment_number TEXT NOT NULL DEFAULT '',
	track TEXT NOT NULL DEFAULT 'Other',
	status TEXT NOT NULL DEFAULT 'pending',
	notes TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	approved_at TIMESTAMPTZ,
	expires_at TIMESTAMPTZ
);

CREATE UNIQUE INDEX IF NOT EXISTS members_email_key ON members (email);

CREATE UNIQUE INDEX IF NOT EXISTS members_unique_bureau_role ON members (status)
	WHERE status IN ('president', 'vice_president', 'secretary', 'treasurer');

CREATE TABLE IF NOT EXISTS member_history (
	id UUID PRIMARY KEY,
	member_id BIGINT NOT NULL REFERENCES members (id) ON DELETE CASCADE,
	prior_status TEXT,
	new_status TEXT NOT NULL,
	reason TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS member_history_member_id_idx ON member_history (member_id);

CREATE TABLE IF NOT EXISTS settings (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// Open connects via the pgx stdlib driver and verifies the connection.
func Open(ctx context.Context, databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// Migrate applies the schema.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
