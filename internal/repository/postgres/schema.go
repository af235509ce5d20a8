package postgres

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

// Schema creates the tables used by PostgresStudyRepository
const Schema = `
CREATE TABLE IF NOT EXISTS studies (
	id               TEXT PRIMARY KEY,
	source           TEXT NOT NULL,
	synthetic        BOOLEAN NOT NULL,
	fallback_reason  TEXT,
	duration_seconds DOUBLE PRECISION NOT NULL,
	fingerprint      TEXT NOT NULL,
	created_at       TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS summaries (
	id          TEXT PRIMARY KEY,
	session_id  TEXT NOT NULL,
	fingerprint TEXT NOT NULL,
	ahi         DOUBLE PRECISION NOT NULL,
	rdi         DOUBLE PRECISION NOT NULL,
	severity    TEXT NOT NULL,
	payload     JSONB NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL,
	UNIQUE (session_id, fingerprint)
);

CREATE INDEX IF NOT EXISTS summaries_fingerprint_idx ON summaries (fingerprint, created_at DESC);

CREATE TABLE IF NOT EXISTS reports (
	id          TEXT PRIMARY KEY,
	session_id  TEXT NOT NULL,
	format      TEXT NOT NULL,
	path        TEXT NOT NULL,
	archive_key TEXT,
	size_bytes  BIGINT NOT NULL,
	pages       INTEGER NOT NULL,
	ahi         DOUBLE PRECISION NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL
);
`

// Open connects to PostgreSQL and verifies the connection
func Open(ctx context.Context, url string) (*sql.DB, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// Migrate applies Schema; it is safe to run repeatedly
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
