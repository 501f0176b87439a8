package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

const schemaVersion = 1

// schemaStatements are executed in order to create the database schema.
// All use IF NOT EXISTS for idempotent re-application. Timestamps are stored
// as integer Unix nanoseconds so recency comparisons are exact.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS turns (
		conversation_id TEXT    NOT NULL,
		seq             INTEGER NOT NULL,
		id              TEXT    NOT NULL,
		role            TEXT    NOT NULL,
		content         TEXT    NOT NULL DEFAULT '',
		model           TEXT    NOT NULL DEFAULT '',
		token_count     INTEGER NOT NULL DEFAULT 0,
		importance      REAL,
		created_at      INTEGER NOT NULL,
		PRIMARY KEY (conversation_id, seq)
	)`,

	`CREATE UNIQUE INDEX IF NOT EXISTS idx_turns_id ON turns(conversation_id, id)`,

	`CREATE TABLE IF NOT EXISTS pins (
		id              TEXT PRIMARY KEY,
		conversation_id TEXT    NOT NULL,
		content         TEXT    NOT NULL,
		source_turn_id  TEXT    NOT NULL DEFAULT '',
		importance      REAL    NOT NULL,
		kind            TEXT    NOT NULL DEFAULT 'manual',
		created_at      INTEGER NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_pins_conversation ON pins(conversation_id, importance DESC, created_at DESC)`,

	`CREATE TABLE IF NOT EXISTS summaries (
		id              TEXT PRIMARY KEY,
		conversation_id TEXT    NOT NULL,
		content         TEXT    NOT NULL,
		turn_count      INTEGER NOT NULL,
		first_turn_id   TEXT    NOT NULL,
		last_turn_id    TEXT    NOT NULL,
		last_turn_at    INTEGER NOT NULL,
		importance      REAL    NOT NULL,
		created_at      INTEGER NOT NULL,
		UNIQUE (conversation_id, first_turn_id)
	)`,

	`CREATE INDEX IF NOT EXISTS idx_summaries_conversation ON summaries(conversation_id, created_at DESC)`,
}

// migrate creates or updates the database schema to the latest version.
// All DDL uses IF NOT EXISTS, making migration idempotent.
func migrate(db *sql.DB) error {
	ctx := context.Background()

	if _, err := db.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY)"); err != nil {
		return fmt.Errorf("sqlite: create schema_version: %w", err)
	}

	var current int
	if err := db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&current); err != nil {
		return fmt.Errorf("sqlite: read schema version: %w", err)
	}

	if current >= schemaVersion {
		return nil
	}

	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlite: migrate: %w\nstatement: %s", err, stmt)
		}
	}

	if _, err := db.ExecContext(ctx, "INSERT OR REPLACE INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("sqlite: record schema version: %w", err)
	}

	return nil
}
