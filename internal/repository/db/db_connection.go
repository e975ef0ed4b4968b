package db

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// InitDB opens/creates a SQLite DB file and ensures tables exist.
func InitDB(path string) (*sql.DB, error) {
	database, err := sql.Open(sqliteDriverName, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite at %q: %w", path, err)
	}

	// Conservative pool settings for SQLite
	database.SetMaxOpenConns(1) // SQLite is not great with many writers
	database.SetMaxIdleConns(1)

	// Pragmas to improve reliability
	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA foreign_keys = ON;",
		"PRAGMA busy_timeout = 5000;",
	} {
		if _, err := database.Exec(pragma); err != nil {
			_ = database.Close()
			return nil, fmt.Errorf("set %s: %w", pragma, err)
		}
	}

	if err := ensureSchema(database); err != nil {
		_ = database.Close()
		return nil, err
	}

	// Fail fast if the DB cannot be reached
	if err := database.Ping(); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return database, nil
}

const sqliteDriverName = "sqlite"

const schemaOeeHistory = `
CREATE TABLE IF NOT EXISTS oee_history (
    id TEXT PRIMARY KEY,
    line_id TEXT NOT NULL,
    tier TEXT NOT NULL,
    window_start TIMESTAMP NOT NULL,
    window_end TIMESTAMP NOT NULL,
    availability REAL NOT NULL,
    performance REAL NOT NULL,
    quality REAL NOT NULL,
    oee REAL NOT NULL,
    planned_s REAL NOT NULL,
    run_s REAL NOT NULL,
    good_count INTEGER NOT NULL,
    total_count INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_oee_history_line ON oee_history (line_id, tier, window_start);
`

const schemaAndonHistory = `
CREATE TABLE IF NOT EXISTS andon_history (
    id TEXT PRIMARY KEY,
    equipment_id TEXT NOT NULL,
    line_id TEXT NOT NULL,
    severity TEXT NOT NULL,
    state TEXT NOT NULL,
    description TEXT,
    opened_at TIMESTAMP NOT NULL,
    acknowledged_at TIMESTAMP,
    acknowledged_by TEXT,
    resolved_at TIMESTAMP,
    resolved_by TEXT,
    tier INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_andon_history_line ON andon_history (line_id, opened_at);
`

const schemaDowntimeEvents = `
CREATE TABLE IF NOT EXISTS downtime_events (
    id TEXT PRIMARY KEY,
    equipment_id TEXT NOT NULL,
    line_id TEXT NOT NULL,
    severity TEXT NOT NULL,
    started_at TIMESTAMP NOT NULL,
    ended_at TIMESTAMP NOT NULL,
    duration_s REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_downtime_line ON downtime_events (line_id, started_at);
`

func ensureSchema(database *sql.DB) error {
	tx, err := database.Begin()
	if err != nil {
		return fmt.Errorf("begin schema transaction: %w", err)
	}
	defer func() {
		// In case of panic, rollback to avoid leaving an open transaction
		_ = tx.Rollback()
	}()

	for i, stmt := range []string{
		schemaOeeHistory,
		schemaAndonHistory,
		schemaDowntimeEvents,
	} {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("apply schema statement %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema transaction: %w", err)
	}
	return nil
}
