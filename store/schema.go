package store

import (
	"context"
	"database/sql"
	"fmt"
)

// SchemaVersion is the current schema version.
const SchemaVersion = 1

// schemaV1 is the initial schema for the run store.
const schemaV1 = `
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER NOT NULL,
    applied_at TEXT NOT NULL
);

-- One row per simulation run
CREATE TABLE IF NOT EXISTS runs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    label TEXT NOT NULL,
    tbr REAL,
    startup_inventory REAL,
    duration REAL NOT NULL,
    steps INTEGER NOT NULL,
    stepper TEXT NOT NULL,
    created_at TEXT NOT NULL
);

-- Per-box summary of a run, in network order
CREATE TABLE IF NOT EXISTS boxes (
    run_id INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    box_index INTEGER NOT NULL,
    name TEXT NOT NULL,
    initial REAL,       -- inventory columns are NULL for NaN
    final REAL,
    min REAL,
    min_t REAL NOT NULL,
    max REAL,
    mean REAL,
    exhausted_at REAL,  -- NULL if the box never ran out
    PRIMARY KEY (run_id, box_index)
);
CREATE INDEX IF NOT EXISTS idx_boxes_name ON boxes(run_id, name);

-- Full trajectories
CREATE TABLE IF NOT EXISTS samples (
    run_id INTEGER NOT NULL,
    box_index INTEGER NOT NULL,
    step INTEGER NOT NULL,
    t REAL NOT NULL,
    inventory REAL,     -- NULL for NaN
    PRIMARY KEY (run_id, box_index, step),
    FOREIGN KEY (run_id, box_index) REFERENCES boxes(run_id, box_index) ON DELETE CASCADE
);
`

// InitSchema creates the schema if the database is new.
func InitSchema(ctx context.Context, db *sql.DB) error {
	version, err := getSchemaVersion(ctx, db)
	if err != nil {
		// Schema version table doesn't exist yet, create fresh schema
		if err := createSchema(ctx, db); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
		return nil
	}
	if version > SchemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported version %d", version, SchemaVersion)
	}
	return nil
}

// getSchemaVersion returns the current schema version from the database.
// Returns an error if the schema_version table doesn't exist.
func getSchemaVersion(ctx context.Context, db *sql.DB) (int, error) {
	var version sql.NullInt64
	if err := db.QueryRowContext(ctx, `SELECT MAX(version) FROM schema_version`).Scan(&version); err != nil {
		return 0, err
	}
	if !version.Valid {
		return 0, fmt.Errorf("schema_version is empty")
	}
	return int(version.Int64), nil
}

func createSchema(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, schemaV1); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_version (version, applied_at) VALUES (?, datetime('now'))`,
		SchemaVersion); err != nil {
		return fmt.Errorf("failed to record schema version: %w", err)
	}

	return tx.Commit()
}
