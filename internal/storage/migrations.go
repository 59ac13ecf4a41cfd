package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application expects.
// If the database cannot be migrated to this version, it's a fatal error.
const ExpectedSchemaVersion = 5

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

func execAll(tx *sql.Tx, queries []string) error {
	for _, query := range queries {
		if _, err := tx.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query '%s': %w", query, err)
		}
	}
	return nil
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Event log: items, categories, columns, transactions, edges, links",
		Up: func(tx *sql.Tx) error {
			return execAll(tx, []string{
				`CREATE TABLE IF NOT EXISTS items (
					id INTEGER PRIMARY KEY,
					external_id TEXT NOT NULL DEFAULT '',
					title TEXT NOT NULL DEFAULT '',
					points_at_ingest TEXT NOT NULL DEFAULT '',
					status_at_ingest TEXT NOT NULL DEFAULT ''
				)`,
				`CREATE TABLE IF NOT EXISTS categories (
					id INTEGER PRIMARY KEY,
					name TEXT NOT NULL,
					board_id TEXT NOT NULL DEFAULT ''
				)`,
				`CREATE INDEX idx_categories_name ON categories(name)`,
				`CREATE TABLE IF NOT EXISTS board_columns (
					id TEXT PRIMARY KEY,
					name TEXT NOT NULL,
					board_id TEXT NOT NULL DEFAULT ''
				)`,
				`CREATE TABLE IF NOT EXISTS transaction_events (
					seq INTEGER PRIMARY KEY AUTOINCREMENT,
					event_id TEXT UNIQUE NOT NULL,
					item_id INTEGER NOT NULL,
					attribute TEXT NOT NULL,
					new_value TEXT NOT NULL DEFAULT '',
					ts INTEGER NOT NULL
				)`,
				`CREATE INDEX idx_transaction_events_lookup ON transaction_events(item_id, attribute, ts, seq)`,
				`CREATE TABLE IF NOT EXISTS edge_events (
					seq INTEGER PRIMARY KEY AUTOINCREMENT,
					item_id INTEGER NOT NULL,
					category_id INTEGER NOT NULL,
					observed_at INTEGER NOT NULL,
					UNIQUE(item_id, category_id, observed_at)
				)`,
				`CREATE INDEX idx_edge_events_category ON edge_events(category_id, observed_at)`,
				`CREATE TABLE IF NOT EXISTS link_events (
					seq INTEGER PRIMARY KEY AUTOINCREMENT,
					parent_id INTEGER NOT NULL,
					child_id INTEGER NOT NULL,
					observed_at INTEGER NOT NULL,
					UNIQUE(parent_id, child_id, observed_at)
				)`,
				`CREATE INDEX idx_link_events_observed ON link_events(observed_at)`,
			})
		},
	},
	{
		Version:     2,
		Description: "Snapshots (task_on_date) and rebuild staging",
		Up: func(tx *sql.Tx) error {
			return execAll(tx, []string{
				`CREATE TABLE IF NOT EXISTS task_on_date (
					scope TEXT NOT NULL,
					date TEXT NOT NULL,
					item_id INTEGER NOT NULL,
					status TEXT NOT NULL DEFAULT '',
					category_id INTEGER NOT NULL,
					project TEXT NOT NULL DEFAULT '',
					column_name TEXT NOT NULL DEFAULT '',
					points INTEGER NOT NULL DEFAULT 0,
					maint_type TEXT NOT NULL DEFAULT '',
					priority TEXT NOT NULL DEFAULT '',
					PRIMARY KEY (scope, date, item_id)
				)`,
				`CREATE TABLE IF NOT EXISTS task_on_date_staging (
					run_id TEXT NOT NULL,
					scope TEXT NOT NULL,
					date TEXT NOT NULL,
					item_id INTEGER NOT NULL,
					status TEXT NOT NULL DEFAULT '',
					category_id INTEGER NOT NULL,
					project TEXT NOT NULL DEFAULT '',
					column_name TEXT NOT NULL DEFAULT '',
					points INTEGER NOT NULL DEFAULT 0,
					maint_type TEXT NOT NULL DEFAULT '',
					priority TEXT NOT NULL DEFAULT '',
					PRIMARY KEY (run_id, date, item_id)
				)`,
				`CREATE INDEX idx_task_on_date_staging_scope ON task_on_date_staging(scope)`,
			})
		},
	},
	{
		Version:     3,
		Description: "Report view and aggregates",
		Up: func(tx *sql.Tx) error {
			return execAll(tx, []string{
				`CREATE TABLE IF NOT EXISTS task_on_date_report (
					scope TEXT NOT NULL,
					date TEXT NOT NULL,
					item_id INTEGER NOT NULL,
					category TEXT NOT NULL,
					rule_order INTEGER NOT NULL,
					status TEXT NOT NULL DEFAULT '',
					category_id INTEGER NOT NULL,
					project TEXT NOT NULL DEFAULT '',
					column_name TEXT NOT NULL DEFAULT '',
					points INTEGER NOT NULL DEFAULT 0,
					maint_type TEXT NOT NULL DEFAULT '',
					priority TEXT NOT NULL DEFAULT '',
					PRIMARY KEY (scope, date, item_id)
				)`,
				`CREATE TABLE IF NOT EXISTS task_on_date_agg (
					scope TEXT NOT NULL,
					agg_range TEXT NOT NULL,
					date TEXT NOT NULL,
					category TEXT NOT NULL,
					status TEXT NOT NULL,
					maint_type TEXT NOT NULL,
					points_sum INTEGER NOT NULL,
					count INTEGER NOT NULL,
					PRIMARY KEY (scope, agg_range, date, category, status, maint_type)
				)`,
			})
		},
	},
	{
		Version:     4,
		Description: "Reconstruction run audit log",
		Up: func(tx *sql.Tx) error {
			return execAll(tx, []string{
				`CREATE TABLE IF NOT EXISTS reconstruction_runs (
					id TEXT PRIMARY KEY,
					scope TEXT NOT NULL,
					mode TEXT NOT NULL,
					status TEXT NOT NULL,
					started_at INTEGER NOT NULL,
					finished_at INTEGER,
					days INTEGER NOT NULL DEFAULT 0,
					rows_written INTEGER NOT NULL DEFAULT 0,
					skips TEXT NOT NULL DEFAULT '{}'
				)`,
				`CREATE INDEX idx_reconstruction_runs_scope ON reconstruction_runs(scope, started_at)`,
			})
		},
	},
	{
		Version:     5,
		Description: "Rule display and status flags on report rows and aggregates",
		Up: func(tx *sql.Tx) error {
			return execAll(tx, []string{
				`ALTER TABLE task_on_date_report ADD COLUMN display INTEGER NOT NULL DEFAULT 1`,
				`ALTER TABLE task_on_date_report ADD COLUMN include_in_status INTEGER NOT NULL DEFAULT 0`,
				`ALTER TABLE task_on_date_agg ADD COLUMN display INTEGER NOT NULL DEFAULT 1`,
			})
		},
	},
}

// Migrate applies all pending database migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	var currentVersion int
	err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	finalVersion, err := s.SchemaVersion(ctx)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}

	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}

// SchemaVersion returns the applied schema version.
func (s *SQLiteStorage) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, err
	}
	return version, nil
}
