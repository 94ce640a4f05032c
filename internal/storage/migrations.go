package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application
// expects. If the database cannot be migrated to this version, it's a fatal
// error.
const ExpectedSchemaVersion = 3

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial account snapshot schema",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS accounts (
					id INTEGER PRIMARY KEY,
					account_number TEXT UNIQUE NOT NULL,
					account_name TEXT NOT NULL,
					department_id TEXT NOT NULL,
					department_name TEXT NOT NULL,
					logic_id TEXT,
					notes TEXT,
					balance_raw TEXT,
					currency TEXT NOT NULL,
					normalized_balance REAL NOT NULL DEFAULT 0,
					previous_balance REAL,
					percent_variance REAL,
					confidence REAL NOT NULL DEFAULT 0,
					priority_score REAL NOT NULL DEFAULT 0,
					mistake_count INTEGER NOT NULL DEFAULT 0,
					review_status TEXT NOT NULL,
					current_stage TEXT,
					threshold_level TEXT NOT NULL,
					flag_status TEXT NOT NULL,
					classification_source TEXT NOT NULL,
					reconciliation_status TEXT,
					confirmation_source TEXT,
					reviewer TEXT,
					checkpoint TEXT,
					balance_date DATETIME,
					evidence_trail TEXT,
					matched_keywords TEXT,
					matched_patterns TEXT,
					balance_issues TEXT,
					audit_log TEXT,
					created_at DATETIME NOT NULL
				)`,
				`CREATE INDEX idx_accounts_number ON accounts(account_number)`,
				`CREATE INDEX idx_accounts_department ON accounts(department_id)`,
				`CREATE INDEX idx_accounts_stage ON accounts(current_stage)`,
			}
			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     2,
		Description: "Add correction log",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS correction_log (
					id TEXT PRIMARY KEY,
					account_id INTEGER NOT NULL,
					account_number TEXT NOT NULL,
					actor TEXT NOT NULL,
					reason TEXT NOT NULL,
					before_amount REAL NOT NULL,
					after_amount REAL NOT NULL,
					impact REAL NOT NULL,
					created_at DATETIME NOT NULL
				)`,
				`CREATE INDEX idx_correction_log_account ON correction_log(account_id)`,
			}
			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     3,
		Description: "Add upload history",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS upload_history (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					batch_id TEXT NOT NULL,
					file_name TEXT NOT NULL,
					sheet_name TEXT,
					rows_scanned INTEGER NOT NULL DEFAULT 0,
					rows_imported INTEGER NOT NULL DEFAULT 0,
					warning_count INTEGER NOT NULL DEFAULT 0,
					committed_at DATETIME NOT NULL
				)`,
				`CREATE INDEX idx_upload_history_batch ON upload_history(batch_id)`,
			}
			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
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

	var finalVersion int
	err = s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&finalVersion)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}
	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}
	return nil
}
