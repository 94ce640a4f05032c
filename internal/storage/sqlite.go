// Package storage provides the SQLite persistence layer for the review
// snapshot, correction log, and upload history.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/ledgerguard/ledgerguard/internal/common"
	"github.com/ledgerguard/ledgerguard/internal/model"
	"github.com/ledgerguard/ledgerguard/internal/service"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteStorage implements service.AccountStore using SQLite.
type SQLiteStorage struct {
	db     *sql.DB
	dbPath string

	// Serializes read-modify-write transitions. SQLite already runs on a
	// single connection, but the mutex keeps fn() evaluation inside the
	// critical section too.
	transitionMu sync.Mutex
}

// Compile-time interface check.
var _ service.AccountStore = (*SQLiteStorage)(nil)

// NewSQLiteStorage opens (or creates) the database at dbPath.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if err := validateString(dbPath, "dbPath"); err != nil {
		return nil, err
	}

	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite doesn't benefit from multiple connections.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLiteStorage{db: db, dbPath: dbPath}, nil
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// ApplyTransition runs fn against the stored account inside a single
// transaction. The stored row changes only if fn succeeds and the commit
// lands; concurrent transitions on any account are fully serialized.
func (s *SQLiteStorage) ApplyTransition(ctx context.Context, accountID int64, fn service.TransitionFunc) (*model.Account, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if fn == nil {
		return nil, fmt.Errorf("%w: fn", ErrNilParameter)
	}

	s.transitionMu.Lock()
	defer s.transitionMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	current, err := s.getAccountTx(ctx, tx, "id = ?", accountID)
	if err != nil {
		return nil, err
	}

	next, err := fn(current.Clone())
	if err != nil {
		return nil, err
	}
	if next.ID != current.ID {
		return nil, fmt.Errorf("%w: transition changed account id from %d to %d", common.ErrConflict, current.ID, next.ID)
	}

	if err := s.updateAccountTx(ctx, tx, next); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transition: %w", err)
	}
	return next, nil
}
