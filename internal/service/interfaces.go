// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/ledgerguard/ledgerguard/internal/model"
)

// TransitionFunc mutates a single account inside an atomic
// read-modify-write. It receives a private copy of the stored account and
// returns the replacement; returning an error discards the copy entirely.
type TransitionFunc func(account *model.Account) (*model.Account, error)

// AccountStore defines the contract for the injected persistence layer.
//
// CommitBatch must be atomic: a reader never observes a partially merged
// batch. ApplyTransition must guarantee per-account atomicity: two
// concurrent transitions on the same account id never interleave, and a
// failed transition leaves the stored account untouched.
type AccountStore interface {
	// Account snapshot operations
	Load(ctx context.Context) ([]*model.Account, error)
	GetAccountByID(ctx context.Context, id int64) (*model.Account, error)
	GetAccountByNumber(ctx context.Context, accountNumber string) (*model.Account, error)
	MaxAccountID(ctx context.Context) (int64, error)

	// Batch lifecycle
	CommitBatch(ctx context.Context, batch *model.UploadBatch) error

	// Workflow mutation
	ApplyTransition(ctx context.Context, accountID int64, fn TransitionFunc) (*model.Account, error)

	// Correction log
	SaveCorrection(ctx context.Context, entry *model.CorrectionLogEntry) error
	GetCorrections(ctx context.Context) ([]model.CorrectionLogEntry, error)

	// Upload history
	GetUploadHistory(ctx context.Context) ([]model.UploadRecord, error)

	// Database management
	Migrate(ctx context.Context) error
	Close() error
}

// Clock provides the current time and timer channels. Core logic depends
// on this interface rather than the time package directly so schedulers
// and workflow timestamps are deterministic under test.
type Clock interface {
	Now() time.Time
	// After returns a channel that delivers the time after d elapses.
	After(d time.Duration) <-chan time.Time
}

// RealClock returns the actual system time. Use only at entry points.
type RealClock struct{}

// Now returns the current system time.
func (RealClock) Now() time.Time {
	return time.Now()
}

// After waits on the system timer.
func (RealClock) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}

// FixedClock always returns a fixed time. Use for deterministic testing.
type FixedClock struct {
	T time.Time
}

// Now returns the fixed time.
func (c FixedClock) Now() time.Time {
	return c.T
}

// After returns a channel that never fires; a frozen clock never reaches
// a later instant.
func (FixedClock) After(time.Duration) <-chan time.Time {
	return make(chan time.Time)
}

// Actor identifies the human performing a workflow action.
type Actor struct {
	Name string
	Role model.ReviewStage
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// CompletionStats shows the results of an ingestion run.
type CompletionStats struct {
	FilesAccepted int
	FilesRejected int
	RowsScanned   int
	RowsImported  int
	RowsSkipped   int
	Duration      time.Duration
}
