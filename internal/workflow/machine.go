// Package workflow implements the multi-stage review state machine for
// general-ledger accounts. Transitions are all-or-nothing: a rejected or
// unauthorized action leaves the account untouched and appends nothing to
// the audit log.
package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/ledgerguard/ledgerguard/internal/common"
	"github.com/ledgerguard/ledgerguard/internal/model"
	"github.com/ledgerguard/ledgerguard/internal/risk"
	"github.com/ledgerguard/ledgerguard/internal/service"
)

// Authorizer gates balance corrections. The default permits only the final
// approving authority.
type Authorizer func(actor service.Actor) error

// CFOOnly is the default correction authorizer.
func CFOOnly(actor service.Actor) error {
	if actor.Role != model.StageCFO {
		return fmt.Errorf("%w: corrections require the %s role", common.ErrUnauthorized, model.StageCFO)
	}
	return nil
}

// Machine drives review transitions through the injected store. Per-account
// atomicity comes from the store's ApplyTransition contract.
type Machine struct {
	store             service.AccountStore
	clock             service.Clock
	authorize         Authorizer
	varianceThreshold float64
}

// Config holds configuration options for the workflow machine.
type Config struct {
	VarianceThreshold float64
	Authorizer        Authorizer
}

// NewMachine creates a workflow machine with default configuration.
func NewMachine(store service.AccountStore, clock service.Clock) *Machine {
	return NewMachineWithConfig(store, clock, Config{})
}

// NewMachineWithConfig creates a workflow machine with custom configuration.
func NewMachineWithConfig(store service.AccountStore, clock service.Clock, cfg Config) *Machine {
	if cfg.VarianceThreshold <= 0 {
		cfg.VarianceThreshold = risk.DefaultVarianceThreshold
	}
	if cfg.Authorizer == nil {
		cfg.Authorizer = CFOOnly
	}
	return &Machine{
		store:             store,
		clock:             clock,
		authorize:         cfg.Authorizer,
		varianceThreshold: cfg.VarianceThreshold,
	}
}

// Approve advances the account to the next review stage.
func (m *Machine) Approve(ctx context.Context, accountID int64, actor service.Actor) (*model.Account, error) {
	account, err := m.store.ApplyTransition(ctx, accountID, func(a *model.Account) (*model.Account, error) {
		if err := Approve(a, actor, m.clock.Now()); err != nil {
			return nil, err
		}
		return a, nil
	})
	if err != nil {
		return nil, err
	}
	slog.Info("Account approved",
		"account", account.AccountNumber,
		"actor", actor.Name,
		"status", account.ReviewStatus)
	return account, nil
}

// Reject sends the account back to Checker1 with a Mismatch status.
func (m *Machine) Reject(ctx context.Context, accountID int64, actor service.Actor, reason string) (*model.Account, error) {
	account, err := m.store.ApplyTransition(ctx, accountID, func(a *model.Account) (*model.Account, error) {
		if err := Reject(a, actor, reason, m.clock.Now()); err != nil {
			return nil, err
		}
		return a, nil
	})
	if err != nil {
		return nil, err
	}
	slog.Info("Account rejected",
		"account", account.AccountNumber,
		"actor", actor.Name,
		"reason", reason)
	return account, nil
}

// Correct replaces the stored balance with newAmount, rescores the account,
// and records a correction-log entry. Corrections are gated by the external
// authorization check, not by the current stage.
func (m *Machine) Correct(ctx context.Context, accountID int64, actor service.Actor, newAmount float64, reason string) (*model.Account, *model.CorrectionLogEntry, error) {
	if err := m.authorize(actor); err != nil {
		return nil, nil, err
	}

	var entry *model.CorrectionLogEntry
	account, err := m.store.ApplyTransition(ctx, accountID, func(a *model.Account) (*model.Account, error) {
		e, err := Correct(a, actor, newAmount, reason, m.varianceThreshold, m.clock.Now())
		if err != nil {
			return nil, err
		}
		entry = e
		return a, nil
	})
	if err != nil {
		return nil, nil, err
	}

	// The rescored balance is already committed with its audit entry; only
	// the supplementary correction-log row failed. Log the full entry so it
	// can be replayed, and hand it back to the caller alongside the error.
	if err := m.store.SaveCorrection(ctx, entry); err != nil {
		slog.Error("Correction applied but log entry not persisted",
			"error", err,
			"correction_id", entry.ID,
			"account", account.AccountNumber,
			"actor", entry.Actor,
			"before", entry.BeforeAmount,
			"after", entry.AfterAmount,
			"reason", entry.Reason)
		return account, entry, fmt.Errorf("correction applied but not logged: %w", err)
	}

	slog.Info("Balance corrected",
		"account", account.AccountNumber,
		"actor", actor.Name,
		"before", entry.BeforeAmount,
		"after", entry.AfterAmount)
	return account, entry, nil
}

// Edit merges non-financial metadata updates without touching stage, status,
// or scores.
func (m *Machine) Edit(ctx context.Context, accountID int64, actor service.Actor, updates MetadataUpdate) (*model.Account, error) {
	return m.store.ApplyTransition(ctx, accountID, func(a *model.Account) (*model.Account, error) {
		if err := Edit(a, actor, updates, m.clock.Now()); err != nil {
			return nil, err
		}
		return a, nil
	})
}

// Approve applies the approval transition to a single account. Validation
// happens before any mutation so failures are pure no-ops.
func Approve(account *model.Account, actor service.Actor, now time.Time) error {
	if account.Finalized() || account.CurrentStage == nil {
		return fmt.Errorf("%w: account %s", common.ErrAlreadyFinalized, account.AccountNumber)
	}
	if actor.Role != *account.CurrentStage {
		return fmt.Errorf("%w: account %s is at stage %s", common.ErrUnauthorized, account.AccountNumber, *account.CurrentStage)
	}

	fromStage := *account.CurrentStage
	next := model.StageIndex(fromStage) + 1

	var toStage string
	if next >= len(model.StageSequence) {
		account.CurrentStage = nil
		account.ReviewStatus = model.StatusFinalized
		toStage = "FINALIZED"
	} else {
		stage := model.StageSequence[next]
		account.CurrentStage = &stage
		if stage == model.StageCFO {
			account.ReviewStatus = model.StatusApproved
		} else {
			account.ReviewStatus = model.StatusPending
		}
		toStage = string(stage)
	}

	account.AuditLog = append(account.AuditLog, model.AuditEntry{
		Timestamp: now,
		Actor:     actor.Name,
		Role:      string(actor.Role),
		Action:    fmt.Sprintf("Approved by %s", actor.Role),
		FromStage: string(fromStage),
		ToStage:   toStage,
	})
	return nil
}

// Reject applies the rejection transition. The reason is mandatory and is
// attached to the audit entry.
func Reject(account *model.Account, actor service.Actor, reason string, now time.Time) error {
	if account.Finalized() || account.CurrentStage == nil {
		return fmt.Errorf("%w: account %s", common.ErrAlreadyFinalized, account.AccountNumber)
	}
	if actor.Role != *account.CurrentStage {
		return fmt.Errorf("%w: account %s is at stage %s", common.ErrUnauthorized, account.AccountNumber, *account.CurrentStage)
	}
	if reason == "" {
		return fmt.Errorf("%w: account %s", common.ErrMissingReason, account.AccountNumber)
	}

	fromStage := *account.CurrentStage
	start := model.StageSequence[0]
	account.CurrentStage = &start
	account.ReviewStatus = model.StatusMismatch
	account.MistakeCount++

	account.AuditLog = append(account.AuditLog, model.AuditEntry{
		Timestamp: now,
		Actor:     actor.Name,
		Role:      string(actor.Role),
		Action:    fmt.Sprintf("Rejected by %s", actor.Role),
		FromStage: string(fromStage),
		ToStage:   string(start),
		Reason:    reason,
	})
	return nil
}

// Correct rescores the account with newAmount in place of the stored
// balance, computes variance against the prior balance, and appends both a
// correction-log entry and an audit entry.
func Correct(account *model.Account, actor service.Actor, newAmount float64, reason string, varianceThreshold float64, now time.Time) (*model.CorrectionLogEntry, error) {
	if reason == "" {
		return nil, fmt.Errorf("%w: account %s", common.ErrMissingReason, account.AccountNumber)
	}

	before := account.NormalizedBalance

	account.ThresholdLevel = risk.ThresholdLevel(newAmount, account.MistakeCount, account.ReviewStatus)
	account.PriorityScore = risk.PriorityScore(newAmount, account.MistakeCount, account.ThresholdLevel, account.Source, account.Confidence)

	insight := risk.Variance(newAmount, &before, varianceThreshold)
	account.PercentVariance = insight.PercentVariance
	account.FlagStatus = insight.Flag
	account.PreviousBalance = &before

	account.MistakeCount++
	account.NormalizedBalance = newAmount
	account.BalanceIssues = nil

	fromStage := ""
	if account.CurrentStage != nil {
		fromStage = string(*account.CurrentStage)
	}
	account.AuditLog = append(account.AuditLog, model.AuditEntry{
		Timestamp: now,
		Actor:     actor.Name,
		Role:      string(actor.Role),
		Action:    "Balance adjusted",
		FromStage: fromStage,
		ToStage:   fromStage,
		Reason:    reason,
	})

	return &model.CorrectionLogEntry{
		ID:            uuid.NewString(),
		Timestamp:     now,
		AccountID:     account.ID,
		AccountNumber: account.AccountNumber,
		Actor:         actor.Name,
		Reason:        reason,
		BeforeAmount:  before,
		AfterAmount:   newAmount,
		Impact:        math.Abs(newAmount - before),
	}, nil
}

// MetadataUpdate carries optional non-financial field updates. Nil pointers
// leave the field alone.
type MetadataUpdate struct {
	AccountName          *string
	Notes                *string
	Reviewer             *string
	Checkpoint           *string
	ReconciliationStatus *string
	ConfirmationSource   *string
}

// Edit merges metadata updates and appends an audit entry. Stage, status,
// and scores are never touched.
func Edit(account *model.Account, actor service.Actor, updates MetadataUpdate, now time.Time) error {
	if updates.AccountName != nil {
		account.AccountName = *updates.AccountName
	}
	if updates.Notes != nil {
		account.Notes = *updates.Notes
	}
	if updates.Reviewer != nil {
		account.Reviewer = *updates.Reviewer
	}
	if updates.Checkpoint != nil {
		account.Checkpoint = *updates.Checkpoint
	}
	if updates.ReconciliationStatus != nil {
		account.ReconciliationStatus = *updates.ReconciliationStatus
	}
	if updates.ConfirmationSource != nil {
		account.ConfirmationSource = *updates.ConfirmationSource
	}

	fromStage := ""
	if account.CurrentStage != nil {
		fromStage = string(*account.CurrentStage)
	}
	account.AuditLog = append(account.AuditLog, model.AuditEntry{
		Timestamp: now,
		Actor:     actor.Name,
		Role:      string(actor.Role),
		Action:    "Metadata updated",
		FromStage: fromStage,
		ToStage:   fromStage,
	})
	return nil
}
