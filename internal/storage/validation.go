package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ledgerguard/ledgerguard/internal/model"
)

// Validation errors.
var (
	ErrNilContext     = errors.New("context cannot be nil")
	ErrEmptyString    = errors.New("string parameter cannot be empty")
	ErrNilParameter   = errors.New("parameter cannot be nil")
	ErrInvalidAccount = errors.New("invalid account")
	ErrInvalidBatch   = errors.New("invalid upload batch")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateAccount checks the fields every stored account must carry.
func validateAccount(a *model.Account) error {
	if a == nil {
		return fmt.Errorf("%w: account", ErrNilParameter)
	}
	if a.ID <= 0 {
		return fmt.Errorf("%w: id must be positive, got %d", ErrInvalidAccount, a.ID)
	}
	if strings.TrimSpace(a.AccountNumber) == "" {
		return fmt.Errorf("%w: account number is required", ErrInvalidAccount)
	}
	if strings.TrimSpace(a.AccountName) == "" {
		return fmt.Errorf("%w: account name is required", ErrInvalidAccount)
	}
	if strings.TrimSpace(a.DepartmentID) == "" {
		return fmt.Errorf("%w: department id is required", ErrInvalidAccount)
	}
	if a.ReviewStatus == "" {
		return fmt.Errorf("%w: review status is required", ErrInvalidAccount)
	}
	if a.CurrentStage == nil && a.ReviewStatus != model.StatusFinalized {
		return fmt.Errorf("%w: only finalized accounts may have no stage", ErrInvalidAccount)
	}
	return nil
}

// validateBatch checks a batch before it is committed.
func validateBatch(batch *model.UploadBatch) error {
	if batch == nil {
		return fmt.Errorf("%w: batch", ErrNilParameter)
	}
	if strings.TrimSpace(batch.ID) == "" {
		return fmt.Errorf("%w: batch id is required", ErrInvalidBatch)
	}
	for i, a := range batch.Accounts {
		if err := validateAccount(a); err != nil {
			return fmt.Errorf("account at index %d: %w", i, err)
		}
	}
	return nil
}

// validateCorrection checks a correction log entry before persisting it.
func validateCorrection(entry *model.CorrectionLogEntry) error {
	if entry == nil {
		return fmt.Errorf("%w: entry", ErrNilParameter)
	}
	if err := validateString(entry.ID, "entry.ID"); err != nil {
		return err
	}
	if err := validateString(entry.AccountNumber, "entry.AccountNumber"); err != nil {
		return err
	}
	if err := validateString(entry.Reason, "entry.Reason"); err != nil {
		return err
	}
	return nil
}
