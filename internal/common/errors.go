// Package common provides shared utilities and types used across the application.
package common

import (
	"errors"
	"fmt"
)

// Common application errors.
var (
	// Store errors.
	ErrNotFound         = errors.New("not found")
	ErrDuplicateAccount = errors.New("duplicate account number")
	ErrConflict         = errors.New("conflicting concurrent update")

	// Workflow errors.
	ErrUnauthorized     = errors.New("actor is not authorized for this stage")
	ErrAlreadyFinalized = errors.New("account is already finalized")
	ErrMissingReason    = errors.New("a rejection reason is required")

	// Ingestion errors.
	ErrMissingField   = errors.New("missing mandatory field")
	ErrHeaderNotFound = errors.New("no usable header row detected")
	ErrUnparsedAmount = errors.New("unable to parse numeric value")

	// Configuration errors.
	ErrMissingConfig = errors.New("missing configuration")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// UserError represents an error that should be shown to the user.
type UserError struct {
	Err         error
	UserMessage string
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.UserMessage, e.Err)
	}
	return e.UserMessage
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// NewUserError creates a new user-friendly error.
func NewUserError(userMessage string, err error) error {
	return &UserError{
		UserMessage: userMessage,
		Err:         err,
	}
}

// RowError attaches the originating row number or account number to an
// ingestion failure so every message stays traceable to its source.
type RowError struct {
	Err           error
	AccountNumber string
	Row           int
}

func (e *RowError) Error() string {
	if e.AccountNumber != "" {
		return fmt.Sprintf("account %s (row %d): %v", e.AccountNumber, e.Row, e.Err)
	}
	return fmt.Sprintf("row %d: %v", e.Row, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

// NewRowError wraps err with row-level traceability.
func NewRowError(row int, accountNumber string, err error) error {
	return &RowError{Row: row, AccountNumber: accountNumber, Err: err}
}
