package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ledgerguard/ledgerguard/internal/common"
	"github.com/ledgerguard/ledgerguard/internal/model"
	"github.com/mattn/go-sqlite3"
)

const accountColumns = `id, account_number, account_name, department_id, department_name,
	logic_id, notes, balance_raw, currency, normalized_balance,
	previous_balance, percent_variance, confidence, priority_score, mistake_count,
	review_status, current_stage, threshold_level, flag_status, classification_source,
	reconciliation_status, confirmation_source, reviewer, checkpoint, balance_date,
	evidence_trail, matched_keywords, matched_patterns, balance_issues, audit_log,
	created_at`

// Load returns the full account snapshot ordered by id.
func (s *SQLiteStorage) Load(ctx context.Context) ([]*model.Account, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT `+accountColumns+` FROM accounts ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var accounts []*model.Account
	for rows.Next() {
		account, scanErr := scanAccount(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate accounts: %w", err)
	}
	return accounts, nil
}

// GetAccountByID returns a single account, or common.ErrNotFound.
func (s *SQLiteStorage) GetAccountByID(ctx context.Context, id int64) (*model.Account, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.getAccount(ctx, "id = ?", id)
}

// GetAccountByNumber returns the account with the given GL number, or
// common.ErrNotFound.
func (s *SQLiteStorage) GetAccountByNumber(ctx context.Context, accountNumber string) (*model.Account, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(accountNumber, "accountNumber"); err != nil {
		return nil, err
	}
	return s.getAccount(ctx, "account_number = ?", accountNumber)
}

// MaxAccountID returns the highest assigned account id, or 0 for an empty
// store.
func (s *SQLiteStorage) MaxAccountID(ctx context.Context) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	var maxID int64
	err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(id), 0) FROM accounts`).Scan(&maxID)
	if err != nil {
		return 0, fmt.Errorf("failed to query max account id: %w", err)
	}
	return maxID, nil
}

// CommitBatch applies an ingestion batch in a single transaction. When the
// batch clears existing data, the old snapshot is deleted first; either way
// a reader never sees a half-applied batch.
func (s *SQLiteStorage) CommitBatch(ctx context.Context, batch *model.UploadBatch) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateBatch(batch); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if batch.ClearExisting {
		if _, err := tx.ExecContext(ctx, `DELETE FROM accounts`); err != nil {
			return fmt.Errorf("failed to clear accounts: %w", err)
		}
	}

	for _, account := range batch.Accounts {
		if err := insertAccountTx(ctx, tx, account); err != nil {
			return err
		}
	}

	for _, file := range batch.Files {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO upload_history (batch_id, file_name, sheet_name, rows_scanned, rows_imported, warning_count, committed_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			batch.ID, file.FileName, file.SheetName,
			file.RowsScanned, file.RowsImported, len(file.Warnings),
			batch.StartedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to record upload history: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}

	slog.Info("Committed upload batch",
		"batch_id", batch.ID,
		"accounts", len(batch.Accounts),
		"files", len(batch.Files),
		"cleared", batch.ClearExisting)
	return nil
}

// SaveCorrection persists one correction log entry.
func (s *SQLiteStorage) SaveCorrection(ctx context.Context, entry *model.CorrectionLogEntry) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateCorrection(entry); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO correction_log (id, account_id, account_number, actor, reason, before_amount, after_amount, impact, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.AccountID, entry.AccountNumber, entry.Actor, entry.Reason,
		entry.BeforeAmount, entry.AfterAmount, entry.Impact, entry.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to save correction: %w", err)
	}
	return nil
}

// GetCorrections returns all correction log entries, oldest first.
func (s *SQLiteStorage) GetCorrections(ctx context.Context) ([]model.CorrectionLogEntry, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, account_id, account_number, actor, reason, before_amount, after_amount, impact, created_at
		FROM correction_log ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query corrections: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []model.CorrectionLogEntry
	for rows.Next() {
		var e model.CorrectionLogEntry
		if err := rows.Scan(&e.ID, &e.AccountID, &e.AccountNumber, &e.Actor, &e.Reason,
			&e.BeforeAmount, &e.AfterAmount, &e.Impact, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan correction: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate corrections: %w", err)
	}
	return entries, nil
}

// GetUploadHistory returns committed batch records, oldest first.
func (s *SQLiteStorage) GetUploadHistory(ctx context.Context) ([]model.UploadRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT batch_id, file_name, sheet_name, rows_scanned, rows_imported, warning_count, committed_at
		FROM upload_history ORDER BY committed_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query upload history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []model.UploadRecord
	for rows.Next() {
		var r model.UploadRecord
		var sheet sql.NullString
		if err := rows.Scan(&r.BatchID, &r.FileName, &sheet,
			&r.RowsScanned, &r.RowsImported, &r.WarningCount, &r.CommittedAt); err != nil {
			return nil, fmt.Errorf("failed to scan upload record: %w", err)
		}
		r.SheetName = sheet.String
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate upload history: %w", err)
	}
	return records, nil
}

func (s *SQLiteStorage) getAccount(ctx context.Context, where string, arg any) (*model.Account, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE `+where, arg)
	account, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: account %v", common.ErrNotFound, arg)
	}
	return account, err
}

func (s *SQLiteStorage) getAccountTx(ctx context.Context, tx *sql.Tx, where string, arg any) (*model.Account, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE `+where, arg)
	account, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: account %v", common.ErrNotFound, arg)
	}
	return account, err
}

func insertAccountTx(ctx context.Context, tx *sql.Tx, a *model.Account) error {
	args, err := accountArgs(a)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO accounts (`+accountColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		args...,
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return fmt.Errorf("%w: %s", common.ErrDuplicateAccount, a.AccountNumber)
		}
		return fmt.Errorf("failed to insert account %s: %w", a.AccountNumber, err)
	}
	return nil
}

func (s *SQLiteStorage) updateAccountTx(ctx context.Context, tx *sql.Tx, a *model.Account) error {
	if err := validateAccount(a); err != nil {
		return err
	}
	args, err := accountArgs(a)
	if err != nil {
		return err
	}
	// Shift id from first insert position to the WHERE clause.
	args = append(args[1:], a.ID)

	result, err := tx.ExecContext(ctx, `
		UPDATE accounts SET
			account_number = ?, account_name = ?, department_id = ?, department_name = ?,
			logic_id = ?, notes = ?, balance_raw = ?, currency = ?, normalized_balance = ?,
			previous_balance = ?, percent_variance = ?, confidence = ?, priority_score = ?, mistake_count = ?,
			review_status = ?, current_stage = ?, threshold_level = ?, flag_status = ?, classification_source = ?,
			reconciliation_status = ?, confirmation_source = ?, reviewer = ?, checkpoint = ?, balance_date = ?,
			evidence_trail = ?, matched_keywords = ?, matched_patterns = ?, balance_issues = ?, audit_log = ?,
			created_at = ?
		WHERE id = ?`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("failed to update account %d: %w", a.ID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: account %d", common.ErrNotFound, a.ID)
	}
	return nil
}

// accountArgs flattens an account into insert-order arguments.
func accountArgs(a *model.Account) ([]any, error) {
	evidence, err := encodeJSON(a.EvidenceTrail)
	if err != nil {
		return nil, fmt.Errorf("failed to encode evidence trail: %w", err)
	}
	keywords, err := encodeJSON(a.MatchedKeywords)
	if err != nil {
		return nil, fmt.Errorf("failed to encode matched keywords: %w", err)
	}
	patterns, err := encodeJSON(a.MatchedPatterns)
	if err != nil {
		return nil, fmt.Errorf("failed to encode matched patterns: %w", err)
	}
	issues, err := encodeJSON(a.BalanceIssues)
	if err != nil {
		return nil, fmt.Errorf("failed to encode balance issues: %w", err)
	}
	audit, err := encodeJSON(a.AuditLog)
	if err != nil {
		return nil, fmt.Errorf("failed to encode audit log: %w", err)
	}

	var stage any
	if a.CurrentStage != nil {
		stage = string(*a.CurrentStage)
	}
	var previous, variance any
	if a.PreviousBalance != nil {
		previous = *a.PreviousBalance
	}
	if a.PercentVariance != nil {
		variance = *a.PercentVariance
	}
	var balanceDate any
	if !a.BalanceDate.IsZero() {
		balanceDate = a.BalanceDate
	}

	return []any{
		a.ID, a.AccountNumber, a.AccountName, a.DepartmentID, a.DepartmentName,
		a.LogicID, a.Notes, a.BalanceRaw, a.Currency, a.NormalizedBalance,
		previous, variance, a.Confidence, a.PriorityScore, a.MistakeCount,
		string(a.ReviewStatus), stage, string(a.ThresholdLevel), string(a.FlagStatus), string(a.Source),
		a.ReconciliationStatus, a.ConfirmationSource, a.Reviewer, a.Checkpoint, balanceDate,
		evidence, keywords, patterns, issues, audit,
		a.CreatedAt,
	}, nil
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*model.Account, error) {
	var (
		a           model.Account
		stage       sql.NullString
		previous    sql.NullFloat64
		variance    sql.NullFloat64
		balanceDate sql.NullTime
		status      string
		level       string
		flag        string
		source      string
		evidence    sql.NullString
		keywords    sql.NullString
		patterns    sql.NullString
		issues      sql.NullString
		audit       sql.NullString
	)

	err := row.Scan(
		&a.ID, &a.AccountNumber, &a.AccountName, &a.DepartmentID, &a.DepartmentName,
		&a.LogicID, &a.Notes, &a.BalanceRaw, &a.Currency, &a.NormalizedBalance,
		&previous, &variance, &a.Confidence, &a.PriorityScore, &a.MistakeCount,
		&status, &stage, &level, &flag, &source,
		&a.ReconciliationStatus, &a.ConfirmationSource, &a.Reviewer, &a.Checkpoint, &balanceDate,
		&evidence, &keywords, &patterns, &issues, &audit,
		&a.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan account: %w", err)
	}

	a.ReviewStatus = model.ReviewStatus(status)
	a.ThresholdLevel = model.ThresholdLevel(level)
	a.FlagStatus = model.FlagStatus(flag)
	a.Source = model.ClassificationSource(source)
	if stage.Valid {
		st := model.ReviewStage(stage.String)
		a.CurrentStage = &st
	}
	if previous.Valid {
		a.PreviousBalance = &previous.Float64
	}
	if variance.Valid {
		a.PercentVariance = &variance.Float64
	}
	if balanceDate.Valid {
		a.BalanceDate = balanceDate.Time
	}

	if err := decodeJSON(evidence, &a.EvidenceTrail); err != nil {
		return nil, fmt.Errorf("failed to decode evidence trail for account %d: %w", a.ID, err)
	}
	if err := decodeJSON(keywords, &a.MatchedKeywords); err != nil {
		return nil, fmt.Errorf("failed to decode matched keywords for account %d: %w", a.ID, err)
	}
	if err := decodeJSON(patterns, &a.MatchedPatterns); err != nil {
		return nil, fmt.Errorf("failed to decode matched patterns for account %d: %w", a.ID, err)
	}
	if err := decodeJSON(issues, &a.BalanceIssues); err != nil {
		return nil, fmt.Errorf("failed to decode balance issues for account %d: %w", a.ID, err)
	}
	if err := decodeJSON(audit, &a.AuditLog); err != nil {
		return nil, fmt.Errorf("failed to decode audit log for account %d: %w", a.ID, err)
	}
	return &a, nil
}

func encodeJSON(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func decodeJSON[T any](col sql.NullString, dest *T) error {
	if !col.Valid || col.String == "" || col.String == "null" {
		return nil
	}
	return json.Unmarshal([]byte(col.String), dest)
}
