package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/ledgerguard/ledgerguard/internal/common"
	"github.com/ledgerguard/ledgerguard/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Helper function to create migrated test storage.
func createTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	store, err := NewSQLiteStorage(dbPath)
	require.NoError(t, err, "failed to create storage")

	require.NoError(t, store.Migrate(context.Background()), "failed to migrate")
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func stagePtr(s model.ReviewStage) *model.ReviewStage { return &s }

func testAccount(id int64, number string) *model.Account {
	return &model.Account{
		ID:                id,
		AccountNumber:     number,
		AccountName:       fmt.Sprintf("Account %s", number),
		DepartmentID:      "FIN001",
		DepartmentName:    "Treasury",
		LogicID:           "LG-TRS",
		Currency:          "USD",
		NormalizedBalance: 1000.50,
		Confidence:        0.96,
		PriorityScore:     1.10,
		ReviewStatus:      model.StatusPending,
		CurrentStage:      stagePtr(model.StageChecker1),
		ThresholdLevel:    model.ThresholdMedium,
		FlagStatus:        model.FlagGreen,
		Source:            model.SourceHistorical,
		EvidenceTrail: []model.Evidence{
			{Kind: "historical", Description: "prior-period assignment", Confidence: 0.96},
		},
		MatchedKeywords: []string{"cash"},
		BalanceIssues:   nil,
		AuditLog: []model.AuditEntry{
			{Timestamp: time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC), Actor: "system", Role: "INGESTION", Action: "Ingestion", ToStage: "CHECKER1"},
		},
		CreatedAt:   time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC),
		BalanceDate: time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC),
	}
}

func testBatch(clear bool, accounts ...*model.Account) *model.UploadBatch {
	return &model.UploadBatch{
		ID:            "batch-1",
		StartedAt:     time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC),
		Accounts:      accounts,
		ClearExisting: clear,
		Files: []model.FileSummary{
			{FileName: "gl.xlsx", SheetName: "GL Balances", RowsScanned: len(accounts), RowsImported: len(accounts), Warnings: []string{"one warning"}},
		},
	}
}

func TestCommitBatchAndLoad(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	want := testAccount(1, "101000")
	prev := 800.0
	pv := 25.0625
	want.PreviousBalance = &prev
	want.PercentVariance = &pv

	require.NoError(t, store.CommitBatch(ctx, testBatch(false, want, testAccount(2, "201000"))))

	accounts, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, accounts, 2)

	got := accounts[0]
	assert.Equal(t, want.AccountNumber, got.AccountNumber)
	assert.Equal(t, want.DepartmentID, got.DepartmentID)
	assert.Equal(t, want.ReviewStatus, got.ReviewStatus)
	require.NotNil(t, got.CurrentStage)
	assert.Equal(t, model.StageChecker1, *got.CurrentStage)
	require.NotNil(t, got.PreviousBalance)
	assert.InDelta(t, 800.0, *got.PreviousBalance, 0.001)
	require.NotNil(t, got.PercentVariance)
	assert.InDelta(t, 25.0625, *got.PercentVariance, 0.0001)
	assert.Equal(t, want.EvidenceTrail, got.EvidenceTrail)
	assert.Equal(t, want.MatchedKeywords, got.MatchedKeywords)
	require.Len(t, got.AuditLog, 1)
	assert.Equal(t, "Ingestion", got.AuditLog[0].Action)
	assert.True(t, want.BalanceDate.Equal(got.BalanceDate))
}

func TestCommitBatchClearExisting(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	require.NoError(t, store.CommitBatch(ctx, testBatch(false, testAccount(1, "101000"))))
	require.NoError(t, store.CommitBatch(ctx, testBatch(true, testAccount(1, "301000"))))

	accounts, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, "301000", accounts[0].AccountNumber)
}

func TestCommitBatchDuplicateNumberRollsBack(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	require.NoError(t, store.CommitBatch(ctx, testBatch(false, testAccount(1, "101000"))))

	// Second batch collides on the unique account number; nothing from it
	// should land.
	err := store.CommitBatch(ctx, testBatch(false, testAccount(2, "999000"), testAccount(3, "101000")))
	require.ErrorIs(t, err, common.ErrDuplicateAccount)

	accounts, loadErr := store.Load(ctx)
	require.NoError(t, loadErr)
	assert.Len(t, accounts, 1)
}

func TestGetAccount(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	require.NoError(t, store.CommitBatch(ctx, testBatch(false, testAccount(7, "101000"))))

	byID, err := store.GetAccountByID(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "101000", byID.AccountNumber)

	byNumber, err := store.GetAccountByNumber(ctx, "101000")
	require.NoError(t, err)
	assert.Equal(t, int64(7), byNumber.ID)

	_, err = store.GetAccountByID(ctx, 99)
	assert.ErrorIs(t, err, common.ErrNotFound)

	_, err = store.GetAccountByNumber(ctx, "000000")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestMaxAccountID(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	maxID, err := store.MaxAccountID(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), maxID)

	require.NoError(t, store.CommitBatch(ctx, testBatch(false, testAccount(3, "101000"), testAccount(9, "201000"))))

	maxID, err = store.MaxAccountID(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(9), maxID)
}

func TestApplyTransition(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	require.NoError(t, store.CommitBatch(ctx, testBatch(false, testAccount(1, "101000"))))

	updated, err := store.ApplyTransition(ctx, 1, func(a *model.Account) (*model.Account, error) {
		a.CurrentStage = stagePtr(model.StageChecker2)
		a.AuditLog = append(a.AuditLog, model.AuditEntry{Actor: "alice", Action: "Approved by CHECKER1"})
		return a, nil
	})
	require.NoError(t, err)
	assert.Equal(t, model.StageChecker2, *updated.CurrentStage)

	stored, err := store.GetAccountByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, model.StageChecker2, *stored.CurrentStage)
	assert.Len(t, stored.AuditLog, 2)
}

func TestApplyTransitionErrorLeavesRowUntouched(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	require.NoError(t, store.CommitBatch(ctx, testBatch(false, testAccount(1, "101000"))))

	_, err := store.ApplyTransition(ctx, 1, func(a *model.Account) (*model.Account, error) {
		a.CurrentStage = stagePtr(model.StageCFO)
		return nil, common.ErrUnauthorized
	})
	assert.ErrorIs(t, err, common.ErrUnauthorized)

	stored, loadErr := store.GetAccountByID(ctx, 1)
	require.NoError(t, loadErr)
	assert.Equal(t, model.StageChecker1, *stored.CurrentStage)
}

func TestApplyTransitionMissingAccount(t *testing.T) {
	store := createTestStorage(t)

	_, err := store.ApplyTransition(context.Background(), 42, func(a *model.Account) (*model.Account, error) {
		return a, nil
	})
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestCorrectionLog(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	first := &model.CorrectionLogEntry{
		ID:            "corr-1",
		AccountID:     1,
		AccountNumber: "101000",
		Actor:         "cfo",
		Reason:        "bank confirmation",
		BeforeAmount:  2_000_000,
		AfterAmount:   6_000_000,
		Impact:        4_000_000,
		Timestamp:     time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC),
	}
	second := &model.CorrectionLogEntry{
		ID:            "corr-2",
		AccountID:     2,
		AccountNumber: "201000",
		Actor:         "cfo",
		Reason:        "vendor statement",
		BeforeAmount:  100,
		AfterAmount:   90,
		Impact:        10,
		Timestamp:     time.Date(2025, 3, 14, 11, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.SaveCorrection(ctx, first))
	require.NoError(t, store.SaveCorrection(ctx, second))

	entries, err := store.GetCorrections(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "corr-1", entries[0].ID)
	assert.InDelta(t, 4_000_000, entries[0].Impact, 0.001)
	assert.Equal(t, "corr-2", entries[1].ID)
}

func TestSaveCorrectionValidation(t *testing.T) {
	store := createTestStorage(t)

	err := store.SaveCorrection(context.Background(), &model.CorrectionLogEntry{ID: "corr-1", AccountNumber: "101000"})
	assert.ErrorIs(t, err, ErrEmptyString)
}

func TestUploadHistory(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	require.NoError(t, store.CommitBatch(ctx, testBatch(false, testAccount(1, "101000"))))

	records, err := store.GetUploadHistory(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "batch-1", records[0].BatchID)
	assert.Equal(t, "gl.xlsx", records[0].FileName)
	assert.Equal(t, "GL Balances", records[0].SheetName)
	assert.Equal(t, 1, records[0].RowsImported)
	assert.Equal(t, 1, records[0].WarningCount)
}

func TestMigrateIsIdempotent(t *testing.T) {
	store := createTestStorage(t)
	assert.NoError(t, store.Migrate(context.Background()))
}

func TestValidateBatchRejectsBadAccounts(t *testing.T) {
	store := createTestStorage(t)

	bad := testAccount(0, "101000") // id must be positive
	err := store.CommitBatch(context.Background(), testBatch(false, bad))
	assert.ErrorIs(t, err, ErrInvalidAccount)
}
