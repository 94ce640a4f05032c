package export

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/ledgerguard/ledgerguard/internal/model"
	"github.com/ledgerguard/ledgerguard/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func exportClock() service.Clock {
	return service.FixedClock{T: time.Date(2025, 3, 14, 18, 0, 0, 0, time.UTC)}
}

func stagePtr(s model.ReviewStage) *model.ReviewStage { return &s }

func sampleSnapshot() Snapshot {
	prev := 800.0
	return Snapshot{
		Accounts: []*model.Account{
			{
				ID: 1, AccountNumber: "101000", AccountName: "Operating Cash",
				DepartmentID: "FIN001", DepartmentName: "Treasury", LogicID: "LG-TRS",
				NormalizedBalance: 6_000_000, Currency: "USD", PreviousBalance: &prev,
				Confidence: 0.96, PriorityScore: 8.54,
				ReviewStatus: model.StatusPending, CurrentStage: stagePtr(model.StageChecker1),
				ThresholdLevel: model.ThresholdCritical, FlagStatus: model.FlagRed,
				Source:               model.SourceHistorical,
				ReconciliationStatus: "Assets",
				BalanceIssues:        []string{"Detected decimal precision"},
			},
			{
				ID: 2, AccountNumber: "201000", AccountName: "Trade Payables",
				DepartmentID: "ACC001", DepartmentName: "Accounts Payable",
				NormalizedBalance: 6_000_000, Currency: "USD",
				Confidence:   0.90, PriorityScore: 1.28,
				ReviewStatus: model.StatusPending, CurrentStage: stagePtr(model.StageChecker1),
				ThresholdLevel: model.ThresholdMedium, FlagStatus: model.FlagGreen,
				Source:               model.SourceRule,
				ReconciliationStatus: "Liabilities",
			},
		},
		Corrections: []model.CorrectionLogEntry{
			{
				ID: "corr-1", AccountID: 1, AccountNumber: "101000", Actor: "cfo",
				Reason: "bank confirmation", BeforeAmount: 2_000_000, AfterAmount: 6_000_000,
				Impact: 4_000_000, Timestamp: time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC),
			},
		},
		Uploads: []model.UploadRecord{
			{
				BatchID: "batch-1", FileName: "gl.xlsx", SheetName: "GL Balances",
				RowsScanned: 10, RowsImported: 8, WarningCount: 2,
				CommittedAt: time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC),
			},
		},
	}
}

func TestWriteWorkbook(t *testing.T) {
	var buf bytes.Buffer
	e := NewExporter(exportClock())
	require.NoError(t, e.Write(context.Background(), &buf, sampleSnapshot()))

	wb, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	defer func() { _ = wb.Close() }()

	assert.ElementsMatch(t,
		[]string{"Accounts", "Threshold Metrics", "Balance Summary", "Correction Log", "Upload History"},
		wb.GetSheetList())

	rows, err := wb.GetRows("Accounts")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Account Number", rows[0][1])
	assert.Equal(t, "101000", rows[1][1])
	assert.Equal(t, "CRITICAL", rows[1][10])
	assert.Equal(t, "Detected decimal precision", rows[1][17])

	metrics, err := wb.GetRows("Threshold Metrics")
	require.NoError(t, err)
	require.Len(t, metrics, 3)
	// Departments ordered by id: ACC001 before FIN001.
	assert.Equal(t, "ACC001", metrics[1][0])
	assert.Equal(t, "FIN001", metrics[2][0])

	summary, err := wb.GetRows("Balance Summary")
	require.NoError(t, err)
	assert.Equal(t, "Assets", summary[1][0])
	assert.Equal(t, "Status", summary[5][0])
	assert.Equal(t, "Balanced", summary[5][1])

	corrections, err := wb.GetRows("Correction Log")
	require.NoError(t, err)
	require.Len(t, corrections, 2)
	assert.Equal(t, "corr-1", corrections[1][1])

	uploads, err := wb.GetRows("Upload History")
	require.NoError(t, err)
	require.Len(t, uploads, 2)
	assert.Equal(t, "batch-1", uploads[1][1])
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports", "review.xlsx")
	e := NewExporter(exportClock())
	require.NoError(t, e.WriteFile(context.Background(), path, sampleSnapshot()))

	wb, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer func() { _ = wb.Close() }()
	assert.Contains(t, wb.GetSheetList(), "Accounts")
}

func TestWriteEmptySnapshot(t *testing.T) {
	var buf bytes.Buffer
	e := NewExporter(exportClock())
	require.NoError(t, e.Write(context.Background(), &buf, Snapshot{}))

	wb, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	defer func() { _ = wb.Close() }()

	rows, err := wb.GetRows("Accounts")
	require.NoError(t, err)
	assert.Len(t, rows, 1) // header only
}

func TestWriteCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var buf bytes.Buffer
	e := NewExporter(exportClock())
	assert.Error(t, e.Write(ctx, &buf, sampleSnapshot()))
}
