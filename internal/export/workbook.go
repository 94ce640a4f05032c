// Package export renders the review snapshot and its rollups into a
// multi-tab spreadsheet for distribution.
package export

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ledgerguard/ledgerguard/internal/model"
	"github.com/ledgerguard/ledgerguard/internal/report"
	"github.com/ledgerguard/ledgerguard/internal/service"
	"github.com/xuri/excelize/v2"
)

// Sheet names, in workbook order.
const (
	sheetAccounts    = "Accounts"
	sheetThresholds  = "Threshold Metrics"
	sheetBalance     = "Balance Summary"
	sheetCorrections = "Correction Log"
	sheetUploads     = "Upload History"
)

// Snapshot is everything one export run needs. Callers assemble it from the
// store before rendering so the workbook reflects a single point in time.
type Snapshot struct {
	Accounts    []*model.Account
	Corrections []model.CorrectionLogEntry
	Uploads     []model.UploadRecord
}

// Exporter writes report workbooks. Writes are serialized so overlapping
// scheduled and manual runs never interleave on the same destination.
type Exporter struct {
	clock service.Clock
	mu    sync.Mutex
}

// NewExporter returns an Exporter stamping workbooks with the given clock.
func NewExporter(clock service.Clock) *Exporter {
	return &Exporter{clock: clock}
}

// WriteFile renders the snapshot and writes it to path, creating parent
// directories as needed.
func (e *Exporter) WriteFile(ctx context.Context, path string, snap Snapshot) error {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("failed to create export directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if err := e.Write(ctx, f, snap); err != nil {
		return err
	}
	slog.Info("Report workbook written", "path", path, "accounts", len(snap.Accounts))
	return nil
}

// Write renders the snapshot as an xlsx workbook to w.
func (e *Exporter) Write(ctx context.Context, w io.Writer, snap Snapshot) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	wb := excelize.NewFile()
	defer func() { _ = wb.Close() }()

	wb.SetSheetName("Sheet1", sheetAccounts)
	if err := writeAccounts(wb, snap.Accounts); err != nil {
		return err
	}
	if err := writeThresholds(wb, report.ThresholdMetrics(snap.Accounts)); err != nil {
		return err
	}
	if err := writeBalanceSummary(wb, report.BalanceSheetSummary(snap.Accounts), e.clock.Now()); err != nil {
		return err
	}
	if err := writeCorrections(wb, snap.Corrections); err != nil {
		return err
	}
	if err := writeUploads(wb, snap.Uploads); err != nil {
		return err
	}

	if err := wb.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func writeHeader(wb *excelize.File, sheet string, header []any) error {
	style, err := wb.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	if err := wb.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header on %s: %w", sheet, err)
	}
	end, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		return fmt.Errorf("failed to size header on %s: %w", sheet, err)
	}
	if err := wb.SetCellStyle(sheet, "A1", end, style); err != nil {
		return fmt.Errorf("failed to style header on %s: %w", sheet, err)
	}
	return nil
}

func writeAccounts(wb *excelize.File, accounts []*model.Account) error {
	header := []any{
		"ID", "Account Number", "Account Name", "Department", "Logic ID",
		"Balance", "Currency", "Previous Balance", "Variance %", "Variance Flag",
		"Threshold", "Priority", "Status", "Stage", "Confidence",
		"Source", "Mistakes", "Issues", "Notes",
	}
	if err := writeHeader(wb, sheetAccounts, header); err != nil {
		return err
	}
	for i, a := range accounts {
		stage := ""
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
		row := []any{
			a.ID, a.AccountNumber, a.AccountName, a.DepartmentName, a.LogicID,
			a.NormalizedBalance, a.Currency, previous, variance, string(a.FlagStatus),
			string(a.ThresholdLevel), a.PriorityScore, string(a.ReviewStatus), stage, a.Confidence,
			string(a.Source), a.MistakeCount, joinIssues(a.BalanceIssues), a.Notes,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("failed to address account row %d: %w", i+2, err)
		}
		if err := wb.SetSheetRow(sheetAccounts, cell, &row); err != nil {
			return fmt.Errorf("failed to write account row %d: %w", i+2, err)
		}
	}
	return nil
}

func writeThresholds(wb *excelize.File, metrics []report.DepartmentMetrics) error {
	if _, err := wb.NewSheet(sheetThresholds); err != nil {
		return fmt.Errorf("failed to create sheet %s: %w", sheetThresholds, err)
	}
	header := []any{
		"Department ID", "Department", "Accounts",
		"Critical", "Medium", "Low",
		"Critical Balance", "Medium Balance", "Low Balance",
		"Avg Confidence",
	}
	if err := writeHeader(wb, sheetThresholds, header); err != nil {
		return err
	}
	for i, m := range metrics {
		row := []any{
			m.DepartmentID, m.DepartmentName, m.Accounts,
			m.Counts[model.ThresholdCritical], m.Counts[model.ThresholdMedium], m.Counts[model.ThresholdLow],
			m.BalanceByLevel[model.ThresholdCritical], m.BalanceByLevel[model.ThresholdMedium], m.BalanceByLevel[model.ThresholdLow],
			m.AvgConfidence,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("failed to address metrics row %d: %w", i+2, err)
		}
		if err := wb.SetSheetRow(sheetThresholds, cell, &row); err != nil {
			return fmt.Errorf("failed to write metrics row %d: %w", i+2, err)
		}
	}
	return nil
}

func writeBalanceSummary(wb *excelize.File, summary report.BalanceSummary, now time.Time) error {
	if _, err := wb.NewSheet(sheetBalance); err != nil {
		return fmt.Errorf("failed to create sheet %s: %w", sheetBalance, err)
	}
	rows := [][]any{
		{"Generated", now.Format(time.RFC3339)},
		{"Assets", summary.Assets},
		{"Liabilities", summary.Liabilities},
		{"Equity", summary.Equity},
		{"Delta", summary.Delta},
		{"Status", summary.Status},
		{"Suggestion", summary.Suggestion},
	}
	for i := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return fmt.Errorf("failed to address summary row %d: %w", i+1, err)
		}
		if err := wb.SetSheetRow(sheetBalance, cell, &rows[i]); err != nil {
			return fmt.Errorf("failed to write summary row %d: %w", i+1, err)
		}
	}
	return nil
}

func writeCorrections(wb *excelize.File, entries []model.CorrectionLogEntry) error {
	if _, err := wb.NewSheet(sheetCorrections); err != nil {
		return fmt.Errorf("failed to create sheet %s: %w", sheetCorrections, err)
	}
	header := []any{"Timestamp", "Correction ID", "Account ID", "Account Number", "Actor", "Before", "After", "Impact", "Reason"}
	if err := writeHeader(wb, sheetCorrections, header); err != nil {
		return err
	}
	for i, e := range entries {
		row := []any{
			e.Timestamp.Format(time.RFC3339), e.ID, e.AccountID, e.AccountNumber, e.Actor,
			e.BeforeAmount, e.AfterAmount, e.Impact, e.Reason,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("failed to address correction row %d: %w", i+2, err)
		}
		if err := wb.SetSheetRow(sheetCorrections, cell, &row); err != nil {
			return fmt.Errorf("failed to write correction row %d: %w", i+2, err)
		}
	}
	return nil
}

func writeUploads(wb *excelize.File, records []model.UploadRecord) error {
	if _, err := wb.NewSheet(sheetUploads); err != nil {
		return fmt.Errorf("failed to create sheet %s: %w", sheetUploads, err)
	}
	header := []any{"Committed", "Batch ID", "File", "Sheet", "Rows Scanned", "Rows Imported", "Warnings"}
	if err := writeHeader(wb, sheetUploads, header); err != nil {
		return err
	}
	for i, r := range records {
		row := []any{
			r.CommittedAt.Format(time.RFC3339), r.BatchID, r.FileName, r.SheetName,
			r.RowsScanned, r.RowsImported, r.WarningCount,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("failed to address upload row %d: %w", i+2, err)
		}
		if err := wb.SetSheetRow(sheetUploads, cell, &row); err != nil {
			return fmt.Errorf("failed to write upload row %d: %w", i+2, err)
		}
	}
	return nil
}

func joinIssues(issues []string) string {
	out := ""
	for i, issue := range issues {
		if i > 0 {
			out += "; "
		}
		out += issue
	}
	return out
}
