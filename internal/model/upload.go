package model

import "time"

// UploadRow is the validated, schema-explicit projection of one spreadsheet
// row. Blank fields stay blank; defaulting happens during reconciliation,
// never by mutating the row in place.
type UploadRow struct {
	AccountNumber        string
	AccountName          string
	Department           string
	BalanceRaw           string
	Currency             string
	BalanceDate          string
	Notes                string
	ReconciliationStatus string
	ConfirmationSource   string
	Reviewer             string
	Checkpoint           string
	VarianceFlag         string

	SourceRow int // 1-based row number in the chosen sheet, for diagnostics
}

// FileSummary reports what happened to a single uploaded file.
type FileSummary struct {
	FileName     string
	SheetName    string
	HeaderRow    int
	RowsScanned  int
	RowsImported int
	Warnings     []string
	Errors       []string
}

// UploadBatch is the proposal produced by one ingestion run. The pipeline
// never mutates the destination store; the caller commits the batch
// atomically.
type UploadBatch struct {
	StartedAt     time.Time
	ID            string
	Accounts      []*Account
	Files         []FileSummary
	Warnings      []string
	Errors        []string
	ClearExisting bool
}

// UploadRecord is a persisted note of a committed batch, kept for the
// report export's upload-history tab.
type UploadRecord struct {
	CommittedAt  time.Time
	BatchID      string
	FileName     string
	SheetName    string
	RowsScanned  int
	RowsImported int
	WarningCount int
}
