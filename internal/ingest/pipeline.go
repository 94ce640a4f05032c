// Package ingest merges uploaded tabular extracts into candidate account
// records. The pipeline classifies, normalizes, and scores every accepted
// row but never mutates the destination store: it returns a proposal the
// caller commits atomically.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ledgerguard/ledgerguard/internal/classify"
	"github.com/ledgerguard/ledgerguard/internal/common"
	"github.com/ledgerguard/ledgerguard/internal/model"
	"github.com/ledgerguard/ledgerguard/internal/normalize"
	"github.com/ledgerguard/ledgerguard/internal/risk"
	"github.com/ledgerguard/ledgerguard/internal/service"
)

// balanceDateLayouts are tried in order when parsing the balance date column.
var balanceDateLayouts = []string{
	"2006-01-02",
	"01/02/2006",
	"2006/01/02",
	"2-Jan-2006",
	"Jan 2, 2006",
}

// Pipeline reconciles uploaded files against an existing account snapshot.
type Pipeline struct {
	classifier        *classify.Classifier
	clock             service.Clock
	varianceThreshold float64
}

// Config holds configuration options for the ingestion pipeline.
type Config struct {
	VarianceThreshold float64
}

// NewPipeline creates a pipeline over the default classification tables.
func NewPipeline(classifier *classify.Classifier, clock service.Clock) *Pipeline {
	return NewPipelineWithConfig(classifier, clock, Config{})
}

// NewPipelineWithConfig creates a pipeline with custom configuration.
func NewPipelineWithConfig(classifier *classify.Classifier, clock service.Clock, cfg Config) *Pipeline {
	if cfg.VarianceThreshold <= 0 {
		cfg.VarianceThreshold = risk.DefaultVarianceThreshold
	}
	return &Pipeline{
		classifier:        classifier,
		clock:             clock,
		varianceThreshold: cfg.VarianceThreshold,
	}
}

// fileResult is the outcome of the per-file phase. Files are independent of
// one another, so this phase runs concurrently.
type fileResult struct {
	summary model.FileSummary
	rows    []model.UploadRow
	err     error
}

// Run processes every file and returns the batch proposal. File-level
// failures reject only that file; sibling files still process.
func (p *Pipeline) Run(ctx context.Context, files []Source, existing []*model.Account, clearExisting bool) (*model.UploadBatch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	batch := &model.UploadBatch{
		ID:            uuid.NewString(),
		StartedAt:     p.clock.Now(),
		ClearExisting: clearExisting,
	}

	slog.Info("Starting ingestion run",
		"batch_id", batch.ID,
		"files", len(files),
		"clear_existing", clearExisting)

	// Phase 1: parse and validate each file. No shared mutable state, so
	// files run in parallel; results land in their input slot to keep the
	// merge deterministic.
	results := make([]fileResult, len(files))
	var wg sync.WaitGroup
	for i := range files {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = p.processFile(files[i])
		}(i)
	}
	wg.Wait()

	// Phase 2: merge in input order. Cross-file deduplication and id
	// assignment are order-dependent and stay sequential.
	prior := make(map[string]*model.Account, len(existing))
	for _, a := range existing {
		prior[strings.ToLower(a.AccountNumber)] = a
	}
	claimed := make(map[string]string) // account number → claiming file

	for i := range results {
		res := &results[i]
		if res.err != nil {
			msg := res.err.Error()
			res.summary.Errors = append(res.summary.Errors, msg)
			batch.Errors = append(batch.Errors, msg)
			batch.Files = append(batch.Files, res.summary)
			continue
		}

		for _, row := range res.rows {
			key := strings.ToLower(row.AccountNumber)

			if owner, dup := claimed[key]; dup {
				warn := fmt.Sprintf("file %s: %v", res.summary.FileName,
					common.NewRowError(row.SourceRow, row.AccountNumber,
						fmt.Errorf("%w: already claimed by %s; first occurrence wins", common.ErrDuplicateAccount, owner)))
				res.summary.Warnings = append(res.summary.Warnings, warn)
				continue
			}
			if !clearExisting {
				if _, exists := prior[key]; exists {
					warn := fmt.Sprintf("file %s: %v", res.summary.FileName,
						common.NewRowError(row.SourceRow, row.AccountNumber,
							fmt.Errorf("%w: already exists in the store", common.ErrDuplicateAccount)))
					res.summary.Warnings = append(res.summary.Warnings, warn)
					continue
				}
			}

			account := p.buildAccount(row, prior[key], batch.ID)
			claimed[key] = res.summary.FileName
			batch.Accounts = append(batch.Accounts, account)
			res.summary.RowsImported++
		}

		batch.Warnings = append(batch.Warnings, res.summary.Warnings...)
		batch.Files = append(batch.Files, res.summary)
	}

	// Order the proposal by name, department, account number.
	sort.SliceStable(batch.Accounts, func(i, j int) bool {
		a, b := batch.Accounts[i], batch.Accounts[j]
		if n := strings.Compare(strings.ToLower(a.AccountName), strings.ToLower(b.AccountName)); n != 0 {
			return n < 0
		}
		if n := strings.Compare(strings.ToLower(a.DepartmentName), strings.ToLower(b.DepartmentName)); n != 0 {
			return n < 0
		}
		return strings.Compare(strings.ToLower(a.AccountNumber), strings.ToLower(b.AccountNumber)) < 0
	})

	// Ids are sequential over the ordered proposal: from 1 when clearing,
	// otherwise continuing past the current maximum.
	nextID := int64(1)
	if !clearExisting {
		for _, a := range existing {
			if a.ID >= nextID {
				nextID = a.ID + 1
			}
		}
	}
	for _, account := range batch.Accounts {
		account.ID = nextID
		nextID++
	}

	slog.Info("Ingestion run complete",
		"batch_id", batch.ID,
		"accounts", len(batch.Accounts),
		"warnings", len(batch.Warnings),
		"errors", len(batch.Errors))
	return batch, nil
}

// processFile runs the per-file phase: header selection, row extraction,
// in-file duplicate rejection, then mandatory-field validation on the
// surviving rows.
func (p *Pipeline) processFile(src Source) fileResult {
	summary := model.FileSummary{FileName: src.Name}

	hm, err := chooseHeader(src)
	if err != nil {
		return fileResult{summary: summary, err: err}
	}
	summary.SheetName = hm.sheetName
	summary.HeaderRow = hm.headerRow + 1

	cols := make(map[string]int, len(hm.fields))
	for col, field := range hm.fields {
		cols[field] = col
	}

	var rows []model.UploadRow
	for i := hm.headerRow + 1; i < len(hm.sheet.Rows); i++ {
		raw := hm.sheet.Rows[i]
		if blankRow(raw) {
			continue
		}
		summary.RowsScanned++
		rows = append(rows, extractRow(raw, cols, i+1))
	}

	// Duplicate rejection runs before field validation: a number that
	// appears twice is dropped file-wide even when one of its rows would
	// also fail validation.
	rows = dropFileDuplicates(src.Name, rows, &summary)

	kept := rows[:0]
	for _, row := range rows {
		if missing := missingMandatory(row); missing != "" {
			summary.Warnings = append(summary.Warnings,
				fmt.Sprintf("file %s: %v", src.Name,
					common.NewRowError(row.SourceRow, "", fmt.Errorf("%w: %s", common.ErrMissingField, missing))))
			continue
		}
		kept = append(kept, row)
	}
	return fileResult{summary: summary, rows: kept}
}

func extractRow(raw []string, cols map[string]int, sourceRow int) model.UploadRow {
	at := func(field string) string {
		col, ok := cols[field]
		if !ok {
			return ""
		}
		return cell(raw, col)
	}
	return model.UploadRow{
		AccountNumber:        at(FieldAccountNumber),
		AccountName:          at(FieldAccountName),
		Department:           at(FieldDepartment),
		BalanceRaw:           at(FieldBalance),
		Currency:             at(FieldCurrency),
		BalanceDate:          at(FieldBalanceDate),
		Notes:                at(FieldNotes),
		ReconciliationStatus: at(FieldReconciliationStatus),
		ConfirmationSource:   at(FieldConfirmationSource),
		Reviewer:             at(FieldReviewer),
		Checkpoint:           at(FieldCheckpoint),
		VarianceFlag:         at(FieldVarianceFlag),
		SourceRow:            sourceRow,
	}
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func missingMandatory(row model.UploadRow) string {
	switch {
	case row.AccountNumber == "":
		return "account number"
	case row.AccountName == "":
		return "account name"
	case row.Department == "":
		return "responsible department"
	}
	return ""
}

// dropFileDuplicates removes every row whose account number appears more
// than once in the file, emitting one consolidated warning per duplicated
// number referencing all offending row numbers. Rows without an account
// number pass through; the mandatory-field check handles them.
func dropFileDuplicates(fileName string, rows []model.UploadRow, summary *model.FileSummary) []model.UploadRow {
	occurrences := make(map[string][]int)
	for _, row := range rows {
		key := strings.ToLower(row.AccountNumber)
		if key == "" {
			continue
		}
		occurrences[key] = append(occurrences[key], row.SourceRow)
	}

	duplicated := make(map[string]bool)
	kept := make([]model.UploadRow, 0, len(rows))
	for _, row := range rows {
		key := strings.ToLower(row.AccountNumber)
		rowNums := occurrences[key]
		if key == "" || len(rowNums) <= 1 {
			kept = append(kept, row)
			continue
		}
		if !duplicated[key] {
			duplicated[key] = true
			refs := make([]string, len(rowNums))
			for i, n := range rowNums {
				refs[i] = fmt.Sprintf("%d", n)
			}
			summary.Warnings = append(summary.Warnings,
				fmt.Sprintf("file %s: duplicate account number %s in rows %s; all occurrences dropped",
					fileName, row.AccountNumber, strings.Join(refs, ", ")))
		}
	}
	return kept
}

// buildAccount turns an accepted row into a candidate account record,
// invoking classification, normalization, and risk scoring, and carrying
// forward optional fields from the prior-version account when the row does
// not supply them.
func (p *Pipeline) buildAccount(row model.UploadRow, prior *model.Account, batchID string) *model.Account {
	classified := p.classifier.Classify(row.AccountNumber, row.AccountName, row.Department)
	balance := normalize.Normalize(row.BalanceRaw, row.Currency)

	level := risk.ThresholdLevel(balance.Normalized, 0, model.StatusPending)
	score := risk.PriorityScore(balance.Normalized, 0, level, classified.Source, classified.Confidence)

	stage := model.StageChecker1
	account := &model.Account{
		AccountNumber:     row.AccountNumber,
		AccountName:       row.AccountName,
		DepartmentName:    classified.DepartmentName,
		DepartmentID:      classified.DepartmentID,
		LogicID:           classified.LogicID,
		Confidence:        classified.Confidence,
		Source:            classified.Source,
		EvidenceTrail:     classified.Evidence,
		MatchedKeywords:   classified.MatchedKeywords,
		MatchedPatterns:   classified.MatchedPatterns,
		Notes:             firstNonEmpty(row.Notes, classified.Notes),
		BalanceRaw:        row.BalanceRaw,
		NormalizedBalance: balance.Normalized,
		Currency:          balance.Currency,
		BalanceIssues:     balance.Issues,
		ThresholdLevel:    level,
		PriorityScore:     score,
		FlagStatus:        model.FlagGreen,
		ReviewStatus:      model.StatusPending,
		CurrentStage:      &stage,
		CreatedAt:         p.clock.Now(),
	}

	if row.BalanceDate != "" {
		parsed := false
		for _, layout := range balanceDateLayouts {
			if t, err := time.Parse(layout, row.BalanceDate); err == nil {
				account.BalanceDate = t
				parsed = true
				break
			}
		}
		if !parsed {
			account.BalanceIssues = append(account.BalanceIssues,
				fmt.Sprintf("Unrecognized balance date %q", row.BalanceDate))
		}
	}

	if prior != nil {
		previous := prior.NormalizedBalance
		account.PreviousBalance = &previous
		insight := risk.Variance(balance.Normalized, &previous, p.varianceThreshold)
		account.PercentVariance = insight.PercentVariance
		account.FlagStatus = insight.Flag

		account.ReconciliationStatus = firstNonEmpty(row.ReconciliationStatus, prior.ReconciliationStatus)
		account.ConfirmationSource = firstNonEmpty(row.ConfirmationSource, prior.ConfirmationSource)
		account.Reviewer = firstNonEmpty(row.Reviewer, prior.Reviewer)
		account.Checkpoint = firstNonEmpty(row.Checkpoint, prior.Checkpoint)
	} else {
		account.ReconciliationStatus = row.ReconciliationStatus
		account.ConfirmationSource = row.ConfirmationSource
		account.Reviewer = row.Reviewer
		account.Checkpoint = row.Checkpoint
	}

	// An explicit flag in the row overrides the computed one.
	switch strings.ToUpper(row.VarianceFlag) {
	case string(model.FlagRed):
		account.FlagStatus = model.FlagRed
	case string(model.FlagGreen):
		account.FlagStatus = model.FlagGreen
	}

	account.AuditLog = []model.AuditEntry{{
		Timestamp: account.CreatedAt,
		Actor:     "system",
		Role:      "INGESTION",
		Action:    "Ingestion",
		ToStage:   string(model.StageChecker1),
		Reason:    fmt.Sprintf("batch %s", batchID),
	}}

	return account
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
