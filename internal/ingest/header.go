package ingest

import (
	"fmt"
	"strings"

	"github.com/ledgerguard/ledgerguard/internal/common"
)

// Internal field names used by the header mapping.
const (
	FieldAccountNumber        = "accountNumber"
	FieldAccountName          = "accountName"
	FieldDepartment           = "department"
	FieldBalance              = "balance"
	FieldCurrency             = "currency"
	FieldBalanceDate          = "balanceDate"
	FieldNotes                = "notes"
	FieldReconciliationStatus = "reconciliationStatus"
	FieldConfirmationSource   = "confirmationSource"
	FieldReviewer             = "reviewer"
	FieldCheckpoint           = "checkpoint"
	FieldVarianceFlag         = "varianceFlag"
)

// mandatoryFields must all be present in a usable header row.
var mandatoryFields = []string{FieldAccountNumber, FieldAccountName, FieldDepartment}

// headerAliases maps recognized column labels (lowercased) to internal
// field names. Matching is case-insensitive exact match after trimming.
var headerAliases = map[string]string{
	"account number":         FieldAccountNumber,
	"account no":             FieldAccountNumber,
	"account no.":            FieldAccountNumber,
	"acct no":                FieldAccountNumber,
	"account #":              FieldAccountNumber,
	"gl account":             FieldAccountNumber,
	"account code":           FieldAccountNumber,
	"account name":           FieldAccountName,
	"account description":    FieldAccountName,
	"description":            FieldAccountName,
	"gl name":                FieldAccountName,
	"responsible department": FieldDepartment,
	"department":             FieldDepartment,
	"dept":                   FieldDepartment,
	"responsible":            FieldDepartment,
	"owner department":       FieldDepartment,
	"balance":                FieldBalance,
	"amount":                 FieldBalance,
	"closing balance":        FieldBalance,
	"ending balance":         FieldBalance,
	"current balance":        FieldBalance,
	"currency":               FieldCurrency,
	"ccy":                    FieldCurrency,
	"balance date":           FieldBalanceDate,
	"as of":                  FieldBalanceDate,
	"as of date":             FieldBalanceDate,
	"period end":             FieldBalanceDate,
	"notes":                  FieldNotes,
	"comments":               FieldNotes,
	"remarks":                FieldNotes,
	"reconciliation status":  FieldReconciliationStatus,
	"recon status":           FieldReconciliationStatus,
	"confirmation source":    FieldConfirmationSource,
	"confirmed by":           FieldConfirmationSource,
	"reviewer":               FieldReviewer,
	"preparer":               FieldReviewer,
	"assigned to":            FieldReviewer,
	"checkpoint":             FieldCheckpoint,
	"check point":            FieldCheckpoint,
	"variance flag":          FieldVarianceFlag,
	"flag":                   FieldVarianceFlag,
}

// headerScanDepth caps how many leading rows are probed for a header.
const headerScanDepth = 10

// minAliasMatches is the minimum number of recognized columns a header row
// must carry before the file is usable.
const minAliasMatches = 3

// Sheet is one tab of an uploaded file: rows of cells with a header row
// somewhere near the top.
type Sheet struct {
	Name string
	Rows [][]string
}

// Source is one uploaded file, already split into sheets of cell rows.
type Source struct {
	Name   string
	Sheets []Sheet
}

// headerMap records the chosen sheet, header row, and column → field
// bindings for one file.
type headerMap struct {
	sheet     *Sheet
	fields    map[int]string // column index → internal field name
	sheetName string
	headerRow int // 0-based index of the header row
	matches   int
}

// candidateHeaderRow returns the index of the first row within the scan
// depth holding more than 2 non-empty cells, or -1.
func candidateHeaderRow(sheet Sheet) int {
	depth := len(sheet.Rows)
	if depth > headerScanDepth {
		depth = headerScanDepth
	}
	for i := 0; i < depth; i++ {
		nonEmpty := 0
		for _, cell := range sheet.Rows[i] {
			if strings.TrimSpace(cell) != "" {
				nonEmpty++
			}
		}
		if nonEmpty > 2 {
			return i
		}
	}
	return -1
}

// mapHeader binds a header row's labels to internal fields. The first
// column claiming a field wins.
func mapHeader(row []string) map[int]string {
	fields := make(map[int]string)
	claimed := make(map[string]bool)
	for col, cell := range row {
		label := strings.ToLower(strings.TrimSpace(cell))
		if label == "" {
			continue
		}
		field, ok := headerAliases[label]
		if !ok || claimed[field] {
			continue
		}
		fields[col] = field
		claimed[field] = true
	}
	return fields
}

// chooseHeader scans every sheet of a file and picks the one whose candidate
// header row matches the most recognized aliases. The chosen header must
// match at least minAliasMatches aliases and cover every mandatory field;
// otherwise the whole file is rejected.
func chooseHeader(src Source) (*headerMap, error) {
	var best *headerMap

	for i := range src.Sheets {
		sheet := &src.Sheets[i]
		rowIdx := candidateHeaderRow(*sheet)
		if rowIdx < 0 {
			continue
		}
		fields := mapHeader(sheet.Rows[rowIdx])
		hm := &headerMap{
			sheet:     sheet,
			sheetName: sheet.Name,
			headerRow: rowIdx,
			fields:    fields,
			matches:   len(fields),
		}
		if best == nil || hm.matches > best.matches {
			best = hm
		}
	}

	if best == nil {
		return nil, fmt.Errorf("%w: file %s", common.ErrHeaderNotFound, src.Name)
	}
	if best.matches < minAliasMatches {
		return nil, fmt.Errorf("%w: file %s matched only %d recognized columns (need %d)",
			common.ErrHeaderNotFound, src.Name, best.matches, minAliasMatches)
	}

	present := make(map[string]bool, best.matches)
	for _, f := range best.fields {
		present[f] = true
	}
	for _, f := range mandatoryFields {
		if !present[f] {
			return nil, fmt.Errorf("%w: file %s is missing mandatory column %q",
				common.ErrHeaderNotFound, src.Name, f)
		}
	}

	return best, nil
}

// cell returns the trimmed value of a column in a row, tolerating ragged rows.
func cell(row []string, col int) string {
	if col < 0 || col >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[col])
}
