// Package report computes read-only rollups over the current account
// snapshot and drives recurring report generation. All aggregation is pure
// and recomputed on demand.
package report

import (
	"math"
	"sort"
	"strings"

	"github.com/ledgerguard/ledgerguard/internal/model"
	"github.com/shopspring/decimal"
)

// DepartmentMetrics is the severity rollup for one department.
type DepartmentMetrics struct {
	DepartmentID   string
	DepartmentName string
	Counts         map[model.ThresholdLevel]int
	BalanceByLevel map[model.ThresholdLevel]float64
	AvgConfidence  float64
	Accounts       int
}

// ThresholdMetrics groups the snapshot by department id and, per group,
// counts accounts per severity bucket, averages classification confidence,
// and sums |balance| per bucket. Results are ordered by department id.
func ThresholdMetrics(accounts []*model.Account) []DepartmentMetrics {
	byDept := make(map[string]*DepartmentMetrics)

	for _, a := range accounts {
		m, ok := byDept[a.DepartmentID]
		if !ok {
			m = &DepartmentMetrics{
				DepartmentID:   a.DepartmentID,
				DepartmentName: a.DepartmentName,
				Counts:         make(map[model.ThresholdLevel]int),
				BalanceByLevel: make(map[model.ThresholdLevel]float64),
			}
			byDept[a.DepartmentID] = m
		}
		m.Accounts++
		m.Counts[a.ThresholdLevel]++
		m.BalanceByLevel[a.ThresholdLevel] += math.Abs(a.NormalizedBalance)
		m.AvgConfidence += a.Confidence
	}

	out := make([]DepartmentMetrics, 0, len(byDept))
	for _, m := range byDept {
		if m.Accounts > 0 {
			m.AvgConfidence /= float64(m.Accounts)
		}
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DepartmentID < out[j].DepartmentID })
	return out
}

// Balance summary statuses.
const (
	SummaryBalanced = "Balanced"
	SummaryMismatch = "Mismatch"
)

// BalanceSummary is the assets = liabilities + equity check over the
// snapshot.
type BalanceSummary struct {
	Status      string
	Suggestion  string
	Assets      float64
	Liabilities float64
	Equity      float64
	Delta       float64
}

// BalanceSheetSummary sums normalized balances per balance-sheet section.
// The section comes from the account's reconciliation status category,
// matched case-insensitively against Assets/Liabilities/Equity. Sums run
// through decimals so the delta is exact at two places.
func BalanceSheetSummary(accounts []*model.Account) BalanceSummary {
	assets := decimal.Zero
	liabilities := decimal.Zero
	equity := decimal.Zero

	for _, a := range accounts {
		value := decimal.NewFromFloat(a.NormalizedBalance)
		switch strings.ToLower(strings.TrimSpace(a.ReconciliationStatus)) {
		case "assets":
			assets = assets.Add(value)
		case "liabilities":
			liabilities = liabilities.Add(value)
		case "equity":
			equity = equity.Add(value)
		}
	}

	delta := assets.Sub(liabilities.Add(equity)).Round(2)

	summary := BalanceSummary{
		Assets:      assets.InexactFloat64(),
		Liabilities: liabilities.InexactFloat64(),
		Equity:      equity.InexactFloat64(),
		Delta:       delta.InexactFloat64(),
	}

	if delta.Abs().LessThan(decimal.NewFromInt(1)) {
		summary.Status = SummaryBalanced
		summary.Suggestion = "Books are in balance; no action needed."
		return summary
	}

	summary.Status = SummaryMismatch
	if delta.IsPositive() {
		summary.Suggestion = "Assets exceed liabilities plus equity; look for unrecorded liabilities or missing equity entries."
	} else {
		summary.Suggestion = "Liabilities plus equity exceed assets; look for unrecorded or understated asset balances."
	}
	return summary
}
