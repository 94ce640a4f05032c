// Package assistant answers natural-language questions about the review
// snapshot. A deterministic keyword router handles the common question
// shapes locally; anything it cannot route goes to an optional remote
// completion service.
package assistant

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/ledgerguard/ledgerguard/internal/model"
)

// Answer is the assistant's response to one question.
type Answer struct {
	Text     string
	Accounts []*model.Account
	Remote   bool
}

// Assistant routes questions over an account snapshot.
type Assistant struct {
	remote RemoteClient // may be nil
}

// New returns an Assistant. Pass nil to run in local-only mode.
func New(remote RemoteClient) *Assistant {
	return &Assistant{remote: remote}
}

var amountRe = regexp.MustCompile(`(?:above|over|more than|exceeding)\s+\$?([\d,]+(?:\.\d+)?)\s*(million|m\b|k\b)?`)

// Ask answers a question against the snapshot. Unroutable questions fall
// back to the remote service when one is configured.
func (a *Assistant) Ask(ctx context.Context, question string, accounts []*model.Account) (Answer, error) {
	q := strings.ToLower(strings.TrimSpace(question))
	if q == "" {
		return Answer{Text: "Ask about severity, departments, variance flags, negative balances, or balances above an amount."}, nil
	}

	if answer, ok := a.routeLocal(q, accounts); ok {
		return answer, nil
	}

	if a.remote == nil {
		return Answer{
			Text: "I couldn't match that question. Try asking about critical accounts, a department by name, " +
				"red variance flags, negative balances, mismatches, or balances above an amount.",
		}, nil
	}
	return a.askRemote(ctx, question, accounts)
}

func (a *Assistant) routeLocal(q string, accounts []*model.Account) (Answer, bool) {
	type rule struct {
		match  func() ([]*model.Account, string)
		active bool
	}

	if m := amountRe.FindStringSubmatch(q); m != nil {
		limit, err := parseAmount(m[1], m[2])
		if err == nil {
			hits := filter(accounts, func(a *model.Account) bool {
				return abs(a.NormalizedBalance) > limit
			})
			return describe(hits, fmt.Sprintf("accounts with balances above %s", formatAmount(limit))), true
		}
	}

	rules := []rule{
		{active: strings.Contains(q, "critical"), match: func() ([]*model.Account, string) {
			return filter(accounts, byLevel(model.ThresholdCritical)), "critical-severity accounts"
		}},
		{active: strings.Contains(q, "medium"), match: func() ([]*model.Account, string) {
			return filter(accounts, byLevel(model.ThresholdMedium)), "medium-severity accounts"
		}},
		{active: strings.Contains(q, "low risk") || strings.Contains(q, "low severity") || strings.Contains(q, "low-severity"), match: func() ([]*model.Account, string) {
			return filter(accounts, byLevel(model.ThresholdLow)), "low-severity accounts"
		}},
		{active: strings.Contains(q, "negative"), match: func() ([]*model.Account, string) {
			return filter(accounts, func(a *model.Account) bool { return a.NormalizedBalance < 0 }), "accounts with negative balances"
		}},
		{active: strings.Contains(q, "red flag") || strings.Contains(q, "flagged") || strings.Contains(q, "variance"), match: func() ([]*model.Account, string) {
			return filter(accounts, func(a *model.Account) bool { return a.FlagStatus == model.FlagRed }), "accounts with red variance flags"
		}},
		{active: strings.Contains(q, "mismatch") || strings.Contains(q, "rejected"), match: func() ([]*model.Account, string) {
			return filter(accounts, func(a *model.Account) bool {
				return a.ReviewStatus == model.StatusMismatch || a.ReviewStatus == model.StatusRejected
			}), "accounts sent back for rework"
		}},
		{active: strings.Contains(q, "finalized") || strings.Contains(q, "finalised"), match: func() ([]*model.Account, string) {
			return filter(accounts, func(a *model.Account) bool { return a.Finalized() }), "finalized accounts"
		}},
		{active: strings.Contains(q, "pending") || strings.Contains(q, "awaiting"), match: func() ([]*model.Account, string) {
			return filter(accounts, func(a *model.Account) bool { return a.ReviewStatus == model.StatusPending }), "accounts pending review"
		}},
	}

	for _, r := range rules {
		if r.active {
			hits, label := r.match()
			return describe(hits, label), true
		}
	}

	// Department names come from the snapshot itself, so any assigned
	// department can be asked about by name.
	for _, dept := range departments(accounts) {
		if strings.Contains(q, strings.ToLower(dept)) {
			hits := filter(accounts, func(a *model.Account) bool { return a.DepartmentName == dept })
			return describe(hits, fmt.Sprintf("accounts in %s", dept)), true
		}
	}

	return Answer{}, false
}

func byLevel(level model.ThresholdLevel) func(*model.Account) bool {
	return func(a *model.Account) bool { return a.ThresholdLevel == level }
}

func filter(accounts []*model.Account, keep func(*model.Account) bool) []*model.Account {
	var out []*model.Account
	for _, a := range accounts {
		if keep(a) {
			out = append(out, a)
		}
	}
	return out
}

func departments(accounts []*model.Account) []string {
	seen := make(map[string]struct{})
	var names []string
	for _, a := range accounts {
		if a.DepartmentName == "" {
			continue
		}
		if _, ok := seen[a.DepartmentName]; ok {
			continue
		}
		seen[a.DepartmentName] = struct{}{}
		names = append(names, a.DepartmentName)
	}
	// Longest first so "Accounts Payable" wins over a department literally
	// named "Accounts".
	sort.Slice(names, func(i, j int) bool { return len(names[i]) > len(names[j]) })
	return names
}

func describe(hits []*model.Account, label string) Answer {
	if len(hits) == 0 {
		return Answer{Text: fmt.Sprintf("No %s in the current snapshot.", label)}
	}

	sorted := append([]*model.Account(nil), hits...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].PriorityScore > sorted[j].PriorityScore })

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d %s:\n", len(sorted), label)
	for _, a := range sorted {
		fmt.Fprintf(&b, "  %s  %s  %s %.2f  priority %.2f\n",
			a.AccountNumber, a.AccountName, a.Currency, a.NormalizedBalance, a.PriorityScore)
	}
	return Answer{Text: strings.TrimRight(b.String(), "\n"), Accounts: sorted}
}

func parseAmount(number, unit string) (float64, error) {
	v, err := strconv.ParseFloat(strings.ReplaceAll(number, ",", ""), 64)
	if err != nil {
		return 0, err
	}
	switch strings.TrimSpace(unit) {
	case "million", "m":
		v *= 1_000_000
	case "k":
		v *= 1_000
	}
	return v, nil
}

func formatAmount(v float64) string {
	switch {
	case v >= 1_000_000 && v == float64(int64(v/1_000_000))*1_000_000:
		return fmt.Sprintf("%.0fM", v/1_000_000)
	case v >= 1_000 && v == float64(int64(v/1_000))*1_000:
		return fmt.Sprintf("%.0fK", v/1_000)
	default:
		return fmt.Sprintf("%.2f", v)
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
