// Package normalize converts free-form balance text into comparable signed
// numeric values. Normalization is pure and idempotent: feeding a result's
// CleanedValue back in produces the same normalized number.
package normalize

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// DefaultCurrency applies when no symbol, code prefix, or hint is present.
const DefaultCurrency = "USD"

// Issue messages attached to normalization results.
const (
	IssueMissingAmount    = "Missing amount"
	IssueUnparsableAmount = "Unable to parse numeric value"
	IssueDecimalPrecision = "Detected decimal precision"
)

// currencySymbols maps leading currency symbols to ISO codes.
var currencySymbols = map[string]string{
	"$": "USD",
	"€": "EUR",
	"£": "GBP",
	"¥": "JPY",
	"₹": "INR",
}

var (
	currencyCodeRe = regexp.MustCompile(`^([A-Z]{3})\b`)
	centsSuffixRe  = regexp.MustCompile(`\.\d{2}\)?$`)
)

// Result is the outcome of normalizing one balance string.
type Result struct {
	Currency     string
	CleanedValue string
	Issues       []string
	Normalized   float64
}

// Normalize parses raw balance text. Parenthesized values are negative per
// accounting convention; thousands-separator commas are dropped. A parse
// failure yields zero with the cleaned text retained for diagnostics.
func Normalize(raw, currencyHint string) Result {
	text := strings.TrimSpace(raw)
	if text == "" {
		return Result{
			Normalized: 0,
			Currency:   hintOrDefault(currencyHint),
			Issues:     []string{IssueMissingAmount},
		}
	}

	currency := detectCurrency(text, currencyHint)

	cleaned := cleanAmount(text)
	negative := strings.Contains(cleaned, "(") && strings.Contains(cleaned, ")")
	cleaned = strings.NewReplacer("(", "", ")", "", ",", "").Replace(cleaned)

	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return Result{
			Normalized:   0,
			Currency:     currency,
			CleanedValue: cleaned,
			Issues:       []string{IssueUnparsableAmount},
		}
	}
	if negative {
		value = -value
	}

	var issues []string
	if value != math.Trunc(value) && !centsSuffixRe.MatchString(text) {
		// Informational only; the value stands.
		issues = append(issues, IssueDecimalPrecision)
	}

	return Result{
		Normalized:   value,
		Currency:     currency,
		CleanedValue: formatCleaned(value, cleaned),
		Issues:       issues,
	}
}

// detectCurrency resolves the currency in fixed order: leading symbol,
// 3-letter uppercase code prefix, hint, default.
func detectCurrency(text, hint string) string {
	probe := strings.TrimLeft(text, " \t(")
	for symbol, code := range currencySymbols {
		if strings.HasPrefix(probe, symbol) {
			return code
		}
	}
	if m := currencyCodeRe.FindStringSubmatch(probe); m != nil {
		return m[1]
	}
	return hintOrDefault(hint)
}

func hintOrDefault(hint string) string {
	hint = strings.ToUpper(strings.TrimSpace(hint))
	if hint == "" {
		return DefaultCurrency
	}
	return hint
}

// cleanAmount strips everything except digits, decimal points, commas,
// parentheses, and minus signs.
func cleanAmount(text string) string {
	var b strings.Builder
	for _, r := range text {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == ',' || r == '(' || r == ')' || r == '-':
			b.WriteRune(r)
		}
	}
	return b.String()
}

// formatCleaned renders the sign-applied cleaned value so re-normalizing it
// reproduces the same number.
func formatCleaned(value float64, cleaned string) string {
	if value < 0 && !strings.HasPrefix(cleaned, "-") {
		return "-" + cleaned
	}
	return cleaned
}
