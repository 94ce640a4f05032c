package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name         string
		raw          string
		hint         string
		wantValue    float64
		wantCurrency string
		wantIssues   []string
	}{
		{
			name:         "parenthesized dollar amount is negative",
			raw:          "($1,234.50)",
			wantValue:    -1234.5,
			wantCurrency: "USD",
			wantIssues:   nil,
		},
		{
			name:         "plain positive with thousands separators",
			raw:          "2,500,000.00",
			wantValue:    2500000,
			wantCurrency: "USD",
			wantIssues:   nil,
		},
		{
			name:         "empty input",
			raw:          "",
			hint:         "EUR",
			wantValue:    0,
			wantCurrency: "EUR",
			wantIssues:   []string{IssueMissingAmount},
		},
		{
			name:         "whitespace only counts as missing",
			raw:          "   ",
			wantValue:    0,
			wantCurrency: "USD",
			wantIssues:   []string{IssueMissingAmount},
		},
		{
			name:         "currency code prefix wins over hint",
			raw:          "GBP 42.00",
			hint:         "EUR",
			wantValue:    42,
			wantCurrency: "GBP",
			wantIssues:   nil,
		},
		{
			name:         "symbol inside parentheses still detected",
			raw:          "(€500.00)",
			wantValue:    -500,
			wantCurrency: "EUR",
			wantIssues:   nil,
		},
		{
			name:         "hint applies when nothing is embedded",
			raw:          "1000",
			hint:         "jpy",
			wantValue:    1000,
			wantCurrency: "JPY",
			wantIssues:   nil,
		},
		{
			name:         "unparseable text",
			raw:          "N/A",
			wantValue:    0,
			wantCurrency: "USD",
			wantIssues:   []string{IssueUnparsableAmount},
		},
		{
			name:         "odd decimal precision is informational",
			raw:          "1234.5",
			wantValue:    1234.5,
			wantCurrency: "USD",
			wantIssues:   []string{IssueDecimalPrecision},
		},
		{
			name:         "negative sign preserved",
			raw:          "-987.00",
			wantValue:    -987,
			wantCurrency: "USD",
			wantIssues:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Normalize(tt.raw, tt.hint)

			assert.InDelta(t, tt.wantValue, result.Normalized, 0.0001)
			assert.Equal(t, tt.wantCurrency, result.Currency)
			assert.Equal(t, tt.wantIssues, result.Issues)
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{
		"($1,234.50)",
		"2,500,000.00",
		"-987.65",
		"EUR 10,000",
		"1234.5",
	}

	for _, raw := range inputs {
		t.Run(raw, func(t *testing.T) {
			first := Normalize(raw, "")
			second := Normalize(first.CleanedValue, first.Currency)
			assert.InDelta(t, first.Normalized, second.Normalized, 0.0001)
		})
	}
}

func TestNormalize_ParseFailureKeepsCleanedText(t *testing.T) {
	result := Normalize("12.34.56", "")

	assert.Zero(t, result.Normalized)
	assert.Equal(t, []string{IssueUnparsableAmount}, result.Issues)
	assert.Equal(t, "12.34.56", result.CleanedValue)
}
