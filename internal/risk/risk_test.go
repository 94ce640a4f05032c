package risk

import (
	"testing"

	"github.com/ledgerguard/ledgerguard/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThresholdLevel(t *testing.T) {
	tests := []struct {
		name     string
		balance  float64
		mistakes int
		status   model.ReviewStatus
		want     model.ThresholdLevel
	}{
		{
			name:    "large balance is critical",
			balance: 6_000_000, mistakes: 0, status: model.StatusPending,
			want: model.ThresholdCritical,
		},
		{
			name:    "large negative balance is critical",
			balance: -5_000_000, mistakes: 0, status: model.StatusPending,
			want: model.ThresholdCritical,
		},
		{
			name:    "four mistakes is critical regardless of balance",
			balance: 100, mistakes: 4, status: model.StatusPending,
			want: model.ThresholdCritical,
		},
		{
			name:    "mismatch status is critical",
			balance: 100, mistakes: 0, status: model.StatusMismatch,
			want: model.ThresholdCritical,
		},
		{
			name:    "million balance is medium",
			balance: 1_500_000, mistakes: 0, status: model.StatusPending,
			want: model.ThresholdMedium,
		},
		{
			name:    "two mistakes is medium",
			balance: 50_000, mistakes: 2, status: model.StatusPending,
			want: model.ThresholdMedium,
		},
		{
			name:    "three mistakes caught by the second check",
			balance: 50_000, mistakes: 3, status: model.StatusPending,
			want: model.ThresholdMedium,
		},
		{
			name:    "small clean account is low",
			balance: 250_000, mistakes: 0, status: model.StatusApproved,
			want: model.ThresholdLow,
		},
		{
			name:    "one mistake alone is low",
			balance: 100, mistakes: 1, status: model.StatusPending,
			want: model.ThresholdLow,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ThresholdLevel(tt.balance, tt.mistakes, tt.status))
		})
	}
}

func TestPriorityScore(t *testing.T) {
	tests := []struct {
		name       string
		balance    float64
		mistakes   int
		level      model.ThresholdLevel
		source     model.ClassificationSource
		confidence float64
		want       float64
	}{
		{
			name:    "critical account with mistakes",
			balance: 6_000_000, mistakes: 2,
			level: model.ThresholdCritical, source: model.SourceHistorical, confidence: 0.96,
			want: 8.54, // 6*1.4 + 0.10 + 0.04
		},
		{
			name:    "fallback classification carries a penalty",
			balance: 500_000, mistakes: 0,
			level: model.ThresholdLow, source: model.SourceFallback, confidence: 0.35,
			want: 1.10, // 0.5*0.7 + 0.10 + 0.65
		},
		{
			name:    "medium account",
			balance: 1_000_000, mistakes: 1,
			level: model.ThresholdMedium, source: model.SourceRule, confidence: 0.87,
			want: 1.28, // 1.1 + 0.05 + 0.13
		},
		{
			name:    "sign of balance is irrelevant",
			balance: -1_000_000, mistakes: 1,
			level: model.ThresholdMedium, source: model.SourceRule, confidence: 0.87,
			want: 1.28,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PriorityScore(tt.balance, tt.mistakes, tt.level, tt.source, tt.confidence)
			assert.InDelta(t, tt.want, got, 0.0001)
		})
	}
}

func TestVariance(t *testing.T) {
	prev := func(v float64) *float64 { return &v }

	tests := []struct {
		name      string
		current   float64
		previous  *float64
		threshold float64
		wantPct   *float64
		wantFlag  model.FlagStatus
	}{
		{
			name:     "unknown previous yields no flag",
			current:  100, previous: nil, threshold: 0.10,
			wantPct: nil, wantFlag: model.FlagGreen,
		},
		{
			name:    "small movement stays green",
			current: 105, previous: prev(100), threshold: 0.10,
			wantPct: prev(5), wantFlag: model.FlagGreen,
		},
		{
			name:    "large movement goes red",
			current: 150, previous: prev(100), threshold: 0.10,
			wantPct: prev(50), wantFlag: model.FlagRed,
		},
		{
			name:    "drop below threshold goes red",
			current: 80, previous: prev(100), threshold: 0.10,
			wantPct: prev(-20), wantFlag: model.FlagRed,
		},
		{
			name:    "zero previous uses current magnitude as baseline",
			current: 500, previous: prev(0), threshold: 0.10,
			wantPct: prev(100), wantFlag: model.FlagRed,
		},
		{
			name:    "both zero avoids division by zero",
			current: 0, previous: prev(0), threshold: 0.10,
			wantPct: prev(0), wantFlag: model.FlagGreen,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Variance(tt.current, tt.previous, tt.threshold)

			if tt.wantPct == nil {
				assert.Nil(t, got.PercentVariance)
				assert.Equal(t, "previous unknown", got.Note)
			} else {
				require.NotNil(t, got.PercentVariance)
				assert.InDelta(t, *tt.wantPct, *got.PercentVariance, 0.0001)
			}
			assert.Equal(t, tt.wantFlag, got.Flag)
		})
	}
}

func TestThresholdLevel_ExactBoundaries(t *testing.T) {
	assert.Equal(t, model.ThresholdCritical, ThresholdLevel(5_000_000, 0, model.StatusPending))
	assert.Equal(t, model.ThresholdMedium, ThresholdLevel(1_000_000, 0, model.StatusPending))
	assert.Equal(t, model.ThresholdLow, ThresholdLevel(999_999.99, 1, model.StatusPending))
}
