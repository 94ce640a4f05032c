// Package risk derives severity buckets, priority scores, and variance
// insights for general-ledger accounts. All functions are pure.
package risk

import (
	"math"

	"github.com/ledgerguard/ledgerguard/internal/model"
)

// Balance thresholds for severity bucketing.
const (
	criticalBalance = 5_000_000
	mediumBalance   = 1_000_000
)

// Severity weights for the priority score.
const (
	weightCritical = 1.4
	weightMedium   = 1.1
	weightLow      = 0.7
)

// DefaultVarianceThreshold is the fraction of movement that flips the
// variance flag to Red.
const DefaultVarianceThreshold = 0.10

// ThresholdLevel buckets an account by |balance|, mistake count, and review
// status. The checks below run in a fixed order that downstream scoring and
// reporting depend on; do not reorder or merge the branches.
func ThresholdLevel(balance float64, mistakes int, status model.ReviewStatus) model.ThresholdLevel {
	abs := math.Abs(balance)

	if abs >= criticalBalance || mistakes >= 4 || status == model.StatusMismatch {
		return model.ThresholdCritical
	}
	if abs >= mediumBalance || mistakes >= 2 {
		return model.ThresholdMedium
	}
	if mistakes >= 3 {
		return model.ThresholdCritical
	}
	if mistakes == 2 {
		return model.ThresholdMedium
	}
	return model.ThresholdLow
}

// PriorityScore ranks an account within a reviewer's queue. Larger balances,
// repeated mistakes, fallback classifications, and low confidence all push
// the account up the queue.
func PriorityScore(balance float64, mistakes int, level model.ThresholdLevel, source model.ClassificationSource, confidence float64) float64 {
	weight := severityWeight(level)

	score := math.Abs(balance)/mediumBalance*weight +
		float64(mistakes)*0.05 +
		(1 - confidence)
	if source == model.SourceFallback {
		score += 0.10
	}

	return round2(score)
}

func severityWeight(level model.ThresholdLevel) float64 {
	switch level {
	case model.ThresholdCritical:
		return weightCritical
	case model.ThresholdMedium:
		return weightMedium
	case model.ThresholdLow:
		return weightLow
	}
	return weightLow
}

// VarianceInsight describes period-over-period balance movement.
type VarianceInsight struct {
	Note            string
	PercentVariance *float64
	Flag            model.FlagStatus
}

// Variance compares the current balance against an optional previous
// balance. A zero previous balance substitutes |current| as the baseline
// (or 1 when both are zero) to avoid division by zero.
func Variance(current float64, previous *float64, threshold float64) VarianceInsight {
	if previous == nil {
		return VarianceInsight{
			Note: "previous unknown",
			Flag: model.FlagGreen,
		}
	}

	baseline := *previous
	if baseline == 0 {
		baseline = math.Abs(current)
		if baseline == 0 {
			baseline = 1
		}
	}

	pct := round2((current - *previous) / baseline * 100)

	flag := model.FlagGreen
	if math.Abs(pct) > threshold*100 {
		flag = model.FlagRed
	}

	return VarianceInsight{
		PercentVariance: &pct,
		Flag:            flag,
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
