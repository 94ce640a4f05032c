// Package model defines the core domain models used throughout the application.
package model

import "time"

// ReviewStatus indicates where an account sits in the assurance review.
type ReviewStatus string

// Review status constants.
const (
	StatusPending   ReviewStatus = "PENDING"
	StatusApproved  ReviewStatus = "APPROVED"
	StatusRejected  ReviewStatus = "REJECTED"
	StatusMismatch  ReviewStatus = "MISMATCH"
	StatusFinalized ReviewStatus = "FINALIZED"
)

// ReviewStage is one of the ordered human-reviewer roles an account must
// pass through. A finalized account has no stage (nil pointer on Account).
type ReviewStage string

// Review stage constants, in review order.
const (
	StageChecker1 ReviewStage = "CHECKER1"
	StageChecker2 ReviewStage = "CHECKER2"
	StageChecker3 ReviewStage = "CHECKER3"
	StageChecker4 ReviewStage = "CHECKER4"
	StageCFO      ReviewStage = "CFO"
)

// StageSequence is the ordered review pipeline. Approval advances through
// this slice; the position past the end is Finalized.
var StageSequence = []ReviewStage{
	StageChecker1,
	StageChecker2,
	StageChecker3,
	StageChecker4,
	StageCFO,
}

// ThresholdLevel is the severity bucket derived from balance size and
// review history.
type ThresholdLevel string

// Threshold level constants.
const (
	ThresholdCritical ThresholdLevel = "CRITICAL"
	ThresholdMedium   ThresholdLevel = "MEDIUM"
	ThresholdLow      ThresholdLevel = "LOW"
)

// FlagStatus marks whether an account's period-over-period variance breached
// the configured threshold.
type FlagStatus string

// Flag status constants.
const (
	FlagGreen FlagStatus = "GREEN"
	FlagRed   FlagStatus = "RED"
)

// ClassificationSource indicates which precedence tier produced the
// department assignment.
type ClassificationSource string

// Classification source constants.
const (
	SourceHistorical ClassificationSource = "HISTORICAL"
	SourceManual     ClassificationSource = "MANUAL"
	SourceRule       ClassificationSource = "RULE"
	SourceFallback   ClassificationSource = "FALLBACK"
)

// Evidence is a single signal that contributed to a classification decision.
type Evidence struct {
	Kind        string
	Description string
	Weight      float64
	Confidence  float64
}

// Account is a general-ledger account undergoing balance-sheet assurance
// review. The account exclusively owns its audit log and evidence trail.
type Account struct {
	BalanceDate time.Time
	CreatedAt   time.Time

	CurrentStage *ReviewStage // nil only when ReviewStatus is Finalized

	PreviousBalance *float64
	PercentVariance *float64

	AccountNumber  string
	AccountName    string
	DepartmentName string
	DepartmentID   string
	LogicID        string
	Notes          string

	BalanceRaw string
	Currency   string

	// Optional reconciliation context carried forward across uploads.
	ReconciliationStatus string
	ConfirmationSource   string
	Reviewer             string
	Checkpoint           string

	Source       ClassificationSource
	ReviewStatus ReviewStatus

	ThresholdLevel ThresholdLevel
	FlagStatus     FlagStatus

	EvidenceTrail   []Evidence
	MatchedKeywords []string
	MatchedPatterns []string
	BalanceIssues   []string
	AuditLog        []AuditEntry

	ID                int64
	NormalizedBalance float64
	Confidence        float64
	PriorityScore     float64
	MistakeCount      int
}

// Finalized reports whether the account has completed the review pipeline.
func (a *Account) Finalized() bool {
	return a.ReviewStatus == StatusFinalized
}

// StageIndex returns the position of a stage in the review sequence, or -1
// for an unknown stage.
func StageIndex(stage ReviewStage) int {
	for i, s := range StageSequence {
		if s == stage {
			return i
		}
	}
	return -1
}

// ParseStage resolves a reviewer role string to a stage, case-insensitively.
func ParseStage(role string) (ReviewStage, bool) {
	for _, s := range StageSequence {
		if string(s) == normalizeRole(role) {
			return s, true
		}
	}
	return "", false
}

func normalizeRole(role string) string {
	out := make([]byte, 0, len(role))
	for i := 0; i < len(role); i++ {
		c := role[i]
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		if c == ' ' || c == '_' || c == '-' {
			continue
		}
		out = append(out, c)
	}
	return string(out)
}

// Clone returns a deep copy of the account. The workflow machine operates on
// clones so a failed transition never leaks partial mutation.
func (a *Account) Clone() *Account {
	c := *a
	if a.CurrentStage != nil {
		stage := *a.CurrentStage
		c.CurrentStage = &stage
	}
	if a.PreviousBalance != nil {
		v := *a.PreviousBalance
		c.PreviousBalance = &v
	}
	if a.PercentVariance != nil {
		v := *a.PercentVariance
		c.PercentVariance = &v
	}
	c.EvidenceTrail = append([]Evidence(nil), a.EvidenceTrail...)
	c.MatchedKeywords = append([]string(nil), a.MatchedKeywords...)
	c.MatchedPatterns = append([]string(nil), a.MatchedPatterns...)
	c.BalanceIssues = append([]string(nil), a.BalanceIssues...)
	c.AuditLog = append([]AuditEntry(nil), a.AuditLog...)
	return &c
}
