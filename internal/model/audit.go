package model

import "time"

// AuditEntry is one immutable record in an account's audit log. Entries are
// append-only; prior entries are never rewritten.
type AuditEntry struct {
	Timestamp time.Time
	Actor     string
	Role      string
	Action    string
	FromStage string
	ToStage   string
	Reason    string
}

// CorrectionLogEntry records a balance correction applied by the final
// approving authority. It is independent of the per-account audit log.
type CorrectionLogEntry struct {
	Timestamp     time.Time
	ID            string
	AccountID     int64
	AccountNumber string
	Actor         string
	Reason        string
	BeforeAmount  float64
	AfterAmount   float64
	Impact        float64 // |after - before|
}
