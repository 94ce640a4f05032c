package workflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ledgerguard/ledgerguard/internal/common"
	"github.com/ledgerguard/ledgerguard/internal/model"
	"github.com/ledgerguard/ledgerguard/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testTime = time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)

func newAccount(stage model.ReviewStage, status model.ReviewStatus) *model.Account {
	s := stage
	return &model.Account{
		ID:            1,
		AccountNumber: "401000",
		AccountName:   "Sales revenue",
		CurrentStage:  &s,
		ReviewStatus:  status,
		AuditLog: []model.AuditEntry{
			{Timestamp: testTime, Action: "Ingestion", ToStage: string(model.StageChecker1)},
		},
	}
}

func TestApprove_FullChain(t *testing.T) {
	account := newAccount(model.StageChecker1, model.StatusPending)

	for _, stage := range model.StageSequence {
		actor := service.Actor{Name: "reviewer", Role: stage}
		require.NoError(t, Approve(account, actor, testTime))
	}

	assert.Equal(t, model.StatusFinalized, account.ReviewStatus)
	assert.Nil(t, account.CurrentStage)
	// Ingestion entry plus one entry per approval.
	assert.Len(t, account.AuditLog, 1+len(model.StageSequence))
}

func TestApprove_ReachingCFOSetsApproved(t *testing.T) {
	account := newAccount(model.StageChecker4, model.StatusPending)

	err := Approve(account, service.Actor{Name: "c4", Role: model.StageChecker4}, testTime)
	require.NoError(t, err)

	require.NotNil(t, account.CurrentStage)
	assert.Equal(t, model.StageCFO, *account.CurrentStage)
	assert.Equal(t, model.StatusApproved, account.ReviewStatus)
}

func TestApprove_IntermediateStagesStayPending(t *testing.T) {
	account := newAccount(model.StageChecker1, model.StatusPending)

	err := Approve(account, service.Actor{Name: "c1", Role: model.StageChecker1}, testTime)
	require.NoError(t, err)

	require.NotNil(t, account.CurrentStage)
	assert.Equal(t, model.StageChecker2, *account.CurrentStage)
	assert.Equal(t, model.StatusPending, account.ReviewStatus)

	last := account.AuditLog[len(account.AuditLog)-1]
	assert.Equal(t, "Approved by CHECKER1", last.Action)
	assert.Equal(t, string(model.StageChecker1), last.FromStage)
	assert.Equal(t, string(model.StageChecker2), last.ToStage)
}

func TestApprove_WrongRoleIsNoOp(t *testing.T) {
	account := newAccount(model.StageChecker2, model.StatusPending)
	before := account.Clone()

	err := Approve(account, service.Actor{Name: "c1", Role: model.StageChecker1}, testTime)

	require.ErrorIs(t, err, common.ErrUnauthorized)
	assert.Equal(t, before, account, "failed approval must not mutate the account")
}

func TestApprove_Finalized(t *testing.T) {
	account := newAccount(model.StageChecker1, model.StatusPending)
	account.CurrentStage = nil
	account.ReviewStatus = model.StatusFinalized

	err := Approve(account, service.Actor{Name: "cfo", Role: model.StageCFO}, testTime)

	require.ErrorIs(t, err, common.ErrAlreadyFinalized)
}

func TestReject(t *testing.T) {
	account := newAccount(model.StageChecker2, model.StatusPending)

	err := Reject(account, service.Actor{Name: "c2", Role: model.StageChecker2}, "wrong balance", testTime)
	require.NoError(t, err)

	assert.Equal(t, model.StatusMismatch, account.ReviewStatus)
	require.NotNil(t, account.CurrentStage)
	assert.Equal(t, model.StageChecker1, *account.CurrentStage)
	assert.Equal(t, 1, account.MistakeCount)

	last := account.AuditLog[len(account.AuditLog)-1]
	assert.Equal(t, "wrong balance", last.Reason)
	assert.Equal(t, string(model.StageChecker2), last.FromStage)
	assert.Equal(t, string(model.StageChecker1), last.ToStage)
}

func TestReject_RequiresReason(t *testing.T) {
	account := newAccount(model.StageChecker2, model.StatusPending)
	before := account.Clone()

	err := Reject(account, service.Actor{Name: "c2", Role: model.StageChecker2}, "", testTime)

	require.ErrorIs(t, err, common.ErrMissingReason)
	assert.Equal(t, before, account)
}

func TestReject_WrongRoleIsNoOp(t *testing.T) {
	account := newAccount(model.StageChecker3, model.StatusPending)
	before := account.Clone()

	err := Reject(account, service.Actor{Name: "c1", Role: model.StageChecker1}, "late", testTime)

	require.ErrorIs(t, err, common.ErrUnauthorized)
	assert.Equal(t, before, account)
}

func TestCorrect(t *testing.T) {
	account := newAccount(model.StageChecker3, model.StatusPending)
	account.NormalizedBalance = 2_000_000
	account.Confidence = 0.96
	account.Source = model.SourceHistorical
	account.BalanceIssues = []string{"Detected decimal precision"}

	entry, err := Correct(account, service.Actor{Name: "cfo", Role: model.StageCFO}, 6_000_000, "restated after audit", 0.10, testTime)
	require.NoError(t, err)

	assert.Equal(t, 6_000_000.0, account.NormalizedBalance)
	assert.Equal(t, model.ThresholdCritical, account.ThresholdLevel)
	assert.Equal(t, 1, account.MistakeCount)
	assert.Empty(t, account.BalanceIssues)
	require.NotNil(t, account.PreviousBalance)
	assert.Equal(t, 2_000_000.0, *account.PreviousBalance)
	require.NotNil(t, account.PercentVariance)
	assert.InDelta(t, 200.0, *account.PercentVariance, 0.0001)
	assert.Equal(t, model.FlagRed, account.FlagStatus)

	require.NotNil(t, entry)
	assert.Equal(t, 2_000_000.0, entry.BeforeAmount)
	assert.Equal(t, 6_000_000.0, entry.AfterAmount)
	assert.Equal(t, 4_000_000.0, entry.Impact)
	assert.Equal(t, "restated after audit", entry.Reason)

	last := account.AuditLog[len(account.AuditLog)-1]
	assert.Equal(t, "Balance adjusted", last.Action)
}

func TestCorrect_RequiresReason(t *testing.T) {
	account := newAccount(model.StageChecker1, model.StatusPending)
	before := account.Clone()

	_, err := Correct(account, service.Actor{Name: "cfo", Role: model.StageCFO}, 100, "", 0.10, testTime)

	require.ErrorIs(t, err, common.ErrMissingReason)
	assert.Equal(t, before, account)
}

// correctionStore is a minimal in-memory store for exercising the
// Machine's persistence paths.
type correctionStore struct {
	service.AccountStore
	account *model.Account
	saveErr error
	saved   []*model.CorrectionLogEntry
}

func (s *correctionStore) ApplyTransition(_ context.Context, _ int64, fn service.TransitionFunc) (*model.Account, error) {
	updated, err := fn(s.account.Clone())
	if err != nil {
		return nil, err
	}
	s.account = updated
	return updated, nil
}

func (s *correctionStore) SaveCorrection(_ context.Context, entry *model.CorrectionLogEntry) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saved = append(s.saved, entry)
	return nil
}

func TestMachineCorrect_PersistsLogEntry(t *testing.T) {
	account := newAccount(model.StageChecker2, model.StatusPending)
	account.NormalizedBalance = 500
	store := &correctionStore{account: account}
	m := NewMachine(store, service.FixedClock{T: testTime})

	updated, entry, err := m.Correct(context.Background(), 1,
		service.Actor{Name: "cfo", Role: model.StageCFO}, 750, "restated")
	require.NoError(t, err)

	assert.Equal(t, 750.0, updated.NormalizedBalance)
	require.Len(t, store.saved, 1)
	assert.Equal(t, entry, store.saved[0])
}

func TestMachineCorrect_LogWriteFailureReturnsCommittedState(t *testing.T) {
	account := newAccount(model.StageChecker2, model.StatusPending)
	account.NormalizedBalance = 500
	store := &correctionStore{account: account, saveErr: errors.New("disk full")}
	m := NewMachine(store, service.FixedClock{T: testTime})

	updated, entry, err := m.Correct(context.Background(), 1,
		service.Actor{Name: "cfo", Role: model.StageCFO}, 750, "restated")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "applied but not logged")

	// The balance change committed before the log write failed. Callers
	// get the applied account and the orphaned entry back for replay.
	require.NotNil(t, updated)
	assert.Equal(t, 750.0, updated.NormalizedBalance)
	require.NotNil(t, entry)
	assert.Equal(t, 500.0, entry.BeforeAmount)
	assert.Equal(t, 750.0, store.account.NormalizedBalance)
}

func TestCFOOnly(t *testing.T) {
	assert.NoError(t, CFOOnly(service.Actor{Name: "cfo", Role: model.StageCFO}))
	assert.ErrorIs(t, CFOOnly(service.Actor{Name: "c1", Role: model.StageChecker1}), common.ErrUnauthorized)
}

func TestEdit(t *testing.T) {
	account := newAccount(model.StageChecker2, model.StatusPending)
	account.PriorityScore = 1.23
	notes := "confirmed with treasury"
	reviewer := "j.doe"

	err := Edit(account, service.Actor{Name: "c2", Role: model.StageChecker2}, MetadataUpdate{
		Notes:    &notes,
		Reviewer: &reviewer,
	}, testTime)
	require.NoError(t, err)

	assert.Equal(t, notes, account.Notes)
	assert.Equal(t, reviewer, account.Reviewer)
	assert.Equal(t, 1.23, account.PriorityScore, "edit must not touch scores")
	require.NotNil(t, account.CurrentStage)
	assert.Equal(t, model.StageChecker2, *account.CurrentStage)

	last := account.AuditLog[len(account.AuditLog)-1]
	assert.Equal(t, "Metadata updated", last.Action)
}
