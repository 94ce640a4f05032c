package assistant

import (
	"context"
	"errors"
	"testing"

	"github.com/ledgerguard/ledgerguard/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snapshot() []*model.Account {
	return []*model.Account{
		{
			ID: 1, AccountNumber: "101000", AccountName: "Operating Cash",
			DepartmentName: "Treasury", NormalizedBalance: 6_000_000, Currency: "USD",
			ThresholdLevel: model.ThresholdCritical, FlagStatus: model.FlagRed,
			ReviewStatus: model.StatusPending, PriorityScore: 8.54,
		},
		{
			ID: 2, AccountNumber: "201000", AccountName: "Trade Payables",
			DepartmentName: "Accounts Payable", NormalizedBalance: -2_500_000, Currency: "USD",
			ThresholdLevel: model.ThresholdMedium, FlagStatus: model.FlagGreen,
			ReviewStatus: model.StatusMismatch, PriorityScore: 3.50,
		},
		{
			ID: 3, AccountNumber: "640100", AccountName: "Office Supplies",
			DepartmentName: "Fixed Assets", NormalizedBalance: 1200, Currency: "USD",
			ThresholdLevel: model.ThresholdLow, FlagStatus: model.FlagGreen,
			ReviewStatus: model.StatusFinalized, PriorityScore: 0.40,
		},
	}
}

func TestAskRoutesLocally(t *testing.T) {
	tests := []struct {
		name        string
		question    string
		wantNumbers []string
		wantText    string
	}{
		{
			name:        "critical severity",
			question:    "Which accounts are critical right now?",
			wantNumbers: []string{"101000"},
		},
		{
			name:        "negative balances",
			question:    "show me negative balances",
			wantNumbers: []string{"201000"},
		},
		{
			name:        "red variance flags",
			question:    "anything flagged for variance?",
			wantNumbers: []string{"101000"},
		},
		{
			name:        "mismatches",
			question:    "list mismatch accounts",
			wantNumbers: []string{"201000"},
		},
		{
			name:        "department by name",
			question:    "what's sitting in accounts payable?",
			wantNumbers: []string{"201000"},
		},
		{
			name:        "above plain amount",
			question:    "balances above $1,000,000",
			wantNumbers: []string{"101000", "201000"},
		},
		{
			name:        "above amount with unit",
			question:    "anything over 5 million?",
			wantNumbers: []string{"101000"},
		},
		{
			name:        "finalized",
			question:    "which accounts are finalized",
			wantNumbers: []string{"640100"},
		},
		{
			name:     "empty result",
			question: "pending accounts in treasury above 99 million",
			wantText: "No accounts with balances above 99M in the current snapshot.",
		},
	}

	a := New(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			answer, err := a.Ask(context.Background(), tt.question, snapshot())
			require.NoError(t, err)
			assert.False(t, answer.Remote)

			if tt.wantText != "" {
				assert.Equal(t, tt.wantText, answer.Text)
				return
			}

			var numbers []string
			for _, acct := range answer.Accounts {
				numbers = append(numbers, acct.AccountNumber)
			}
			assert.ElementsMatch(t, tt.wantNumbers, numbers)
		})
	}
}

func TestAskOrdersByPriority(t *testing.T) {
	a := New(nil)
	answer, err := a.Ask(context.Background(), "balances above 1000", snapshot())
	require.NoError(t, err)
	require.Len(t, answer.Accounts, 3)
	assert.Equal(t, "101000", answer.Accounts[0].AccountNumber)
	assert.Equal(t, "640100", answer.Accounts[2].AccountNumber)
}

func TestAskUnroutableWithoutRemote(t *testing.T) {
	a := New(nil)
	answer, err := a.Ask(context.Background(), "compose a haiku about reconciliation", snapshot())
	require.NoError(t, err)
	assert.False(t, answer.Remote)
	assert.Contains(t, answer.Text, "couldn't match")
}

func TestAskEmptyQuestion(t *testing.T) {
	a := New(nil)
	answer, err := a.Ask(context.Background(), "   ", snapshot())
	require.NoError(t, err)
	assert.Contains(t, answer.Text, "Ask about")
}

type fakeRemote struct {
	reply string
	err   error
	calls int
	seen  string
}

func (f *fakeRemote) Complete(_ context.Context, prompt string) (string, error) {
	f.calls++
	f.seen = prompt
	return f.reply, f.err
}

func TestAskFallsBackToRemote(t *testing.T) {
	remote := &fakeRemote{reply: "Account 101000 drives most of the risk."}
	a := New(remote)

	answer, err := a.Ask(context.Background(), "summarize the overall risk posture", snapshot())
	require.NoError(t, err)
	assert.True(t, answer.Remote)
	assert.Equal(t, remote.reply, answer.Text)
	assert.Equal(t, 1, remote.calls)
	assert.Contains(t, remote.seen, "101000 | Operating Cash")
	assert.Contains(t, remote.seen, "summarize the overall risk posture")
}

func TestAskRemoteFailureRetriesThenErrors(t *testing.T) {
	remote := &fakeRemote{err: errors.New("upstream down")}
	a := New(remote)

	_, err := a.Ask(context.Background(), "summarize the overall risk posture", snapshot())
	require.Error(t, err)
	assert.Equal(t, 3, remote.calls)
}

func TestNewRemoteClientRequiresKey(t *testing.T) {
	_, err := NewRemoteClient(RemoteConfig{})
	assert.Error(t, err)
}
