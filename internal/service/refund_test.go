package service

import (
	"math/big"
	"testing"

	"debatebet/internal/storage"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdminRefundRestoresBaseline(t *testing.T) {
	h := newHarness(t)
	h.openDebate(1)
	h.fund(user1, "1")
	h.fund(user2, "2")
	baseline := h.treasury()

	h.bet(user1, 1, agentA, "1")
	h.bet(user2, 1, agentB, "2")
	assertAmount(t, "3", new(big.Int).Sub(h.treasury(), baseline))

	require.NoError(t, h.engine.MarkRefundable(h.ctx, From(moderator), 1))
	refundable, err := h.engine.IsRefundable(h.ctx, 1)
	require.NoError(t, err)
	assert.True(t, refundable)

	n, err := h.engine.ProcessRefunds(h.ctx, From(moderator), 1)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	assertAmount(t, "1", h.wallet(user1))
	assertAmount(t, "2", h.wallet(user2))
	assert.Equal(t, baseline.String(), h.treasury().String())

	marked := h.recorder.OfKind(EventDebateMarkedRefundable)
	require.Len(t, marked, 1)
	assert.Equal(t, uint64(1), marked[0].DebateID)

	refunds := h.recorder.OfKind(EventUserRefunded)
	require.Len(t, refunds, 2)
	assert.Equal(t, user1, refunds[0].User)
	assertAmount(t, "1", refunds[0].Amount)
	assert.Equal(t, user2, refunds[1].User)
	assertAmount(t, "2", refunds[1].Amount)

	// a second sweep finds nothing outstanding
	n, err = h.engine.ProcessRefunds(h.ctx, From(moderator), 1)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Len(t, h.recorder.OfKind(EventUserRefunded), 2)
}

func TestUserRefundBothSides(t *testing.T) {
	h := newHarness(t)
	h.openDebate(1)
	h.fund(user1, "1.5")
	h.bet(user1, 1, agentA, "1")
	h.bet(user1, 1, agentB, "0.5")
	require.NoError(t, h.engine.MarkRefundable(h.ctx, From(moderator), 1))

	total, err := h.engine.UserRefund(h.ctx, From(user1), 1)
	require.NoError(t, err)
	assertAmount(t, "1.5", total)
	assertAmount(t, "1.5", h.wallet(user1))

	refunds := h.recorder.OfKind(EventUserRefunded)
	require.Len(t, refunds, 2)
	assertAmount(t, "1", refunds[0].Amount)
	assert.Equal(t, agentA, refunds[0].AgentID)
	assertAmount(t, "0.5", refunds[1].Amount)
	assert.Equal(t, agentB, refunds[1].AgentID)

	_, err = h.engine.UserRefund(h.ctx, From(user1), 1)
	assert.ErrorIs(t, err, ErrNothingToDo)
	assert.Contains(t, err.Error(), "no eligible bets found for refund")
	assertAmount(t, "1.5", h.wallet(user1))
	assert.Len(t, h.recorder.OfKind(EventUserRefunded), 2)
}

func TestUserRefundRejections(t *testing.T) {
	h := newHarness(t)
	h.openDebate(1)
	h.openDebate(2)
	h.openDebate(3)
	h.fund(user1, "3")
	h.bet(user1, 1, agentA, "1")
	h.bet(user1, 2, agentA, "1")
	h.bet(user1, 3, agentA, "1")
	require.NoError(t, h.engine.ResolveDebate(h.ctx, From(moderator), 2, agentA))
	require.NoError(t, h.engine.MarkRefundable(h.ctx, From(moderator), 3))

	tests := []struct {
		name     string
		caller   common.Address
		debateID uint64
		err      error
		message  string
	}{
		{"unknown debate", user1, 42, ErrNotFound, "debate 42 is not created yet"},
		{"not refundable", user1, 1, ErrInvalidState, "debate is not marked as refundable"},
		{"resolved", user1, 2, ErrInvalidState, "cannot refund resolved debate"},
		{"never bet", user2, 3, ErrNothingToDo, "you did not place any bet on this debate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.engine.UserRefund(h.ctx, From(tt.caller), tt.debateID)
			require.ErrorIs(t, err, tt.err)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestProcessRefundsRejections(t *testing.T) {
	h := newHarness(t)
	h.openDebate(1)
	h.openDebate(2)
	require.NoError(t, h.engine.ResolveDebate(h.ctx, From(moderator), 2, agentA))

	_, err := h.engine.ProcessRefunds(h.ctx, From(moderator), 1)
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Contains(t, err.Error(), "debate is not marked as refundable")

	_, err = h.engine.ProcessRefunds(h.ctx, From(moderator), 2)
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Contains(t, err.Error(), "cannot refund resolved debate")

	_, err = h.engine.ProcessRefunds(h.ctx, From(moderator), 3)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMarkRefundableRejections(t *testing.T) {
	h := newHarness(t)
	h.openDebate(1)

	assert.ErrorIs(t, h.engine.MarkRefundable(h.ctx, From(moderator), 999), ErrNotFound)

	require.NoError(t, h.engine.MarkRefundable(h.ctx, From(moderator), 1))
	err := h.engine.MarkRefundable(h.ctx, From(moderator), 1)
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Contains(t, err.Error(), "already marked as refundable")
	assert.Len(t, h.recorder.OfKind(EventDebateMarkedRefundable), 1)
}

func TestRefundableDebateBlocksBetsAndClaims(t *testing.T) {
	h := newHarness(t)
	h.openDebate(1)
	h.fund(user1, "2")
	h.fund(user3, "1")
	h.bet(user1, 1, agentA, "1")
	require.NoError(t, h.engine.MarkRefundable(h.ctx, From(moderator), 1))

	_, err := h.engine.PlaceBet(h.ctx, Call{Caller: user3, Value: eth("1")}, 1, agentA, eth("1"))
	require.ErrorIs(t, err, ErrInvalidState)
	assert.Contains(t, err.Error(), "no new bets allowed")

	_, err = h.engine.Claim(h.ctx, From(user1), 1)
	require.ErrorIs(t, err, ErrInvalidState)
	assert.Contains(t, err.Error(), "use refund instead of claim")

	assertAmount(t, "1", h.wallet(user3))
	assertAmount(t, "1", h.treasury())
}

func TestProcessRefundsInsufficientFunds(t *testing.T) {
	h := newHarness(t)
	h.openDebate(1)
	h.fund(user1, "1")
	h.fund(user2, "2")
	h.bet(user1, 1, agentA, "1")
	h.bet(user2, 1, agentB, "2")
	require.NoError(t, h.engine.MarkRefundable(h.ctx, From(moderator), 1))

	swept, err := h.engine.WithdrawAll(h.ctx, From(owner))
	require.NoError(t, err)
	assertAmount(t, "3", swept)

	_, err = h.engine.ProcessRefunds(h.ctx, From(moderator), 1)
	require.ErrorIs(t, err, ErrInsufficientFunds)
	assert.Contains(t, err.Error(), "insufficient contract balance")

	_, err = h.engine.UserRefund(h.ctx, From(user1), 1)
	require.ErrorIs(t, err, ErrInsufficientFunds)

	infos, err := h.engine.GetUsersRefundInfo(h.ctx, 1)
	require.NoError(t, err)
	for _, info := range infos {
		assert.False(t, info.Refunded)
	}
	assert.Empty(t, h.recorder.OfKind(EventUserRefunded))
}

func TestStateTransitionsAreExclusive(t *testing.T) {
	h := newHarness(t)
	h.openDebate(1)
	h.openDebate(2)

	require.NoError(t, h.engine.ResolveDebate(h.ctx, From(moderator), 1, agentA))
	require.NoError(t, h.engine.MarkRefundable(h.ctx, From(moderator), 2))

	assert.ErrorIs(t, h.engine.MarkRefundable(h.ctx, From(moderator), 1), ErrInvalidState)
	assert.ErrorIs(t, h.engine.ResolveDebate(h.ctx, From(moderator), 1, agentB), ErrInvalidState)
	assert.ErrorIs(t, h.engine.ResolveDebate(h.ctx, From(moderator), 2, agentA), ErrInvalidState)
	assert.ErrorIs(t, h.engine.MarkRefundable(h.ctx, From(moderator), 2), ErrInvalidState)

	resolved, err := h.engine.ListDebates(h.ctx, storage.DebateStateResolved)
	require.NoError(t, err)
	require.Len(t, resolved, 1)
	assert.Equal(t, uint64(1), resolved[0].ID)

	refundable, err := h.engine.ListDebates(h.ctx, storage.DebateStateRefundable)
	require.NoError(t, err)
	require.Len(t, refundable, 1)
	assert.Equal(t, uint64(2), refundable[0].ID)

	winner, err := h.engine.WinningAgent(h.ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, agentA, winner)
}

func TestRefundConservesFunds(t *testing.T) {
	h := newHarness(t)
	fourBettors(h)
	staked := eth("5.5")

	require.NoError(t, h.engine.MarkRefundable(h.ctx, From(moderator), 1))

	check := func(stage string) {
		outstanding := new(big.Int)
		for _, u := range []common.Address{user1, user2, user3, user4} {
			owed, err := h.engine.GetUserRefundableAmount(h.ctx, 1, u)
			require.NoError(t, err)
			outstanding.Add(outstanding, owed)
		}
		paid := new(big.Int)
		for _, e := range h.recorder.OfKind(EventUserRefunded) {
			paid.Add(paid, e.Amount)
		}
		assert.Equal(t, staked.String(), new(big.Int).Add(outstanding, paid).String(), stage)
		assert.Equal(t, outstanding.String(), h.treasury().String(), stage)
	}

	check("before refunds")
	_, err := h.engine.UserRefund(h.ctx, From(user2), 1)
	require.NoError(t, err)
	check("after one user refund")
	_, err = h.engine.ProcessRefunds(h.ctx, From(moderator), 1)
	require.NoError(t, err)
	check("after bulk refund")

	transfers, err := h.store.Queries().ListTransfers(h.ctx, 1)
	require.NoError(t, err)
	var refunds int
	for _, tr := range transfers {
		if tr.Kind == storage.TransferKindRefund {
			refunds++
		}
	}
	assert.Equal(t, 5, refunds)
}

func TestPendingRefunds(t *testing.T) {
	h := newHarness(t)
	fourBettors(h)
	h.openDebate(2)

	pending, err := h.engine.PendingRefunds(h.ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	require.NoError(t, h.engine.MarkRefundable(h.ctx, From(moderator), 1))
	require.NoError(t, h.engine.MarkRefundable(h.ctx, From(moderator), 2))

	pending, err = h.engine.PendingRefunds(h.ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1, "debate without bets has nothing pending")
	assert.Equal(t, uint64(1), pending[0].DebateID)
	assert.Equal(t, 5, pending[0].Buckets)
	assertAmount(t, "5.5", pending[0].Amount)
}
