package service

import (
	"testing"
	"time"

	"debatebet/internal/storage"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateDebate(t *testing.T) {
	h := newHarness(t)
	d := h.createDebate(1)

	assert.Equal(t, storage.DebateStateCreated, d.State)

	got, err := h.engine.GetDebate(h.ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, d.PublicTs, got.PublicTs)
	assert.Equal(t, uint32(500), got.FeeBps)

	refundable, err := h.engine.IsRefundable(h.ctx, 1)
	require.NoError(t, err)
	assert.False(t, refundable)

	_, err = h.engine.WinningAgent(h.ctx, 1)
	assert.ErrorIs(t, err, ErrInvalidState)

	require.Len(t, h.recorder.OfKind(EventDebateCreated), 1)
}

func TestCreateDebateValidation(t *testing.T) {
	h := newHarness(t)
	h.createDebate(1)

	tests := []struct {
		name   string
		params DebateParams
		err    error
	}{
		{"duplicate id", DebateParams{ID: 1, AgentA: agentA, AgentB: agentB}, ErrAlreadyExists},
		{"fee above 100%", DebateParams{ID: 2, AgentA: agentA, AgentB: agentB, FeeBps: 10001}, ErrInvalidArgument},
		{"same agent twice", DebateParams{ID: 3, AgentA: agentA, AgentB: agentA}, ErrInvalidArgument},
		{"zero id", DebateParams{ID: 0, AgentA: agentA, AgentB: agentB}, ErrInvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.engine.CreateDebate(h.ctx, From(moderator), tt.params)
			assert.ErrorIs(t, err, tt.err)
		})
	}

	// fee bounds are inclusive
	_, err := h.engine.CreateDebate(h.ctx, From(moderator), DebateParams{ID: 4, AgentA: agentA, AgentB: agentB, FeeBps: 10000})
	assert.NoError(t, err)
	_, err = h.engine.CreateDebate(h.ctx, From(moderator), DebateParams{ID: 5, AgentA: agentA, AgentB: agentB, FeeBps: 0})
	assert.NoError(t, err)
}

func TestGetDebateNotFound(t *testing.T) {
	h := newHarness(t)

	_, err := h.engine.GetDebate(h.ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)

	refundable, err := h.engine.IsRefundable(h.ctx, 999)
	require.NoError(t, err)
	assert.False(t, refundable)
}

func TestPlaceBetAccumulates(t *testing.T) {
	h := newHarness(t)
	h.openDebate(1)
	h.fund(user1, "10")

	h.bet(user1, 1, agentA, "1")
	h.bet(user1, 1, agentA, "0.25")
	h.bet(user1, 1, agentB, "0.5")

	bet, err := h.engine.GetBet(h.ctx, 1, user1, agentA)
	require.NoError(t, err)
	require.NotNil(t, bet)
	assertAmount(t, "1.25", bet.Amount)
	assert.False(t, bet.Refunded)
	assert.False(t, bet.Claimed)

	totals, err := h.engine.PoolTotals(h.ctx, 1)
	require.NoError(t, err)
	assertAmount(t, "1.25", totals[agentA])
	assertAmount(t, "0.5", totals[agentB])

	bettors, err := h.engine.Bettors(h.ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []common.Address{user1}, bettors)

	assertAmount(t, "8.25", h.wallet(user1))
	assertAmount(t, "1.75", h.treasury())
	assert.Len(t, h.recorder.OfKind(EventBetPlaced), 3)
}

func TestPlaceBetTiming(t *testing.T) {
	h := newHarness(t)
	d := h.createDebate(1)
	h.fund(user1, "2")

	_, err := h.engine.PlaceBet(h.ctx, Call{Caller: user1, Value: eth("1")}, 1, agentA, eth("1"))
	assert.ErrorIs(t, err, ErrInvalidTiming)

	// the public timestamp itself is inside the window
	h.now = time.Unix(d.PublicTs, 0)
	_, err = h.engine.PlaceBet(h.ctx, Call{Caller: user1, Value: eth("1")}, 1, agentA, eth("1"))
	assert.NoError(t, err)
}

func TestPlaceBetRejections(t *testing.T) {
	h := newHarness(t)
	h.openDebate(1)
	h.openDebate(2)
	h.openDebate(3)
	h.fund(user1, "1")
	require.NoError(t, h.engine.ResolveDebate(h.ctx, From(moderator), 2, agentA))
	require.NoError(t, h.engine.MarkRefundable(h.ctx, From(moderator), 3))

	tests := []struct {
		name     string
		debateID uint64
		agentID  uint64
		amount   string
		value    string
		err      error
	}{
		{"unknown debate", 42, agentA, "1", "1", ErrNotFound},
		{"resolved debate", 2, agentA, "1", "1", ErrInvalidState},
		{"refundable debate", 3, agentA, "1", "1", ErrInvalidState},
		{"unknown agent", 1, 300, "1", "1", ErrInvalidArgument},
		{"zero amount", 1, agentA, "0", "0", ErrInvalidArgument},
		{"value below amount", 1, agentA, "1", "0.5", ErrInvalidArgument},
		{"value above amount", 1, agentA, "0.5", "1", ErrInvalidArgument},
		{"wallet too small", 1, agentA, "2", "2", ErrInsufficientFunds},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.engine.PlaceBet(h.ctx, Call{Caller: user1, Value: eth(tt.value)}, tt.debateID, tt.agentID, eth(tt.amount))
			assert.ErrorIs(t, err, tt.err)
		})
	}

	assertAmount(t, "1", h.wallet(user1))
	assertAmount(t, "0", h.treasury())
	assert.Empty(t, h.recorder.OfKind(EventBetPlaced))
}

func TestBettorIndexOrder(t *testing.T) {
	h := newHarness(t)
	h.openDebate(1)
	for _, u := range []common.Address{user1, user2, user3} {
		h.fund(u, "5")
	}

	h.bet(user2, 1, agentB, "1")
	h.bet(user1, 1, agentA, "1")
	h.bet(user2, 1, agentA, "1")
	h.bet(user3, 1, agentA, "1")
	h.bet(user1, 1, agentB, "1")

	bettors, err := h.engine.Bettors(h.ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []common.Address{user2, user1, user3}, bettors)
}

// fourBettors places the stakes used by the refund listing checks
func fourBettors(h *harness) {
	h.t.Helper()
	h.openDebate(1)
	for _, u := range []common.Address{user1, user2, user3, user4} {
		h.fund(u, "10")
	}
	h.bet(user1, 1, agentA, "1")
	h.bet(user1, 1, agentB, "0.5")
	h.bet(user2, 1, agentA, "2")
	h.bet(user3, 1, agentB, "0.8")
	h.bet(user4, 1, agentA, "1.2")
}

func TestGetUserRefundableAmount(t *testing.T) {
	h := newHarness(t)
	fourBettors(h)

	amount, err := h.engine.GetUserRefundableAmount(h.ctx, 1, user1)
	require.NoError(t, err)
	assertAmount(t, "0", amount, "not refundable yet")

	require.NoError(t, h.engine.MarkRefundable(h.ctx, From(owner), 1))

	expected := map[common.Address]string{user1: "1.5", user2: "2", user3: "0.8", user4: "1.2", outsider: "0"}
	for user, want := range expected {
		amount, err := h.engine.GetUserRefundableAmount(h.ctx, 1, user)
		require.NoError(t, err)
		assertAmount(t, want, amount, "user %s", user.Hex())
	}

	_, err = h.engine.UserRefund(h.ctx, From(user1), 1)
	require.NoError(t, err)
	amount, err = h.engine.GetUserRefundableAmount(h.ctx, 1, user1)
	require.NoError(t, err)
	assertAmount(t, "0", amount, "after refund")

	amount, err = h.engine.GetUserRefundableAmount(h.ctx, 999, user1)
	require.NoError(t, err)
	assertAmount(t, "0", amount, "unknown debate")
}

func TestGetUserRefundableAmountZeroWhenResolved(t *testing.T) {
	h := newHarness(t)
	fourBettors(h)
	require.NoError(t, h.engine.ResolveDebate(h.ctx, From(moderator), 1, agentA))

	amount, err := h.engine.GetUserRefundableAmount(h.ctx, 1, user1)
	require.NoError(t, err)
	assertAmount(t, "0", amount)
}

func TestGetUsersRefundInfo(t *testing.T) {
	h := newHarness(t)
	fourBettors(h)

	infos, err := h.engine.GetUsersRefundInfo(h.ctx, 1)
	require.NoError(t, err)
	require.Len(t, infos, 4)

	expected := []struct {
		user   common.Address
		amount string
	}{
		{user1, "1.5"},
		{user2, "2"},
		{user3, "0.8"},
		{user4, "1.2"},
	}
	for i, want := range expected {
		assert.Equal(t, want.user, infos[i].User)
		assertAmount(t, want.amount, infos[i].Amount)
		assert.False(t, infos[i].Refunded)
	}

	require.NoError(t, h.engine.MarkRefundable(h.ctx, From(moderator), 1))
	_, err = h.engine.UserRefund(h.ctx, From(user1), 1)
	require.NoError(t, err)
	_, err = h.engine.UserRefund(h.ctx, From(user3), 1)
	require.NoError(t, err)

	infos, err = h.engine.GetUsersRefundInfo(h.ctx, 1)
	require.NoError(t, err)
	assert.True(t, infos[0].Refunded)
	assert.False(t, infos[1].Refunded)
	assert.True(t, infos[2].Refunded)
	assert.False(t, infos[3].Refunded)
	// amounts report total stake, not what is still owed
	assertAmount(t, "1.5", infos[0].Amount)

	_, err = h.engine.ProcessRefunds(h.ctx, From(moderator), 1)
	require.NoError(t, err)
	infos, err = h.engine.GetUsersRefundInfo(h.ctx, 1)
	require.NoError(t, err)
	for _, info := range infos {
		assert.True(t, info.Refunded, "user %s", info.User.Hex())
	}
}

func TestGetUsersRefundInfoUnknownDebate(t *testing.T) {
	h := newHarness(t)

	infos, err := h.engine.GetUsersRefundInfo(h.ctx, 999)
	require.NoError(t, err)
	assert.NotNil(t, infos)
	assert.Len(t, infos, 0)
}

func TestGetRefundStatus(t *testing.T) {
	h := newHarness(t)
	fourBettors(h)

	refunded, amount, err := h.engine.GetRefundStatus(h.ctx, 1, user1, agentB)
	require.NoError(t, err)
	assert.False(t, refunded)
	assertAmount(t, "0.5", amount)

	refunded, amount, err = h.engine.GetRefundStatus(h.ctx, 1, user2, agentB)
	require.NoError(t, err)
	assert.False(t, refunded)
	assertAmount(t, "0", amount)

	require.NoError(t, h.engine.MarkRefundable(h.ctx, From(moderator), 1))
	_, err = h.engine.UserRefund(h.ctx, From(user1), 1)
	require.NoError(t, err)

	refunded, amount, err = h.engine.GetRefundStatus(h.ctx, 1, user1, agentB)
	require.NoError(t, err)
	assert.True(t, refunded)
	assertAmount(t, "0.5", amount)
}

func TestDebateHistory(t *testing.T) {
	h := newHarness(t)
	h.openDebate(1)
	h.fund(user1, "1")
	h.fund(user2, "1")
	h.bet(user1, 1, agentA, "1")
	h.bet(user2, 1, agentB, "1")
	require.NoError(t, h.engine.ResolveDebate(h.ctx, From(moderator), 1, agentA))
	_, err := h.engine.Claim(h.ctx, From(user1), 1)
	require.NoError(t, err)

	events, transfers, err := h.engine.DebateHistory(h.ctx, 1)
	require.NoError(t, err)

	kinds := make([]string, 0, len(events))
	for _, e := range events {
		kinds = append(kinds, e.Kind)
	}
	assert.Equal(t, []string{
		string(EventDebateCreated),
		string(EventBetPlaced),
		string(EventBetPlaced),
		string(EventDebateResolved),
		string(EventClaimed),
	}, kinds)

	require.Len(t, transfers, 3, "deposits are not part of a debate")
	assert.Equal(t, storage.TransferKindBet, transfers[0].Kind)
	assert.Equal(t, storage.TransferKindClaim, transfers[2].Kind)
	assert.Equal(t, user1, transfers[2].To)
	assertAmount(t, "1.9", transfers[2].Amount)

	_, _, err = h.engine.DebateHistory(h.ctx, 2)
	assert.ErrorIs(t, err, ErrNotFound)
}
