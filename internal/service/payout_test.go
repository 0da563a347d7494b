package service

import (
	"math/big"
	"testing"

	"debatebet/internal/storage"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculatePayout(t *testing.T) {
	tests := []struct {
		name        string
		stake       *big.Int
		winningPool *big.Int
		totalPool   *big.Int
		feeBps      uint32
		expected    *big.Int
	}{
		{
			name:        "sole winner with 5% fee",
			stake:       eth("1"),
			winningPool: eth("1"),
			totalPool:   eth("3"),
			feeBps:      500,
			expected:    eth("2.85"),
		},
		{
			name:        "no fee returns full share",
			stake:       eth("1"),
			winningPool: eth("2"),
			totalPool:   eth("5"),
			feeBps:      0,
			expected:    eth("2.5"),
		},
		{
			name:        "full fee pays nothing",
			stake:       eth("1"),
			winningPool: eth("1"),
			totalPool:   eth("3"),
			feeBps:      10000,
			expected:    big.NewInt(0),
		},
		{
			name:        "rounds down",
			stake:       big.NewInt(1),
			winningPool: big.NewInt(3),
			totalPool:   big.NewInt(10),
			feeBps:      500,
			expected:    big.NewInt(3),
		},
		{
			name:        "empty winning pool",
			stake:       eth("1"),
			winningPool: big.NewInt(0),
			totalPool:   eth("3"),
			feeBps:      500,
			expected:    big.NewInt(0),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculatePayout(tt.stake, tt.winningPool, tt.totalPool, tt.feeBps)
			assert.Equal(t, tt.expected.String(), got.String())
		})
	}
}

func TestResolveDebate(t *testing.T) {
	h := newHarness(t)
	h.openDebate(1)

	require.NoError(t, h.engine.ResolveDebate(h.ctx, From(moderator), 1, agentB))

	winner, err := h.engine.WinningAgent(h.ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, agentB, winner)

	err = h.engine.ResolveDebate(h.ctx, From(moderator), 1, agentA)
	assert.ErrorIs(t, err, ErrInvalidState)

	err = h.engine.MarkRefundable(h.ctx, From(moderator), 1)
	assert.ErrorIs(t, err, ErrInvalidState)

	d, err := h.engine.GetDebate(h.ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, storage.DebateStateResolved, d.State)
	assert.Equal(t, agentB, d.WinningAgentID)

	events := h.recorder.OfKind(EventDebateResolved)
	require.Len(t, events, 1)
	assert.Equal(t, agentB, events[0].AgentID)
}

func TestResolveDebateRejections(t *testing.T) {
	h := newHarness(t)
	h.openDebate(1)

	assert.ErrorIs(t, h.engine.ResolveDebate(h.ctx, From(moderator), 2, agentA), ErrNotFound)
	assert.ErrorIs(t, h.engine.ResolveDebate(h.ctx, From(moderator), 1, 999), ErrInvalidArgument)

	require.NoError(t, h.engine.MarkRefundable(h.ctx, From(moderator), 1))
	assert.ErrorIs(t, h.engine.ResolveDebate(h.ctx, From(moderator), 1, agentA), ErrInvalidState)

	d, err := h.engine.GetDebate(h.ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, storage.DebateStateRefundable, d.State)
}

func TestClaimSoleWinner(t *testing.T) {
	h := newHarness(t)
	h.openDebate(1)
	h.fund(user1, "1")
	h.fund(user2, "2")
	h.bet(user1, 1, agentA, "1")
	h.bet(user2, 1, agentB, "2")
	require.NoError(t, h.engine.ResolveDebate(h.ctx, From(moderator), 1, agentA))

	preview, err := h.engine.PreviewPayout(h.ctx, 1, user1, agentA)
	require.NoError(t, err)
	assertAmount(t, "2.85", preview)

	payout, err := h.engine.Claim(h.ctx, From(user1), 1)
	require.NoError(t, err)
	assertAmount(t, "2.85", payout)
	assertAmount(t, "2.85", h.wallet(user1))
	assertAmount(t, "0.15", h.treasury(), "fee stays in treasury")

	_, err = h.engine.Claim(h.ctx, From(user2), 1)
	assert.ErrorIs(t, err, ErrNothingToDo, "losing side has no winning stake")

	_, err = h.engine.Claim(h.ctx, From(user1), 1)
	assert.ErrorIs(t, err, ErrNothingToDo, "second claim")
	assertAmount(t, "2.85", h.wallet(user1))

	bet, err := h.engine.GetBet(h.ctx, 1, user1, agentA)
	require.NoError(t, err)
	assert.True(t, bet.Claimed)

	claims := h.recorder.OfKind(EventClaimed)
	require.Len(t, claims, 1)
	assertAmount(t, "2.85", claims[0].Amount)
}

func TestClaimSplitsPoolAndFeeGoesToOwner(t *testing.T) {
	h := newHarness(t)
	h.openDebate(1)
	for _, u := range []common.Address{user1, user2, user3} {
		h.fund(u, "5")
	}
	h.bet(user1, 1, agentA, "1")
	h.bet(user3, 1, agentA, "2")
	h.bet(user2, 1, agentB, "3")
	require.NoError(t, h.engine.ResolveDebate(h.ctx, From(moderator), 1, agentA))

	p1, err := h.engine.Claim(h.ctx, From(user1), 1)
	require.NoError(t, err)
	assertAmount(t, "1.9", p1)

	p3, err := h.engine.Claim(h.ctx, From(user3), 1)
	require.NoError(t, err)
	assertAmount(t, "3.8", p3)

	swept, err := h.engine.WithdrawAll(h.ctx, From(owner))
	require.NoError(t, err)
	assertAmount(t, "0.3", swept)
	assertAmount(t, "0.3", h.wallet(owner))
	assertAmount(t, "0", h.treasury())

	// every deposited unit is accounted for
	total := new(big.Int)
	for _, u := range []common.Address{user1, user2, user3, owner} {
		total.Add(total, h.wallet(u))
	}
	assertAmount(t, "15", total)
}

func TestClaimRejections(t *testing.T) {
	h := newHarness(t)
	h.openDebate(1)
	h.openDebate(2)
	h.fund(user1, "2")
	h.bet(user1, 1, agentA, "1")
	h.bet(user1, 2, agentA, "1")
	require.NoError(t, h.engine.MarkRefundable(h.ctx, From(moderator), 2))

	_, err := h.engine.Claim(h.ctx, From(user1), 99)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = h.engine.Claim(h.ctx, From(user1), 1)
	assert.ErrorIs(t, err, ErrInvalidState, "not resolved yet")

	_, err = h.engine.Claim(h.ctx, From(user1), 2)
	assert.ErrorIs(t, err, ErrInvalidState, "refundable")

	assertAmount(t, "2", h.treasury())
}

func TestClaimFailsWhenTreasurySwept(t *testing.T) {
	h := newHarness(t)
	h.openDebate(1)
	h.fund(user1, "1")
	h.bet(user1, 1, agentA, "1")
	require.NoError(t, h.engine.ResolveDebate(h.ctx, From(moderator), 1, agentA))

	_, err := h.engine.WithdrawAll(h.ctx, From(owner))
	require.NoError(t, err)

	_, err = h.engine.Claim(h.ctx, From(user1), 1)
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	bet, err := h.engine.GetBet(h.ctx, 1, user1, agentA)
	require.NoError(t, err)
	assert.False(t, bet.Claimed, "failed claim leaves the bucket claimable")
}
