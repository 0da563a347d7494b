package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRefundWorkerRunOnce(t *testing.T) {
	h := newHarness(t)
	fourBettors(h)
	h.openDebate(2)
	h.fund(user1, "1")
	h.bet(user1, 2, agentB, "1")

	w := NewRefundWorker(h.engine, time.Hour)
	assert.Equal(t, 0, w.RunOnce(h.ctx), "nothing refundable yet")

	require.NoError(t, h.engine.MarkRefundable(h.ctx, From(moderator), 1))
	assert.Equal(t, 5, w.RunOnce(h.ctx))
	assert.Equal(t, 0, w.RunOnce(h.ctx), "second sweep is a no-op")

	infos, err := h.engine.GetUsersRefundInfo(h.ctx, 1)
	require.NoError(t, err)
	for _, info := range infos {
		assert.True(t, info.Refunded)
	}

	// debate 2 is untouched
	assertAmount(t, "1", h.treasury())
}

func TestRefundWorkerSkipsFailingDebates(t *testing.T) {
	h := newHarness(t)
	fourBettors(h)
	require.NoError(t, h.engine.MarkRefundable(h.ctx, From(moderator), 1))

	_, err := h.engine.WithdrawAll(h.ctx, From(owner))
	require.NoError(t, err)

	w := NewRefundWorker(h.engine, time.Hour)
	assert.Equal(t, 0, w.RunOnce(h.ctx))
}

func TestRefundWorkerStartStop(t *testing.T) {
	h := newHarness(t)
	fourBettors(h)
	require.NoError(t, h.engine.MarkRefundable(h.ctx, From(moderator), 1))

	w := NewRefundWorker(h.engine, time.Hour)
	w.Start()
	w.Stop()

	pending, err := h.engine.PendingRefunds(h.ctx)
	require.NoError(t, err)
	assert.Empty(t, pending, "Start runs a sweep immediately")
}
