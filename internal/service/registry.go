package service

import (
	"context"
	"fmt"

	"debatebet/internal/logger"
	"debatebet/internal/storage"
)

// MaxFeeBps is the largest platform fee, 100% in basis points
const MaxFeeBps = 10000

// DefaultFeePercentage is the platform fee in whole percent applied by callers
// that do not specify one (5% = 500 bps).
const DefaultFeePercentage = 5

// DebateParams describes a debate to create
type DebateParams struct {
	ID       uint64
	AgentA   uint64
	AgentB   uint64
	FeeBps   uint32
	PublicTs int64 // unix seconds, betting opens
	StartTs  int64 // unix seconds
	Duration int64 // seconds
}

// CreateDebate registers a new debate in the Created state (moderator only).
// Id 0 is reserved and always rejected, as are two identical agent ids; both
// are deliberate constraints on top of the debate lifecycle.
func (e *Engine) CreateDebate(ctx context.Context, call Call, p DebateParams) (*storage.Debate, error) {
	if err := e.requireModerator(call.Caller); err != nil {
		return nil, err
	}
	if p.ID == 0 {
		return nil, fmt.Errorf("%w: debate id must be non-zero", ErrInvalidArgument)
	}
	if p.FeeBps > MaxFeeBps {
		return nil, fmt.Errorf("%w: platform fee %d exceeds %d basis points", ErrInvalidArgument, p.FeeBps, MaxFeeBps)
	}
	if p.AgentA == p.AgentB {
		return nil, fmt.Errorf("%w: agents must differ", ErrInvalidArgument)
	}

	var debate *storage.Debate
	err := e.exec(ctx, func(ctx context.Context, t *txn) error {
		existing, err := t.q.GetDebate(ctx, p.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			return fmt.Errorf("%w: debate %d already exists", ErrAlreadyExists, p.ID)
		}

		debate = &storage.Debate{
			ID:        p.ID,
			AgentA:    p.AgentA,
			AgentB:    p.AgentB,
			FeeBps:    p.FeeBps,
			PublicTs:  p.PublicTs,
			StartTs:   p.StartTs,
			Duration:  p.Duration,
			State:     storage.DebateStateCreated,
			CreatedAt: t.now,
		}
		if err := t.q.InsertDebate(ctx, debate); err != nil {
			return err
		}
		return t.emit(ctx, EventDebateCreated, p.ID, call.Caller, 0, nil)
	})
	if err != nil {
		return nil, err
	}

	logger.Debug(call.Caller.Hex(), "debate_created", fmt.Sprintf("debate_id=%d agent_a=%d agent_b=%d fee_bps=%d public_ts=%d",
		p.ID, p.AgentA, p.AgentB, p.FeeBps, p.PublicTs))
	return debate, nil
}

// GetDebate returns a debate or ErrNotFound
func (e *Engine) GetDebate(ctx context.Context, id uint64) (*storage.Debate, error) {
	q, err := e.view(ctx)
	if err != nil {
		return nil, err
	}
	d, err := q.GetDebate(ctx, id)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, fmt.Errorf("%w: debate %d is not created yet", ErrNotFound, id)
	}
	return d, nil
}

// IsRefundable reports whether the debate is in the Refundable state.
// Unknown debates are simply not refundable.
func (e *Engine) IsRefundable(ctx context.Context, id uint64) (bool, error) {
	q, err := e.view(ctx)
	if err != nil {
		return false, err
	}
	d, err := q.GetDebate(ctx, id)
	if err != nil {
		return false, err
	}
	return d != nil && d.State == storage.DebateStateRefundable, nil
}

// WinningAgent returns the winner of a resolved debate
func (e *Engine) WinningAgent(ctx context.Context, id uint64) (uint64, error) {
	d, err := e.GetDebate(ctx, id)
	if err != nil {
		return 0, err
	}
	if d.State != storage.DebateStateResolved {
		return 0, fmt.Errorf("%w: debate %d is not resolved", ErrInvalidState, id)
	}
	return d.WinningAgentID, nil
}

// ListDebates returns the debates currently in state
func (e *Engine) ListDebates(ctx context.Context, state storage.DebateState) ([]*storage.Debate, error) {
	q, err := e.view(ctx)
	if err != nil {
		return nil, err
	}
	return q.ListDebatesByState(ctx, state)
}

// DebateHistory returns the committed events and the fund movements of a
// debate, both in the order they happened
func (e *Engine) DebateHistory(ctx context.Context, id uint64) ([]*storage.EventRecord, []*storage.Transfer, error) {
	if _, err := e.GetDebate(ctx, id); err != nil {
		return nil, nil, err
	}
	q, err := e.view(ctx)
	if err != nil {
		return nil, nil, err
	}
	events, err := q.ListEvents(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	transfers, err := q.ListTransfers(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return events, transfers, nil
}
