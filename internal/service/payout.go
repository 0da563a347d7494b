package service

import (
	"context"
	"fmt"
	"math/big"

	"debatebet/internal/logger"
	"debatebet/internal/storage"

	"github.com/ethereum/go-ethereum/common"
)

var bpsDenominator = big.NewInt(MaxFeeBps)

// CalculatePayout returns the parimutuel share of a winning stake net of the
// platform fee, rounded down:
//
//	payout = stake * totalPool * (10000 - feeBps) / (winningPool * 10000)
//
// The rounding remainder stays in the treasury with the fee.
func CalculatePayout(stake, winningPool, totalPool *big.Int, feeBps uint32) *big.Int {
	if stake.Sign() <= 0 || winningPool.Sign() <= 0 || feeBps > MaxFeeBps {
		return new(big.Int)
	}
	num := new(big.Int).Mul(stake, totalPool)
	num.Mul(num, big.NewInt(int64(MaxFeeBps-feeBps)))
	den := new(big.Int).Mul(winningPool, bpsDenominator)
	return num.Quo(num, den)
}

// ResolveDebate records the winning agent and closes the debate (moderator only)
func (e *Engine) ResolveDebate(ctx context.Context, call Call, debateID, winningAgentID uint64) error {
	if err := e.requireModerator(call.Caller); err != nil {
		return err
	}

	err := e.exec(ctx, func(ctx context.Context, t *txn) error {
		debate, err := t.loadDebate(ctx, debateID)
		if err != nil {
			return err
		}
		switch debate.State {
		case storage.DebateStateResolved:
			return fmt.Errorf("%w: debate is already resolved", ErrInvalidState)
		case storage.DebateStateRefundable:
			return fmt.Errorf("%w: debate is already marked as refundable", ErrInvalidState)
		}
		if !debate.HasAgent(winningAgentID) {
			return fmt.Errorf("%w: agent %d is not part of debate %d", ErrInvalidArgument, winningAgentID, debateID)
		}

		if err := t.q.UpdateDebateState(ctx, debateID, storage.DebateStateResolved, winningAgentID); err != nil {
			return err
		}
		return t.emit(ctx, EventDebateResolved, debateID, call.Caller, winningAgentID, nil)
	})
	if err != nil {
		return err
	}

	logger.Debug(call.Caller.Hex(), "debate_resolved", fmt.Sprintf("debate_id=%d winner=%d", debateID, winningAgentID))
	return nil
}

// Claim pays the caller's share of a resolved debate and returns the amount
func (e *Engine) Claim(ctx context.Context, call Call, debateID uint64) (*big.Int, error) {
	var payout *big.Int
	var stake *big.Int
	err := e.exec(ctx, func(ctx context.Context, t *txn) error {
		debate, err := t.loadDebate(ctx, debateID)
		if err != nil {
			return err
		}
		if debate.State == storage.DebateStateRefundable {
			return fmt.Errorf("%w: debate is refundable, use refund instead of claim", ErrInvalidState)
		}
		if debate.State != storage.DebateStateResolved {
			return fmt.Errorf("%w: debate is not resolved yet", ErrInvalidState)
		}

		bet, err := t.q.GetBet(ctx, debateID, call.Caller, debate.WinningAgentID)
		if err != nil {
			return err
		}
		if bet == nil || bet.Amount.Sign() == 0 {
			return fmt.Errorf("%w: no winning stake to claim", ErrNothingToDo)
		}
		if bet.Claimed {
			return fmt.Errorf("%w: winnings already claimed", ErrNothingToDo)
		}

		bets, err := t.q.ListBets(ctx, debateID)
		if err != nil {
			return err
		}
		totals := poolTotals(debate, bets)
		totalPool := new(big.Int).Add(totals[debate.AgentA], totals[debate.AgentB])
		stake = bet.Amount
		payout = CalculatePayout(bet.Amount, totals[debate.WinningAgentID], totalPool, debate.FeeBps)

		if err := t.q.MarkBetClaimed(ctx, debateID, call.Caller, debate.WinningAgentID); err != nil {
			return err
		}
		if err := e.payOut(ctx, t, debateID, call.Caller, payout, storage.TransferKindClaim); err != nil {
			return err
		}
		return t.emit(ctx, EventClaimed, debateID, call.Caller, debate.WinningAgentID, payout)
	})
	if err != nil {
		return nil, err
	}

	logger.Debug(call.Caller.Hex(), "payout_processed", fmt.Sprintf("debate_id=%d stake=%s payout=%s", debateID, stake, payout))
	return payout, nil
}

// PreviewPayout returns what user would receive from Claim if agentID won.
// It does not look at claimed flags.
func (e *Engine) PreviewPayout(ctx context.Context, debateID uint64, user common.Address, agentID uint64) (*big.Int, error) {
	q, err := e.view(ctx)
	if err != nil {
		return nil, err
	}
	debate, err := q.GetDebate(ctx, debateID)
	if err != nil {
		return nil, err
	}
	if debate == nil {
		return nil, fmt.Errorf("%w: debate %d is not created yet", ErrNotFound, debateID)
	}
	if !debate.HasAgent(agentID) {
		return nil, fmt.Errorf("%w: agent %d is not part of debate %d", ErrInvalidArgument, agentID, debateID)
	}

	bets, err := q.ListBets(ctx, debateID)
	if err != nil {
		return nil, err
	}
	stake := new(big.Int)
	for _, b := range bets {
		if b.User == user && b.AgentID == agentID {
			stake = b.Amount
		}
	}
	totals := poolTotals(debate, bets)
	totalPool := new(big.Int).Add(totals[debate.AgentA], totals[debate.AgentB])
	return CalculatePayout(stake, totals[agentID], totalPool, debate.FeeBps), nil
}
