package service

import (
	"context"
	"fmt"
	"math/big"

	"debatebet/internal/logger"
	"debatebet/internal/storage"
)

// MarkRefundable moves a debate into the terminal Refundable state (moderator only).
// Betting and claiming are disabled from then on.
func (e *Engine) MarkRefundable(ctx context.Context, call Call, debateID uint64) error {
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

		if err := t.q.UpdateDebateState(ctx, debateID, storage.DebateStateRefundable, 0); err != nil {
			return err
		}
		return t.emit(ctx, EventDebateMarkedRefundable, debateID, call.Caller, 0, nil)
	})
	if err != nil {
		return err
	}

	logger.Debug(call.Caller.Hex(), "debate_marked_refundable", fmt.Sprintf("debate_id=%d", debateID))
	return nil
}

// requireRefundable loads a debate that must be in the Refundable state
func (t *txn) requireRefundable(ctx context.Context, debateID uint64) (*storage.Debate, error) {
	debate, err := t.loadDebate(ctx, debateID)
	if err != nil {
		return nil, err
	}
	if debate.State == storage.DebateStateResolved {
		return nil, fmt.Errorf("%w: cannot refund resolved debate", ErrInvalidState)
	}
	if debate.State != storage.DebateStateRefundable {
		return nil, fmt.Errorf("%w: debate is not marked as refundable", ErrInvalidState)
	}
	return debate, nil
}

// refundBucket settles one bucket: the flag is written before the funds move
func (e *Engine) refundBucket(ctx context.Context, t *txn, bet *storage.Bet) error {
	if err := t.q.MarkBetRefunded(ctx, bet.DebateID, bet.User, bet.AgentID); err != nil {
		return err
	}
	if err := e.payOut(ctx, t, bet.DebateID, bet.User, bet.Amount, storage.TransferKindRefund); err != nil {
		return err
	}
	return t.emit(ctx, EventUserRefunded, bet.DebateID, bet.User, bet.AgentID, bet.Amount)
}

// outstandingRefunds returns the unrefunded buckets of a debate in bettor
// order, agent A before agent B, along with their sum.
func outstandingRefunds(ctx context.Context, q *storage.Queries, debate *storage.Debate) ([]*storage.Bet, *big.Int, error) {
	bettors, err := q.ListBettors(ctx, debate.ID)
	if err != nil {
		return nil, nil, err
	}

	var pending []*storage.Bet
	total := new(big.Int)
	for _, user := range bettors {
		for _, agentID := range debate.Agents() {
			bet, err := q.GetBet(ctx, debate.ID, user, agentID)
			if err != nil {
				return nil, nil, err
			}
			if bet == nil || bet.Refunded || bet.Amount.Sign() == 0 {
				continue
			}
			pending = append(pending, bet)
			total.Add(total, bet.Amount)
		}
	}
	return pending, total, nil
}

// ProcessRefunds returns every outstanding stake of a refundable debate
// (moderator only). The batch is all-or-nothing: if the treasury cannot cover
// the whole sum or any transfer fails, nothing is refunded. It returns the
// number of buckets settled.
func (e *Engine) ProcessRefunds(ctx context.Context, call Call, debateID uint64) (int, error) {
	if err := e.requireModerator(call.Caller); err != nil {
		return 0, err
	}

	var count int
	total := new(big.Int)
	err := e.exec(ctx, func(ctx context.Context, t *txn) error {
		debate, err := t.requireRefundable(ctx, debateID)
		if err != nil {
			return err
		}
		pending, sum, err := outstandingRefunds(ctx, t.q, debate)
		if err != nil {
			return err
		}
		balance, err := t.q.TreasuryBalance(ctx)
		if err != nil {
			return err
		}
		if balance.Cmp(sum) < 0 {
			return fmt.Errorf("%w: insufficient contract balance (have %s, need %s)", ErrInsufficientFunds, balance, sum)
		}

		for _, bet := range pending {
			if err := e.refundBucket(ctx, t, bet); err != nil {
				return fmt.Errorf("failed to refund %s on agent %d: %w", bet.User.Hex(), bet.AgentID, err)
			}
		}
		count = len(pending)
		total = sum
		return nil
	})
	if err != nil {
		return 0, err
	}

	logger.Debug(call.Caller.Hex(), "refunds_processed", fmt.Sprintf("debate_id=%d refunds=%d total=%s", debateID, count, total))
	return count, nil
}

// UserRefund returns the caller's unrefunded stakes on a refundable debate
// and reports the total.
func (e *Engine) UserRefund(ctx context.Context, call Call, debateID uint64) (*big.Int, error) {
	total := new(big.Int)
	err := e.exec(ctx, func(ctx context.Context, t *txn) error {
		debate, err := t.requireRefundable(ctx, debateID)
		if err != nil {
			return err
		}

		var buckets, pending []*storage.Bet
		for _, agentID := range debate.Agents() {
			bet, err := t.q.GetBet(ctx, debateID, call.Caller, agentID)
			if err != nil {
				return err
			}
			if bet == nil || bet.Amount.Sign() == 0 {
				continue
			}
			buckets = append(buckets, bet)
			if !bet.Refunded {
				pending = append(pending, bet)
			}
		}
		if len(buckets) == 0 {
			return fmt.Errorf("%w: you did not place any bet on this debate", ErrNothingToDo)
		}
		if len(pending) == 0 {
			return fmt.Errorf("%w: no eligible bets found for refund", ErrNothingToDo)
		}

		for _, bet := range pending {
			if err := e.refundBucket(ctx, t, bet); err != nil {
				return err
			}
			total.Add(total, bet.Amount)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Debug(call.Caller.Hex(), "user_refunded", fmt.Sprintf("debate_id=%d amount=%s", debateID, total))
	return total, nil
}

// PendingRefund describes a refundable debate that still holds stakes
type PendingRefund struct {
	DebateID uint64
	Buckets  int
	Amount   *big.Int
}

// PendingRefunds lists refundable debates with unrefunded buckets, by id
func (e *Engine) PendingRefunds(ctx context.Context) ([]PendingRefund, error) {
	q, err := e.view(ctx)
	if err != nil {
		return nil, err
	}
	debates, err := q.ListDebatesByState(ctx, storage.DebateStateRefundable)
	if err != nil {
		return nil, err
	}

	var out []PendingRefund
	for _, d := range debates {
		pending, sum, err := outstandingRefunds(ctx, q, d)
		if err != nil {
			return nil, err
		}
		if len(pending) == 0 {
			continue
		}
		out = append(out, PendingRefund{DebateID: d.ID, Buckets: len(pending), Amount: sum})
	}
	return out, nil
}
