package service

import (
	"context"
	"fmt"
	"math/big"

	"debatebet/internal/logger"
	"debatebet/internal/storage"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// PlaceBet stakes amount on agentID. The call must carry exactly amount in
// Value; the funds move from the caller's wallet into the treasury.
func (e *Engine) PlaceBet(ctx context.Context, call Call, debateID, agentID uint64, amount *big.Int) (*storage.Bet, error) {
	var bet *storage.Bet
	err := e.exec(ctx, func(ctx context.Context, t *txn) error {
		debate, err := t.loadDebate(ctx, debateID)
		if err != nil {
			return err
		}
		switch debate.State {
		case storage.DebateStateResolved:
			return fmt.Errorf("%w: debate is already resolved", ErrInvalidState)
		case storage.DebateStateRefundable:
			return fmt.Errorf("%w: debate is marked as refundable, no new bets allowed", ErrInvalidState)
		}
		if t.now.Unix() < debate.PublicTs {
			return fmt.Errorf("%w: betting opens at %d", ErrInvalidTiming, debate.PublicTs)
		}
		if !debate.HasAgent(agentID) {
			return fmt.Errorf("%w: agent %d is not part of debate %d", ErrInvalidArgument, agentID, debateID)
		}
		if amount == nil || amount.Sign() <= 0 {
			return fmt.Errorf("%w: bet amount must be greater than 0", ErrInvalidArgument)
		}
		if call.Value == nil || call.Value.Cmp(amount) != 0 {
			return fmt.Errorf("%w: attached value does not match bet amount", ErrInvalidArgument)
		}

		if err := debitWallet(ctx, t.q, call.Caller, amount); err != nil {
			return err
		}
		if err := creditTreasury(ctx, t.q, amount); err != nil {
			return err
		}
		if err := t.q.AddToBet(ctx, debateID, call.Caller, agentID, amount); err != nil {
			return err
		}
		if _, err := t.q.AppendBettor(ctx, debateID, call.Caller); err != nil {
			return err
		}
		if err := t.q.InsertTransfer(ctx, &storage.Transfer{
			ID:        uuid.NewString(),
			DebateID:  debateID,
			From:      call.Caller,
			To:        treasuryAddress,
			Amount:    new(big.Int).Set(amount),
			Kind:      storage.TransferKindBet,
			CreatedAt: t.now,
		}); err != nil {
			return err
		}

		bet, err = t.q.GetBet(ctx, debateID, call.Caller, agentID)
		if err != nil {
			return err
		}
		return t.emit(ctx, EventBetPlaced, debateID, call.Caller, agentID, amount)
	})
	if err != nil {
		return nil, err
	}

	logger.Debug(call.Caller.Hex(), "bet_placed", fmt.Sprintf("debate_id=%d agent_id=%d amount=%s total=%s",
		debateID, agentID, amount, bet.Amount))
	return bet, nil
}

// GetBet returns the bucket of user on agentID, or nil if there is none
func (e *Engine) GetBet(ctx context.Context, debateID uint64, user common.Address, agentID uint64) (*storage.Bet, error) {
	q, err := e.view(ctx)
	if err != nil {
		return nil, err
	}
	return q.GetBet(ctx, debateID, user, agentID)
}

// Bettors returns the distinct bettors of a debate in first-bet order
func (e *Engine) Bettors(ctx context.Context, debateID uint64) ([]common.Address, error) {
	q, err := e.view(ctx)
	if err != nil {
		return nil, err
	}
	return q.ListBettors(ctx, debateID)
}

// PoolTotals returns the total stake on each side of a debate
func (e *Engine) PoolTotals(ctx context.Context, debateID uint64) (map[uint64]*big.Int, error) {
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
	bets, err := q.ListBets(ctx, debateID)
	if err != nil {
		return nil, err
	}
	return poolTotals(debate, bets), nil
}

func poolTotals(debate *storage.Debate, bets []*storage.Bet) map[uint64]*big.Int {
	totals := map[uint64]*big.Int{
		debate.AgentA: new(big.Int),
		debate.AgentB: new(big.Int),
	}
	for _, b := range bets {
		if sum, ok := totals[b.AgentID]; ok {
			sum.Add(sum, b.Amount)
		}
	}
	return totals
}

// GetUserRefundableAmount returns the unrefunded stake of user, or zero unless
// the debate is refundable.
func (e *Engine) GetUserRefundableAmount(ctx context.Context, debateID uint64, user common.Address) (*big.Int, error) {
	q, err := e.view(ctx)
	if err != nil {
		return nil, err
	}
	debate, err := q.GetDebate(ctx, debateID)
	if err != nil {
		return nil, err
	}
	total := new(big.Int)
	if debate == nil || debate.State != storage.DebateStateRefundable {
		return total, nil
	}
	for _, agentID := range debate.Agents() {
		bet, err := q.GetBet(ctx, debateID, user, agentID)
		if err != nil {
			return nil, err
		}
		if bet != nil && !bet.Refunded {
			total.Add(total, bet.Amount)
		}
	}
	return total, nil
}

// GetUsersRefundInfo lists every bettor in first-bet order with their total
// stake. Refunded is true once all of the bettor's buckets are refunded.
func (e *Engine) GetUsersRefundInfo(ctx context.Context, debateID uint64) ([]storage.RefundInfo, error) {
	q, err := e.view(ctx)
	if err != nil {
		return nil, err
	}
	infos := []storage.RefundInfo{}

	debate, err := q.GetDebate(ctx, debateID)
	if err != nil {
		return nil, err
	}
	if debate == nil {
		return infos, nil
	}

	bettors, err := q.ListBettors(ctx, debateID)
	if err != nil {
		return nil, err
	}
	for _, user := range bettors {
		info := storage.RefundInfo{User: user, Amount: new(big.Int), Refunded: true}
		buckets := 0
		for _, agentID := range debate.Agents() {
			bet, err := q.GetBet(ctx, debateID, user, agentID)
			if err != nil {
				return nil, err
			}
			if bet == nil || bet.Amount.Sign() == 0 {
				continue
			}
			buckets++
			info.Amount.Add(info.Amount, bet.Amount)
			if !bet.Refunded {
				info.Refunded = false
			}
		}
		if buckets == 0 {
			info.Refunded = false
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// GetRefundStatus reports whether the bucket of user on agentID was refunded
// and its amount. Missing buckets report (false, 0).
func (e *Engine) GetRefundStatus(ctx context.Context, debateID uint64, user common.Address, agentID uint64) (bool, *big.Int, error) {
	q, err := e.view(ctx)
	if err != nil {
		return false, nil, err
	}
	bet, err := q.GetBet(ctx, debateID, user, agentID)
	if err != nil {
		return false, nil, err
	}
	if bet == nil {
		return false, new(big.Int), nil
	}
	return bet.Refunded, new(big.Int).Set(bet.Amount), nil
}
