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

// treasuryAddress stands for the engine's custody account in the transfer log
var treasuryAddress = common.Address{}

func creditTreasury(ctx context.Context, q *storage.Queries, amount *big.Int) error {
	balance, err := q.TreasuryBalance(ctx)
	if err != nil {
		return err
	}
	return q.SetTreasuryBalance(ctx, new(big.Int).Add(balance, amount))
}

func debitTreasury(ctx context.Context, q *storage.Queries, amount *big.Int) error {
	balance, err := q.TreasuryBalance(ctx)
	if err != nil {
		return err
	}
	if balance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: insufficient contract balance (have %s, need %s)", ErrInsufficientFunds, balance, amount)
	}
	return q.SetTreasuryBalance(ctx, new(big.Int).Sub(balance, amount))
}

// debitWallet takes funds attached to a call out of the caller's wallet
func debitWallet(ctx context.Context, q *storage.Queries, addr common.Address, amount *big.Int) error {
	balance, err := q.WalletBalance(ctx, addr)
	if err != nil {
		return err
	}
	if balance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: wallet holds %s, need %s", ErrInsufficientFunds, balance, amount)
	}
	return q.SetWalletBalance(ctx, addr, new(big.Int).Sub(balance, amount))
}

// Deposit funds an external wallet. It stands in for the on-ramp that gives
// users spendable balance and is not reachable over the public API.
func (e *Engine) Deposit(ctx context.Context, addr common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("%w: deposit must be greater than 0", ErrInvalidArgument)
	}
	err := e.exec(ctx, func(ctx context.Context, t *txn) error {
		balance, err := t.q.WalletBalance(ctx, addr)
		if err != nil {
			return err
		}
		if err := t.q.SetWalletBalance(ctx, addr, new(big.Int).Add(balance, amount)); err != nil {
			return err
		}
		return t.q.InsertTransfer(ctx, &storage.Transfer{
			ID:        uuid.NewString(),
			From:      common.Address{},
			To:        addr,
			Amount:    new(big.Int).Set(amount),
			Kind:      storage.TransferKindDeposit,
			CreatedAt: t.now,
		})
	})
	if err != nil {
		return err
	}
	logger.Debug(addr.Hex(), "wallet_deposit", fmt.Sprintf("amount=%s", amount))
	return nil
}

// WithdrawAll sweeps the entire custodied balance, stakes and fees alike, to
// the owner. Outstanding obligations are not checked: a sweep can make later
// claims or refunds fail with ErrInsufficientFunds.
func (e *Engine) WithdrawAll(ctx context.Context, call Call) (*big.Int, error) {
	if err := e.requireOwner(call.Caller); err != nil {
		return nil, err
	}

	var swept *big.Int
	err := e.exec(ctx, func(ctx context.Context, t *txn) error {
		balance, err := t.q.TreasuryBalance(ctx)
		if err != nil {
			return err
		}
		swept = balance
		if balance.Sign() == 0 {
			return nil
		}
		if err := e.payOut(ctx, t, 0, e.owner, balance, storage.TransferKindWithdraw); err != nil {
			return err
		}
		return t.emit(ctx, EventTreasuryWithdrawn, 0, e.owner, 0, balance)
	})
	if err != nil {
		return nil, err
	}

	logger.Debug(call.Caller.Hex(), "treasury_withdrawn", fmt.Sprintf("amount=%s", swept))
	return swept, nil
}

// TreasuryBalance returns the custodied balance
func (e *Engine) TreasuryBalance(ctx context.Context) (*big.Int, error) {
	q, err := e.view(ctx)
	if err != nil {
		return nil, err
	}
	return q.TreasuryBalance(ctx)
}

// WalletBalance returns the spendable balance of an address
func (e *Engine) WalletBalance(ctx context.Context, addr common.Address) (*big.Int, error) {
	q, err := e.view(ctx)
	if err != nil {
		return nil, err
	}
	return q.WalletBalance(ctx, addr)
}
