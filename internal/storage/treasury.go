package storage

import (
	"context"
	"database/sql"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// TreasuryBalance returns the custodied balance in wei
func (q *Queries) TreasuryBalance(ctx context.Context) (*big.Int, error) {
	var balance string
	err := q.q.QueryRowContext(ctx, `SELECT balance FROM treasury WHERE id = 1`).Scan(&balance)
	if err != nil {
		return nil, fmt.Errorf("failed to get treasury balance: %w", err)
	}
	return parseAmount(balance)
}

// SetTreasuryBalance overwrites the custodied balance
func (q *Queries) SetTreasuryBalance(ctx context.Context, balance *big.Int) error {
	if balance.Sign() < 0 {
		return fmt.Errorf("negative treasury balance %s", balance)
	}
	_, err := q.q.ExecContext(ctx, `UPDATE treasury SET balance = ? WHERE id = 1`, formatAmount(balance))
	if err != nil {
		return fmt.Errorf("failed to set treasury balance: %w", err)
	}
	return nil
}

// WalletBalance returns an address's wallet balance; unknown addresses hold zero
func (q *Queries) WalletBalance(ctx context.Context, addr common.Address) (*big.Int, error) {
	var balance string
	err := q.q.QueryRowContext(ctx, `SELECT balance FROM wallets WHERE address = ?`, addr.Hex()).Scan(&balance)
	if err == sql.ErrNoRows {
		return new(big.Int), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet balance: %w", err)
	}
	return parseAmount(balance)
}

// SetWalletBalance overwrites an address's wallet balance
func (q *Queries) SetWalletBalance(ctx context.Context, addr common.Address, balance *big.Int) error {
	if balance.Sign() < 0 {
		return fmt.Errorf("negative wallet balance %s for %s", balance, addr.Hex())
	}
	_, err := q.q.ExecContext(ctx, `
		INSERT INTO wallets (address, balance)
		VALUES (?, ?)
		ON CONFLICT(address) DO UPDATE SET balance = excluded.balance
	`, addr.Hex(), formatAmount(balance))
	if err != nil {
		return fmt.Errorf("failed to set wallet balance: %w", err)
	}
	return nil
}

// InsertTransfer appends a fund movement to the transfer log
func (q *Queries) InsertTransfer(ctx context.Context, t *Transfer) error {
	_, err := q.q.ExecContext(ctx, `
		INSERT INTO transfers (id, debate_id, from_addr, to_addr, amount, kind, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, t.ID, int64(t.DebateID), t.From.Hex(), t.To.Hex(), formatAmount(t.Amount), string(t.Kind), t.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to insert transfer: %w", err)
	}
	return nil
}

// ListTransfers returns the transfer log of a debate in insertion order
func (q *Queries) ListTransfers(ctx context.Context, debateID uint64) ([]*Transfer, error) {
	rows, err := q.q.QueryContext(ctx, `
		SELECT id, debate_id, from_addr, to_addr, amount, kind, created_at
		FROM transfers
		WHERE debate_id = ?
		ORDER BY rowid
	`, int64(debateID))
	if err != nil {
		return nil, fmt.Errorf("failed to get transfers: %w", err)
	}
	defer rows.Close()

	var transfers []*Transfer
	for rows.Next() {
		var t Transfer
		var id, createdAt int64
		var from, to, amount string
		if err := rows.Scan(&t.ID, &id, &from, &to, &amount, &t.Kind, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan transfer: %w", err)
		}
		v, err := parseAmount(amount)
		if err != nil {
			return nil, err
		}
		t.DebateID = uint64(id)
		t.From = parseAddress(from)
		t.To = parseAddress(to)
		t.Amount = v
		t.CreatedAt = unixTime(createdAt)
		transfers = append(transfers, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transfers: %w", err)
	}
	return transfers, nil
}
