package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// ErrBetSettled is returned when a settlement flag is already set on a bet
var ErrBetSettled = errors.New("bet already settled")

func scanBet(row rowScanner) (*Bet, error) {
	var b Bet
	var debateID, agentID int64
	var user, amount string
	var refunded, claimed int
	if err := row.Scan(&debateID, &user, &agentID, &amount, &refunded, &claimed); err != nil {
		return nil, err
	}
	v, err := parseAmount(amount)
	if err != nil {
		return nil, err
	}
	b.DebateID = uint64(debateID)
	b.User = parseAddress(user)
	b.AgentID = uint64(agentID)
	b.Amount = v
	b.Refunded = refunded != 0
	b.Claimed = claimed != 0
	return &b, nil
}

// GetBet retrieves the bet bucket for (debate, user, agent). It returns nil, nil when none was placed.
func (q *Queries) GetBet(ctx context.Context, debateID uint64, user common.Address, agentID uint64) (*Bet, error) {
	row := q.q.QueryRowContext(ctx, `
		SELECT debate_id, user, agent_id, amount, refunded, claimed
		FROM bets
		WHERE debate_id = ? AND user = ? AND agent_id = ?
	`, int64(debateID), user.Hex(), int64(agentID))
	b, err := scanBet(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get bet: %w", err)
	}
	return b, nil
}

// AddToBet credits amount to the (debate, user, agent) bucket, creating it on first use
func (q *Queries) AddToBet(ctx context.Context, debateID uint64, user common.Address, agentID uint64, amount *big.Int) error {
	existing, err := q.GetBet(ctx, debateID, user, agentID)
	if err != nil {
		return err
	}

	if existing == nil {
		_, err = q.q.ExecContext(ctx, `
			INSERT INTO bets (debate_id, user, agent_id, amount)
			VALUES (?, ?, ?, ?)
		`, int64(debateID), user.Hex(), int64(agentID), formatAmount(amount))
		if err != nil {
			return fmt.Errorf("failed to insert bet: %w", err)
		}
		return nil
	}

	total := new(big.Int).Add(existing.Amount, amount)
	_, err = q.q.ExecContext(ctx, `
		UPDATE bets
		SET amount = ?
		WHERE debate_id = ? AND user = ? AND agent_id = ?
	`, formatAmount(total), int64(debateID), user.Hex(), int64(agentID))
	if err != nil {
		return fmt.Errorf("failed to update bet: %w", err)
	}
	return nil
}

// MarkBetRefunded flips the refunded flag. It fails with ErrBetSettled if the flag was already set.
func (q *Queries) MarkBetRefunded(ctx context.Context, debateID uint64, user common.Address, agentID uint64) error {
	return q.setBetFlag(ctx, "refunded", debateID, user, agentID)
}

// MarkBetClaimed flips the claimed flag. It fails with ErrBetSettled if the flag was already set.
func (q *Queries) MarkBetClaimed(ctx context.Context, debateID uint64, user common.Address, agentID uint64) error {
	return q.setBetFlag(ctx, "claimed", debateID, user, agentID)
}

func (q *Queries) setBetFlag(ctx context.Context, column string, debateID uint64, user common.Address, agentID uint64) error {
	query := fmt.Sprintf(`
		UPDATE bets
		SET %[1]s = 1
		WHERE debate_id = ? AND user = ? AND agent_id = ? AND %[1]s = 0
	`, column)
	res, err := q.q.ExecContext(ctx, query, int64(debateID), user.Hex(), int64(agentID))
	if err != nil {
		return fmt.Errorf("failed to mark bet %s: %w", column, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n != 1 {
		return fmt.Errorf("%w: %s", ErrBetSettled, column)
	}
	return nil
}

// ListBets returns every bucket of a debate
func (q *Queries) ListBets(ctx context.Context, debateID uint64) ([]*Bet, error) {
	rows, err := q.q.QueryContext(ctx, `
		SELECT debate_id, user, agent_id, amount, refunded, claimed
		FROM bets
		WHERE debate_id = ?
	`, int64(debateID))
	if err != nil {
		return nil, fmt.Errorf("failed to get bets: %w", err)
	}
	defer rows.Close()

	var bets []*Bet
	for rows.Next() {
		b, err := scanBet(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bet: %w", err)
		}
		bets = append(bets, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bets: %w", err)
	}
	return bets, nil
}

// AppendBettor adds user to the debate's bettor index if absent.
// It reports whether the user was newly added.
func (q *Queries) AppendBettor(ctx context.Context, debateID uint64, user common.Address) (bool, error) {
	res, err := q.q.ExecContext(ctx, `
		INSERT OR IGNORE INTO bettors (debate_id, user)
		VALUES (?, ?)
	`, int64(debateID), user.Hex())
	if err != nil {
		return false, fmt.Errorf("failed to append bettor: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n == 1, nil
}

// ListBettors returns the distinct bettors of a debate in first-bet order
func (q *Queries) ListBettors(ctx context.Context, debateID uint64) ([]common.Address, error) {
	rows, err := q.q.QueryContext(ctx, `
		SELECT user
		FROM bettors
		WHERE debate_id = ?
		ORDER BY seq
	`, int64(debateID))
	if err != nil {
		return nil, fmt.Errorf("failed to get bettors: %w", err)
	}
	defer rows.Close()

	var users []common.Address
	for rows.Next() {
		var user string
		if err := rows.Scan(&user); err != nil {
			return nil, fmt.Errorf("failed to scan bettor: %w", err)
		}
		users = append(users, parseAddress(user))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bettors: %w", err)
	}
	return users, nil
}
