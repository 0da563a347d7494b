package storage

import (
	"context"
	"database/sql"
	"fmt"
)

const debateColumns = `id, agent_a, agent_b, fee_bps, public_ts, start_ts, duration, state, winner, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDebate(row rowScanner) (*Debate, error) {
	var d Debate
	var id, agentA, agentB, winner int64
	var fee int64
	var createdAt int64
	err := row.Scan(
		&id,
		&agentA,
		&agentB,
		&fee,
		&d.PublicTs,
		&d.StartTs,
		&d.Duration,
		&d.State,
		&winner,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}
	d.ID = uint64(id)
	d.AgentA = uint64(agentA)
	d.AgentB = uint64(agentB)
	d.FeeBps = uint32(fee)
	d.WinningAgentID = uint64(winner)
	d.CreatedAt = unixTime(createdAt)
	return &d, nil
}

// InsertDebate stores a new debate record
func (q *Queries) InsertDebate(ctx context.Context, d *Debate) error {
	_, err := q.q.ExecContext(ctx, `
		INSERT INTO debates (id, agent_a, agent_b, fee_bps, public_ts, start_ts, duration, state, winner, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, int64(d.ID), int64(d.AgentA), int64(d.AgentB), int64(d.FeeBps), d.PublicTs, d.StartTs, d.Duration,
		string(d.State), int64(d.WinningAgentID), d.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to insert debate: %w", err)
	}
	return nil
}

// GetDebate retrieves a debate by id. It returns nil, nil when the debate does not exist.
func (q *Queries) GetDebate(ctx context.Context, id uint64) (*Debate, error) {
	row := q.q.QueryRowContext(ctx, `SELECT `+debateColumns+` FROM debates WHERE id = ?`, int64(id))
	d, err := scanDebate(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get debate: %w", err)
	}
	return d, nil
}

// UpdateDebateState moves a debate to a new state and records the winner (0 when none)
func (q *Queries) UpdateDebateState(ctx context.Context, id uint64, state DebateState, winner uint64) error {
	res, err := q.q.ExecContext(ctx, `
		UPDATE debates
		SET state = ?, winner = ?
		WHERE id = ?
	`, string(state), int64(winner), int64(id))
	if err != nil {
		return fmt.Errorf("failed to update debate state: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n != 1 {
		return fmt.Errorf("debate %d not updated", id)
	}
	return nil
}

// ListDebatesByState returns all debates in the given state ordered by id
func (q *Queries) ListDebatesByState(ctx context.Context, state DebateState) ([]*Debate, error) {
	rows, err := q.q.QueryContext(ctx, `
		SELECT `+debateColumns+`
		FROM debates
		WHERE state = ?
		ORDER BY id
	`, string(state))
	if err != nil {
		return nil, fmt.Errorf("failed to list debates: %w", err)
	}
	defer rows.Close()

	var debates []*Debate
	for rows.Next() {
		d, err := scanDebate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan debate: %w", err)
		}
		debates = append(debates, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating debates: %w", err)
	}
	return debates, nil
}
