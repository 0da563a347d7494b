package storage

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// InsertEvent persists a notification and fills in its sequence number
func (q *Queries) InsertEvent(ctx context.Context, e *EventRecord) error {
	user := ""
	if e.User != (common.Address{}) {
		user = e.User.Hex()
	}
	res, err := q.q.ExecContext(ctx, `
		INSERT INTO events (id, kind, debate_id, user, agent_id, amount, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.Kind, int64(e.DebateID), user, int64(e.AgentID), formatAmount(e.Amount), e.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get event seq: %w", err)
	}
	e.Seq = seq
	return nil
}

// ListEvents returns the notifications of a debate in emission order
func (q *Queries) ListEvents(ctx context.Context, debateID uint64) ([]*EventRecord, error) {
	rows, err := q.q.QueryContext(ctx, `
		SELECT seq, id, kind, debate_id, user, agent_id, amount, created_at
		FROM events
		WHERE debate_id = ?
		ORDER BY seq
	`, int64(debateID))
	if err != nil {
		return nil, fmt.Errorf("failed to get events: %w", err)
	}
	defer rows.Close()

	var events []*EventRecord
	for rows.Next() {
		var e EventRecord
		var id, agentID, createdAt int64
		var user, amount string
		if err := rows.Scan(&e.Seq, &e.ID, &e.Kind, &id, &user, &agentID, &amount, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		v, err := parseAmount(amount)
		if err != nil {
			return nil, err
		}
		e.DebateID = uint64(id)
		e.User = parseAddress(user)
		e.AgentID = uint64(agentID)
		e.Amount = v
		e.CreatedAt = unixTime(createdAt)
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}
	return events, nil
}
