package storage

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// DebateState represents the lifecycle state of a debate
type DebateState string

const (
	DebateStateCreated    DebateState = "CREATED"
	DebateStateResolved   DebateState = "RESOLVED"
	DebateStateRefundable DebateState = "REFUNDABLE"
)

// Debate represents a wagering event between two agents
type Debate struct {
	ID             uint64      `json:"id" db:"id"`
	AgentA         uint64      `json:"agent_a" db:"agent_a"`
	AgentB         uint64      `json:"agent_b" db:"agent_b"`
	FeeBps         uint32      `json:"fee_bps" db:"fee_bps"` // basis points (500 = 5%)
	PublicTs       int64       `json:"public_ts" db:"public_ts"`
	StartTs        int64       `json:"start_ts" db:"start_ts"`
	Duration       int64       `json:"duration" db:"duration"` // seconds
	State          DebateState `json:"state" db:"state"`
	WinningAgentID uint64      `json:"winning_agent_id,omitempty" db:"winner"`
	CreatedAt      time.Time   `json:"created_at" db:"created_at"`
}

// HasAgent reports whether agentID is one of the debate's two sides
func (d *Debate) HasAgent(agentID uint64) bool {
	return agentID == d.AgentA || agentID == d.AgentB
}

// Agents returns both sides in A, B order
func (d *Debate) Agents() [2]uint64 {
	return [2]uint64{d.AgentA, d.AgentB}
}

// Bet is the aggregated stake of one user on one agent within one debate
type Bet struct {
	DebateID uint64         `json:"debate_id" db:"debate_id"`
	User     common.Address `json:"user" db:"user"`
	AgentID  uint64         `json:"agent_id" db:"agent_id"`
	Amount   *big.Int       `json:"amount" db:"amount"` // in wei
	Refunded bool           `json:"refunded" db:"refunded"`
	Claimed  bool           `json:"claimed" db:"claimed"`
}

// RefundInfo summarizes one bettor's position for refund listings
type RefundInfo struct {
	User     common.Address `json:"user"`
	Amount   *big.Int       `json:"amount_of_refund"`
	Refunded bool           `json:"refunded"`
}

// TransferKind labels a fund movement in the transfer log
type TransferKind string

const (
	TransferKindDeposit  TransferKind = "DEPOSIT"
	TransferKindBet      TransferKind = "BET"
	TransferKindClaim    TransferKind = "CLAIM"
	TransferKindRefund   TransferKind = "REFUND"
	TransferKindWithdraw TransferKind = "WITHDRAW"
)

// Transfer represents a balance movement between a wallet and the treasury
type Transfer struct {
	ID        string         `json:"id" db:"id"`
	DebateID  uint64         `json:"debate_id,omitempty" db:"debate_id"`
	From      common.Address `json:"from" db:"from_addr"`
	To        common.Address `json:"to" db:"to_addr"`
	Amount    *big.Int       `json:"amount" db:"amount"`
	Kind      TransferKind   `json:"kind" db:"kind"`
	CreatedAt time.Time      `json:"created_at" db:"created_at"`
}

// EventRecord is a persisted engine notification
type EventRecord struct {
	ID        string         `json:"id" db:"id"`
	Seq       int64          `json:"seq" db:"seq"`
	Kind      string         `json:"kind" db:"kind"`
	DebateID  uint64         `json:"debate_id" db:"debate_id"`
	User      common.Address `json:"user" db:"user"`
	AgentID   uint64         `json:"agent_id" db:"agent_id"`
	Amount    *big.Int       `json:"amount" db:"amount"`
	CreatedAt time.Time      `json:"created_at" db:"created_at"`
}
