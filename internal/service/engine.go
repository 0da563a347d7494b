package service

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"debatebet/internal/storage"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// Call carries the identity of the caller and the funds attached to an entry point invocation
type Call struct {
	Caller common.Address
	Value  *big.Int
}

// From builds a call without attached funds
func From(caller common.Address) Call {
	return Call{Caller: caller}
}

// Transferer moves funds that already left the treasury to their recipient.
// It runs inside the calling transaction, after every bookkeeping change of
// the call has been written. Returning an error aborts the whole call.
type Transferer interface {
	Transfer(ctx context.Context, q *storage.Queries, t *storage.Transfer) error
}

// WalletTransferer credits the recipient's wallet and records the transfer
type WalletTransferer struct{}

func (WalletTransferer) Transfer(ctx context.Context, q *storage.Queries, t *storage.Transfer) error {
	balance, err := q.WalletBalance(ctx, t.To)
	if err != nil {
		return err
	}
	if err := q.SetWalletBalance(ctx, t.To, new(big.Int).Add(balance, t.Amount)); err != nil {
		return err
	}
	return q.InsertTransfer(ctx, t)
}

// Engine is the debate wagering and settlement engine. Each entry point runs
// as one serialized, all-or-nothing unit against the store.
type Engine struct {
	store      *storage.Store
	owner      common.Address
	moderator  common.Address
	nowFn      func() time.Time
	transferer Transferer
	emitter    Emitter
	mu         sync.Mutex
}

// NewEngine creates an engine with fixed owner and moderator roles
func NewEngine(store *storage.Store, owner, moderator common.Address) *Engine {
	return &Engine{
		store:      store,
		owner:      owner,
		moderator:  moderator,
		nowFn:      time.Now,
		transferer: WalletTransferer{},
		emitter:    NoopEmitter{},
	}
}

// SetClock overrides the time source used for the public betting window
func (e *Engine) SetClock(now func() time.Time) {
	if now == nil {
		now = time.Now
	}
	e.nowFn = now
}

// SetTransferer replaces the outbound transfer implementation
func (e *Engine) SetTransferer(t Transferer) {
	if t == nil {
		t = WalletTransferer{}
	}
	e.transferer = t
}

// SetEmitter configures where committed events are published
func (e *Engine) SetEmitter(emitter Emitter) {
	if emitter == nil {
		emitter = NoopEmitter{}
	}
	e.emitter = emitter
}

// Owner returns the owner address
func (e *Engine) Owner() common.Address { return e.owner }

// Moderator returns the moderator address
func (e *Engine) Moderator() common.Address { return e.moderator }

type inCallKey struct{}

// view returns a reader over committed state. The store has a single
// connection which an in-flight call holds, so views are refused there.
func (e *Engine) view(ctx context.Context) (*storage.Queries, error) {
	if ctx.Value(inCallKey{}) != nil {
		return nil, fmt.Errorf("%w: view invoked during another call", ErrReentrantCall)
	}
	return e.store.Queries(), nil
}

// txn is the per-call unit of work handed to entry point bodies
type txn struct {
	q      *storage.Queries
	now    time.Time
	events []Event
}

// exec runs fn as a single atomic call. Events recorded by fn are published
// only after the transaction commits and the engine lock is released.
func (e *Engine) exec(ctx context.Context, fn func(ctx context.Context, t *txn) error) error {
	if ctx.Value(inCallKey{}) != nil {
		return fmt.Errorf("%w: engine entry point invoked during another call", ErrReentrantCall)
	}
	ctx = context.WithValue(ctx, inCallKey{}, true)

	var t *txn
	err := func() error {
		e.mu.Lock()
		defer e.mu.Unlock()
		return e.store.InTx(ctx, func(q *storage.Queries) error {
			t = &txn{q: q, now: e.nowFn()}
			return fn(ctx, t)
		})
	}()
	if err != nil {
		return err
	}

	for _, evt := range t.events {
		e.emitter.Emit(evt)
	}
	return nil
}

// emit persists an event inside the call's transaction
func (t *txn) emit(ctx context.Context, kind EventKind, debateID uint64, user common.Address, agentID uint64, amount *big.Int) error {
	if amount == nil {
		amount = new(big.Int)
	}
	rec := &storage.EventRecord{
		ID:        uuid.NewString(),
		Kind:      string(kind),
		DebateID:  debateID,
		User:      user,
		AgentID:   agentID,
		Amount:    new(big.Int).Set(amount),
		CreatedAt: t.now,
	}
	if err := t.q.InsertEvent(ctx, rec); err != nil {
		return err
	}
	t.events = append(t.events, Event{
		ID:       rec.ID,
		Seq:      rec.Seq,
		Kind:     kind,
		DebateID: debateID,
		User:     user,
		AgentID:  agentID,
		Amount:   rec.Amount,
		At:       t.now,
	})
	return nil
}

// loadDebate fetches a debate or fails with ErrNotFound
func (t *txn) loadDebate(ctx context.Context, id uint64) (*storage.Debate, error) {
	d, err := t.q.GetDebate(ctx, id)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, fmt.Errorf("%w: debate %d is not created yet", ErrNotFound, id)
	}
	return d, nil
}

// payOut debits the treasury and hands the funds to the transferer.
// Callers must have written their settlement flags before calling it.
func (e *Engine) payOut(ctx context.Context, t *txn, debateID uint64, to common.Address, amount *big.Int, kind storage.TransferKind) error {
	if err := debitTreasury(ctx, t.q, amount); err != nil {
		return err
	}
	transfer := &storage.Transfer{
		ID:        uuid.NewString(),
		DebateID:  debateID,
		From:      treasuryAddress,
		To:        to,
		Amount:    new(big.Int).Set(amount),
		Kind:      kind,
		CreatedAt: t.now,
	}
	if err := e.transferer.Transfer(ctx, t.q, transfer); err != nil {
		return fmt.Errorf("transfer of %s wei to %s failed: %w", amount, to.Hex(), err)
	}
	return nil
}
