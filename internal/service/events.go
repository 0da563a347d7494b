package service

import (
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// EventKind names an engine notification
type EventKind string

const (
	EventDebateCreated          EventKind = "DebateCreated"
	EventBetPlaced              EventKind = "BetPlaced"
	EventDebateResolved         EventKind = "DebateResolved"
	EventClaimed                EventKind = "Claimed"
	EventDebateMarkedRefundable EventKind = "DebateMarkedRefundable"
	EventUserRefunded           EventKind = "UserRefunded"
	EventTreasuryWithdrawn      EventKind = "TreasuryWithdrawn"
)

// Event is a committed state change observable by external watchers
type Event struct {
	ID       string         `json:"id"`
	Seq      int64          `json:"seq"`
	Kind     EventKind      `json:"kind"`
	DebateID uint64         `json:"debate_id,omitempty"`
	User     common.Address `json:"user"`
	AgentID  uint64         `json:"agent_id,omitempty"`
	Amount   *big.Int       `json:"amount"`
	At       time.Time      `json:"at"`
}

// Emitter receives events after the call that produced them has committed
type Emitter interface {
	Emit(Event)
}

// NoopEmitter discards events
type NoopEmitter struct{}

func (NoopEmitter) Emit(Event) {}

// MultiEmitter forwards each event to every emitter in order
type MultiEmitter []Emitter

func (m MultiEmitter) Emit(evt Event) {
	for _, e := range m {
		if e != nil {
			e.Emit(evt)
		}
	}
}

// Recorder keeps every emitted event in memory
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Emit(evt Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

// Events returns a copy of the recorded events
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// OfKind returns the recorded events with the given kind
func (r *Recorder) OfKind(kind EventKind) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, e := range r.events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// Reset drops all recorded events
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

// Hub fans events out to live subscribers. Slow subscribers lose events
// instead of blocking the engine.
type Hub struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan Event
	buffer int
}

// NewHub creates a hub whose subscriber channels hold buffer events
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 64
	}
	return &Hub{subs: make(map[int]chan Event), buffer: buffer}
}

// Subscribe registers a new subscriber. The returned cancel func closes the channel.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextID
	h.nextID++
	ch := make(chan Event, h.buffer)
	h.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subs, id)
			close(ch)
		})
	}
	return ch, cancel
}

func (h *Hub) Emit(evt Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs {
		select {
		case ch <- evt:
		default:
		}
	}
}

// Subscribers returns the number of live subscribers
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
