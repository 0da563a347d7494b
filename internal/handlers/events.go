package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"debatebet/internal/logger"
	"debatebet/internal/service"
	"debatebet/internal/units"

	"github.com/gorilla/websocket"
)

const eventWriteTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// EventMessage is the JSON frame sent for every committed event
type EventMessage struct {
	Seq      int64     `json:"seq"`
	Kind     string    `json:"kind"`
	DebateID uint64    `json:"debate_id,omitempty"`
	User     string    `json:"user"`
	AgentID  uint64    `json:"agent_id,omitempty"`
	Amount   string    `json:"amount"`
	At       time.Time `json:"at"`
}

func newEventMessage(evt service.Event) EventMessage {
	return EventMessage{
		Seq:      evt.Seq,
		Kind:     string(evt.Kind),
		DebateID: evt.DebateID,
		User:     evt.User.Hex(),
		AgentID:  evt.AgentID,
		Amount:   units.Format(evt.Amount),
		At:       evt.At,
	}
}

// HandleEvents handles GET /api/events[?debate=<id>], streaming committed
// events over a websocket until the client goes away
func (h *Handler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		respondWithError(w, "Event stream is not enabled", http.StatusServiceUnavailable)
		return
	}

	var debateID uint64
	if s := r.URL.Query().Get("debate"); s != "" {
		id, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			respondWithError(w, "Invalid debate ID", http.StatusBadRequest)
			return
		}
		debateID = id
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Debug(logger.System, "events_upgrade_failed", fmt.Sprintf("error=%s", err.Error()))
		return
	}
	defer conn.Close()

	events, cancel := h.hub.Subscribe()
	defer cancel()
	logger.Debug(logger.System, "events_subscribed", fmt.Sprintf("debate_id=%d subscribers=%d", debateID, h.hub.Subscribers()))

	// the client sends nothing; reading only detects the close
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					logger.Debug(logger.System, "events_read_failed", fmt.Sprintf("error=%s", err.Error()))
				}
				return
			}
		}
	}()

	for {
		select {
		case evt, ok := <-events:
			if !ok {
				return
			}
			if debateID != 0 && evt.DebateID != debateID {
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(eventWriteTimeout))
			if err := conn.WriteJSON(newEventMessage(evt)); err != nil {
				logger.Debug(logger.System, "events_write_failed", fmt.Sprintf("error=%s", err.Error()))
				return
			}
		case <-closed:
			return
		case <-r.Context().Done():
			return
		}
	}
}
