package handlers

import (
	"net/http"
	"time"

	"debatebet/internal/units"
)

// EventResponse is one committed event of a debate
type EventResponse struct {
	Seq       int64     `json:"seq"`
	Kind      string    `json:"kind"`
	User      string    `json:"user"`
	AgentID   uint64    `json:"agent_id,omitempty"`
	Amount    string    `json:"amount"`
	CreatedAt time.Time `json:"created_at"`
}

// TransferResponse is one fund movement of a debate
type TransferResponse struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Amount    string    `json:"amount"`
	CreatedAt time.Time `json:"created_at"`
}

// HistoryResponse is the response for GET /api/debates/{id}/history
type HistoryResponse struct {
	DebateID  uint64             `json:"debate_id"`
	Events    []EventResponse    `json:"events"`
	Transfers []TransferResponse `json:"transfers"`
}

// HandleHistory handles GET /api/debates/{id}/history
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := debateIDParam(w, r)
	if !ok {
		return
	}

	events, transfers, err := h.engine.DebateHistory(r.Context(), id)
	if err != nil {
		respondWithEngineError(w, r, "get history", err)
		return
	}

	resp := HistoryResponse{
		DebateID:  id,
		Events:    make([]EventResponse, 0, len(events)),
		Transfers: make([]TransferResponse, 0, len(transfers)),
	}
	for _, e := range events {
		resp.Events = append(resp.Events, EventResponse{
			Seq:       e.Seq,
			Kind:      e.Kind,
			User:      e.User.Hex(),
			AgentID:   e.AgentID,
			Amount:    units.Format(e.Amount),
			CreatedAt: e.CreatedAt,
		})
	}
	for _, t := range transfers {
		resp.Transfers = append(resp.Transfers, TransferResponse{
			ID:        t.ID,
			Kind:      string(t.Kind),
			From:      t.From.Hex(),
			To:        t.To.Hex(),
			Amount:    units.Format(t.Amount),
			CreatedAt: t.CreatedAt,
		})
	}
	respondJSON(w, http.StatusOK, resp)
}
