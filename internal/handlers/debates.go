package handlers

import (
	"fmt"
	"math/big"
	"net/http"
	"time"

	"debatebet/internal/logger"
	"debatebet/internal/service"
	"debatebet/internal/storage"
	"debatebet/internal/units"
)

// CreateDebateRequest is the request body for creating a debate
type CreateDebateRequest struct {
	ID       uint64  `json:"id"`
	AgentA   uint64  `json:"agent_a"`
	AgentB   uint64  `json:"agent_b"`
	FeeBps   *uint32 `json:"fee_bps,omitempty"`
	PublicTs int64   `json:"public_ts"`
	StartTs  int64   `json:"start_ts"`
	Duration int64   `json:"duration"`
}

// DebateResponse describes a debate with its pools
type DebateResponse struct {
	ID             uint64    `json:"id"`
	AgentA         uint64    `json:"agent_a"`
	AgentB         uint64    `json:"agent_b"`
	FeeBps         uint32    `json:"fee_bps"`
	PublicTs       int64     `json:"public_ts"`
	StartTs        int64     `json:"start_ts"`
	Duration       int64     `json:"duration"`
	State          string    `json:"state"`
	WinningAgentID uint64    `json:"winning_agent_id,omitempty"`
	PoolA          string    `json:"pool_a"`
	PoolB          string    `json:"pool_b"`
	TotalPool      string    `json:"total_pool"`
	Bettors        int       `json:"bettors"`
	CreatedAt      time.Time `json:"created_at"`
}

// ResolveRequest is the request body for resolving a debate
type ResolveRequest struct {
	WinningAgentID uint64 `json:"winning_agent_id"`
}

// HandleCreateDebate handles POST /api/debates
func (h *Handler) HandleCreateDebate(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}

	var req CreateDebateRequest
	if !decodeBody(w, r, &req) {
		return
	}

	fee := h.defaultFeeBps
	if req.FeeBps != nil {
		fee = *req.FeeBps
	}

	debate, err := h.engine.CreateDebate(r.Context(), service.From(caller), service.DebateParams{
		ID:       req.ID,
		AgentA:   req.AgentA,
		AgentB:   req.AgentB,
		FeeBps:   fee,
		PublicTs: req.PublicTs,
		StartTs:  req.StartTs,
		Duration: req.Duration,
	})
	if err != nil {
		respondWithEngineError(w, r, "create debate", err)
		return
	}

	resp, err := h.debateResponse(r, debate)
	if err != nil {
		respondWithEngineError(w, r, "create debate", err)
		return
	}
	respondJSON(w, http.StatusCreated, resp)
}

// HandleListDebates handles GET /api/debates?state=CREATED|RESOLVED|REFUNDABLE
func (h *Handler) HandleListDebates(w http.ResponseWriter, r *http.Request) {
	state := storage.DebateState(r.URL.Query().Get("state"))
	switch state {
	case "":
		state = storage.DebateStateCreated
	case storage.DebateStateCreated, storage.DebateStateResolved, storage.DebateStateRefundable:
	default:
		respondWithError(w, "Invalid state: must be CREATED, RESOLVED or REFUNDABLE", http.StatusBadRequest)
		return
	}

	debates, err := h.engine.ListDebates(r.Context(), state)
	if err != nil {
		respondWithEngineError(w, r, "list debates", err)
		return
	}

	resp := make([]*DebateResponse, 0, len(debates))
	for _, d := range debates {
		dr, err := h.debateResponse(r, d)
		if err != nil {
			respondWithEngineError(w, r, "list debates", err)
			return
		}
		resp = append(resp, dr)
	}
	respondJSON(w, http.StatusOK, resp)
}

// HandleGetDebate handles GET /api/debates/{id}
func (h *Handler) HandleGetDebate(w http.ResponseWriter, r *http.Request) {
	id, ok := debateIDParam(w, r)
	if !ok {
		return
	}

	if h.settled != nil {
		if resp, ok := h.settled.Get(id); ok {
			respondJSON(w, http.StatusOK, resp)
			return
		}
	}

	debate, err := h.engine.GetDebate(r.Context(), id)
	if err != nil {
		respondWithEngineError(w, r, "get debate", err)
		return
	}
	resp, err := h.debateResponse(r, debate)
	if err != nil {
		respondWithEngineError(w, r, "get debate", err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// HandleResolve handles POST /api/debates/{id}/resolve
func (h *Handler) HandleResolve(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	id, ok := debateIDParam(w, r)
	if !ok {
		return
	}

	var req ResolveRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.engine.ResolveDebate(r.Context(), service.From(caller), id, req.WinningAgentID); err != nil {
		respondWithEngineError(w, r, "resolve debate", err)
		return
	}
	h.respondWithDebate(w, r, id, "resolve debate")
}

// HandleMarkRefundable handles POST /api/debates/{id}/refundable
func (h *Handler) HandleMarkRefundable(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	id, ok := debateIDParam(w, r)
	if !ok {
		return
	}

	if err := h.engine.MarkRefundable(r.Context(), service.From(caller), id); err != nil {
		respondWithEngineError(w, r, "mark debate refundable", err)
		return
	}
	h.respondWithDebate(w, r, id, "mark debate refundable")
}

func (h *Handler) respondWithDebate(w http.ResponseWriter, r *http.Request, id uint64, action string) {
	debate, err := h.engine.GetDebate(r.Context(), id)
	if err != nil {
		respondWithEngineError(w, r, action, err)
		return
	}
	resp, err := h.debateResponse(r, debate)
	if err != nil {
		respondWithEngineError(w, r, action, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// debateResponse builds the summary of a debate, caching it once the pools
// are final
func (h *Handler) debateResponse(r *http.Request, d *storage.Debate) (*DebateResponse, error) {
	if h.settled != nil && isSettled(d) {
		if resp, ok := h.settled.Get(d.ID); ok {
			return resp, nil
		}
	}

	ctx := r.Context()
	totals, err := h.engine.PoolTotals(ctx, d.ID)
	if err != nil {
		return nil, err
	}
	bettors, err := h.engine.Bettors(ctx, d.ID)
	if err != nil {
		return nil, err
	}

	total := new(big.Int).Add(totals[d.AgentA], totals[d.AgentB])
	resp := &DebateResponse{
		ID:             d.ID,
		AgentA:         d.AgentA,
		AgentB:         d.AgentB,
		FeeBps:         d.FeeBps,
		PublicTs:       d.PublicTs,
		StartTs:        d.StartTs,
		Duration:       d.Duration,
		State:          string(d.State),
		WinningAgentID: d.WinningAgentID,
		PoolA:          units.Format(totals[d.AgentA]),
		PoolB:          units.Format(totals[d.AgentB]),
		TotalPool:      units.Format(total),
		Bettors:        len(bettors),
		CreatedAt:      d.CreatedAt,
	}

	if h.settled != nil && isSettled(d) {
		h.settled.Add(d.ID, resp)
		logger.Debug(logger.System, "debate_cached", fmt.Sprintf("debate_id=%d state=%s", d.ID, d.State))
	}
	return resp, nil
}
