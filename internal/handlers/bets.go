package handlers

import (
	"net/http"

	"debatebet/internal/service"
	"debatebet/internal/storage"
	"debatebet/internal/units"
)

// PlaceBetRequest is the request body for placing a bet. Value is the amount
// attached to the call and defaults to Amount.
type PlaceBetRequest struct {
	AgentID uint64 `json:"agent_id"`
	Amount  string `json:"amount"`
	Value   string `json:"value,omitempty"`
}

// BetResponse describes one bucket of a user's stake
type BetResponse struct {
	DebateID uint64 `json:"debate_id"`
	User     string `json:"user"`
	AgentID  uint64 `json:"agent_id"`
	Amount   string `json:"amount"`
	Refunded bool   `json:"refunded"`
	Claimed  bool   `json:"claimed"`
	// Payout is what the bucket pays if its agent wins
	Payout string `json:"payout,omitempty"`
}

// PlaceBetResponse is the response after placing a bet
type PlaceBetResponse struct {
	Bet        BetResponse `json:"bet"`
	NewBalance string      `json:"new_balance"`
}

// AmountResponse reports an amount moved by a call
type AmountResponse struct {
	DebateID uint64 `json:"debate_id"`
	Amount   string `json:"amount"`
}

func newBetResponse(b *storage.Bet) BetResponse {
	return BetResponse{
		DebateID: b.DebateID,
		User:     b.User.Hex(),
		AgentID:  b.AgentID,
		Amount:   units.Format(b.Amount),
		Refunded: b.Refunded,
		Claimed:  b.Claimed,
	}
}

// HandlePlaceBet handles POST /api/debates/{id}/bets
func (h *Handler) HandlePlaceBet(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	id, ok := debateIDParam(w, r)
	if !ok {
		return
	}

	var req PlaceBetRequest
	if !decodeBody(w, r, &req) {
		return
	}

	amount, err := parseAmount(req.Amount)
	if err != nil {
		respondWithError(w, "Invalid amount: "+err.Error(), http.StatusBadRequest)
		return
	}
	value := amount
	if req.Value != "" {
		if value, err = units.Parse(req.Value); err != nil {
			respondWithError(w, "Invalid value: "+err.Error(), http.StatusBadRequest)
			return
		}
	}

	ctx := r.Context()
	bet, err := h.engine.PlaceBet(ctx, service.Call{Caller: caller, Value: value}, id, req.AgentID, amount)
	if err != nil {
		respondWithEngineError(w, r, "place bet", err)
		return
	}

	balance, err := h.engine.WalletBalance(ctx, caller)
	if err != nil {
		respondWithEngineError(w, r, "get wallet balance", err)
		return
	}

	respondJSON(w, http.StatusOK, PlaceBetResponse{
		Bet:        newBetResponse(bet),
		NewBalance: units.Format(balance),
	})
}

// HandleUserBets handles GET /api/debates/{id}/bets/{user}
func (h *Handler) HandleUserBets(w http.ResponseWriter, r *http.Request) {
	id, ok := debateIDParam(w, r)
	if !ok {
		return
	}
	user, ok := userParam(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	debate, err := h.engine.GetDebate(ctx, id)
	if err != nil {
		respondWithEngineError(w, r, "get bets", err)
		return
	}

	resp := make([]BetResponse, 0, 2)
	for _, agent := range debate.Agents() {
		bet, err := h.engine.GetBet(ctx, id, user, agent)
		if err != nil {
			respondWithEngineError(w, r, "get bets", err)
			return
		}
		if bet == nil {
			continue
		}
		br := newBetResponse(bet)
		payout, err := h.engine.PreviewPayout(ctx, id, user, agent)
		if err != nil {
			respondWithEngineError(w, r, "get bets", err)
			return
		}
		br.Payout = units.Format(payout)
		resp = append(resp, br)
	}
	respondJSON(w, http.StatusOK, resp)
}

// HandleClaim handles POST /api/debates/{id}/claim
func (h *Handler) HandleClaim(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	id, ok := debateIDParam(w, r)
	if !ok {
		return
	}

	payout, err := h.engine.Claim(r.Context(), service.From(caller), id)
	if err != nil {
		respondWithEngineError(w, r, "claim", err)
		return
	}
	respondJSON(w, http.StatusOK, AmountResponse{DebateID: id, Amount: units.Format(payout)})
}
