package handlers

import (
	"net/http"

	"debatebet/internal/service"
	"debatebet/internal/units"
)

// RefundInfoResponse is one row of the refund listing of a debate
type RefundInfoResponse struct {
	User     string `json:"user"`
	Amount   string `json:"amount_of_refund"`
	Refunded bool   `json:"refunded"`
}

// RefundStatusResponse reports a user's refund position on a debate
type RefundStatusResponse struct {
	DebateID   uint64 `json:"debate_id"`
	User       string `json:"user"`
	Refundable string `json:"refundable_amount"`
	// Agent fields are set when ?agent= is given
	AgentID  uint64 `json:"agent_id,omitempty"`
	Refunded *bool  `json:"refunded,omitempty"`
	Amount   string `json:"amount,omitempty"`
}

// ProcessRefundsResponse is the response after a moderator refund sweep
type ProcessRefundsResponse struct {
	DebateID uint64 `json:"debate_id"`
	Refunds  int    `json:"refunds"`
}

// HandleRefundInfo handles GET /api/debates/{id}/refunds
func (h *Handler) HandleRefundInfo(w http.ResponseWriter, r *http.Request) {
	id, ok := debateIDParam(w, r)
	if !ok {
		return
	}

	infos, err := h.engine.GetUsersRefundInfo(r.Context(), id)
	if err != nil {
		respondWithEngineError(w, r, "get refund info", err)
		return
	}

	resp := make([]RefundInfoResponse, 0, len(infos))
	for _, info := range infos {
		resp = append(resp, RefundInfoResponse{
			User:     info.User.Hex(),
			Amount:   units.Format(info.Amount),
			Refunded: info.Refunded,
		})
	}
	respondJSON(w, http.StatusOK, resp)
}

// HandleRefundStatus handles GET /api/debates/{id}/refunds/{user}[?agent=]
func (h *Handler) HandleRefundStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := debateIDParam(w, r)
	if !ok {
		return
	}
	user, ok := userParam(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	refundable, err := h.engine.GetUserRefundableAmount(ctx, id, user)
	if err != nil {
		respondWithEngineError(w, r, "get refund status", err)
		return
	}
	resp := RefundStatusResponse{
		DebateID:   id,
		User:       user.Hex(),
		Refundable: units.Format(refundable),
	}

	if r.URL.Query().Has("agent") {
		agent, ok := agentQuery(w, r)
		if !ok {
			return
		}
		refunded, amount, err := h.engine.GetRefundStatus(ctx, id, user, agent)
		if err != nil {
			respondWithEngineError(w, r, "get refund status", err)
			return
		}
		resp.AgentID = agent
		resp.Refunded = &refunded
		resp.Amount = units.Format(amount)
	}
	respondJSON(w, http.StatusOK, resp)
}

// HandleProcessRefunds handles POST /api/debates/{id}/refunds/process
func (h *Handler) HandleProcessRefunds(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	id, ok := debateIDParam(w, r)
	if !ok {
		return
	}

	n, err := h.engine.ProcessRefunds(r.Context(), service.From(caller), id)
	if err != nil {
		respondWithEngineError(w, r, "process refunds", err)
		return
	}
	respondJSON(w, http.StatusOK, ProcessRefundsResponse{DebateID: id, Refunds: n})
}

// HandleUserRefund handles POST /api/debates/{id}/refunds/claim
func (h *Handler) HandleUserRefund(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	id, ok := debateIDParam(w, r)
	if !ok {
		return
	}

	amount, err := h.engine.UserRefund(r.Context(), service.From(caller), id)
	if err != nil {
		respondWithEngineError(w, r, "refund", err)
		return
	}
	respondJSON(w, http.StatusOK, AmountResponse{DebateID: id, Amount: units.Format(amount)})
}
