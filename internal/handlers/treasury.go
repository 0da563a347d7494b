package handlers

import (
	"net/http"

	"debatebet/internal/service"
	"debatebet/internal/units"
)

// TreasuryResponse reports the custodied balance
type TreasuryResponse struct {
	Balance string `json:"balance"`
}

// HandleTreasury handles GET /api/treasury
func (h *Handler) HandleTreasury(w http.ResponseWriter, r *http.Request) {
	balance, err := h.engine.TreasuryBalance(r.Context())
	if err != nil {
		respondWithEngineError(w, r, "get treasury balance", err)
		return
	}
	respondJSON(w, http.StatusOK, TreasuryResponse{Balance: units.Format(balance)})
}

// HandleWithdraw handles POST /api/treasury/withdraw
func (h *Handler) HandleWithdraw(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}

	amount, err := h.engine.WithdrawAll(r.Context(), service.From(caller))
	if err != nil {
		respondWithEngineError(w, r, "withdraw", err)
		return
	}
	respondJSON(w, http.StatusOK, AmountResponse{Amount: units.Format(amount)})
}
