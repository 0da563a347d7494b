package handlers

import (
	"net/http"

	"debatebet/internal/units"
)

// MeResponse describes the authenticated caller
type MeResponse struct {
	Address     string `json:"address"`
	Balance     string `json:"balance"`
	IsOwner     bool   `json:"is_owner"`
	IsModerator bool   `json:"is_moderator"`
}

// HandleMe handles GET /api/me
func (h *Handler) HandleMe(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}

	balance, err := h.engine.WalletBalance(r.Context(), caller)
	if err != nil {
		respondWithEngineError(w, r, "get wallet balance", err)
		return
	}

	respondJSON(w, http.StatusOK, MeResponse{
		Address:     caller.Hex(),
		Balance:     units.Format(balance),
		IsOwner:     caller == h.engine.Owner(),
		IsModerator: caller == h.engine.Moderator(),
	})
}
