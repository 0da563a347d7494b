package handlers

import (
	"math/big"
	"net/http"
	"sort"

	"debatebet/internal/units"
)

// LeaderboardEntry is one bettor ranked by total stake
type LeaderboardEntry struct {
	Rank   int    `json:"rank"`
	User   string `json:"user"`
	StakeA string `json:"stake_a"`
	StakeB string `json:"stake_b"`
	Total  string `json:"total"`
	total  *big.Int
}

// HandleLeaderboard handles GET /api/debates/{id}/leaderboard. Ties keep
// first-bet order.
func (h *Handler) HandleLeaderboard(w http.ResponseWriter, r *http.Request) {
	id, ok := debateIDParam(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	debate, err := h.engine.GetDebate(ctx, id)
	if err != nil {
		respondWithEngineError(w, r, "get leaderboard", err)
		return
	}
	bettors, err := h.engine.Bettors(ctx, id)
	if err != nil {
		respondWithEngineError(w, r, "get leaderboard", err)
		return
	}

	entries := make([]LeaderboardEntry, 0, len(bettors))
	for _, user := range bettors {
		stakes := [2]*big.Int{new(big.Int), new(big.Int)}
		for i, agent := range debate.Agents() {
			bet, err := h.engine.GetBet(ctx, id, user, agent)
			if err != nil {
				respondWithEngineError(w, r, "get leaderboard", err)
				return
			}
			if bet != nil {
				stakes[i] = bet.Amount
			}
		}
		total := new(big.Int).Add(stakes[0], stakes[1])
		entries = append(entries, LeaderboardEntry{
			User:   user.Hex(),
			StakeA: units.Format(stakes[0]),
			StakeB: units.Format(stakes[1]),
			Total:  units.Format(total),
			total:  total,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].total.Cmp(entries[j].total) > 0
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}

	respondJSON(w, http.StatusOK, entries)
}
