package handlers

import (
	"net/http"
)

// PingResponse is the response for the ping endpoint
type PingResponse struct {
	Status string `json:"status"`
}

// PingHandler handles the /api/ping endpoint
func PingHandler(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, PingResponse{Status: "ok"})
}
