package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strconv"

	"debatebet/internal/auth"
	"debatebet/internal/logger"
	"debatebet/internal/service"
	"debatebet/internal/storage"
	"debatebet/internal/units"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Handler serves the debate API on top of an engine
type Handler struct {
	engine        *service.Engine
	hub           *service.Hub
	defaultFeeBps uint32
	// settled caches summaries of debates that left the Created state; their
	// pools can no longer change
	settled *lru.Cache[uint64, *DebateResponse]
}

// NewHandler creates a handler. A cacheSize of 0 disables the summary cache.
// hub may be nil, in which case the event stream is unavailable.
func NewHandler(engine *service.Engine, hub *service.Hub, cacheSize int, defaultFeeBps uint32) (*Handler, error) {
	h := &Handler{
		engine:        engine,
		hub:           hub,
		defaultFeeBps: defaultFeeBps,
	}
	if cacheSize > 0 {
		cache, err := lru.New[uint64, *DebateResponse](cacheSize)
		if err != nil {
			return nil, fmt.Errorf("failed to create debate cache: %w", err)
		}
		h.settled = cache
	}
	return h, nil
}

// Router builds the /api routes. Callers are identified by validator; routes
// that change state reject anonymous requests.
func (h *Handler) Router(validator *auth.Validator) http.Handler {
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	r.Route("/api", func(api chi.Router) {
		if validator != nil {
			api.Use(validator.Middleware)
		}

		api.Get("/ping", PingHandler)
		api.Get("/me", h.HandleMe)
		api.Get("/events", h.HandleEvents)

		api.Get("/treasury", h.HandleTreasury)
		api.Post("/treasury/withdraw", h.HandleWithdraw)

		api.Route("/debates", func(d chi.Router) {
			d.Get("/", h.HandleListDebates)
			d.Post("/", h.HandleCreateDebate)

			d.Route("/{id}", func(d chi.Router) {
				d.Get("/", h.HandleGetDebate)
				d.Get("/history", h.HandleHistory)
				d.Get("/leaderboard", h.HandleLeaderboard)

				d.Post("/bets", h.HandlePlaceBet)
				d.Get("/bets/{user}", h.HandleUserBets)

				d.Post("/resolve", h.HandleResolve)
				d.Post("/claim", h.HandleClaim)

				d.Post("/refundable", h.HandleMarkRefundable)
				d.Get("/refunds", h.HandleRefundInfo)
				d.Post("/refunds/process", h.HandleProcessRefunds)
				d.Post("/refunds/claim", h.HandleUserRefund)
				d.Get("/refunds/{user}", h.HandleRefundStatus)
			})
		})
	})
	return r
}

// ErrorResponse is the standard error response format
type ErrorResponse struct {
	Error string `json:"error"`
}

// respondWithError sends a JSON error response
func respondWithError(w http.ResponseWriter, message string, statusCode int) {
	respondJSON(w, statusCode, ErrorResponse{Error: message})
}

func respondJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

// statusFor maps engine failures onto HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrAccessDenied):
		return http.StatusForbidden
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrInvalidState), errors.Is(err, service.ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, service.ErrInvalidTiming):
		return http.StatusTooEarly
	case errors.Is(err, service.ErrNothingToDo):
		return http.StatusUnprocessableEntity
	case errors.Is(err, service.ErrInsufficientFunds):
		return http.StatusPaymentRequired
	case errors.Is(err, service.ErrInvalidArgument):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// respondWithEngineError reports a rejected call with its reason. Unexpected
// failures are logged and hidden behind a generic message.
func respondWithEngineError(w http.ResponseWriter, r *http.Request, action string, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		logger.Debug(logger.System, action+"_failed", fmt.Sprintf("path=%s error=%s", r.URL.Path, err.Error()))
		respondWithError(w, "Failed to "+action, code)
		return
	}
	respondWithError(w, err.Error(), code)
}

// requireCaller returns the authenticated caller or writes a 401
func requireCaller(w http.ResponseWriter, r *http.Request) (common.Address, bool) {
	caller, ok := auth.GetCallerFromContext(r.Context())
	if !ok {
		respondWithError(w, "Unauthorized: caller not in context", http.StatusUnauthorized)
	}
	return caller, ok
}

// debateIDParam parses the {id} URL parameter
func debateIDParam(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondWithError(w, "Invalid debate ID", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

// userParam parses the {user} URL parameter
func userParam(w http.ResponseWriter, r *http.Request) (common.Address, bool) {
	s := chi.URLParam(r, "user")
	if !common.IsHexAddress(s) {
		respondWithError(w, "Invalid user address", http.StatusBadRequest)
		return common.Address{}, false
	}
	return common.HexToAddress(s), true
}

// agentQuery parses the required ?agent= query parameter
func agentQuery(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	agent, err := strconv.ParseUint(r.URL.Query().Get("agent"), 10, 64)
	if err != nil {
		respondWithError(w, "Invalid agent: query parameter 'agent' is required", http.StatusBadRequest)
		return 0, false
	}
	return agent, true
}

// parseAmount converts a decimal unit string from a request body into wei
func parseAmount(s string) (*big.Int, error) {
	if s == "" {
		return nil, fmt.Errorf("amount is required")
	}
	return units.Parse(s)
}

// decodeBody decodes a JSON request body into v and rejects unknown fields
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		respondWithError(w, "Invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

// isSettled reports whether a debate's pools are final
func isSettled(d *storage.Debate) bool {
	return d.State != storage.DebateStateCreated
}
