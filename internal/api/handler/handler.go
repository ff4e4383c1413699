package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/kanpai-games/league-ledger/internal/correction"
	"github.com/kanpai-games/league-ledger/internal/gamelock"
	"github.com/kanpai-games/league-ledger/internal/ledger"
	"github.com/kanpai-games/league-ledger/internal/live"
	"github.com/kanpai-games/league-ledger/internal/publisher"
	"github.com/kanpai-games/league-ledger/internal/reconcile"
	"github.com/kanpai-games/league-ledger/pkg/models"
)

// Handler holds the dependencies for API handlers.
type Handler struct {
	Ledger     *ledger.DB
	Correction *correction.Engine
	Reconcile  *reconcile.Engine
	Publisher  *publisher.Publisher
	Hub        *live.Hub
	Locks      *gamelock.Registry
	Logger     *zap.Logger
	AdminToken string
}

// NewRouter creates and configures the HTTP router with all API routes.
func (h *Handler) NewRouter() *mux.Router {
	r := mux.NewRouter()

	// Public endpoints
	r.HandleFunc("/api/health", h.HandleHealth).Methods(http.MethodGet)
	r.HandleFunc("/api/games/{id}/live", h.HandleLive).Methods(http.MethodGet)

	// Protected league endpoints
	r.HandleFunc("/api/games", h.RequireAuth(h.HandleGameCreate)).Methods(http.MethodPost)
	r.HandleFunc("/api/games/{id}", h.RequireAuth(h.HandleGameDetail)).Methods(http.MethodGet)
	r.HandleFunc("/api/games/{id}/scores", h.RequireAuth(h.HandleScores)).Methods(http.MethodGet)
	r.HandleFunc("/api/games/{id}/hands", h.RequireAuth(h.HandleHandAppend)).Methods(http.MethodPost)
	r.HandleFunc("/api/games/{id}/hands/{handId}", h.RequireAuth(h.HandleHandEdit)).Methods(http.MethodPut)
	r.HandleFunc("/api/games/{id}/hands/{handId}", h.RequireAuth(h.HandleHandDelete)).Methods(http.MethodDelete)
	r.HandleFunc("/api/games/{id}/recompute", h.RequireAuth(h.HandleRecompute)).Methods(http.MethodPost)
	r.HandleFunc("/api/games/{id}/reconcile", h.RequireAuth(h.HandleReconcile)).Methods(http.MethodPost)
	r.HandleFunc("/api/games/{id}/finish", h.RequireAuth(h.HandleGameFinish)).Methods(http.MethodPost)

	return r
}

// RequireAuth is a middleware that validates the bearer token.
func (h *Handler) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		expected := "Bearer " + h.AdminToken

		if auth != expected {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":"unauthorized"}`))
			return
		}

		next(w, r)
	}
}

// HandleHealth returns a simple health check response.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

// writeJSON writes a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors onto HTTP statuses: validation and
// unbalanced hands are 400, missing games/hands 404, an expired correction
// window 403, everything else 500.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var ve *models.ValidationError
	var ue *models.UnbalancedError

	switch {
	case errors.As(err, &ve), errors.As(err, &ue):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, models.ErrGameNotFound), errors.Is(err, models.ErrHandNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, models.ErrWindowExpired):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": err.Error()})
	default:
		h.Logger.Error("internal error", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}
