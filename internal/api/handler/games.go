package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/kanpai-games/league-ledger/internal/scoring"
	"github.com/kanpai-games/league-ledger/pkg/models"
)

// gameID extracts and parses the {id} route variable.
func gameID(r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	return id, err == nil
}

type createGameRequest struct {
	Format string                    `json:"format"`
	Notes  string                    `json:"notes"`
	Seats  map[models.Seat]uuid.UUID `json:"seats"`
}

// HandleGameCreate registers a new game with its four seat assignments.
func (h *Handler) HandleGameCreate(w http.ResponseWriter, r *http.Request) {
	var req createGameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Warn("bad json in game create request", zap.Error(err))
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad json"})
		return
	}

	if req.Format == "" {
		req.Format = models.FormatHanchan
	}
	if req.Format != models.FormatHanchan && req.Format != models.FormatTonpuusen {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown format " + req.Format})
		return
	}

	game := &models.Game{
		ID:     uuid.New(),
		Format: req.Format,
		Status: models.StatusOngoing,
		Notes:  req.Notes,
	}

	seats := make([]models.GameSeat, 0, len(req.Seats))
	for seat, playerID := range req.Seats {
		seats = append(seats, models.GameSeat{GameID: game.ID, Seat: seat, PlayerID: playerID})
	}

	if err := h.Ledger.CreateGame(r.Context(), game, seats); err != nil {
		h.writeError(w, err)
		return
	}

	h.Logger.Info("game created",
		zap.String("game_id", game.ID.String()),
		zap.String("format", game.Format))

	writeJSON(w, http.StatusCreated, game)
}

// HandleGameDetail returns a game with its seat assignments.
func (h *Handler) HandleGameDetail(w http.ResponseWriter, r *http.Request) {
	id, ok := gameID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid game ID"})
		return
	}

	game, err := h.Ledger.GetGame(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}

	seats, err := h.Ledger.GetSeats(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"game":  game,
		"seats": seats,
	})
}

// HandleScores replays the game's full event ledger and returns the live
// scores, pot state, and hand count. Pure read; runs concurrently with
// other reads.
func (h *Handler) HandleScores(w http.ResponseWriter, r *http.Request) {
	id, ok := gameID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid game ID"})
		return
	}

	if _, err := h.Ledger.GetGame(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}

	events, err := h.Ledger.ListEventsByGame(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, scoring.Replay(events))
}

// HandleLive upgrades to WebSocket and streams score snapshots for a game.
func (h *Handler) HandleLive(w http.ResponseWriter, r *http.Request) {
	id, ok := gameID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid game ID"})
		return
	}

	h.Hub.Subscribe(w, r, id)
}

type finishGameRequest struct {
	FinalScores models.Scores `json:"final_scores"`
}

// HandleGameFinish marks a game finished, records final scores, and hands
// the result to the rating pipeline. A ledger that still carries
// unattributed events is rejected: reconcile first.
func (h *Handler) HandleGameFinish(w http.ResponseWriter, r *http.Request) {
	id, ok := gameID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid game ID"})
		return
	}

	var req finishGameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad json"})
		return
	}
	if len(req.FinalScores) != 4 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "final_scores needs exactly 4 seats"})
		return
	}

	unlock := h.Locks.Acquire(id)
	defer unlock()

	if _, err := h.Ledger.GetGame(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}

	dirty, err := h.Ledger.HasUnattributedEvents(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if dirty {
		writeJSON(w, http.StatusConflict, map[string]string{
			"error": "game has unattributed events; reconcile before finishing",
		})
		return
	}

	if err := h.Ledger.FinishGame(r.Context(), id, req.FinalScores); err != nil {
		h.writeError(w, err)
		return
	}

	seats, err := h.Ledger.GetSeats(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}

	players := make(map[models.Seat]uuid.UUID, len(seats))
	for _, gs := range seats {
		players[gs.Seat] = gs.PlayerID
	}

	finished := &models.FinishedGame{
		GameID:     id,
		FinishedAt: time.Now().UTC(),
		Scores:     req.FinalScores,
		Placements: scoring.Placements(req.FinalScores),
		Players:    players,
	}

	if err := h.Publisher.PublishFinishedGame(r.Context(), finished); err != nil {
		// The game is finished either way; the rating pipeline can be
		// re-fed from the stored final scores.
		h.Logger.Error("failed to publish finished game",
			zap.String("game_id", id.String()),
			zap.Error(err))
	}

	writeJSON(w, http.StatusOK, finished)
}
