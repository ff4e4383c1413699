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

type appendHandRequest struct {
	HandSeq   int                `json:"hand_seq"` // 0 = next
	Round     string             `json:"round"`
	Kyoku     int                `json:"kyoku"`
	Honba     int                `json:"honba"`
	Outcome   string             `json:"outcome"`
	Notes     string             `json:"notes"`
	Completed bool               `json:"completed"`
	Events    []models.HandEvent `json:"events"`
}

// HandleHandAppend records one hand's events. The zero-sum invariant is
// enforced before anything is written.
func (h *Handler) HandleHandAppend(w http.ResponseWriter, r *http.Request) {
	id, ok := gameID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid game ID"})
		return
	}

	var req appendHandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Warn("bad json in hand append request", zap.Error(err))
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad json"})
		return
	}

	unlock := h.Locks.Acquire(id)
	defer unlock()

	game, err := h.Ledger.GetGame(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if game.Status != models.StatusOngoing {
		writeJSON(w, http.StatusConflict, map[string]string{
			"error": "game is " + game.Status + ", not ongoing",
		})
		return
	}

	seq := req.HandSeq
	if seq == 0 {
		seq, err = h.Ledger.NextHandSeq(r.Context(), id)
		if err != nil {
			h.writeError(w, err)
			return
		}
	}

	baseline, err := h.Ledger.PreviousSnapshot(r.Context(), id, seq)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if baseline == nil {
		baseline = scoring.StartingScores()
	}

	for i := range req.Events {
		req.Events[i].GameID = id
		req.Events[i].HandSeq = seq
		req.Events[i].EventIndex = i
	}

	hand := &models.Hand{
		ID:          uuid.New(),
		GameID:      id,
		HandSeq:     seq,
		Round:       req.Round,
		Kyoku:       req.Kyoku,
		Honba:       req.Honba,
		Outcome:     req.Outcome,
		Notes:       req.Notes,
		ScoresAfter: scoring.ApplyEvents(baseline, req.Events),
	}
	if req.Completed {
		now := time.Now().UTC()
		hand.CompletedAt = &now
	}

	if err := h.Ledger.AppendHand(r.Context(), hand, req.Events); err != nil {
		h.writeError(w, err)
		return
	}

	h.broadcastScores(r, id)
	writeJSON(w, http.StatusCreated, hand)
}

type editHandRequest struct {
	Events []models.HandEvent `json:"events"`
}

// handRef extracts game and hand IDs from the route.
func handRef(r *http.Request) (game, hand uuid.UUID, ok bool) {
	game, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		return uuid.Nil, uuid.Nil, false
	}
	hand, err = uuid.Parse(mux.Vars(r)["handId"])
	if err != nil {
		return uuid.Nil, uuid.Nil, false
	}
	return game, hand, true
}

// HandleHandEdit replaces a hand's events within the correction window
// (?override=true bypasses the window for admin tooling) and returns the
// hand's new scores_after.
func (h *Handler) HandleHandEdit(w http.ResponseWriter, r *http.Request) {
	game, hand, ok := handRef(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid game or hand ID"})
		return
	}

	var req editHandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Warn("bad json in hand edit request", zap.Error(err))
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad json"})
		return
	}

	override := r.URL.Query().Get("override") == "true"

	scores, err := h.Correction.EditHand(r.Context(), game, hand, req.Events, override)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.broadcastScores(r, game)
	writeJSON(w, http.StatusOK, map[string]any{"scores_after": scores})
}

// HandleHandDelete removes a hand within the correction window and
// recomputes later snapshots.
func (h *Handler) HandleHandDelete(w http.ResponseWriter, r *http.Request) {
	game, hand, ok := handRef(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid game or hand ID"})
		return
	}

	override := r.URL.Query().Get("override") == "true"

	if err := h.Correction.DeleteHand(r.Context(), game, hand, override); err != nil {
		h.writeError(w, err)
		return
	}

	h.broadcastScores(r, game)
	writeJSON(w, http.StatusOK, map[string]string{"ok": "1"})
}

// HandleRecompute re-derives every cached snapshot of a game from the full
// event ledger. Idempotent repair path for snapshots left stale by a
// mid-pass storage fault.
func (h *Handler) HandleRecompute(w http.ResponseWriter, r *http.Request) {
	id, ok := gameID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid game ID"})
		return
	}

	if _, err := h.Ledger.GetGame(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}

	if err := h.Correction.RecomputeForward(r.Context(), id, 0); err != nil {
		h.writeError(w, err)
		return
	}

	h.broadcastScores(r, id)
	writeJSON(w, http.StatusOK, map[string]string{"ok": "1"})
}

// broadcastScores pushes a fresh replay snapshot to live spectators. Best
// effort; a failed read only skips the push.
func (h *Handler) broadcastScores(r *http.Request, gameID uuid.UUID) {
	events, err := h.Ledger.ListEventsByGame(r.Context(), gameID)
	if err != nil {
		h.Logger.Warn("skipping live broadcast",
			zap.String("game_id", gameID.String()),
			zap.Error(err))
		return
	}
	h.Hub.Broadcast(gameID, scoring.Replay(events))
}
