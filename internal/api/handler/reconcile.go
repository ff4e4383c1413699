package handler

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/kanpai-games/league-ledger/pkg/models"
)

type reconcileRequest struct {
	FinalScores models.Scores `json:"final_scores"`
}

// HandleReconcile infers missing winner attributions from the authoritative
// final scores. Only high-confidence inferences are committed; the rest are
// reported for manual review.
func (h *Handler) HandleReconcile(w http.ResponseWriter, r *http.Request) {
	id, ok := gameID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid game ID"})
		return
	}

	var req reconcileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Warn("bad json in reconcile request", zap.Error(err))
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad json"})
		return
	}

	if _, err := h.Ledger.GetGame(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}

	summary, err := h.Reconcile.Reconcile(r.Context(), id, req.FinalScores)
	if err != nil {
		h.writeError(w, err)
		return
	}

	if summary.HighConfidence > 0 {
		h.broadcastScores(r, id)
	}

	writeJSON(w, http.StatusOK, summary)
}
