package http

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/atinyakov/AuraTemple/internal/models"
)

// LeaderboardService defines the anonymous leaderboard operations.
type LeaderboardService interface {
	List(ctx context.Context) ([]models.LeaderboardEntry, error)
	Submit(ctx context.Context, sub models.ScoreSubmission) ([]models.LeaderboardEntry, error)
}

// LeaderboardHandler serves the public leaderboard.
type LeaderboardHandler struct {
	LeaderboardService LeaderboardService
	Log                *zap.Logger
}

// List handles GET /leaderboard.
func (h *LeaderboardHandler) List(w http.ResponseWriter, r *http.Request) {
	entries, err := h.LeaderboardService.List(r.Context())
	if err != nil {
		writeServiceError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// Submit handles POST /leaderboard with a {"name","aura","rebirths"} body
// and answers with the updated board.
func (h *LeaderboardHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var sub models.ScoreSubmission
	if err := decodeJSON(w, r, &sub); err != nil {
		writeServiceError(w, h.Log, err)
		return
	}
	entries, err := h.LeaderboardService.Submit(r.Context(), sub)
	if err != nil {
		writeServiceError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
