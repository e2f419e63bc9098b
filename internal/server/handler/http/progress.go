package http

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/atinyakov/AuraTemple/internal/game"
	"github.com/atinyakov/AuraTemple/internal/middleware"
	"github.com/atinyakov/AuraTemple/internal/models"
)

// ProgressService defines the progress operations required by
// ProgressHandler.
type ProgressService interface {
	Get(acc models.Account) models.ProgressResponse
	Save(ctx context.Context, acc models.Account, state game.PlayerState) (game.PlayerState, error)
}

// ProgressHandler serves the authoritative state of the authenticated
// account. Both routes sit behind middleware.BearerAuth.
type ProgressHandler struct {
	ProgressService ProgressService
	Log             *zap.Logger
}

// Get handles GET /progress.
func (h *ProgressHandler) Get(w http.ResponseWriter, r *http.Request) {
	acc, ok := middleware.AccountFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	writeJSON(w, http.StatusOK, h.ProgressService.Get(acc))
}

// Save handles POST /progress. The body is either {"state": {...}} or the
// bare state object.
func (h *ProgressHandler) Save(w http.ResponseWriter, r *http.Request) {
	acc, ok := middleware.AccountFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	data, err := readBody(w, r)
	if err != nil {
		writeServiceError(w, h.Log, err)
		return
	}
	var state game.PlayerState
	_ = json.Unmarshal(stateDocument(data), &state)

	saved, err := h.ProgressService.Save(r.Context(), acc, state)
	if err != nil {
		writeServiceError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, models.SavedProgress{State: saved})
}

// stateDocument unwraps the "state" member when the body carries an
// object there.
func stateDocument(data []byte) []byte {
	var wrapper struct {
		State json.RawMessage `json:"state"`
	}
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return data
	}
	if len(wrapper.State) > 0 && wrapper.State[0] == '{' {
		return wrapper.State
	}
	return data
}
