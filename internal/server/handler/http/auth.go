// Package http provides the HTTP handlers of the account, progress and
// leaderboard API.
package http

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/atinyakov/AuraTemple/internal/models"
)

// AuthService defines the interface for authentication operations
// required by the HTTP handlers.
type AuthService interface {
	// Register creates an account and returns its first session.
	Register(ctx context.Context, creds models.Credentials) (models.AuthResponse, error)
	// Login verifies credentials and returns a fresh session.
	Login(ctx context.Context, creds models.Credentials) (models.AuthResponse, error)
}

// AuthHandler handles HTTP requests for registration and login.
type AuthHandler struct {
	// AuthService performs the underlying authentication operations.
	AuthService AuthService
	Log         *zap.Logger
}

// Register handles POST /auth/register.
// It expects a JSON body with "name" and "password" and answers with the
// session token, the account and its default state.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	h.authenticate(w, r, h.AuthService.Register)
}

// Login handles POST /auth/login. A successful login invalidates the
// previous token of the account.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	h.authenticate(w, r, h.AuthService.Login)
}

func (h *AuthHandler) authenticate(w http.ResponseWriter, r *http.Request, fn func(context.Context, models.Credentials) (models.AuthResponse, error)) {
	var creds models.Credentials
	if err := decodeJSON(w, r, &creds); err != nil {
		writeServiceError(w, h.Log, err)
		return
	}
	resp, err := fn(r.Context(), creds)
	if err != nil {
		writeServiceError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
