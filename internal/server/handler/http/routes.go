package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/atinyakov/AuraTemple/internal/middleware"
)

// NewRouter constructs and returns an HTTP handler that serves the API.
//
// Routes:
//
//	POST /auth/register  → auth.Register   (rate limited per IP)
//	POST /auth/login     → auth.Login      (rate limited per IP)
//	GET  /progress       → progress.Get    (bearer token)
//	POST /progress       → progress.Save   (bearer token)
//	GET  /leaderboard    → board.List
//	POST /leaderboard    → board.Submit
//	GET  /healthz        → liveness probe
//
// Middleware chain (applied in order):
//  1. CORS - answers every preflight with 204
//  2. RealIP, Recoverer - client address and panic safety
//  3. WithRequestLogging(logger) - logs served requests
//  4. AllowContentType("application/json") - rejects non-JSON bodies
func NewRouter(
	auth *AuthHandler,
	progress *ProgressHandler,
	board *LeaderboardHandler,
	authenticator middleware.Authenticator,
	limiter *middleware.IPRateLimiter,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.CORS)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.WithRequestLogging(logger))
	r.Use(chiMiddleware.AllowContentType("application/json"))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/auth", func(r chi.Router) {
		r.Use(limiter.Middleware)
		r.Post("/register", auth.Register)
		r.Post("/login", auth.Login)
	})

	// Protected group: requires a live session token
	r.Group(func(r chi.Router) {
		r.Use(middleware.BearerAuth(authenticator, logger))
		r.Get("/progress", progress.Get)
		r.Post("/progress", progress.Save)
	})

	r.Get("/leaderboard", board.List)
	r.Post("/leaderboard", board.Submit)

	return r
}
