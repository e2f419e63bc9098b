// Package middleware provides HTTP middlewares for authentication, CORS,
// rate limiting and logging.
package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/atinyakov/AuraTemple/internal/errs"
	"github.com/atinyakov/AuraTemple/internal/models"
)

type ctxKey string

const accountKey ctxKey = "account"

// Authenticator resolves a bearer token to its account.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (models.Account, error)
}

// BearerAuth is a middleware that requires an "Authorization: Bearer <token>"
// header naming a live session.
//
// On success the resolved account is stored in the request context, so it
// can be read downstream with AccountFromContext. A missing, malformed or
// unknown token is answered with 401.
func BearerAuth(auth Authenticator, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := BearerToken(r)
			if token == "" {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			acc, err := auth.Authenticate(r.Context(), token)
			if errors.Is(err, errs.ErrUnauthorized) {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			if err != nil {
				log.Error("failed to authenticate", zap.Error(err))
				writeError(w, http.StatusInternalServerError, "server error")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithAccount(r.Context(), acc)))
		})
	}
}

// BearerToken extracts the token from the Authorization header, or "".
func BearerToken(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	const prefix = "bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(h[len(prefix):])
}

// WithAccount returns a copy of ctx carrying acc.
func WithAccount(ctx context.Context, acc models.Account) context.Context {
	return context.WithValue(ctx, accountKey, acc)
}

// AccountFromContext returns the authenticated account stored by BearerAuth.
func AccountFromContext(ctx context.Context) (models.Account, bool) {
	acc, ok := ctx.Value(accountKey).(models.Account)
	return acc, ok
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(models.ErrorResponse{Error: msg})
}
