// Package errs contains sentinel errors shared by the store, service,
// handler and client layers so failures map to stable statuses.
package errs

import "errors"

var (
	// ErrValidation indicates a malformed or out-of-range request payload.
	ErrValidation = errors.New("validation failed")

	// ErrUnauthorized indicates bad credentials or a missing/stale token.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrConflict indicates a unique name is already taken.
	ErrConflict = errors.New("already exists")

	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrRateLimited indicates too many requests from one client.
	ErrRateLimited = errors.New("rate limited")

	// ErrTransient indicates a timeout, connection failure or unexpected
	// server response. Callers keep working on local data.
	ErrTransient = errors.New("server unavailable")
)
