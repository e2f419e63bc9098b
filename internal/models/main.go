// Package models defines the server-owned records and the JSON payloads of
// the HTTP API.
package models

import (
	"time"

	"github.com/atinyakov/AuraTemple/internal/game"
)

// Account is a registered player together with its authoritative progress.
type Account struct {
	// ID is the unique identifier for the account, linked from leaderboard rows.
	ID string `json:"id"`
	// Name is the display name chosen at registration.
	Name string `json:"name"`
	// NameLower is the case-folded name used for uniqueness.
	NameLower string `json:"nameLower"`
	// PasswordSalt is the per-account random salt.
	PasswordSalt string `json:"salt"`
	// PasswordHash is the Argon2id hash of the password under PasswordSalt.
	PasswordHash string `json:"passwordHash"`
	// SessionToken is the single active bearer token; empty when none.
	SessionToken string `json:"sessionToken"`
	// State is the authoritative player state.
	State game.PlayerState `json:"state"`
	// CreatedAt is when the account was registered.
	CreatedAt time.Time `json:"createdAt"`
	// UpdatedAt is the time of the last login or progress write.
	UpdatedAt time.Time `json:"updatedAt"`
}

// LeaderboardEntry is one row of the shared leaderboard.
type LeaderboardEntry struct {
	// Name is the display name shown on the board.
	Name string `json:"name"`
	// Aura is the high-water mark, rounded to two decimals.
	Aura float64 `json:"aura"`
	// Rebirths is the highest rebirth count reported.
	Rebirths int `json:"rebirths"`
	// UpdatedAt is the time of the last submission touching the row.
	UpdatedAt time.Time `json:"updatedAt"`
	// AccountID links the row to an account, if any.
	AccountID string `json:"accountId,omitempty"`
}

// Credentials is the body of POST /auth/register and POST /auth/login.
type Credentials struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

// AccountInfo is the public part of an account.
type AccountInfo struct {
	Name string `json:"name"`
}

// AuthResponse is returned by register and login.
type AuthResponse struct {
	Token   string           `json:"token"`
	Account AccountInfo      `json:"account"`
	State   game.PlayerState `json:"state"`
}

// ProgressResponse is returned by GET /progress.
type ProgressResponse struct {
	Account AccountInfo      `json:"account"`
	State   game.PlayerState `json:"state"`
}

// SavedProgress is returned by POST /progress.
type SavedProgress struct {
	State game.PlayerState `json:"state"`
}

// ScoreSubmission is the body of POST /leaderboard.
type ScoreSubmission struct {
	Name     string   `json:"name"`
	Aura     *float64 `json:"aura"`
	Rebirths int      `json:"rebirths,omitempty"`
}

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error string `json:"error"`
}
