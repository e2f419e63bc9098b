// Package service provides the account, progress and leaderboard business
// logic, delegating persistence to repository interfaces.
package service

import (
	"context"
	"time"

	"github.com/atinyakov/AuraTemple/internal/game"
	"github.com/atinyakov/AuraTemple/internal/models"
)

// AccountRepository defines the persistence operations on accounts.
type AccountRepository interface {
	// CreateAccount stores a new account; a taken name yields errs.ErrConflict.
	CreateAccount(ctx context.Context, acc models.Account) error
	// GetAccountByName looks an account up by case-insensitive name.
	GetAccountByName(ctx context.Context, name string) (models.Account, error)
	// GetAccountByToken looks an account up by its session token.
	GetAccountByToken(ctx context.Context, token string) (models.Account, error)
	// SetSessionToken replaces the single active token of an account.
	SetSessionToken(ctx context.Context, id, token string, at time.Time) error
	// SaveState replaces the authoritative state of an account.
	SaveState(ctx context.Context, id string, state game.PlayerState, at time.Time) error
}

// LeaderboardRepository defines the persistence operations on the board.
type LeaderboardRepository interface {
	ListLeaderboard(ctx context.Context) ([]models.LeaderboardEntry, error)
	// UpdateLeaderboard runs fn as one atomic read-modify-write.
	UpdateLeaderboard(ctx context.Context, fn func([]models.LeaderboardEntry) []models.LeaderboardEntry) ([]models.LeaderboardEntry, error)
}
