package service

import (
	"context"
	"fmt"
	"time"

	"github.com/atinyakov/AuraTemple/internal/game"
	"github.com/atinyakov/AuraTemple/internal/leaderboard"
	"github.com/atinyakov/AuraTemple/internal/models"
)

// ProgressService reads and replaces the authoritative state of an
// authenticated account.
type ProgressService struct {
	accounts AccountRepository
	board    LeaderboardRepository
	cat      *game.Catalog
	size     int
	now      func() time.Time
}

// NewProgressService constructs a ProgressService.
func NewProgressService(accounts AccountRepository, board LeaderboardRepository, cat *game.Catalog, size int) *ProgressService {
	return &ProgressService{accounts: accounts, board: board, cat: cat, size: size, now: time.Now}
}

// Get returns the stored state re-sanitized against the current catalogue.
func (s *ProgressService) Get(acc models.Account) models.ProgressResponse {
	return models.ProgressResponse{
		Account: models.AccountInfo{Name: acc.Name},
		State:   game.Sanitize(acc.State, s.cat, acc.Name),
	}
}

// Save replaces the stored state with a sanitized copy of state and raises
// the account's leaderboard row. It returns what was stored.
func (s *ProgressService) Save(ctx context.Context, acc models.Account, state game.PlayerState) (game.PlayerState, error) {
	clean := game.Sanitize(state, s.cat, acc.Name)
	now := s.now().UTC()

	if err := s.accounts.SaveState(ctx, acc.ID, clean, now); err != nil {
		return game.PlayerState{}, fmt.Errorf("save state: %w", err)
	}

	sub := leaderboard.Submission{
		Name:      clean.PlayerName,
		Aura:      clean.Aura,
		Rebirths:  clean.Rebirth.Count,
		AccountID: acc.ID,
	}
	if _, err := s.board.UpdateLeaderboard(ctx, func(e []models.LeaderboardEntry) []models.LeaderboardEntry {
		return leaderboard.Upsert(e, sub, now, s.size)
	}); err != nil {
		return game.PlayerState{}, fmt.Errorf("update leaderboard: %w", err)
	}
	return clean, nil
}
