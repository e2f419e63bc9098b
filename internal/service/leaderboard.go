package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/atinyakov/AuraTemple/internal/errs"
	"github.com/atinyakov/AuraTemple/internal/game"
	"github.com/atinyakov/AuraTemple/internal/leaderboard"
	"github.com/atinyakov/AuraTemple/internal/models"
)

// LeaderboardService serves the anonymous leaderboard, where rows are
// matched by name only.
type LeaderboardService struct {
	board LeaderboardRepository
	size  int
	now   func() time.Time
}

// NewLeaderboardService constructs a LeaderboardService.
func NewLeaderboardService(board LeaderboardRepository, size int) *LeaderboardService {
	return &LeaderboardService{board: board, size: size, now: time.Now}
}

// List returns the board sorted by aura.
func (s *LeaderboardService) List(ctx context.Context) ([]models.LeaderboardEntry, error) {
	entries, err := s.board.ListLeaderboard(ctx)
	if err != nil {
		return nil, fmt.Errorf("list leaderboard: %w", err)
	}
	return entries, nil
}

// Submit records a score and returns the updated board.
func (s *LeaderboardService) Submit(ctx context.Context, sub models.ScoreSubmission) ([]models.LeaderboardEntry, error) {
	name := game.SanitizeName(sub.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", errs.ErrValidation)
	}
	if sub.Aura == nil || math.IsNaN(*sub.Aura) || math.IsInf(*sub.Aura, 0) || *sub.Aura < 0 {
		return nil, fmt.Errorf("%w: aura must be a non-negative number", errs.ErrValidation)
	}

	entry := leaderboard.Submission{Name: name, Aura: *sub.Aura, Rebirths: sub.Rebirths}
	now := s.now().UTC()
	entries, err := s.board.UpdateLeaderboard(ctx, func(e []models.LeaderboardEntry) []models.LeaderboardEntry {
		return leaderboard.Upsert(e, entry, now, s.size)
	})
	if err != nil {
		return nil, fmt.Errorf("update leaderboard: %w", err)
	}
	return entries, nil
}
