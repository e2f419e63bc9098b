package syncer

import (
	"context"

	"go.uber.org/zap"

	"github.com/atinyakov/AuraTemple/internal/leaderboard"
	"github.com/atinyakov/AuraTemple/internal/models"
)

// SyncLeaderboard refreshes the board in the background. Unless force is
// set it runs at most once per leaderboard interval, and it is dropped
// while a refresh is in flight. A failed refresh keeps the cached board.
func (c *Controller) SyncLeaderboard(force bool) {
	c.lifeMu.Lock()
	defer c.lifeMu.Unlock()
	if c.closed.Load() {
		return
	}
	if !force && !c.boardLimiter.AllowN(c.now(), 1) {
		return
	}
	if !c.boardBusy.CompareAndSwap(false, true) {
		return
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer c.boardBusy.Store(false)
		c.syncLeaderboard()
	}()
}

func (c *Controller) syncLeaderboard() {
	snap := c.session.Snapshot()

	if c.remote == nil {
		if snap.PlayerName == "" {
			return
		}
		board := leaderboard.Upsert(c.Leaderboard(), leaderboard.Submission{
			Name:     snap.PlayerName,
			Aura:     snap.Aura,
			Rebirths: snap.Rebirth.Count,
		}, c.now().UTC(), leaderboard.DefaultSize)
		c.setBoard(board)
		return
	}

	ctx, cancel := context.WithTimeout(c.ctx, c.timeout)
	defer cancel()

	var (
		board []models.LeaderboardEntry
		err   error
	)
	if snap.PlayerName != "" {
		aura := snap.Aura
		board, err = c.remote.SubmitScore(ctx, models.ScoreSubmission{
			Name:     snap.PlayerName,
			Aura:     &aura,
			Rebirths: snap.Rebirth.Count,
		})
	} else {
		board, err = c.remote.Leaderboard(ctx)
	}

	c.mu.Lock()
	sess := c.auth
	c.mu.Unlock()
	c.observe(sess, err)
	if err != nil {
		return
	}
	c.setBoard(board)
}

func (c *Controller) setBoard(board []models.LeaderboardEntry) {
	board = leaderboard.Normalize(board, leaderboard.DefaultSize)
	c.mu.Lock()
	c.board = board
	c.mu.Unlock()
	if err := c.local.SaveLeaderboard(board); err != nil {
		c.log.Warn("failed to cache leaderboard", zap.Error(err))
	}
}
