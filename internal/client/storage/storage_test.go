package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/atinyakov/AuraTemple/internal/game"
	"github.com/atinyakov/AuraTemple/internal/models"
)

func newStore(t *testing.T) (*LocalStorage, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "aura")
	ls, err := New(dir, game.DefaultCatalog(), zap.NewNop())
	require.NoError(t, err)
	return ls, dir
}

func TestLocalStorage_StateRoundTrip(t *testing.T) {
	ls, _ := newStore(t)
	cat := game.DefaultCatalog()

	assert.Equal(t, game.DefaultState(cat), ls.LoadState(), "missing blob reads as default")

	s := game.DefaultState(cat)
	s.Aura = 89.25
	s.PlayerName = "Kacper"
	s.Holding("baby").Owned = 2
	s.Holding("baby").Cost = 6.61
	s.Rebirth.Unlocked = true
	s.Prayer.NextAvailableAt = 1700000000000

	require.NoError(t, ls.SaveState(s))
	assert.Equal(t, s, ls.LoadState())
}

func TestLocalStorage_CorruptBlobs(t *testing.T) {
	ls, dir := newStore(t)
	cat := game.DefaultCatalog()

	for _, name := range []string{stateFile, leaderboardFile, sessionFile} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("{not json"), 0o600))
	}

	assert.Equal(t, game.DefaultState(cat), ls.LoadState())
	assert.Empty(t, ls.LoadLeaderboard())
	_, ok := ls.LoadSession()
	assert.False(t, ok)
}

func TestLocalStorage_Leaderboard(t *testing.T) {
	ls, _ := newStore(t)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	var entries []models.LeaderboardEntry
	for i := 0; i < 15; i++ {
		entries = append(entries, models.LeaderboardEntry{Name: string(rune('a' + i)), Aura: float64(i), UpdatedAt: now})
	}
	require.NoError(t, ls.SaveLeaderboard(entries))

	got := ls.LoadLeaderboard()
	require.Len(t, got, 12)
	assert.Equal(t, "o", got[0].Name)
	assert.Equal(t, 14.0, got[0].Aura)
}

func TestLocalStorage_Session(t *testing.T) {
	ls, _ := newStore(t)

	_, ok := ls.LoadSession()
	assert.False(t, ok)

	require.NoError(t, ls.SaveSession(Session{Name: "Kacper", Token: "tok"}))
	s, ok := ls.LoadSession()
	require.True(t, ok)
	assert.Equal(t, Session{Name: "Kacper", Token: "tok"}, s)

	require.NoError(t, ls.ClearSession())
	require.NoError(t, ls.ClearSession(), "clearing twice is fine")
	_, ok = ls.LoadSession()
	assert.False(t, ok)

	require.NoError(t, ls.SaveSession(Session{Name: "Kacper"}))
	_, ok = ls.LoadSession()
	assert.False(t, ok, "a session without token is unusable")
}
