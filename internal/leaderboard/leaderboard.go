// Package leaderboard holds the upsert rule shared by every leaderboard
// store and by the client cache.
package leaderboard

import (
	"cmp"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/atinyakov/AuraTemple/internal/game"
	"github.com/atinyakov/AuraTemple/internal/models"
)

// DefaultSize is the number of rows kept on the board.
const DefaultSize = 12

// Submission is one score report.
type Submission struct {
	Name      string
	Aura      float64
	Rebirths  int
	AccountID string
}

// Upsert merges sub into entries and returns the sorted, capped board.
//
// The row is matched by account id first and by case-insensitive name
// second. A matched row only ever has its aura raised; its name, rebirth
// high-water mark, timestamp and account link are refreshed. A blank name
// leaves the board unchanged. entries may be modified in place.
func Upsert(entries []models.LeaderboardEntry, sub Submission, now time.Time, size int) []models.LeaderboardEntry {
	name := game.SanitizeName(sub.Name)
	if name == "" {
		return entries
	}
	aura := game.Round(math.Max(0, finite(sub.Aura)), 2)
	rebirths := max(sub.Rebirths, 0)

	idx := -1
	if sub.AccountID != "" {
		idx = slices.IndexFunc(entries, func(e models.LeaderboardEntry) bool {
			return e.AccountID == sub.AccountID
		})
	}
	if idx < 0 {
		idx = slices.IndexFunc(entries, func(e models.LeaderboardEntry) bool {
			return strings.EqualFold(e.Name, name)
		})
	}

	if idx >= 0 {
		e := &entries[idx]
		if aura >= e.Aura {
			e.Aura = aura
		}
		e.Rebirths = max(e.Rebirths, rebirths)
		e.Name = name
		e.UpdatedAt = now
		if sub.AccountID != "" {
			e.AccountID = sub.AccountID
		}
	} else {
		entries = append(entries, models.LeaderboardEntry{
			Name:      name,
			Aura:      aura,
			Rebirths:  rebirths,
			UpdatedAt: now,
			AccountID: sub.AccountID,
		})
	}

	return sortAndCap(entries, size)
}

// Normalize drops unnamed rows, clamps values and restores order and size.
// It is applied to boards read back from storage.
func Normalize(entries []models.LeaderboardEntry, size int) []models.LeaderboardEntry {
	out := make([]models.LeaderboardEntry, 0, len(entries))
	for _, e := range entries {
		e.Name = game.SanitizeName(e.Name)
		if e.Name == "" {
			continue
		}
		e.Aura = game.Round(math.Max(0, finite(e.Aura)), 2)
		e.Rebirths = max(e.Rebirths, 0)
		out = append(out, e)
	}
	return sortAndCap(out, size)
}

func sortAndCap(entries []models.LeaderboardEntry, size int) []models.LeaderboardEntry {
	slices.SortStableFunc(entries, func(a, b models.LeaderboardEntry) int {
		return cmp.Compare(b.Aura, a.Aura)
	})
	if size > 0 && len(entries) > size {
		entries = entries[:size]
	}
	return entries
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
