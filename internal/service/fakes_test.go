package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/atinyakov/AuraTemple/internal/errs"
	"github.com/atinyakov/AuraTemple/internal/game"
	"github.com/atinyakov/AuraTemple/internal/leaderboard"
	"github.com/atinyakov/AuraTemple/internal/models"
)

type memAccounts struct {
	mu       sync.Mutex
	accounts []models.Account
	err      error
}

func (m *memAccounts) CreateAccount(_ context.Context, acc models.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	for _, a := range m.accounts {
		if a.NameLower == acc.NameLower {
			return errs.ErrConflict
		}
	}
	m.accounts = append(m.accounts, acc)
	return nil
}

func (m *memAccounts) find(match func(models.Account) bool) (models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return models.Account{}, m.err
	}
	for _, a := range m.accounts {
		if match(a) {
			return a, nil
		}
	}
	return models.Account{}, errs.ErrNotFound
}

func (m *memAccounts) GetAccountByName(_ context.Context, name string) (models.Account, error) {
	return m.find(func(a models.Account) bool { return a.NameLower == strings.ToLower(name) })
}

func (m *memAccounts) GetAccountByToken(_ context.Context, token string) (models.Account, error) {
	return m.find(func(a models.Account) bool { return token != "" && a.SessionToken == token })
}

func (m *memAccounts) update(id string, fn func(*models.Account)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	for i := range m.accounts {
		if m.accounts[i].ID == id {
			fn(&m.accounts[i])
			return nil
		}
	}
	return errs.ErrNotFound
}

func (m *memAccounts) SetSessionToken(_ context.Context, id, token string, at time.Time) error {
	return m.update(id, func(a *models.Account) { a.SessionToken = token; a.UpdatedAt = at })
}

func (m *memAccounts) SaveState(_ context.Context, id string, state game.PlayerState, at time.Time) error {
	return m.update(id, func(a *models.Account) { a.State = state; a.UpdatedAt = at })
}

type memBoard struct {
	mu      sync.Mutex
	entries []models.LeaderboardEntry
	err     error
}

func (m *memBoard) ListLeaderboard(context.Context) ([]models.LeaderboardEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return append([]models.LeaderboardEntry{}, m.entries...), nil
}

func (m *memBoard) UpdateLeaderboard(_ context.Context, fn func([]models.LeaderboardEntry) []models.LeaderboardEntry) ([]models.LeaderboardEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	m.entries = leaderboard.Normalize(fn(m.entries), leaderboard.DefaultSize)
	return append([]models.LeaderboardEntry{}, m.entries...), nil
}
