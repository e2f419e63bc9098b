// Package repository provides persistence for accounts and the leaderboard,
// backed either by two flat JSON documents or by PostgreSQL.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/atinyakov/AuraTemple/internal/errs"
	"github.com/atinyakov/AuraTemple/internal/game"
	"github.com/atinyakov/AuraTemple/internal/leaderboard"
	"github.com/atinyakov/AuraTemple/internal/models"
)

// FileStore keeps accounts and the leaderboard in two JSON files, each
// rewritten wholesale on every mutation. Every read-modify-write of a file
// holds that file's mutex, so concurrent requests never interleave writes.
type FileStore struct {
	accountsPath    string
	leaderboardPath string
	size            int

	accountsMu    sync.Mutex
	leaderboardMu sync.Mutex
}

// NewFileStore creates dir if needed and seeds both files with an empty
// array when they do not exist yet. size caps the leaderboard.
func NewFileStore(dir, accountsFile, leaderboardFile string, size int) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	s := &FileStore{
		accountsPath:    filepath.Join(dir, accountsFile),
		leaderboardPath: filepath.Join(dir, leaderboardFile),
		size:            size,
	}
	for _, p := range []string{s.accountsPath, s.leaderboardPath} {
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			if err := writeFileAtomic(p, []byte("[]")); err != nil {
				return nil, err
			}
		} else if err != nil {
			return nil, fmt.Errorf("stat %s: %w", p, err)
		}
	}
	return s, nil
}

// CreateAccount stores a new account. It fails with errs.ErrConflict when
// the case-insensitive name is taken.
func (s *FileStore) CreateAccount(_ context.Context, acc models.Account) error {
	s.accountsMu.Lock()
	defer s.accountsMu.Unlock()

	accounts, err := s.readAccounts()
	if err != nil {
		return err
	}
	for _, a := range accounts {
		if a.NameLower == acc.NameLower {
			return errs.ErrConflict
		}
	}
	return s.writeAccounts(append(accounts, acc))
}

// GetAccountByName finds an account by case-insensitive name.
func (s *FileStore) GetAccountByName(_ context.Context, name string) (models.Account, error) {
	lookup := strings.ToLower(name)
	return s.findAccount(func(a models.Account) bool {
		return a.NameLower == lookup || strings.ToLower(a.Name) == lookup
	})
}

// GetAccountByToken finds the account holding token as its session.
func (s *FileStore) GetAccountByToken(_ context.Context, token string) (models.Account, error) {
	if token == "" {
		return models.Account{}, errs.ErrNotFound
	}
	return s.findAccount(func(a models.Account) bool {
		return a.SessionToken == token
	})
}

// SetSessionToken replaces the session token of account id.
func (s *FileStore) SetSessionToken(_ context.Context, id, token string, at time.Time) error {
	return s.updateAccount(id, func(a *models.Account) {
		a.SessionToken = token
		a.UpdatedAt = at
	})
}

// SaveState replaces the stored state of account id.
func (s *FileStore) SaveState(_ context.Context, id string, state game.PlayerState, at time.Time) error {
	return s.updateAccount(id, func(a *models.Account) {
		a.State = state
		a.UpdatedAt = at
	})
}

// ExpireSessions clears the tokens of accounts untouched since cutoff and
// returns how many were cleared.
func (s *FileStore) ExpireSessions(_ context.Context, cutoff time.Time) (int64, error) {
	s.accountsMu.Lock()
	defer s.accountsMu.Unlock()

	accounts, err := s.readAccounts()
	if err != nil {
		return 0, err
	}
	var n int64
	for i := range accounts {
		if accounts[i].SessionToken != "" && accounts[i].UpdatedAt.Before(cutoff) {
			accounts[i].SessionToken = ""
			n++
		}
	}
	if n == 0 {
		return 0, nil
	}
	return n, s.writeAccounts(accounts)
}

// ListLeaderboard returns the current board.
func (s *FileStore) ListLeaderboard(_ context.Context) ([]models.LeaderboardEntry, error) {
	s.leaderboardMu.Lock()
	defer s.leaderboardMu.Unlock()
	return s.readLeaderboard()
}

// UpdateLeaderboard applies fn to the board under the file lock and stores
// the result.
func (s *FileStore) UpdateLeaderboard(_ context.Context, fn func([]models.LeaderboardEntry) []models.LeaderboardEntry) ([]models.LeaderboardEntry, error) {
	s.leaderboardMu.Lock()
	defer s.leaderboardMu.Unlock()

	entries, err := s.readLeaderboard()
	if err != nil {
		return nil, err
	}
	entries = leaderboard.Normalize(fn(entries), s.size)
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode leaderboard: %w", err)
	}
	if err := writeFileAtomic(s.leaderboardPath, data); err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *FileStore) findAccount(match func(models.Account) bool) (models.Account, error) {
	s.accountsMu.Lock()
	defer s.accountsMu.Unlock()

	accounts, err := s.readAccounts()
	if err != nil {
		return models.Account{}, err
	}
	for _, a := range accounts {
		if match(a) {
			return a, nil
		}
	}
	return models.Account{}, errs.ErrNotFound
}

func (s *FileStore) updateAccount(id string, fn func(*models.Account)) error {
	s.accountsMu.Lock()
	defer s.accountsMu.Unlock()

	accounts, err := s.readAccounts()
	if err != nil {
		return err
	}
	for i := range accounts {
		if accounts[i].ID == id {
			fn(&accounts[i])
			return s.writeAccounts(accounts)
		}
	}
	return errs.ErrNotFound
}

func (s *FileStore) readAccounts() ([]models.Account, error) {
	data, err := os.ReadFile(s.accountsPath)
	if err != nil {
		return nil, fmt.Errorf("read accounts: %w", err)
	}
	var accounts []models.Account
	if err := json.Unmarshal(data, &accounts); err != nil {
		return nil, fmt.Errorf("decode accounts: %w", err)
	}
	return accounts, nil
}

func (s *FileStore) writeAccounts(accounts []models.Account) error {
	data, err := json.MarshalIndent(accounts, "", "  ")
	if err != nil {
		return fmt.Errorf("encode accounts: %w", err)
	}
	return writeFileAtomic(s.accountsPath, data)
}

func (s *FileStore) readLeaderboard() ([]models.LeaderboardEntry, error) {
	data, err := os.ReadFile(s.leaderboardPath)
	if err != nil {
		return nil, fmt.Errorf("read leaderboard: %w", err)
	}
	var entries []models.LeaderboardEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode leaderboard: %w", err)
	}
	return leaderboard.Normalize(entries, s.size), nil
}

// writeFileAtomic replaces path by writing a sibling temp file and renaming
// it over the original.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
