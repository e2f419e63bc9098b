// Package storage keeps the client's durable blobs: the player state, the
// cached leaderboard and the remembered session. Loads never fail: missing
// or corrupt blobs read as defaults.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/atinyakov/AuraTemple/internal/game"
	"github.com/atinyakov/AuraTemple/internal/leaderboard"
	"github.com/atinyakov/AuraTemple/internal/models"
)

// LocalStorage stores the client blobs as JSON files in one directory.
type LocalStorage struct {
	dir string
	cat *game.Catalog
	log *zap.Logger
	mu  sync.Mutex
}

// New creates dir if needed.
func New(dir string, cat *game.Catalog, log *zap.Logger) (*LocalStorage, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &LocalStorage{dir: dir, cat: cat, log: log}, nil
}

// LoadState returns the saved state, or a fresh one when there is none.
func (ls *LocalStorage) LoadState() game.PlayerState {
	data, ok := ls.read(stateFile)
	if !ok {
		return game.DefaultState(ls.cat)
	}
	return game.Decode(data, ls.cat)
}

// SaveState writes a sanitized copy of s.
func (ls *LocalStorage) SaveState(s game.PlayerState) error {
	data, err := game.Encode(game.Sanitize(s, ls.cat, ""))
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	return ls.write(stateFile, data)
}

// LoadLeaderboard returns the cached board, sorted and capped.
func (ls *LocalStorage) LoadLeaderboard() []models.LeaderboardEntry {
	entries := []models.LeaderboardEntry{}
	data, ok := ls.read(leaderboardFile)
	if !ok {
		return entries
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		ls.log.Warn("discarding corrupt leaderboard cache", zap.Error(err))
		return []models.LeaderboardEntry{}
	}
	return leaderboard.Normalize(entries, leaderboard.DefaultSize)
}

// SaveLeaderboard replaces the cached board.
func (ls *LocalStorage) SaveLeaderboard(entries []models.LeaderboardEntry) error {
	data, err := json.Marshal(leaderboard.Normalize(entries, leaderboard.DefaultSize))
	if err != nil {
		return fmt.Errorf("encode leaderboard: %w", err)
	}
	return ls.write(leaderboardFile, data)
}

// LoadSession returns the remembered session, if a usable one exists.
func (ls *LocalStorage) LoadSession() (Session, bool) {
	data, ok := ls.read(sessionFile)
	if !ok {
		return Session{}, false
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil || s.Token == "" {
		return Session{}, false
	}
	s.Name = game.SanitizeName(s.Name)
	return s, true
}

// SaveSession remembers s.
func (ls *LocalStorage) SaveSession(s Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	return ls.write(sessionFile, data)
}

// ClearSession forgets the remembered session.
func (ls *LocalStorage) ClearSession() error {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	err := os.Remove(filepath.Join(ls.dir, sessionFile))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove session: %w", err)
	}
	return nil
}

func (ls *LocalStorage) read(name string) ([]byte, bool) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	data, err := os.ReadFile(filepath.Join(ls.dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, false
	}
	if err != nil {
		ls.log.Warn("failed to read local blob", zap.String("file", name), zap.Error(err))
		return nil, false
	}
	return data, true
}

func (ls *LocalStorage) write(name string, data []byte) error {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	path := filepath.Join(ls.dir, name)
	tmp, err := os.CreateTemp(ls.dir, name+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace %s: %w", name, err)
	}
	return nil
}
