package syncer

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/atinyakov/AuraTemple/internal/client/storage"
	"github.com/atinyakov/AuraTemple/internal/game"
	"github.com/atinyakov/AuraTemple/internal/models"
)

type fakeLocal struct {
	mu      sync.Mutex
	saves   int
	state   game.PlayerState
	board   []models.LeaderboardEntry
	session *storage.Session
}

func (f *fakeLocal) SaveState(s game.PlayerState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves++
	f.state = s
	return nil
}

func (f *fakeLocal) LoadLeaderboard() []models.LeaderboardEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.LeaderboardEntry{}, f.board...)
}

func (f *fakeLocal) SaveLeaderboard(entries []models.LeaderboardEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.board = entries
	return nil
}

func (f *fakeLocal) LoadSession() (storage.Session, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.session == nil {
		return storage.Session{}, false
	}
	return *f.session, true
}

func (f *fakeLocal) SaveSession(s storage.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.session = &s
	return nil
}

func (f *fakeLocal) ClearSession() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.session = nil
	return nil
}

func (f *fakeLocal) snapshot() (int, game.PlayerState, *storage.Session) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.saves, f.state, f.session
}

// fakeRemote answers from the func fields and counts calls.
type fakeRemote struct {
	mu sync.Mutex

	LoginFunc  func(models.Credentials) (models.AuthResponse, error)
	FetchFunc  func(token string) (models.ProgressResponse, error)
	PushFunc   func(token string, s game.PlayerState) error
	SubmitFunc func(sub models.ScoreSubmission) ([]models.LeaderboardEntry, error)
	BoardFunc  func() ([]models.LeaderboardEntry, error)
	pushes     int
	fetches    int
	submits    int
	lastPushed game.PlayerState
	lastSubmit models.ScoreSubmission
}

func (f *fakeRemote) Register(_ context.Context, c models.Credentials) (models.AuthResponse, error) {
	return f.Login(context.Background(), c)
}

func (f *fakeRemote) Login(_ context.Context, c models.Credentials) (models.AuthResponse, error) {
	if f.LoginFunc == nil {
		return models.AuthResponse{Token: "tok", Account: models.AccountInfo{Name: c.Name}}, nil
	}
	return f.LoginFunc(c)
}

func (f *fakeRemote) FetchProgress(_ context.Context, token string) (models.ProgressResponse, error) {
	f.mu.Lock()
	f.fetches++
	fn := f.FetchFunc
	f.mu.Unlock()
	if fn == nil {
		return models.ProgressResponse{}, nil
	}
	return fn(token)
}

func (f *fakeRemote) PushProgress(_ context.Context, token string, s game.PlayerState) (game.PlayerState, error) {
	f.mu.Lock()
	f.pushes++
	f.lastPushed = s
	fn := f.PushFunc
	f.mu.Unlock()
	if fn == nil {
		return s, nil
	}
	return s, fn(token, s)
}

func (f *fakeRemote) Leaderboard(context.Context) ([]models.LeaderboardEntry, error) {
	if f.BoardFunc == nil {
		return []models.LeaderboardEntry{}, nil
	}
	return f.BoardFunc()
}

func (f *fakeRemote) SubmitScore(_ context.Context, sub models.ScoreSubmission) ([]models.LeaderboardEntry, error) {
	f.mu.Lock()
	f.submits++
	f.lastSubmit = sub
	fn := f.SubmitFunc
	f.mu.Unlock()
	if fn == nil {
		return []models.LeaderboardEntry{{Name: sub.Name, Aura: *sub.Aura}}, nil
	}
	return fn(sub)
}

func (f *fakeRemote) counts() (pushes, fetches, submits int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pushes, f.fetches, f.submits
}

func nopLog() *zap.Logger { return zap.NewNop() }
