package syncer

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/atinyakov/AuraTemple/internal/client/storage"
	"github.com/atinyakov/AuraTemple/internal/errs"
	"github.com/atinyakov/AuraTemple/internal/game"
	"github.com/atinyakov/AuraTemple/internal/models"
)

const (
	debounce = 30 * time.Millisecond
	waitFor  = 2 * time.Second
	poll     = 5 * time.Millisecond
)

func newController(t *testing.T, remote Remote, opts ...Option) (*Controller, *game.Session, *fakeLocal) {
	t.Helper()
	cat := game.DefaultCatalog()
	session := game.NewSession(cat, game.DefaultState(cat))
	local := &fakeLocal{}
	base := []Option{
		WithSaveInterval(0),
		WithPushDebounce(debounce),
		WithLeaderboardInterval(time.Hour),
		WithTimeout(time.Second),
	}
	c := New(session, local, remote, zap.NewNop(), append(base, opts...)...)
	t.Cleanup(func() { _ = c.Close() })
	return c, session, local
}

func TestLocalSaveThrottle(t *testing.T) {
	now := time.Unix(1000, 0)
	var mu sync.Mutex
	clock := func() time.Time { mu.Lock(); defer mu.Unlock(); return now }

	_, session, local := newController(t, nil, WithSaveInterval(time.Second), WithClock(clock))

	session.Meditate()
	session.Meditate()
	session.Meditate()
	saves, _, _ := local.snapshot()
	assert.Equal(t, 1, saves, "unforced saves are throttled")

	require.True(t, session.SetName("Kacper"))
	saves, st, _ := local.snapshot()
	assert.Equal(t, 2, saves, "a rename forces a save")
	assert.Equal(t, "Kacper", st.PlayerName)

	mu.Lock()
	now = now.Add(time.Second)
	mu.Unlock()
	session.Meditate()
	saves, st, _ = local.snapshot()
	assert.Equal(t, 3, saves)
	assert.InDelta(t, 4*game.ManualGain, st.Aura, 1e-9)
}

func TestLoginAppliesServerStateWithoutEcho(t *testing.T) {
	remote := &fakeRemote{
		LoginFunc: func(c models.Credentials) (models.AuthResponse, error) {
			st := game.DefaultState(game.DefaultCatalog())
			st.Aura = 500
			return models.AuthResponse{Token: "tok-1", Account: models.AccountInfo{Name: "Kacper"}, State: st}, nil
		},
	}
	c, session, local := newController(t, remote)
	session.Meditate()

	require.NoError(t, c.Login(context.Background(), "Kacper", "secret1"))

	snap := session.Snapshot()
	assert.Equal(t, 500.0, snap.Aura, "server wins on session start")
	assert.Equal(t, "Kacper", snap.PlayerName)

	_, st, sess := local.snapshot()
	assert.Equal(t, 500.0, st.Aura)
	require.NotNil(t, sess)
	assert.Equal(t, storage.Session{Name: "Kacper", Token: "tok-1"}, *sess)

	time.Sleep(5 * debounce)
	pushes, _, _ := remote.counts()
	assert.Zero(t, pushes, "the pulled state is not pushed back")
	assert.Equal(t, StatusConnected, c.Status())

	name, ok := c.Account()
	assert.True(t, ok)
	assert.Equal(t, "Kacper", name)
}

func TestPushIsDebounced(t *testing.T) {
	remote := &fakeRemote{}
	c, session, _ := newController(t, remote)
	require.NoError(t, c.Login(context.Background(), "Kacper", "secret1"))

	for i := 0; i < 5; i++ {
		session.Meditate()
	}

	require.Eventually(t, func() bool { p, _, _ := remote.counts(); return p == 1 }, waitFor, poll)
	time.Sleep(5 * debounce)
	pushes, _, _ := remote.counts()
	assert.Equal(t, 1, pushes, "a burst collapses into one push")

	remote.mu.Lock()
	pushed := remote.lastPushed
	remote.mu.Unlock()
	assert.InDelta(t, 5*game.ManualGain, pushed.Aura, 1e-9)
}

func TestPushCoalescesWhileInFlight(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 4)
	remote := &fakeRemote{
		PushFunc: func(string, game.PlayerState) error {
			started <- struct{}{}
			<-release
			return nil
		},
	}
	c, session, _ := newController(t, remote)
	require.NoError(t, c.Login(context.Background(), "Kacper", "secret1"))

	session.Meditate()
	select {
	case <-started:
	case <-time.After(waitFor):
		t.Fatal("first push never started")
	}

	for i := 0; i < 5; i++ {
		session.Meditate()
	}
	close(release)

	require.Eventually(t, func() bool { p, _, _ := remote.counts(); return p == 2 }, waitFor, poll)
	time.Sleep(5 * debounce)
	pushes, _, _ := remote.counts()
	assert.Equal(t, 2, pushes, "requests made mid-push yield exactly one more push")
}

func TestPushFailureIsRetried(t *testing.T) {
	var mu sync.Mutex
	fail := true
	remote := &fakeRemote{
		PushFunc: func(string, game.PlayerState) error {
			mu.Lock()
			defer mu.Unlock()
			if fail {
				fail = false
				return errs.ErrTransient
			}
			return nil
		},
	}
	c, session, _ := newController(t, remote)
	require.NoError(t, c.Login(context.Background(), "Kacper", "secret1"))

	session.Meditate()
	require.Eventually(t, func() bool { p, _, _ := remote.counts(); return p == 2 }, waitFor, poll)
	require.Eventually(t, func() bool { return c.Status() == StatusConnected }, waitFor, poll)
}

func TestRejectedTokenEndsSession(t *testing.T) {
	remote := &fakeRemote{
		PushFunc: func(string, game.PlayerState) error { return errs.ErrUnauthorized },
	}
	c, session, local := newController(t, remote)
	require.NoError(t, c.Login(context.Background(), "Kacper", "secret1"))

	session.Meditate()
	require.Eventually(t, func() bool { _, ok := c.Account(); return !ok }, waitFor, poll)
	_, _, sess := local.snapshot()
	assert.Nil(t, sess)
	assert.Equal(t, StatusExpired, c.Status())
	assert.InDelta(t, game.ManualGain, session.Snapshot().Aura, 1e-9, "local progress survives")
}

func TestResume(t *testing.T) {
	remote := &fakeRemote{
		FetchFunc: func(token string) (models.ProgressResponse, error) {
			st := game.DefaultState(game.DefaultCatalog())
			st.Aura = 77
			return models.ProgressResponse{Account: models.AccountInfo{Name: "Kacper"}, State: st}, nil
		},
	}
	c, session, local := newController(t, remote)

	found, err := c.Resume(context.Background())
	require.NoError(t, err)
	assert.False(t, found, "nothing to resume")

	require.NoError(t, local.SaveSession(storage.Session{Name: "Kacper", Token: "tok"}))
	found, err = c.Resume(context.Background())
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 77.0, session.Snapshot().Aura)
	assert.Equal(t, "Kacper", session.Snapshot().PlayerName)
}

func TestResumeFailureRetriesPullBeforePushing(t *testing.T) {
	var mu sync.Mutex
	down := true
	remote := &fakeRemote{
		FetchFunc: func(string) (models.ProgressResponse, error) {
			mu.Lock()
			defer mu.Unlock()
			if down {
				return models.ProgressResponse{}, errs.ErrTransient
			}
			st := game.DefaultState(game.DefaultCatalog())
			st.Aura = 900
			return models.ProgressResponse{Account: models.AccountInfo{Name: "Kacper"}, State: st}, nil
		},
	}
	c, session, local := newController(t, remote)
	require.NoError(t, local.SaveSession(storage.Session{Name: "Kacper", Token: "tok"}))

	found, err := c.Resume(context.Background())
	assert.True(t, found)
	assert.ErrorIs(t, err, errs.ErrTransient)
	assert.Equal(t, StatusDegraded, c.Status())

	mu.Lock()
	down = false
	mu.Unlock()
	session.Meditate()

	require.Eventually(t, func() bool { return session.Snapshot().Aura == 900 }, waitFor, poll)
	pushes, fetches, _ := remote.counts()
	assert.Zero(t, pushes, "local state never overwrites an unseen server copy")
	assert.GreaterOrEqual(t, fetches, 2)
}

func TestLogout(t *testing.T) {
	remote := &fakeRemote{}
	c, _, local := newController(t, remote)
	require.NoError(t, c.Login(context.Background(), "Kacper", "secret1"))
	require.NoError(t, c.Logout())

	_, ok := c.Account()
	assert.False(t, ok)
	_, _, sess := local.snapshot()
	assert.Nil(t, sess)
	assert.Equal(t, StatusLocal, c.Status())
}

func TestOfflineRejectsLogin(t *testing.T) {
	c, _, _ := newController(t, nil)
	assert.ErrorIs(t, c.Login(context.Background(), "a", "b"), errs.ErrTransient)
	found, err := c.Resume(context.Background())
	assert.False(t, found)
	assert.NoError(t, err)
}

func TestCloseFlushes(t *testing.T) {
	c, session, local := newController(t, nil, WithSaveInterval(time.Hour))
	session.Meditate()
	session.Meditate()
	require.NoError(t, c.Close())

	_, st, _ := local.snapshot()
	assert.InDelta(t, 2*game.ManualGain, st.Aura, 1e-9)
	assert.NoError(t, c.Close(), "closing twice is a no-op")
}

func TestAccountSwitchNeverPushesPreviousState(t *testing.T) {
	var (
		mu     sync.Mutex
		leaked int
	)
	remote := &fakeRemote{
		LoginFunc: func(c models.Credentials) (models.AuthResponse, error) {
			st := game.DefaultState(game.DefaultCatalog())
			st.PlayerName = c.Name
			return models.AuthResponse{Token: "tok-" + c.Name, Account: models.AccountInfo{Name: c.Name}, State: st}, nil
		},
		FetchFunc: func(token string) (models.ProgressResponse, error) {
			name := strings.TrimPrefix(token, "tok-")
			st := game.DefaultState(game.DefaultCatalog())
			st.PlayerName = name
			return models.ProgressResponse{Account: models.AccountInfo{Name: name}, State: st}, nil
		},
		PushFunc: func(token string, s game.PlayerState) error {
			if token != "tok-"+s.PlayerName {
				mu.Lock()
				leaked++
				mu.Unlock()
			}
			return nil
		},
	}
	c, session, _ := newController(t, remote, WithPushDebounce(0))

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				session.Meditate()
			}
		}
	}()

	for i := 0; i < 200; i++ {
		require.NoError(t, c.Login(context.Background(), "Alice", "secret1"))
		require.NoError(t, c.Login(context.Background(), "Bob", "secret1"))
	}
	require.Eventually(t, func() bool { p, _, _ := remote.counts(); return p > 0 }, waitFor, poll)
	close(stop)
	wg.Wait()
	require.NoError(t, c.Close())

	mu.Lock()
	defer mu.Unlock()
	assert.Zero(t, leaked, "a state was pushed under another account's token")
}

func TestStalePullIsDropped(t *testing.T) {
	release := make(chan struct{})
	fetched := make(chan struct{}, 1)
	remote := &fakeRemote{
		FetchFunc: func(string) (models.ProgressResponse, error) {
			fetched <- struct{}{}
			<-release
			st := game.DefaultState(game.DefaultCatalog())
			st.Aura = 999
			return models.ProgressResponse{Account: models.AccountInfo{Name: "Alice"}, State: st}, nil
		},
		LoginFunc: func(c models.Credentials) (models.AuthResponse, error) {
			st := game.DefaultState(game.DefaultCatalog())
			st.Aura = 7
			return models.AuthResponse{Token: "tok-bob", Account: models.AccountInfo{Name: "Bob"}, State: st}, nil
		},
	}
	c, session, local := newController(t, remote)
	require.NoError(t, local.SaveSession(storage.Session{Name: "Alice", Token: "tok-alice"}))

	resumed := make(chan error, 1)
	go func() {
		_, err := c.Resume(context.Background())
		resumed <- err
	}()
	<-fetched

	require.NoError(t, c.Login(context.Background(), "Bob", "secret1"))
	close(release)
	require.NoError(t, <-resumed)

	snap := session.Snapshot()
	assert.Equal(t, 7.0, snap.Aura, "Alice's late pull must not replace Bob's state")
	assert.Equal(t, "Bob", snap.PlayerName)
}

func TestCloseRacesLeaderboardRefresh(t *testing.T) {
	var fetches atomic.Int32
	remote := &fakeRemote{
		BoardFunc: func() ([]models.LeaderboardEntry, error) {
			fetches.Add(1)
			return nil, nil
		},
	}
	c, _, _ := newController(t, remote)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				c.SyncLeaderboard(true)
			}
		}()
	}
	require.NoError(t, c.Close())
	wg.Wait()

	before := fetches.Load()
	c.SyncLeaderboard(true)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, before, fetches.Load(), "no refresh starts after Close")
}
