// Package syncer keeps the local and remote copies of the player state in
// step with the in-memory game session.
//
// Local saves follow every change, throttled to one per save interval
// unless the change is forced. Each local save asks for a remote push;
// pushes are debounced and run one at a time on a single worker, so a
// request arriving mid-push yields exactly one follow-up push. The
// leaderboard is refreshed on its own throttle, and a refresh requested
// while one is in flight is dropped.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/atinyakov/AuraTemple/internal/client/storage"
	"github.com/atinyakov/AuraTemple/internal/errs"
	"github.com/atinyakov/AuraTemple/internal/game"
	"github.com/atinyakov/AuraTemple/internal/models"
)

// Status describes the health of the server link.
type Status string

const (
	StatusLocal     Status = "local only"
	StatusConnected Status = "connected"
	StatusDegraded  Status = "server unavailable, showing local data"
	StatusExpired   Status = "session expired, please log in again"
)

const (
	DefaultSaveInterval        = time.Second
	DefaultPushDebounce        = 600 * time.Millisecond
	DefaultLeaderboardInterval = 2 * time.Second
	DefaultTimeout             = 4 * time.Second
)

// Local is the durable client storage.
type Local interface {
	SaveState(s game.PlayerState) error
	LoadLeaderboard() []models.LeaderboardEntry
	SaveLeaderboard(entries []models.LeaderboardEntry) error
	LoadSession() (storage.Session, bool)
	SaveSession(s storage.Session) error
	ClearSession() error
}

// Remote is the server API.
type Remote interface {
	Register(ctx context.Context, creds models.Credentials) (models.AuthResponse, error)
	Login(ctx context.Context, creds models.Credentials) (models.AuthResponse, error)
	FetchProgress(ctx context.Context, token string) (models.ProgressResponse, error)
	PushProgress(ctx context.Context, token string, state game.PlayerState) (game.PlayerState, error)
	Leaderboard(ctx context.Context) ([]models.LeaderboardEntry, error)
	SubmitScore(ctx context.Context, sub models.ScoreSubmission) ([]models.LeaderboardEntry, error)
}

// Option configures a Controller.
type Option func(*Controller)

// WithSaveInterval sets the local save throttle. Zero disables it.
func WithSaveInterval(d time.Duration) Option {
	return func(c *Controller) { c.saveInterval = d }
}

// WithPushDebounce sets the quiet period before a remote push.
func WithPushDebounce(d time.Duration) Option {
	return func(c *Controller) { c.debounce = d }
}

// WithLeaderboardInterval sets the leaderboard refresh throttle.
func WithLeaderboardInterval(d time.Duration) Option {
	return func(c *Controller) { c.boardInterval = d }
}

// WithTimeout bounds each network call.
func WithTimeout(d time.Duration) Option {
	return func(c *Controller) { c.timeout = d }
}

// WithClock replaces time.Now for the throttles.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// Controller wires a game.Session to local storage and, when remote is
// non-nil, to the server.
type Controller struct {
	session *game.Session
	local   Local
	remote  Remote
	log     *zap.Logger

	now           func() time.Time
	saveInterval  time.Duration
	debounce      time.Duration
	boardInterval time.Duration
	timeout       time.Duration

	saveLimiter  *rate.Limiter
	boardLimiter *rate.Limiter

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	pushReq chan struct{}

	// lifeMu orders wg.Add against Close.
	lifeMu sync.Mutex
	// applyMu serialises session switches and pulled-state applies.
	applyMu sync.Mutex

	// suppress mutes the change listener while a pulled state is applied.
	suppress  atomic.Bool
	boardBusy atomic.Bool
	closed    atomic.Bool

	mu       sync.Mutex
	auth     storage.Session
	signedIn bool
	// epoch changes whenever auth does; work started under an older epoch
	// is discarded.
	epoch  uint64
	pulled bool
	status Status
	board  []models.LeaderboardEntry
}

// New starts a Controller for session. remote may be nil for offline play.
func New(session *game.Session, local Local, remote Remote, log *zap.Logger, opts ...Option) *Controller {
	c := &Controller{
		session:       session,
		local:         local,
		remote:        remote,
		log:           log,
		now:           time.Now,
		saveInterval:  DefaultSaveInterval,
		debounce:      DefaultPushDebounce,
		boardInterval: DefaultLeaderboardInterval,
		timeout:       DefaultTimeout,
		pushReq:       make(chan struct{}, 1),
		status:        StatusLocal,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.saveLimiter = rate.NewLimiter(rate.Every(c.saveInterval), 1)
	c.boardLimiter = rate.NewLimiter(rate.Every(c.boardInterval), 1)
	c.board = local.LoadLeaderboard()
	c.ctx, c.cancel = context.WithCancel(context.Background())

	c.wg.Add(1)
	go c.pushLoop()
	session.Subscribe(c.onChange)
	return c
}

// Status reports the health of the server link.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Account returns the signed-in account name.
func (c *Controller) Account() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.auth.Name, c.signedIn
}

// Leaderboard returns the last known board.
func (c *Controller) Leaderboard() []models.LeaderboardEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.LeaderboardEntry(nil), c.board...)
}

// Register creates an account and adopts the server state.
func (c *Controller) Register(ctx context.Context, name, password string) error {
	if c.remote == nil {
		return fmt.Errorf("%w: offline mode", errs.ErrTransient)
	}
	return c.establish(ctx, c.remote.Register, models.Credentials{Name: name, Password: password})
}

// Login signs in and adopts the server state, replacing local progress.
func (c *Controller) Login(ctx context.Context, name, password string) error {
	if c.remote == nil {
		return fmt.Errorf("%w: offline mode", errs.ErrTransient)
	}
	return c.establish(ctx, c.remote.Login, models.Credentials{Name: name, Password: password})
}

// Resume restores the remembered session and pulls the server state. It
// reports whether a session was found. When the pull fails the session is
// kept and the pull is retried before the next push.
func (c *Controller) Resume(ctx context.Context) (bool, error) {
	if c.remote == nil {
		return false, nil
	}
	sess, ok := c.local.LoadSession()
	if !ok {
		return false, nil
	}
	epoch := c.switchAuth(sess, true)
	return true, c.pull(ctx, sess, epoch)
}

// Logout forgets the session. Local progress is kept.
func (c *Controller) Logout() error {
	c.switchAuth(storage.Session{}, false)
	c.setStatus(StatusLocal)
	return c.local.ClearSession()
}

// Flush writes the current state to local storage now.
func (c *Controller) Flush() error {
	return c.local.SaveState(c.session.Snapshot())
}

// Close stops background work and flushes the state.
func (c *Controller) Close() error {
	c.lifeMu.Lock()
	if c.closed.Load() {
		c.lifeMu.Unlock()
		return nil
	}
	c.closed.Store(true)
	c.lifeMu.Unlock()

	c.cancel()
	c.wg.Wait()
	return c.Flush()
}

func (c *Controller) onChange(ch game.Change) {
	if c.closed.Load() || c.suppress.Load() {
		return
	}
	if c.persist(ch.Force) {
		c.requestPush()
	}
	c.SyncLeaderboard(ch.Force)
}

func (c *Controller) persist(force bool) bool {
	if !force && !c.saveLimiter.AllowN(c.now(), 1) {
		return false
	}
	if err := c.local.SaveState(c.session.Snapshot()); err != nil {
		c.log.Warn("failed to save state locally", zap.Error(err))
		return false
	}
	return true
}

func (c *Controller) requestPush() {
	c.mu.Lock()
	signedIn := c.signedIn
	c.mu.Unlock()
	if !signedIn || c.remote == nil {
		return
	}
	select {
	case c.pushReq <- struct{}{}:
	default:
	}
}

func (c *Controller) pushLoop() {
	defer c.wg.Done()
	timer := time.NewTimer(c.debounce)
	timer.Stop()
	for {
		select {
		case <-c.ctx.Done():
			timer.Stop()
			return
		case <-c.pushReq:
			timer.Reset(c.debounce)
		case <-timer.C:
			c.push()
		}
	}
}

func (c *Controller) push() {
	c.mu.Lock()
	sess, signedIn, pulled, epoch := c.auth, c.signedIn, c.pulled, c.epoch
	c.mu.Unlock()
	if !signedIn {
		return
	}
	if !pulled {
		// The server copy has not been adopted yet, so it must not be
		// overwritten. Retry the pull instead.
		if err := c.pull(c.ctx, sess, epoch); errors.Is(err, errs.ErrTransient) {
			c.requestPush()
		}
		return
	}

	state := c.session.Snapshot()
	// The snapshot belongs to sess only if no switch happened meanwhile.
	if !c.current(epoch) {
		return
	}

	ctx, cancel := context.WithTimeout(c.ctx, c.timeout)
	defer cancel()
	_, err := c.remote.PushProgress(ctx, sess.Token, state)
	c.observe(sess, err)
	if err != nil && errors.Is(err, errs.ErrTransient) && c.ctx.Err() == nil {
		c.requestPush()
	}
}

func (c *Controller) establish(ctx context.Context, fn func(context.Context, models.Credentials) (models.AuthResponse, error), creds models.Credentials) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := fn(ctx, creds)
	if err != nil {
		if errors.Is(err, errs.ErrTransient) {
			c.setStatus(StatusDegraded)
		}
		return err
	}

	sess := storage.Session{Name: resp.Account.Name, Token: resp.Token}
	if err := c.local.SaveSession(sess); err != nil {
		c.log.Warn("failed to remember session", zap.Error(err))
	}

	c.applyMu.Lock()
	epoch := c.switchAuth(sess, true)
	c.applyLocked(resp.State, sess.Name, epoch)
	c.applyMu.Unlock()

	c.setStatus(StatusConnected)
	return nil
}

// switchAuth installs sess and starts a new epoch. The new session has not
// been pulled yet, so nothing is pushed for it until it is.
func (c *Controller) switchAuth(sess storage.Session, signedIn bool) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.auth, c.signedIn, c.pulled = sess, signedIn, false
	c.epoch++
	return c.epoch
}

// current reports whether epoch is still the active, pulled session.
func (c *Controller) current(epoch uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.signedIn && c.pulled && c.epoch == epoch
}

func (c *Controller) pull(ctx context.Context, sess storage.Session, epoch uint64) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.remote.FetchProgress(ctx, sess.Token)
	c.observe(sess, err)
	if err != nil {
		return err
	}
	c.applyMu.Lock()
	c.applyLocked(resp.State, resp.Account.Name, epoch)
	c.applyMu.Unlock()
	return nil
}

// applyLocked overwrites the session with a server state without echoing
// it back as a push. A state fetched for a replaced session is dropped.
// The caller holds applyMu.
func (c *Controller) applyLocked(state game.PlayerState, accountName string, epoch uint64) {
	c.mu.Lock()
	stale := c.epoch != epoch
	c.mu.Unlock()
	if stale {
		return
	}
	state = game.Sanitize(state, c.session.Catalog(), accountName)

	c.suppress.Store(true)
	c.session.Replace(state)
	c.suppress.Store(false)

	if err := c.Flush(); err != nil {
		c.log.Warn("failed to save pulled state", zap.Error(err))
	}
	c.mu.Lock()
	if c.epoch == epoch {
		c.pulled = true
	}
	c.mu.Unlock()
}

// observe updates the link status after a call made with sess. A rejected
// token ends the session it belonged to.
func (c *Controller) observe(sess storage.Session, err error) {
	switch {
	case err == nil:
		// An expired session stays reported until the player signs in again.
		c.mu.Lock()
		if c.status != StatusExpired {
			c.status = StatusConnected
		}
		c.mu.Unlock()
	case errors.Is(err, errs.ErrUnauthorized):
		c.log.Warn("session rejected by server", zap.String("account", sess.Name))
		c.mu.Lock()
		current := c.signedIn && c.auth.Token == sess.Token
		if current {
			c.auth, c.signedIn, c.pulled = storage.Session{}, false, false
			c.epoch++
			c.status = StatusExpired
		}
		c.mu.Unlock()
		if current {
			if err := c.local.ClearSession(); err != nil {
				c.log.Warn("failed to clear session", zap.Error(err))
			}
		}
	case c.ctx.Err() != nil:
	default:
		c.log.Warn("sync failed", zap.Error(err))
		c.setStatus(StatusDegraded)
	}
}

func (c *Controller) setStatus(s Status) {
	c.mu.Lock()
	c.status = s
	c.mu.Unlock()
}
