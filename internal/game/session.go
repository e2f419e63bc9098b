package game

import (
	"math/rand/v2"
	"slices"
	"sync"
	"time"
)

// Action identifies what produced a Change.
type Action string

const (
	ActionTick     Action = "tick"
	ActionMeditate Action = "meditate"
	ActionBuy      Action = "buy"
	ActionRitual   Action = "ritual"
	ActionPray     Action = "pray"
	ActionRebirth  Action = "rebirth"
	ActionRename   Action = "rename"
	ActionReplace  Action = "replace"
)

// Change is delivered to subscribers after every applied mutation.
type Change struct {
	Action Action
	// Force asks persistence to write now instead of waiting for its
	// throttle window.
	Force bool
	// Unlocked lists the gates opened by this mutation.
	Unlocked []Feature
}

// Session owns one PlayerState. All reads go through Snapshot and all
// writes through the action methods; subscribers are notified
// synchronously after the lock is released.
type Session struct {
	mu        sync.Mutex
	catalog   *Catalog
	state     PlayerState
	rnd       Rand
	now       func() time.Time
	lastTick  time.Time
	listeners []func(Change)
}

// Option configures a Session.
type Option func(*Session)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// WithRand replaces the default random source.
func WithRand(r Rand) Option {
	return func(s *Session) { s.rnd = r }
}

type globalRand struct{}

func (globalRand) Float64() float64 { return rand.Float64() }

// NewSession sanitizes initial against cat and wraps it.
func NewSession(cat *Catalog, initial PlayerState, opts ...Option) *Session {
	s := &Session{
		catalog: cat,
		rnd:     globalRand{},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.state = Sanitize(initial, cat, "")
	EvaluateUnlocks(&s.state)
	return s
}

// Catalog returns the catalogue the session was built with.
func (s *Session) Catalog() *Catalog {
	return s.catalog
}

// Subscribe registers fn for every future Change.
func (s *Session) Subscribe(fn func(Change)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Snapshot returns a deep copy of the current state.
func (s *Session) Snapshot() PlayerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Rate returns the current production per second.
func (s *Session) Rate() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ProductionRate(&s.state, s.catalog)
}

// PrayerReadyIn returns how long until the next prayer, zero when ready.
func (s *Session) PrayerReadyIn() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	wait := time.UnixMilli(s.state.Prayer.NextAvailableAt).Sub(s.now())
	return max(wait, 0)
}

// Tick credits production since the previous tick. The first tick only
// records the reference time.
func (s *Session) Tick(now time.Time) float64 {
	var gained float64
	s.mutate(ActionTick, false, func(st *PlayerState) bool {
		if s.lastTick.IsZero() {
			s.lastTick = now
			return false
		}
		elapsed := now.Sub(s.lastTick)
		s.lastTick = now
		gained = Accrue(st, s.catalog, elapsed)
		return gained > 0
	})
	return gained
}

// Meditate adds the manual gain.
func (s *Session) Meditate() {
	s.mutate(ActionMeditate, false, func(st *PlayerState) bool {
		st.Aura += ManualGain
		return true
	})
}

// BuyProducer buys one unit of producer id. It is a silent no-op when
// unaffordable.
func (s *Session) BuyProducer(id string) bool {
	return s.mutate(ActionBuy, true, func(st *PlayerState) bool {
		return BuyProducer(st, id)
	})
}

// PerformRitual pays for a blessing ritual and returns its outcome.
func (s *Session) PerformRitual() (BlessingOutcome, bool) {
	var out BlessingOutcome
	ok := s.mutate(ActionRitual, true, func(st *PlayerState) bool {
		var applied bool
		out, applied = PerformRitual(st, s.catalog, s.rnd)
		return applied
	})
	return out, ok
}

// Pray attempts a prayer; it does nothing while on cooldown.
func (s *Session) Pray() (PrayerReward, bool) {
	var out PrayerReward
	ok := s.mutate(ActionPray, true, func(st *PlayerState) bool {
		var applied bool
		out, applied = Pray(st, s.catalog, s.rnd, s.now())
		return applied
	})
	return out, ok
}

// Rebirth performs the prestige reset when affordable.
func (s *Session) Rebirth() bool {
	return s.mutate(ActionRebirth, true, func(st *PlayerState) bool {
		return Rebirth(st, s.catalog)
	})
}

// SetName changes the display name. Blank names are ignored.
func (s *Session) SetName(name string) bool {
	name = SanitizeName(name)
	return s.mutate(ActionRename, true, func(st *PlayerState) bool {
		if name == "" || name == st.PlayerName {
			return false
		}
		st.PlayerName = name
		return true
	})
}

// Replace overwrites the whole state, as when the server copy wins on
// session start.
func (s *Session) Replace(next PlayerState) {
	next = Sanitize(next, s.catalog, "")
	s.mutate(ActionReplace, true, func(st *PlayerState) bool {
		*st = next
		return true
	})
}

func (s *Session) mutate(action Action, force bool, fn func(*PlayerState) bool) bool {
	s.mu.Lock()
	applied := fn(&s.state)
	var unlocked []Feature
	if applied {
		unlocked = EvaluateUnlocks(&s.state)
	}
	listeners := slices.Clone(s.listeners)
	s.mu.Unlock()

	if !applied {
		return false
	}
	change := Change{Action: action, Force: force || len(unlocked) > 0, Unlocked: unlocked}
	for _, notify := range listeners {
		notify(change)
	}
	return true
}
