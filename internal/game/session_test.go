package game

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu      sync.Mutex
	changes []Change
}

func (r *recorder) record(c Change) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, c)
}

func (r *recorder) all() []Change {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Change(nil), r.changes...)
}

func TestSession_TickAccruesAndUnlocks(t *testing.T) {
	cat := DefaultCatalog()
	initial := DefaultState(cat)
	initial.Holding("mini").Owned = 4 // 1 aura/s
	s := NewSession(cat, initial)
	rec := &recorder{}
	s.Subscribe(rec.record)

	start := time.Unix(1000, 0)
	assert.Equal(t, 0.0, s.Tick(start), "first tick only sets the reference")
	assert.InDelta(t, 5.0, s.Tick(start.Add(5*time.Second)), 1e-9)
	assert.InDelta(t, 10.0, s.Tick(start.Add(time.Hour)), 1e-9, "elapsed is capped")

	snap := s.Snapshot()
	assert.InDelta(t, 15.0, snap.Aura, 1e-9)
	assert.True(t, snap.Blessing.Unlocked)

	changes := rec.all()
	require.Len(t, changes, 2)
	assert.False(t, changes[0].Force)
	assert.True(t, changes[1].Force, "an unlock forces persistence")
	assert.Equal(t, []Feature{FeatureBlessing}, changes[1].Unlocked)
}

func TestSession_Actions(t *testing.T) {
	cat := DefaultCatalog()
	now := time.Unix(2000, 0)
	s := NewSession(cat, PlayerState{}, WithClock(func() time.Time { return now }), WithRand(&seqRand{draws: []float64{0}}))
	rec := &recorder{}
	s.Subscribe(rec.record)

	assert.False(t, s.BuyProducer("baby"))
	assert.Empty(t, rec.all(), "no-ops do not notify")

	s.Meditate()
	assert.InDelta(t, ManualGain, s.Snapshot().Aura, 1e-12)

	assert.True(t, s.SetName("  Kacper "))
	assert.False(t, s.SetName("Kacper"))
	assert.False(t, s.SetName("   "))
	assert.Equal(t, "Kacper", s.Snapshot().PlayerName)

	s.Replace(func() PlayerState {
		st := DefaultState(cat)
		st.Aura = 200
		return st
	}())
	snap := s.Snapshot()
	assert.Equal(t, "", snap.PlayerName, "replace is wholesale")
	assert.True(t, snap.Prayer.Unlocked)

	reward, ok := s.Pray()
	require.True(t, ok)
	assert.Equal(t, "baby", reward.ID)
	assert.Equal(t, PrayerCooldown, s.PrayerReadyIn())
	_, ok = s.Pray()
	assert.False(t, ok)

	out, ok := s.PerformRitual()
	require.True(t, ok)
	assert.Equal(t, "spark", out.ID)
	assert.Greater(t, s.Rate(), 0.0)

	assert.False(t, s.Rebirth())

	var actions []Action
	for _, c := range rec.all() {
		actions = append(actions, c.Action)
	}
	assert.Equal(t, []Action{ActionMeditate, ActionRename, ActionReplace, ActionPray, ActionRitual}, actions)
}

func TestSession_SnapshotIsACopy(t *testing.T) {
	cat := DefaultCatalog()
	s := NewSession(cat, DefaultState(cat))
	snap := s.Snapshot()
	snap.Producers[0].Owned = 99
	assert.Equal(t, 0, s.Snapshot().Producers[0].Owned)
}

func TestSession_ConcurrentUse(t *testing.T) {
	cat := DefaultCatalog()
	s := NewSession(cat, DefaultState(cat))
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				s.Meditate()
				_ = s.Snapshot()
			}
		}()
	}
	wg.Wait()
	assert.InDelta(t, 800*ManualGain, s.Snapshot().Aura, 1e-9)
}
