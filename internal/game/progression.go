package game

import (
	"math"
	"time"
)

// Feature names a gated subsystem.
type Feature string

const (
	FeatureBlessing Feature = "blessing"
	FeaturePrayer   Feature = "prayer"
	FeatureRebirth  Feature = "rebirth"
)

// Rand is the random source used by rituals and prayers.
type Rand interface {
	// Float64 returns a number in [0,1).
	Float64() float64
}

// EvaluateUnlocks flips every gate whose condition now holds and returns
// the features that were unlocked by this call. Gates never close here.
func EvaluateUnlocks(s *PlayerState) []Feature {
	var unlocked []Feature
	if !s.Blessing.Unlocked && s.Aura >= BlessingUnlockThreshold {
		s.Blessing.Unlocked = true
		unlocked = append(unlocked, FeatureBlessing)
	}
	if !s.Prayer.Unlocked && s.Aura >= PrayerUnlockThreshold {
		s.Prayer.Unlocked = true
		unlocked = append(unlocked, FeaturePrayer)
	}
	if !s.Rebirth.Unlocked && (s.Aura >= RebirthUnlockAura || s.Rebirth.Count > 0 || s.Rebirth.Points > 0) {
		s.Rebirth.Unlocked = true
		unlocked = append(unlocked, FeatureRebirth)
	}
	return unlocked
}

// BuyProducer buys one unit of the producer. It reports false and leaves
// the state untouched when the id is unknown or aura is short.
func BuyProducer(s *PlayerState, id string) bool {
	h := s.Holding(id)
	if h == nil || s.Aura < h.Cost {
		return false
	}
	s.Aura = debit(s.Aura, h.Cost)
	h.Owned++
	h.Cost = NextCost(h.Cost, ProducerCostGrowth)
	return true
}

// PerformRitual pays for one blessing ritual and rolls the reward table.
func PerformRitual(s *PlayerState, cat *Catalog, rnd Rand) (BlessingOutcome, bool) {
	b := &s.Blessing
	if !b.Unlocked || s.Aura < b.Cost {
		return BlessingOutcome{}, false
	}
	s.Aura = debit(s.Aura, b.Cost)
	b.PurchaseCount++
	b.Cost = NextCost(b.Cost, BlessingCostGrowth)

	outcome := BlessingOutcome{Type: OutcomeNone}
	if reward, ok := RollBlessing(cat.Blessings, rnd.Float64()); ok {
		b.RateBonus += reward.Bonus
		outcome = BlessingOutcome{
			Type:  OutcomeReward,
			ID:    reward.ID,
			Name:  reward.Name,
			Bonus: reward.Bonus,
		}
	}
	b.LastOutcome = &outcome
	return outcome, true
}

// RollBlessing walks the reward table as cumulative bands. The first band
// whose cumulative chance is strictly greater than draw wins; a draw past
// every band wins nothing.
func RollBlessing(rewards []BlessingReward, draw float64) (BlessingReward, bool) {
	cumulative := 0.0
	for _, r := range rewards {
		cumulative += r.Chance
		if draw < cumulative {
			return r, true
		}
	}
	return BlessingReward{}, false
}

// PrayerReady reports whether the cooldown has expired at now.
func PrayerReady(s *PlayerState, now time.Time) bool {
	return s.Prayer.Unlocked && now.UnixMilli() >= s.Prayer.NextAvailableAt
}

// Pray grants one free producer unit, picked with weight inversely
// proportional to base production, and starts the cooldown.
func Pray(s *PlayerState, cat *Catalog, rnd Rand, now time.Time) (PrayerReward, bool) {
	if !PrayerReady(s, now) {
		return PrayerReward{}, false
	}
	idx := PickPrayerProducer(cat.Producers, rnd.Float64())
	spec := cat.Producers[idx]
	h := s.Holding(spec.ID)
	if h == nil {
		return PrayerReward{}, false
	}
	h.Owned++
	h.Cost = NextCost(h.Cost, ProducerCostGrowth)

	reward := PrayerReward{ID: spec.ID, Name: spec.Name, Owned: h.Owned}
	s.Prayer.LastReward = &reward
	s.Prayer.NextAvailableAt = now.Add(PrayerCooldown).UnixMilli()
	return reward, true
}

// PickPrayerProducer maps a draw in [0,1) to a producer index using weights
// of 1/baseProduction.
func PickPrayerProducer(producers []ProducerSpec, draw float64) int {
	total := 0.0
	for _, p := range producers {
		total += 1 / p.BaseProduction
	}
	target := draw * total
	cumulative := 0.0
	for i, p := range producers {
		cumulative += 1 / p.BaseProduction
		if target < cumulative {
			return i
		}
	}
	return len(producers) - 1
}

// Rebirth performs the prestige reset: everything but the name and the
// rebirth record returns to defaults, and one permanent point is earned.
func Rebirth(s *PlayerState, cat *Catalog) bool {
	r := s.Rebirth
	if !r.Unlocked || s.Aura < r.NextCost {
		return false
	}
	name := s.PlayerName
	*s = DefaultState(cat)
	s.PlayerName = name
	s.Rebirth = RebirthState{
		Unlocked: true,
		Count:    r.Count + 1,
		Points:   r.Points + 1,
		NextCost: NextRebirthCost(r.NextCost),
	}
	return true
}

func debit(balance, cost float64) float64 {
	return math.Max(0, balance-cost)
}
