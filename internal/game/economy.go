package game

import (
	"math"
	"time"
)

// Economy constants.
const (
	ManualGain = 0.01

	ProducerCostGrowth = 1.15
	BlessingCostGrowth = 1.5
	RebirthCostGrowth  = 1000

	BlessingInitialCost = 100
	RebirthInitialCost  = 1_000_000

	BlessingUnlockThreshold = 10
	PrayerUnlockThreshold   = 50
	RebirthUnlockAura       = 1_000_000

	PrayerCooldown = 5 * time.Minute

	// MaxTickElapsed caps the wall-clock delta credited by a single tick so
	// a suspended process does not receive a lump sum on resume.
	MaxTickElapsed = 10 * time.Second

	MaxNameLength = 32
)

// Round rounds v to the given number of decimal places, half away from zero.
func Round(v float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(v*p) / p
}

// NextCost applies one step of a cost curve, rounded to cents.
func NextCost(current, growth float64) float64 {
	return Round(current*growth, 2)
}

// NextRebirthCost applies one step of the rebirth curve, rounded to a whole
// number.
func NextRebirthCost(current float64) float64 {
	return Round(current*RebirthCostGrowth, 0)
}

// Multiplier is the factor applied to raw production:
// (1 + blessing bonus) * (1 + rebirth points).
func Multiplier(s *PlayerState) float64 {
	return (1 + s.Blessing.RateBonus) * (1 + float64(s.Rebirth.Points))
}

// ProductionRate returns aura per second for the state.
func ProductionRate(s *PlayerState, cat *Catalog) float64 {
	raw := 0.0
	for _, h := range s.Producers {
		if h.Owned <= 0 {
			continue
		}
		spec, ok := cat.Producer(h.ID)
		if !ok {
			continue
		}
		raw += spec.BaseProduction * float64(h.Owned)
	}
	return raw * Multiplier(s)
}

// ClampElapsed bounds a tick delta to [0, MaxTickElapsed].
func ClampElapsed(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	if d > MaxTickElapsed {
		return MaxTickElapsed
	}
	return d
}

// Accrue credits production for the elapsed duration and returns the
// amount gained.
func Accrue(s *PlayerState, cat *Catalog, elapsed time.Duration) float64 {
	gained := ProductionRate(s, cat) * ClampElapsed(elapsed).Seconds()
	if gained <= 0 || math.IsNaN(gained) || math.IsInf(gained, 0) {
		return 0
	}
	s.Aura += gained
	return gained
}
