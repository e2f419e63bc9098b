// Package game implements the aura economy: production rate, cost curves,
// one-way unlock gates, blessing rituals, prayers and rebirths, together
// with the lenient codec used wherever a player state crosses a process
// boundary.
package game

import "slices"

// Outcome types recorded in BlessingOutcome.Type.
const (
	OutcomeReward = "reward"
	OutcomeNone   = "none"
)

// PlayerState is the complete progress of one player.
type PlayerState struct {
	// Aura is the current balance, never negative.
	Aura float64 `json:"aura"`
	// PlayerName is the display identity, at most MaxNameLength runes.
	PlayerName string `json:"playerName"`
	// Producers has one holding per catalogue entry, in catalogue order.
	Producers []ProducerHolding `json:"producers"`
	Blessing  BlessingState     `json:"blessing"`
	Prayer    PrayerState       `json:"prayer"`
	Rebirth   RebirthState      `json:"rebirth"`
}

// ProducerHolding is how many units of one producer the player owns and
// what the next unit costs.
type ProducerHolding struct {
	ID    string  `json:"id"`
	Cost  float64 `json:"cost"`
	Owned int     `json:"owned"`
}

// BlessingState tracks the ritual subsystem.
type BlessingState struct {
	Unlocked      bool             `json:"unlocked"`
	Cost          float64          `json:"cost"`
	PurchaseCount int              `json:"purchaseCount"`
	RateBonus     float64          `json:"rateBonus"`
	LastOutcome   *BlessingOutcome `json:"lastOutcome"`
}

// BlessingOutcome is the result of the last ritual.
type BlessingOutcome struct {
	Type  string  `json:"type"`
	ID    string  `json:"id,omitempty"`
	Name  string  `json:"name,omitempty"`
	Bonus float64 `json:"bonus,omitempty"`
}

// PrayerState tracks the prayer subsystem. NextAvailableAt is a unix
// timestamp in milliseconds.
type PrayerState struct {
	Unlocked        bool          `json:"unlocked"`
	LastReward      *PrayerReward `json:"lastReward"`
	NextAvailableAt int64         `json:"nextAvailableAt"`
}

// PrayerReward records which producer the last prayer granted.
type PrayerReward struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Owned int    `json:"owned"`
}

// RebirthState tracks the prestige subsystem. Points survive every reset.
type RebirthState struct {
	Unlocked bool    `json:"unlocked"`
	Count    int     `json:"count"`
	Points   int     `json:"points"`
	NextCost float64 `json:"nextCost"`
}

// DefaultState returns a fresh state with one zeroed holding per producer.
func DefaultState(cat *Catalog) PlayerState {
	return PlayerState{
		Producers: defaultHoldings(cat),
		Blessing:  defaultBlessing(),
		Prayer:    PrayerState{},
		Rebirth:   RebirthState{NextCost: RebirthInitialCost},
	}
}

func defaultHoldings(cat *Catalog) []ProducerHolding {
	holdings := make([]ProducerHolding, 0, len(cat.Producers))
	for _, p := range cat.Producers {
		holdings = append(holdings, ProducerHolding{ID: p.ID, Cost: p.BaseCost})
	}
	return holdings
}

func defaultBlessing() BlessingState {
	return BlessingState{Cost: BlessingInitialCost}
}

// Clone returns a deep copy of s.
func (s PlayerState) Clone() PlayerState {
	out := s
	out.Producers = slices.Clone(s.Producers)
	if s.Blessing.LastOutcome != nil {
		o := *s.Blessing.LastOutcome
		out.Blessing.LastOutcome = &o
	}
	if s.Prayer.LastReward != nil {
		r := *s.Prayer.LastReward
		out.Prayer.LastReward = &r
	}
	return out
}

// Holding returns a pointer to the holding with the given id, or nil.
func (s *PlayerState) Holding(id string) *ProducerHolding {
	for i := range s.Producers {
		if s.Producers[i].ID == id {
			return &s.Producers[i]
		}
	}
	return nil
}
