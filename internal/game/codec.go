package game

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
)

const maxIDLength = 64

// Encode serializes the state to its wire form.
func Encode(s PlayerState) ([]byte, error) {
	return json.Marshal(s)
}

// Decode parses data into a state aligned with cat. Decode never fails:
// anything that cannot be read falls back to the default of that field.
func Decode(data []byte, cat *Catalog) PlayerState {
	var s PlayerState
	if err := json.Unmarshal(data, &s); err != nil {
		return DefaultState(cat)
	}
	return Sanitize(s, cat, "")
}

// UnmarshalJSON reads a state leniently. Fields of the wrong type, negative
// or non-finite numbers and unknown outcome shapes are replaced by their
// defaults instead of failing the whole document. Catalogue alignment is
// left to Sanitize.
func (s *PlayerState) UnmarshalJSON(data []byte) error {
	*s = PlayerState{}
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}
	obj, _ := raw.(map[string]any)
	if obj == nil {
		return nil
	}

	s.Aura = nonNegFloat(obj["aura"], 0)
	s.PlayerName = SanitizeName(asString(obj["playerName"]))

	list, ok := obj["producers"].([]any)
	if !ok {
		list, _ = obj["kacpers"].([]any)
	}
	for _, item := range list {
		if h, ok := readHolding(item); ok {
			s.Producers = append(s.Producers, h)
		}
	}

	s.Blessing = readBlessing(asObject(obj["blessing"]))
	s.Prayer = readPrayer(asObject(obj["prayer"]))
	s.Rebirth = readRebirth(asObject(obj["rebirth"]))
	return nil
}

func readHolding(v any) (ProducerHolding, bool) {
	m := asObject(v)
	if m == nil {
		return ProducerHolding{}, false
	}
	id := sanitizeID(asString(m["id"]))
	if id == "" {
		return ProducerHolding{}, false
	}
	return ProducerHolding{
		ID:    id,
		Cost:  nonNegFloat(m["cost"], 0),
		Owned: nonNegInt(m["owned"]),
	}, true
}

func readBlessing(m map[string]any) BlessingState {
	b := BlessingState{
		Unlocked:      truthy(m["unlocked"]),
		Cost:          nonNegFloat(m["cost"], BlessingInitialCost),
		PurchaseCount: nonNegInt(m["purchaseCount"]),
		RateBonus:     nonNegFloat(m["rateBonus"], 0),
	}
	if o := asObject(m["lastOutcome"]); o != nil {
		switch asString(o["type"]) {
		case OutcomeReward:
			b.LastOutcome = &BlessingOutcome{
				Type:  OutcomeReward,
				ID:    sanitizeID(asString(o["id"])),
				Name:  SanitizeName(asString(o["name"])),
				Bonus: nonNegFloat(o["bonus"], 0),
			}
		case OutcomeNone:
			b.LastOutcome = &BlessingOutcome{Type: OutcomeNone}
		}
	}
	return b
}

func readPrayer(m map[string]any) PrayerState {
	p := PrayerState{
		Unlocked:        truthy(m["unlocked"]),
		NextAvailableAt: int64(nonNegFloat(m["nextAvailableAt"], 0)),
	}
	if r := asObject(m["lastReward"]); r != nil {
		p.LastReward = &PrayerReward{
			ID:    sanitizeID(asString(r["id"])),
			Name:  SanitizeName(asString(r["name"])),
			Owned: nonNegInt(r["owned"]),
		}
	}
	return p
}

func readRebirth(m map[string]any) RebirthState {
	return RebirthState{
		Unlocked: truthy(m["unlocked"]),
		Count:    nonNegInt(m["count"]),
		Points:   nonNegInt(m["points"]),
		NextCost: nonNegFloat(m["nextCost"], RebirthInitialCost),
	}
}

// Sanitize aligns the holdings with cat and clamps every field into its
// valid range. An empty player name is replaced by fallbackName. For any
// state produced by the game itself Sanitize is the identity.
func Sanitize(s PlayerState, cat *Catalog, fallbackName string) PlayerState {
	out := s.Clone()

	out.Aura = clampFloat(out.Aura, 0, 0)
	out.PlayerName = SanitizeName(out.PlayerName)
	if out.PlayerName == "" {
		out.PlayerName = SanitizeName(fallbackName)
	}

	holdings := make([]ProducerHolding, 0, len(cat.Producers))
	for _, spec := range cat.Producers {
		h := ProducerHolding{ID: spec.ID, Cost: spec.BaseCost}
		if prev := s.Holding(spec.ID); prev != nil {
			h.Owned = max(prev.Owned, 0)
			h.Cost = clampFloat(prev.Cost, spec.BaseCost, spec.BaseCost)
		}
		holdings = append(holdings, h)
	}
	out.Producers = holdings

	out.Blessing.Cost = clampFloat(out.Blessing.Cost, BlessingInitialCost, BlessingInitialCost)
	out.Blessing.PurchaseCount = max(out.Blessing.PurchaseCount, 0)
	out.Blessing.RateBonus = clampFloat(out.Blessing.RateBonus, 0, 0)
	if o := out.Blessing.LastOutcome; o != nil && o.Type != OutcomeReward && o.Type != OutcomeNone {
		out.Blessing.LastOutcome = nil
	}

	out.Prayer.NextAvailableAt = max(out.Prayer.NextAvailableAt, 0)
	if r := out.Prayer.LastReward; r != nil {
		r.Owned = max(r.Owned, 0)
	}

	out.Rebirth.Count = max(out.Rebirth.Count, 0)
	out.Rebirth.Points = max(out.Rebirth.Points, 0)
	out.Rebirth.NextCost = clampFloat(out.Rebirth.NextCost, RebirthInitialCost, RebirthInitialCost)
	if out.Rebirth.Count > 0 || out.Rebirth.Points > 0 {
		out.Rebirth.Unlocked = true
	}

	return out
}

// SanitizeName trims a display name and cuts it to MaxNameLength runes.
func SanitizeName(name string) string {
	return truncateRunes(strings.TrimSpace(name), MaxNameLength)
}

func sanitizeID(id string) string {
	return truncateRunes(strings.TrimSpace(id), maxIDLength)
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// clampFloat returns v when it is finite and at least lo, otherwise def.
func clampFloat(v, lo, def float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < lo {
		return def
	}
	return v
}

func asObject(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

func asString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return ""
	}
}

func asFloat(v any) (float64, bool) {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func nonNegFloat(v any, def float64) float64 {
	f, ok := asFloat(v)
	if !ok || f < 0 {
		return def
	}
	return f
}

func nonNegInt(v any) int {
	f, ok := asFloat(v)
	if !ok || f < 0 || f > math.MaxInt32 {
		return 0
	}
	return int(math.Floor(f))
}

func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case float64:
		return t != 0 && !math.IsNaN(t)
	case string:
		return t != ""
	case nil:
		return false
	default:
		return true
	}
}
