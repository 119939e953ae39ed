package chess

import (
	"fmt"
	"strings"
	"sync"
)

// Tier is the opponent strength level.
type Tier int

const (
	TierRandom Tier = iota
	TierGreedy
	TierDeep
)

var tierNames = map[Tier]string{
	TierRandom: "random",
	TierGreedy: "greedy",
	TierDeep:   "deep",
}

func (t Tier) String() string {
	if name, ok := tierNames[t]; ok {
		return name
	}
	return fmt.Sprintf("tier(%d)", int(t))
}

func (t Tier) Valid() bool {
	_, ok := tierNames[t]
	return ok
}

// Tiers lists every tier from weakest to strongest.
func Tiers() []Tier {
	return []Tier{TierRandom, TierGreedy, TierDeep}
}

var tierMu sync.RWMutex

// beginner/intermediate/professional are the labels the web client sends;
// easy/medium/hard are what its difficulty picker shows.
var tierAliases = map[string]Tier{
	"random":       TierRandom,
	"beginner":     TierRandom,
	"easy":         TierRandom,
	"greedy":       TierGreedy,
	"intermediate": TierGreedy,
	"medium":       TierGreedy,
	"deep":         TierDeep,
	"professional": TierDeep,
	"hard":         TierDeep,
}

// ParseTier resolves a tier label. Unknown labels resolve to TierRandom with
// ok=false so callers can log the fallback.
func ParseTier(label string) (Tier, bool) {
	key := strings.ToLower(strings.TrimSpace(label))
	tierMu.RLock()
	t, ok := tierAliases[key]
	tierMu.RUnlock()
	if !ok {
		return TierRandom, false
	}
	return t, true
}

// RegisterTierAlias adds an extra label for an existing tier.
func RegisterTierAlias(alias string, t Tier) error {
	key := strings.ToLower(strings.TrimSpace(alias))
	if key == "" {
		return fmt.Errorf("tier alias required")
	}
	if strings.ContainsAny(key, " \t,=") {
		return fmt.Errorf("tier alias %q contains separators", alias)
	}
	if !t.Valid() {
		return fmt.Errorf("unknown tier for alias %s: %d", key, int(t))
	}
	tierMu.Lock()
	defer tierMu.Unlock()
	if prev, exists := tierAliases[key]; exists && prev != t {
		return fmt.Errorf("tier alias %s already maps to %s", key, prev)
	}
	tierAliases[key] = t
	return nil
}

// ParseTierAliases reads "label=tier" pairs separated by commas.
func ParseTierAliases(raw string) (map[string]Tier, error) {
	out := make(map[string]Tier)
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		alias, target, found := strings.Cut(part, "=")
		if !found {
			return nil, fmt.Errorf("tier alias %q must be label=tier", part)
		}
		t, ok := ParseTier(target)
		if !ok {
			return nil, fmt.Errorf("tier alias %q targets unknown tier %q", alias, target)
		}
		out[strings.ToLower(strings.TrimSpace(alias))] = t
	}
	return out, nil
}
