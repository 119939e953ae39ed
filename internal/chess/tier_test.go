package chess

import "testing"

func TestParseTierAliases(t *testing.T) {
	cases := map[string]Tier{
		"random":       TierRandom,
		"Beginner":     TierRandom,
		" easy ":       TierRandom,
		"greedy":       TierGreedy,
		"intermediate": TierGreedy,
		"MEDIUM":       TierGreedy,
		"deep":         TierDeep,
		"professional": TierDeep,
		"hard":         TierDeep,
	}
	for label, want := range cases {
		got, ok := ParseTier(label)
		if !ok || got != want {
			t.Fatalf("ParseTier(%q) = %s,%v want %s", label, got, ok, want)
		}
	}
}

func TestParseTierUnknownFallsBack(t *testing.T) {
	got, ok := ParseTier("grandmaster")
	if ok {
		t.Fatalf("expected unknown label to report ok=false")
	}
	if got != TierRandom {
		t.Fatalf("expected random fallback, got %s", got)
	}
}

func TestRegisterTierAlias(t *testing.T) {
	if err := RegisterTierAlias("club", TierGreedy); err != nil {
		t.Fatalf("RegisterTierAlias: %v", err)
	}
	if got, ok := ParseTier("club"); !ok || got != TierGreedy {
		t.Fatalf("club resolved to %s,%v", got, ok)
	}
	if err := RegisterTierAlias("club", TierDeep); err == nil {
		t.Fatalf("expected conflict error")
	}
	if err := RegisterTierAlias("", TierDeep); err == nil {
		t.Fatalf("expected empty alias error")
	}
	if err := RegisterTierAlias("bad=alias", TierDeep); err == nil {
		t.Fatalf("expected separator error")
	}
	if err := RegisterTierAlias("ghost", Tier(42)); err == nil {
		t.Fatalf("expected invalid tier error")
	}
}

func TestParseTierAliasesSpec(t *testing.T) {
	got, err := ParseTierAliases("novice=easy, master = deep ,")
	if err != nil {
		t.Fatalf("ParseTierAliases: %v", err)
	}
	if got["novice"] != TierRandom || got["master"] != TierDeep || len(got) != 2 {
		t.Fatalf("unexpected aliases: %v", got)
	}
	if _, err := ParseTierAliases("novice"); err == nil {
		t.Fatalf("expected format error")
	}
	if _, err := ParseTierAliases("novice=legend"); err == nil {
		t.Fatalf("expected unknown target error")
	}
}

func TestTierString(t *testing.T) {
	if TierDeep.String() != "deep" || Tier(9).String() != "tier(9)" {
		t.Fatalf("unexpected names: %s %s", TierDeep, Tier(9))
	}
	if Tier(9).Valid() {
		t.Fatalf("tier 9 should be invalid")
	}
}
