package chess

import (
	"context"
	"testing"

	"github.com/park285/chessbattle/internal/chess/rules"
)

func TestSelectMoveRandomCoversAllMoves(t *testing.T) {
	e := NewEngine()
	e.SetRandomSeed(42)
	start := rules.StartingPosition()
	seen := make(map[string]int)
	for i := 0; i < 2000; i++ {
		dec, ok, err := e.SelectMove(context.Background(), start, TierRandom)
		if err != nil || !ok {
			t.Fatalf("SelectMove: ok=%v err=%v", ok, err)
		}
		seen[dec.Move.UCI()]++
	}
	if len(seen) != 20 {
		t.Fatalf("expected all 20 opening moves, saw %d: %v", len(seen), seen)
	}
}

func TestSelectMoveRandomSeedReproducible(t *testing.T) {
	a := NewEngine(WithSeed(7))
	b := NewEngine(WithSeed(7))
	start := rules.StartingPosition()
	for i := 0; i < 10; i++ {
		da, _, _ := a.SelectMove(context.Background(), start, TierRandom)
		db, _, _ := b.SelectMove(context.Background(), start, TierRandom)
		if !da.Move.Equal(db.Move) {
			t.Fatalf("draw %d differs: %s vs %s", i, da.Move.UCI(), db.Move.UCI())
		}
	}
}

func TestSelectMoveGreedyTakesQueen(t *testing.T) {
	e := NewEngine()
	cases := []struct {
		fen  string
		want string
	}{
		{"4k3/8/8/3q4/8/8/3R4/4K3 w - - 0 1", "d2d5"},
		{"4k3/3r4/8/3Q4/8/8/8/4K3 b - - 0 1", "d7d5"},
	}
	for _, tc := range cases {
		dec, ok, err := e.SelectMove(context.Background(), mustFEN(t, tc.fen), TierGreedy)
		if err != nil || !ok {
			t.Fatalf("%s: ok=%v err=%v", tc.fen, ok, err)
		}
		if dec.Move.UCI() != tc.want {
			t.Fatalf("%s: expected %s, got %s", tc.fen, tc.want, dec.Move.UCI())
		}
		if dec.Score != 5 {
			t.Fatalf("%s: expected score 5, got %d", tc.fen, dec.Score)
		}
	}
}

func TestSelectMoveGreedyTieTakesFirst(t *testing.T) {
	start := rules.StartingPosition()
	dec, ok, err := NewEngine().SelectMove(context.Background(), start, TierGreedy)
	if err != nil || !ok {
		t.Fatalf("SelectMove: ok=%v err=%v", ok, err)
	}
	if first := start.LegalMoves()[0]; !dec.Move.Equal(first) {
		t.Fatalf("expected %s, got %s", first.UCI(), dec.Move.UCI())
	}
}

func TestSelectMoveGreedyLeavesParentUntouched(t *testing.T) {
	start := rules.StartingPosition()
	before := start.FEN()
	dec, ok, err := NewEngine().SelectMove(context.Background(), start, TierGreedy)
	if err != nil || !ok {
		t.Fatalf("SelectMove: ok=%v err=%v", ok, err)
	}
	if start.FEN() != before {
		t.Fatalf("parent changed: %s", start.FEN())
	}

	legal := false
	for _, m := range start.LegalMoves() {
		if m.Equal(dec.Move) {
			legal = true
			break
		}
	}
	if !legal {
		t.Fatalf("%s is not legal", dec.Move.UCI())
	}

	child := start.Apply(dec.Move)
	for sq := 0; sq < 64; sq++ {
		s := rules.Square(sq)
		if s == dec.Move.From() || s == dec.Move.To() {
			continue
		}
		if start.PieceAt(s) != child.PieceAt(s) {
			t.Fatalf("square %s changed", rules.SquareName(s))
		}
	}
	if child.PieceAt(dec.Move.From()) != rules.NoPiece {
		t.Fatalf("origin square not vacated")
	}
	if child.PieceAt(dec.Move.To()) != start.PieceAt(dec.Move.From()) {
		t.Fatalf("piece did not arrive on %s", rules.SquareName(dec.Move.To()))
	}
}

func TestSelectMoveDeepMatchesSearch(t *testing.T) {
	p := mustFEN(t, "4k3/8/8/3q4/8/8/3R4/4K3 w - - 0 1")
	e := NewEngine(WithSearchOptions(DefaultSearchOptions()))
	dec, ok, err := e.SelectMove(context.Background(), p, TierDeep)
	if err != nil || !ok {
		t.Fatalf("SelectMove: ok=%v err=%v", ok, err)
	}
	res, _, err := FindBestMove(context.Background(), p, DefaultSearchOptions())
	if err != nil {
		t.Fatalf("FindBestMove: %v", err)
	}
	if !dec.Move.Equal(res.Move) || dec.Score != res.Score {
		t.Fatalf("engine %s/%d vs search %s/%d", dec.Move.UCI(), dec.Score, res.Move.UCI(), res.Score)
	}
	if dec.Tier != TierDeep || dec.Stats.Nodes == 0 {
		t.Fatalf("unexpected decision metadata: %+v", dec)
	}
}

func TestSelectMoveNoLegalMovesEveryTier(t *testing.T) {
	e := NewEngine()
	mated := mustFEN(t, "rnb1kbnr/pppp1ppp/8/4p3/6Pq/5P2/PPPPP2P/RNBQKBNR w KQkq - 1 3")
	for _, tier := range Tiers() {
		_, ok, err := e.SelectMove(context.Background(), mated, tier)
		if err != nil {
			t.Fatalf("%s: unexpected error %v", tier, err)
		}
		if ok {
			t.Fatalf("%s: expected no move", tier)
		}
	}
}

func TestSelectMoveUnknownTierFallsBackToRandom(t *testing.T) {
	e := NewEngine(WithSeed(1))
	dec, ok, err := e.SelectMove(context.Background(), rules.StartingPosition(), Tier(99))
	if err != nil || !ok {
		t.Fatalf("SelectMove: ok=%v err=%v", ok, err)
	}
	if dec.Tier != TierRandom {
		t.Fatalf("expected random fallback, got %s", dec.Tier)
	}
}

func TestSelectMoveZeroPosition(t *testing.T) {
	if _, _, err := NewEngine().SelectMove(context.Background(), rules.Position{}, TierGreedy); err != rules.ErrNilPosition {
		t.Fatalf("expected ErrNilPosition, got %v", err)
	}
}
