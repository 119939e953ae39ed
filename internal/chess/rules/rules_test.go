package rules

import (
	"errors"
	"testing"

	nchess "github.com/corentings/chess/v2"
)

func playAll(t *testing.T, p Position, moves ...string) Position {
	t.Helper()
	for _, text := range moves {
		m, err := p.DecodeMove(text)
		if err != nil {
			t.Fatalf("DecodeMove(%q): %v", text, err)
		}
		p = p.Apply(m)
	}
	return p
}

func TestStartingPositionMoves(t *testing.T) {
	p := StartingPosition()
	if got := len(p.LegalMoves()); got != 20 {
		t.Fatalf("expected 20 legal moves, got %d", got)
	}
	if p.Turn() != White {
		t.Fatalf("expected white to move")
	}
	if p.InCheck() {
		t.Fatalf("starting position must not be check")
	}
}

func TestApplyLeavesParentUntouched(t *testing.T) {
	p := StartingPosition()
	before := p.FEN()
	for _, m := range p.LegalMoves() {
		child := p.Apply(m)
		if child.FEN() == before {
			t.Fatalf("child of %s equals parent", m.UCI())
		}
	}
	if p.FEN() != before {
		t.Fatalf("parent mutated: %s -> %s", before, p.FEN())
	}
}

func TestFENRoundTrip(t *testing.T) {
	p := playAll(t, StartingPosition(), "e2e4", "c7c5", "g1f3")
	parsed, err := ParseFEN(p.FEN())
	if err != nil {
		t.Fatalf("ParseFEN: %v", err)
	}
	if parsed.FEN() != p.FEN() {
		t.Fatalf("round trip mismatch: %s vs %s", parsed.FEN(), p.FEN())
	}
	if len(parsed.LegalMoves()) != len(p.LegalMoves()) {
		t.Fatalf("legal move count differs after round trip")
	}
}

func TestParseFENRejectsGarbage(t *testing.T) {
	if _, err := ParseFEN("not a fen"); !errors.Is(err, ErrInvalidFEN) {
		t.Fatalf("expected ErrInvalidFEN, got %v", err)
	}
}

func TestDecodeMoveUCIAndSAN(t *testing.T) {
	p := StartingPosition()
	m, err := p.DecodeMove("e2e4")
	if err != nil || m.UCI() != "e2e4" {
		t.Fatalf("uci decode: %v %s", err, m.UCI())
	}
	m, err = p.DecodeMove("Nf3")
	if err != nil || m.UCI() != "g1f3" {
		t.Fatalf("san decode: %v %s", err, m.UCI())
	}
	if _, err := p.DecodeMove("e2e5"); !errors.Is(err, ErrIllegalMove) {
		t.Fatalf("expected ErrIllegalMove, got %v", err)
	}
	if _, err := p.DecodeMove("   "); !errors.Is(err, ErrEmptyMove) {
		t.Fatalf("expected ErrEmptyMove, got %v", err)
	}
}

func TestDecodeMoveDefaultsToQueenPromotion(t *testing.T) {
	p, err := ParseFEN("8/P7/8/8/8/8/8/k6K w - - 0 1")
	if err != nil {
		t.Fatalf("ParseFEN: %v", err)
	}
	m, err := p.DecodeMove("a7a8")
	if err != nil {
		t.Fatalf("DecodeMove: %v", err)
	}
	if m.Promotion() != nchess.Queen {
		t.Fatalf("expected queen promotion, got %v", m.Promotion())
	}
	under, err := p.DecodeMove("a7a8n")
	if err != nil || under.Promotion() != nchess.Knight {
		t.Fatalf("explicit underpromotion lost: %v", err)
	}
}

func TestDecodeMoveRejectsIllegalCoordinates(t *testing.T) {
	start := StartingPosition()
	afterE4E5 := start.Apply(mustDecode(t, start, "e2e4"))
	afterE4E5 = afterE4E5.Apply(mustDecode(t, afterE4E5, "e7e5"))
	noPawn, err := ParseFEN("8/8/8/8/8/8/8/k6K w - - 0 1")
	if err != nil {
		t.Fatalf("ParseFEN: %v", err)
	}

	cases := []struct {
		name string
		pos  Position
		move string
	}{
		{"knight onto a pawn file square", start, "g1g3"},
		{"pawn three squares", start, "e2e5"},
		{"empty origin", afterE4E5, "e2e5"},
		{"empty origin with promotion rank", noPawn, "a7a8"},
		{"promotion suffix on a non-promotion", start, "e2e4q"},
		{"bad promotion piece", start, "e2e4k"},
	}
	for _, tc := range cases {
		m, err := tc.pos.DecodeMove(tc.move)
		if !errors.Is(err, ErrIllegalMove) {
			t.Fatalf("%s: expected ErrIllegalMove for %s, got %s err=%v", tc.name, tc.move, m.UCI(), err)
		}
	}
}

func TestDecodeMoveCoordinateCaseInsensitive(t *testing.T) {
	m, err := StartingPosition().DecodeMove("G1F3")
	if err != nil || m.UCI() != "g1f3" {
		t.Fatalf("expected g1f3, got %s err=%v", m.UCI(), err)
	}
}

func mustDecode(t *testing.T, p Position, text string) Move {
	t.Helper()
	m, err := p.DecodeMove(text)
	if err != nil {
		t.Fatalf("DecodeMove(%q): %v", text, err)
	}
	return m
}

func TestLegalMovesFrom(t *testing.T) {
	p := StartingPosition()
	sq, err := ParseSquare("g1")
	if err != nil {
		t.Fatalf("ParseSquare: %v", err)
	}
	moves := p.LegalMovesFrom(sq)
	if len(moves) != 2 {
		t.Fatalf("expected 2 knight moves, got %d", len(moves))
	}
	empty, _ := ParseSquare("e4")
	if got := p.LegalMovesFrom(empty); len(got) != 0 {
		t.Fatalf("expected no moves from empty square, got %d", len(got))
	}
}

func TestCheckDetection(t *testing.T) {
	p, err := ParseFEN("4k3/8/8/8/8/8/8/R3K3 w - - 0 1")
	if err != nil {
		t.Fatalf("ParseFEN: %v", err)
	}
	if p.InCheck() {
		t.Fatalf("no check expected before Ra8")
	}
	next := playAll(t, p, "a1a8")
	if !next.InCheck() {
		t.Fatalf("expected black in check after Ra8")
	}

	checked, err := ParseFEN("4k3/8/8/8/8/8/8/4K2r w - - 0 1")
	if err != nil {
		t.Fatalf("ParseFEN: %v", err)
	}
	if !checked.InCheck() {
		t.Fatalf("expected white in check from rook on h1")
	}
}

func TestCheckmateHasNoLegalMoves(t *testing.T) {
	p := playAll(t, StartingPosition(), "f2f3", "e7e5", "g2g4", "d8h4")
	if got := len(p.LegalMoves()); got != 0 {
		t.Fatalf("expected no legal moves after fool's mate, got %d", got)
	}
	if p.Status() != nchess.Checkmate {
		t.Fatalf("expected checkmate, got %v", p.Status())
	}
	if !p.InCheck() {
		t.Fatalf("mated side must be in check")
	}
}

func TestSANEncoding(t *testing.T) {
	p := StartingPosition()
	m, _ := p.DecodeMove("g1f3")
	if san := p.SAN(m); san != "Nf3" {
		t.Fatalf("expected Nf3, got %s", san)
	}
}
