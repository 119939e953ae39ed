package rules

import (
	"fmt"
	"strings"

	nchess "github.com/corentings/chess/v2"
)

// DecodeMove resolves user input to one of the position's legal moves.
// Coordinate input ("e2e4", "a7a8n") is matched by squares only and never
// reinterpreted as SAN; anything else is decoded as SAN. A coordinate move
// onto the last rank without a suffix promotes to a queen.
func (p Position) DecodeMove(text string) (Move, error) {
	raw := strings.TrimSpace(text)
	if raw == "" {
		return Move{}, ErrEmptyMove
	}
	if p.pos == nil {
		return Move{}, ErrNilPosition
	}
	legal := p.LegalMoves()

	if from, to, promo, ok := parseCoordinate(raw); ok {
		if promo == nchess.NoPieceType && isPromotion(legal, from, to) {
			promo = nchess.Queen
		}
		for _, m := range legal {
			if m.From() == from && m.To() == to && m.Promotion() == promo {
				return m, nil
			}
		}
		return Move{}, fmt.Errorf("%w: %s", ErrIllegalMove, raw)
	}

	if mv, err := (nchess.AlgebraicNotation{}).Decode(p.pos, raw); err == nil {
		if m, ok := matchLegal(legal, mv); ok {
			return m, nil
		}
	}
	return Move{}, fmt.Errorf("%w: %s", ErrIllegalMove, raw)
}

var promotionPieces = map[byte]PieceType{
	'q': nchess.Queen,
	'r': nchess.Rook,
	'b': nchess.Bishop,
	'n': nchess.Knight,
}

// parseCoordinate accepts [a-h][1-8][a-h][1-8][qrbn]?, case-insensitive.
func parseCoordinate(raw string) (from, to Square, promo PieceType, ok bool) {
	s := strings.ToLower(raw)
	if len(s) != 4 && len(s) != 5 {
		return 0, 0, nchess.NoPieceType, false
	}
	from, err := ParseSquare(s[0:2])
	if err != nil {
		return 0, 0, nchess.NoPieceType, false
	}
	to, err = ParseSquare(s[2:4])
	if err != nil {
		return 0, 0, nchess.NoPieceType, false
	}
	promo = nchess.NoPieceType
	if len(s) == 5 {
		if promo, ok = promotionPieces[s[4]]; !ok {
			return 0, 0, nchess.NoPieceType, false
		}
	}
	return from, to, promo, true
}

func isPromotion(legal []Move, from, to Square) bool {
	for _, m := range legal {
		if m.From() == from && m.To() == to && m.Promotion() != nchess.NoPieceType {
			return true
		}
	}
	return false
}

func matchLegal(legal []Move, mv *nchess.Move) (Move, bool) {
	if mv == nil {
		return Move{}, false
	}
	for _, m := range legal {
		if sameMove(&m.mv, mv) {
			return m, true
		}
	}
	return Move{}, false
}

// SAN encodes a move in standard algebraic notation relative to p.
func (p Position) SAN(m Move) string {
	if p.pos == nil {
		return m.UCI()
	}
	mv := m.mv
	return nchess.AlgebraicNotation{}.Encode(p.pos, &mv)
}

func ParseSquare(text string) (Square, error) {
	s := strings.ToLower(strings.TrimSpace(text))
	if len(s) != 2 || s[0] < 'a' || s[0] > 'h' || s[1] < '1' || s[1] > '8' {
		return nchess.NoSquare, fmt.Errorf("invalid square %q", text)
	}
	return nchess.NewSquare(nchess.File(s[0]-'a'), nchess.Rank(s[1]-'1')), nil
}

func SquareName(sq Square) string {
	return sq.String()
}
