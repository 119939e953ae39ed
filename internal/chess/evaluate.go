package chess

import (
	nchess "github.com/corentings/chess/v2"
	"github.com/park285/chessbattle/internal/chess/rules"
)

// PieceValue is the material weight of a piece type; kings count zero.
func PieceValue(pt nchess.PieceType) int {
	switch pt {
	case nchess.Pawn:
		return 1
	case nchess.Knight, nchess.Bishop:
		return 3
	case nchess.Rook:
		return 5
	case nchess.Queen:
		return 9
	default:
		return 0
	}
}

// Evaluate returns white material minus black material.
func Evaluate(pos rules.Position) int {
	raw := pos.Engine()
	if raw == nil {
		return 0
	}
	board := raw.Board()
	score := 0
	for file := nchess.FileA; file <= nchess.FileH; file++ {
		for rank := nchess.Rank1; rank <= nchess.Rank8; rank++ {
			piece := board.Piece(nchess.NewSquare(file, rank))
			if piece == nchess.NoPiece {
				continue
			}
			v := PieceValue(piece.Type())
			if piece.Color() == nchess.White {
				score += v
			} else {
				score -= v
			}
		}
	}
	return score
}

// EvaluateFor scores pos from side's point of view.
func EvaluateFor(pos rules.Position, side rules.Color) int {
	return sideSign(side) * Evaluate(pos)
}

func sideSign(side rules.Color) int {
	if side == nchess.Black {
		return -1
	}
	return 1
}
