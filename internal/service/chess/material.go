package chess

import (
	nchess "github.com/corentings/chess/v2"
	corechess "github.com/park285/chessbattle/internal/chess"
)

var initialPieceCounts = map[nchess.PieceType]int{
	nchess.Pawn:   8,
	nchess.Knight: 2,
	nchess.Bishop: 2,
	nchess.Rook:   2,
	nchess.Queen:  1,
}

type MaterialScore struct {
	White int
	Black int
}

func (m MaterialScore) Diff() int {
	return m.White - m.Black
}

// CapturedPieces lists what each side has taken, in capture order.
type CapturedPieces struct {
	White []nchess.PieceType
	Black []nchess.PieceType
}

func (c CapturedPieces) IsEmpty() bool {
	return len(c.White) == 0 && len(c.Black) == 0
}

// computeMaterial totals the board with the engine's piece values and walks
// the move list for captures. For games started from a FEN, pieces missing
// at the start are not reported as captured.
func computeMaterial(game *nchess.Game) (MaterialScore, CapturedPieces) {
	var (
		score    MaterialScore
		captured CapturedPieces
	)
	if game == nil || game.Position() == nil {
		return score, captured
	}

	for _, piece := range game.Position().Board().SquareMap() {
		v := corechess.PieceValue(piece.Type())
		if piece.Color() == nchess.White {
			score.White += v
		} else {
			score.Black += v
		}
	}

	positions := game.Positions()
	for i, mv := range game.Moves() {
		if i >= len(positions) {
			break
		}
		if !mv.HasTag(nchess.Capture) && !mv.HasTag(nchess.EnPassant) {
			continue
		}
		pos := positions[i]
		target := mv.S2()
		if mv.HasTag(nchess.EnPassant) {
			if pos.Turn() == nchess.White {
				target = nchess.NewSquare(target.File(), target.Rank()-1)
			} else {
				target = nchess.NewSquare(target.File(), target.Rank()+1)
			}
		}
		pt := pos.Board().Piece(target).Type()
		if pt == nchess.NoPieceType || pt == nchess.King {
			continue
		}
		if pos.Turn() == nchess.White {
			captured.White = append(captured.White, pt)
		} else {
			captured.Black = append(captured.Black, pt)
		}
	}
	return score, captured
}

// InitialMaterial is each side's material in the standard starting position.
func InitialMaterial() int {
	total := 0
	for pt, n := range initialPieceCounts {
		total += n * corechess.PieceValue(pt)
	}
	return total
}
