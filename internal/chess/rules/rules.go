// Package rules wraps the corentings/chess engine behind an immutable
// position value. Legality, check detection and FEN handling all come from
// the engine; nothing here generates moves on its own.
package rules

import (
	"errors"
	"fmt"
	"strings"

	nchess "github.com/corentings/chess/v2"
)

type (
	Square    = nchess.Square
	Color     = nchess.Color
	PieceType = nchess.PieceType
	Piece     = nchess.Piece
	Method    = nchess.Method
)

const (
	White   = nchess.White
	Black   = nchess.Black
	NoPiece = nchess.NoPiece
)

var (
	ErrInvalidFEN  = errors.New("invalid fen")
	ErrIllegalMove = errors.New("illegal move")
	ErrEmptyMove   = errors.New("empty move")
	ErrNilPosition = errors.New("nil position")
)

// Move is a legal move as enumerated by the engine for one position.
type Move struct {
	mv nchess.Move
}

func (m Move) From() Square          { return m.mv.S1() }
func (m Move) To() Square            { return m.mv.S2() }
func (m Move) Promotion() PieceType  { return m.mv.Promo() }
func (m Move) UCI() string           { return strings.ToLower(m.mv.String()) }
func (m Move) String() string        { return m.UCI() }
func (m Move) GivesCheck() bool      { return m.mv.HasTag(nchess.Check) }
func (m Move) IsCapture() bool       { return m.mv.HasTag(nchess.Capture) || m.mv.HasTag(nchess.EnPassant) }
func (m Move) Equal(other Move) bool { return sameMove(&m.mv, &other.mv) }

func sameMove(a, b *nchess.Move) bool {
	return a.S1() == b.S1() && a.S2() == b.S2() && a.Promo() == b.Promo()
}

// Position is a value: Apply returns a derived position and never touches
// the receiver.
type Position struct {
	pos     *nchess.Position
	inCheck bool
}

func StartingPosition() Position {
	return Position{pos: nchess.StartingPosition()}
}

func ParseFEN(fen string) (Position, error) {
	trimmed := strings.TrimSpace(fen)
	if trimmed == "" || strings.EqualFold(trimmed, "startpos") {
		return StartingPosition(), nil
	}
	opt, err := nchess.FEN(trimmed)
	if err != nil {
		return Position{}, fmt.Errorf("%w: %v", ErrInvalidFEN, err)
	}
	game := nchess.NewGame(opt)
	p := Position{pos: game.Position()}
	p.inCheck = sideToMoveAttacked(p)
	return p, nil
}

// FromEngine adopts a position produced by the engine's Game type.
func FromEngine(pos *nchess.Position, inCheck bool) Position {
	return Position{pos: pos, inCheck: inCheck}
}

func (p Position) Engine() *nchess.Position { return p.pos }

func (p Position) IsZero() bool { return p.pos == nil }

func (p Position) FEN() string {
	if p.pos == nil {
		return ""
	}
	return p.pos.String()
}

func (p Position) Turn() Color {
	if p.pos == nil {
		return nchess.NoColor
	}
	return p.pos.Turn()
}

func (p Position) InCheck() bool { return p.inCheck }

func (p Position) PieceAt(sq Square) Piece {
	if p.pos == nil {
		return nchess.NoPiece
	}
	return p.pos.Board().Piece(sq)
}

// LegalMoves returns moves in the engine's enumeration order.
func (p Position) LegalMoves() []Move {
	if p.pos == nil {
		return nil
	}
	valid := p.pos.ValidMoves()
	out := make([]Move, len(valid))
	for i := range valid {
		out[i] = Move{mv: valid[i]}
	}
	return out
}

func (p Position) LegalMovesFrom(sq Square) []Move {
	all := p.LegalMoves()
	out := make([]Move, 0, 4)
	for _, m := range all {
		if m.From() == sq {
			out = append(out, m)
		}
	}
	return out
}

// Apply plays a move obtained from LegalMoves on this position.
func (p Position) Apply(m Move) Position {
	mv := m.mv
	next := p.pos.Update(&mv)
	return Position{pos: next, inCheck: m.GivesCheck()}
}

// Play validates the move against the legal list before applying it.
func (p Position) Play(m Move) (Position, error) {
	if p.pos == nil {
		return Position{}, ErrNilPosition
	}
	for _, legal := range p.LegalMoves() {
		if legal.Equal(m) {
			return p.Apply(legal), nil
		}
	}
	return Position{}, fmt.Errorf("%w: %s", ErrIllegalMove, m.UCI())
}

// Status reports checkmate or stalemate for the side to move.
func (p Position) Status() Method {
	if p.pos == nil {
		return nchess.NoMethod
	}
	return p.pos.Status()
}

// sideToMoveAttacked answers check for positions loaded from FEN, where no
// producing move carries a check tag. The side to move is flipped and any
// legal reply landing on its king square means the king is attacked.
func sideToMoveAttacked(p Position) bool {
	fields := strings.Fields(p.FEN())
	if len(fields) < 4 {
		return false
	}
	turn := p.Turn()
	if turn == nchess.White {
		fields[1] = "b"
	} else {
		fields[1] = "w"
	}
	fields[3] = "-"
	opt, err := nchess.FEN(strings.Join(fields, " "))
	if err != nil {
		return false
	}
	flipped := nchess.NewGame(opt).Position()
	king := nchess.NoSquare
	for sq := 0; sq < 64; sq++ {
		pc := p.PieceAt(Square(sq))
		if pc.Type() == nchess.King && pc.Color() == turn {
			king = Square(sq)
			break
		}
	}
	if king == nchess.NoSquare {
		return false
	}
	for _, mv := range flipped.ValidMoves() {
		if mv.S2() == king {
			return true
		}
	}
	return false
}
