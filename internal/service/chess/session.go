package chess

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	nchess "github.com/corentings/chess/v2"
	"github.com/park285/chessbattle/internal/chess/rules"
	"github.com/park285/chessbattle/internal/domain"
)

const (
	statusActive   = "active"
	statusFinished = "finished"

	sideHuman = "player"
	sideBot   = "bot"
)

type SessionMeta struct {
	SessionID string
	Room      string
	Sender    string
}

type sessionIdentity struct {
	SessionID  string
	RoomHash   string
	PlayerHash string
}

func deriveIdentity(meta SessionMeta) sessionIdentity {
	sessionID := strings.ToLower(strings.TrimSpace(meta.SessionID))
	room := strings.ToLower(strings.TrimSpace(meta.Room))
	sender := strings.ToLower(strings.TrimSpace(meta.Sender))
	if sessionID == "" {
		sessionID = room + ":" + sender
	}
	return sessionIdentity{
		SessionID:  sessionID,
		RoomHash:   hashString(room),
		PlayerHash: hashString(room + ":" + sender),
	}
}

func hashString(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}

// PlyRecord is one half-move as stored in the session.
type PlyRecord struct {
	By         string `json:"by"`
	UCI        string `json:"uci"`
	SAN        string `json:"san"`
	FEN        string `json:"fen"`
	Check      bool   `json:"check,omitempty"`
	Commentary string `json:"commentary,omitempty"`
	Nodes      int64  `json:"nodes,omitempty"`
	ThinkMS    int64  `json:"think_ms,omitempty"`
}

type sessionPayload struct {
	SessionUUID string      `json:"session_uuid"`
	PlayerHash  string      `json:"player_hash"`
	RoomHash    string      `json:"room_hash"`
	PlayerName  string      `json:"player_name,omitempty"`
	Tier        string      `json:"tier"`
	BotName     string      `json:"bot_name"`
	StartFEN    string      `json:"start_fen,omitempty"`
	Plies       []PlyRecord `json:"plies"`
	Status      string      `json:"status"`
	Result      string      `json:"result,omitempty"`
	Method      string      `json:"method,omitempty"`
	GameID      int64       `json:"game_id,omitempty"`
	StartedAt   time.Time   `json:"started_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

func (p *sessionPayload) finished() bool { return p.Status == statusFinished }

func (p *sessionPayload) movesUCI() []string {
	out := make([]string, len(p.Plies))
	for i, ply := range p.Plies {
		out[i] = ply.UCI
	}
	return out
}

func (p *sessionPayload) movesSAN() []string {
	out := make([]string, len(p.Plies))
	for i, ply := range p.Plies {
		out[i] = ply.SAN
	}
	return out
}

func (p *sessionPayload) botTotals() (nodes int64, think time.Duration) {
	for _, ply := range p.Plies {
		if ply.By == sideBot {
			nodes += ply.Nodes
			think += time.Duration(ply.ThinkMS) * time.Millisecond
		}
	}
	return nodes, think
}

// newGame builds the engine game for the session start position.
func newGame(startFEN string) (*nchess.Game, error) {
	if strings.TrimSpace(startFEN) == "" {
		return nchess.NewGame(), nil
	}
	opt, err := nchess.FEN(startFEN)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", rules.ErrInvalidFEN, err)
	}
	return nchess.NewGame(opt), nil
}

func replaySession(payload *sessionPayload) (*nchess.Game, error) {
	game, err := newGame(payload.StartFEN)
	if err != nil {
		return nil, err
	}
	notation := nchess.UCINotation{}
	for _, ply := range payload.Plies {
		move, err := notation.Decode(game.Position(), ply.UCI)
		if err != nil {
			return nil, fmt.Errorf("decode move %s: %w", ply.UCI, err)
		}
		if err := game.Move(move, nil); err != nil {
			return nil, fmt.Errorf("apply move %s: %w", ply.UCI, err)
		}
	}
	return game, nil
}

// currentPosition adopts the game's position. Check comes from the last
// move's tag, or from the start FEN when nothing has been played.
func currentPosition(game *nchess.Game) (rules.Position, error) {
	moves := game.Moves()
	if len(moves) == 0 {
		return rules.ParseFEN(game.FEN())
	}
	return rules.FromEngine(game.Position(), moves[len(moves)-1].HasTag(nchess.Check)), nil
}

// applyMove plays m on game and returns the record for it.
func applyMove(game *nchess.Game, pos rules.Position, m rules.Move, by string) (PlyRecord, error) {
	mv, err := nchess.UCINotation{}.Decode(game.Position(), m.UCI())
	if err != nil {
		return PlyRecord{}, fmt.Errorf("decode move %s: %w", m.UCI(), err)
	}
	san := pos.SAN(m)
	if err := game.Move(mv, nil); err != nil {
		return PlyRecord{}, fmt.Errorf("apply move %s: %w", m.UCI(), err)
	}
	return PlyRecord{
		By:    by,
		UCI:   m.UCI(),
		SAN:   san,
		FEN:   game.FEN(),
		Check: m.GivesCheck(),
	}, nil
}

// markOutcome copies a terminal game result onto the payload.
func markOutcome(payload *sessionPayload, game *nchess.Game) bool {
	if game.Outcome() == nchess.NoOutcome {
		return false
	}
	payload.Status = statusFinished
	payload.Result = resultFromOutcome(game.Outcome())
	payload.Method = methodFromOutcome(game.Method())
	return true
}

type SessionState struct {
	SessionUUID   string
	PlayerName    string
	Tier          string
	BotName       string
	FEN           string
	Turn          string
	PlayerToMove  bool
	BotThinking   bool
	InCheck       bool
	CheckSquare   string
	Plies         []PlyRecord
	MoveCount     int
	Outcome       nchess.Outcome
	OutcomeMethod nchess.Method
	Finished      bool
	Result        string
	Material      MaterialScore
	Captured      CapturedPieces
	LastMove      *MoveHighlight
	StartedAt     time.Time
	UpdatedAt     time.Time
	GameID        int64
	RatingDelta   int
	Profile       *domain.ChessProfile
}

func (s *Service) stateFromGame(payload *sessionPayload, game *nchess.Game) *SessionState {
	pos := game.Position()
	state := &SessionState{
		SessionUUID:   payload.SessionUUID,
		PlayerName:    payload.PlayerName,
		Tier:          payload.Tier,
		BotName:       payload.BotName,
		FEN:           game.FEN(),
		Turn:          colorName(pos.Turn()),
		Plies:         append([]PlyRecord(nil), payload.Plies...),
		MoveCount:     len(payload.Plies),
		Outcome:       game.Outcome(),
		OutcomeMethod: game.Method(),
		Finished:      payload.finished(),
		Result:        payload.Result,
		StartedAt:     payload.StartedAt,
		UpdatedAt:     payload.UpdatedAt,
		GameID:        payload.GameID,
	}
	state.PlayerToMove = !state.Finished && pos.Turn() == nchess.White
	if cur, err := currentPosition(game); err == nil && cur.InCheck() {
		state.InCheck = true
		if sq, ok := kingSquare(pos.Board(), pos.Turn()); ok {
			state.CheckSquare = sq.String()
		}
	}
	if moves := game.Moves(); len(moves) > 0 {
		last := moves[len(moves)-1]
		state.LastMove = &MoveHighlight{From: last.S1(), To: last.S2()}
	}
	state.Material, state.Captured = computeMaterial(game)
	return state
}

func kingSquare(board *nchess.Board, color nchess.Color) (nchess.Square, bool) {
	for sq, piece := range board.SquareMap() {
		if piece.Type() == nchess.King && piece.Color() == color {
			return sq, true
		}
	}
	return nchess.NoSquare, false
}

func colorName(c nchess.Color) string {
	switch c {
	case nchess.White:
		return "white"
	case nchess.Black:
		return "black"
	default:
		return ""
	}
}

func normalizePlayerLabel(raw string) string {
	cleaned := strings.Join(strings.Fields(raw), " ")
	runes := []rune(cleaned)
	if len(runes) > playerLabelRuneLimit {
		return strings.TrimSpace(string(runes[:playerLabelRuneLimit])) + "..."
	}
	return cleaned
}

func resultFromOutcome(outcome nchess.Outcome) string {
	switch outcome {
	case nchess.WhiteWon:
		return "win"
	case nchess.BlackWon:
		return "loss"
	case nchess.Draw:
		return "draw"
	default:
		return "unknown"
	}
}

func methodFromOutcome(method nchess.Method) string {
	return strings.ToLower(method.String())
}
