package chessdto

import "time"

type MaterialScore struct {
	White int `json:"white"`
	Black int `json:"black"`
	Diff  int `json:"diff"`
}

type CapturedPieces struct {
	White []string `json:"white"`
	Black []string `json:"black"`
}

// Ply is one half-move. By is "player" or "bot".
type Ply struct {
	By         string `json:"by"`
	UCI        string `json:"uci"`
	SAN        string `json:"san"`
	FEN        string `json:"fen"`
	Check      bool   `json:"check,omitempty"`
	Commentary string `json:"commentary,omitempty"`
	Nodes      int64  `json:"nodes,omitempty"`
	ThinkMS    int64  `json:"think_ms,omitempty"`
}

type SessionState struct {
	SessionUUID  string         `json:"session_uuid"`
	PlayerName   string         `json:"player_name"`
	Tier         string         `json:"tier"`
	BotName      string         `json:"bot_name"`
	FEN          string         `json:"fen"`
	Turn         string         `json:"turn"`
	PlayerToMove bool           `json:"player_to_move"`
	BotThinking  bool           `json:"bot_thinking"`
	InCheck      bool           `json:"in_check"`
	CheckSquare  string         `json:"check_square,omitempty"`
	LastMove     []string       `json:"last_move,omitempty"`
	Plies        []Ply          `json:"plies"`
	MoveCount    int            `json:"move_count"`
	Material     MaterialScore  `json:"material"`
	Captured     CapturedPieces `json:"captured"`
	Finished     bool           `json:"finished"`
	Result       string         `json:"result,omitempty"`
	Outcome      string         `json:"outcome"`
	OutcomeMeta  string         `json:"outcome_method,omitempty"`
	GameID       int64          `json:"game_id,omitempty"`
	RatingDelta  int            `json:"rating_delta,omitempty"`
	Profile      *ChessProfile  `json:"profile,omitempty"`
	StartedAt    time.Time      `json:"started_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// MoveSummary is the result of one player move and, when it ran inline,
// the bot's reply.
type MoveSummary struct {
	State       *SessionState `json:"state"`
	Player      Ply           `json:"player"`
	Bot         *Ply          `json:"bot,omitempty"`
	BotPending  bool          `json:"bot_pending"`
	Finished    bool          `json:"finished"`
	GameID      int64         `json:"game_id,omitempty"`
	Profile     *ChessProfile `json:"profile,omitempty"`
	RatingDelta int           `json:"rating_delta,omitempty"`
}

type LegalTargets struct {
	From    string   `json:"from"`
	Targets []string `json:"targets"`
}

// Event is pushed over the websocket stream.
type Event struct {
	Type        string        `json:"type"`
	SessionUUID string        `json:"session_uuid"`
	Move        *Ply          `json:"move,omitempty"`
	State       *SessionState `json:"state,omitempty"`
	Message     string        `json:"message,omitempty"`
	At          time.Time     `json:"at"`
}
