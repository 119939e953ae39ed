package chessdto

import "time"

type ChessGame struct {
	ID           int64     `json:"id"`
	SessionUUID  string    `json:"session_uuid"`
	Tier         string    `json:"tier"`
	BotName      string    `json:"bot_name"`
	Result       string    `json:"result"`
	ResultMethod string    `json:"result_method"`
	MovesUCI     []string  `json:"moves_uci"`
	MovesSAN     []string  `json:"moves_san"`
	PGN          string    `json:"pgn,omitempty"`
	FinalFEN     string    `json:"final_fen"`
	StartedAt    time.Time `json:"started_at"`
	EndedAt      time.Time `json:"ended_at"`
	DurationMS   int64     `json:"duration_ms"`
	BotNodes     int64     `json:"bot_nodes"`
	BotThinkMS   int64     `json:"bot_think_ms"`
	Summary      string    `json:"summary,omitempty"`
}
