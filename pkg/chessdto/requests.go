package chessdto

// RequestMeta identifies the player. Room and Sender come from the
// X-Chess-Room / X-Chess-Player headers; SessionID is optional.
type RequestMeta struct {
	SessionID string `json:"session_id,omitempty"`
	Room      string `json:"room"`
	Sender    string `json:"sender"`
}

type StartSessionRequest struct {
	Tier string `json:"tier"`
	FEN  string `json:"fen"`
}

type StartSessionResponse struct {
	State   *SessionState `json:"state"`
	Resumed bool          `json:"resumed"`
	Message string        `json:"message"`
}

type StateResponse struct {
	State   *SessionState `json:"state"`
	Message string        `json:"message,omitempty"`
}

type PlayRequest struct {
	Move string `json:"move" binding:"required"`
}

type PlayResponse struct {
	Summary *MoveSummary `json:"summary"`
	Message string       `json:"message"`
}

type TierRequest struct {
	Tier string `json:"tier" binding:"required"`
}

type HistoryResponse struct {
	Games []*ChessGame `json:"games"`
}

type GameResponse struct {
	Game *ChessGame `json:"game"`
}

type ProfileResponse struct {
	Profile *ChessProfile `json:"profile"`
	Message string        `json:"message,omitempty"`
}

// MoveCheckRequest asks the engine for a move without a session.
type MoveCheckRequest struct {
	FEN  string `json:"fen"`
	Tier string `json:"tier"`
}

type MoveCheckResponse struct {
	Move    string `json:"move,omitempty"`
	SAN     string `json:"san,omitempty"`
	Score   int    `json:"score"`
	Nodes   int64  `json:"nodes"`
	Cutoffs int64  `json:"cutoffs"`
	Tier    string `json:"tier"`
	NoMove  bool   `json:"no_move,omitempty"`
	ThinkMS int64  `json:"think_ms"`
}
