package domain

import "time"

// ChessGame is a finished game against the bot.
type ChessGame struct {
	ID           int64
	SessionUUID  string
	PlayerHash   string
	RoomHash     string
	Tier         string
	BotName      string
	Result       string
	ResultMethod string
	MovesUCI     []string
	MovesSAN     []string
	PGN          string
	FinalFEN     string
	StartedAt    time.Time
	EndedAt      time.Time
	Duration     time.Duration
	BotNodes     int64
	BotThinkTime time.Duration
}

type ChessProfile struct {
	PlayerHash    string
	RoomHash      string
	PreferredTier string
	Rating        int
	GamesPlayed   int
	Wins          int
	Losses        int
	Draws         int
	Streak        int
	StreakType    string
	LastTier      string
	LastPlayedAt  time.Time
	UpdatedAt     time.Time
	CreatedAt     time.Time
}
