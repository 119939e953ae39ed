package chessdto

import "time"

type ChessProfile struct {
	PreferredTier string     `json:"preferred_tier,omitempty"`
	Rating        int        `json:"rating"`
	GamesPlayed   int        `json:"games_played"`
	Wins          int        `json:"wins"`
	Losses        int        `json:"losses"`
	Draws         int        `json:"draws"`
	Streak        int        `json:"streak"`
	StreakType    string     `json:"streak_type,omitempty"`
	LastTier      string     `json:"last_tier,omitempty"`
	LastPlayedAt  *time.Time `json:"last_played_at,omitempty"`
	UpdatedAt     time.Time  `json:"updated_at"`
	CreatedAt     time.Time  `json:"created_at"`
}
