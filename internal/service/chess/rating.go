package chess

import (
	"math"
	"time"

	nchess "github.com/corentings/chess/v2"
	corechess "github.com/park285/chessbattle/internal/chess"
	"github.com/park285/chessbattle/internal/domain"
)

const (
	defaultPlayerRating = 1200
	kFactor             = 24
)

// tierApproxRating is the Elo the player is scored against.
func tierApproxRating(tier string) int {
	t, _ := corechess.ParseTier(tier)
	switch t {
	case corechess.TierGreedy:
		return 1000
	case corechess.TierDeep:
		return 1400
	default:
		return 600
	}
}

func newProfile(identity sessionIdentity, now time.Time) *domain.ChessProfile {
	return &domain.ChessProfile{
		PlayerHash: identity.PlayerHash,
		RoomHash:   identity.RoomHash,
		Rating:     defaultPlayerRating,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// applyGameResult updates counters, streak and rating for one finished game
// and returns the rating change. The player is always White.
func applyGameResult(profile *domain.ChessProfile, identity sessionIdentity, tier string, outcome nchess.Outcome, endedAt time.Time) (*domain.ChessProfile, int) {
	if profile == nil {
		profile = newProfile(identity, endedAt)
	}
	prevRating := profile.Rating

	profile.GamesPlayed++
	profile.LastTier = tier
	profile.LastPlayedAt = endedAt
	profile.UpdatedAt = endedAt

	var (
		resultType string
		score      float64
	)
	switch outcome {
	case nchess.WhiteWon:
		profile.Wins++
		resultType, score = "win", 1.0
	case nchess.BlackWon:
		profile.Losses++
		resultType, score = "loss", 0.0
	default:
		profile.Draws++
		resultType, score = "draw", 0.5
	}

	if profile.StreakType == resultType {
		profile.Streak++
	} else {
		profile.Streak = 1
		profile.StreakType = resultType
	}

	opponent := tierApproxRating(tier)
	expected := 1 / (1 + math.Pow(10, float64(opponent-profile.Rating)/400))
	profile.Rating = int(math.Round(float64(profile.Rating) + kFactor*(score-expected)))
	return profile, profile.Rating - prevRating
}
