package chesspresenter

import (
	nchess "github.com/corentings/chess/v2"
	"github.com/park285/chessbattle/internal/domain"
	svc "github.com/park285/chessbattle/internal/service/chess"
	"github.com/park285/chessbattle/pkg/chessdto"
)

func ToDTOState(s *svc.SessionState) *chessdto.SessionState {
	if s == nil {
		return nil
	}
	out := &chessdto.SessionState{
		SessionUUID:  s.SessionUUID,
		PlayerName:   s.PlayerName,
		Tier:         s.Tier,
		BotName:      s.BotName,
		FEN:          s.FEN,
		Turn:         s.Turn,
		PlayerToMove: s.PlayerToMove,
		BotThinking:  s.BotThinking,
		InCheck:      s.InCheck,
		CheckSquare:  s.CheckSquare,
		Plies:        toDTOPlies(s.Plies),
		MoveCount:    s.MoveCount,
		Material:     chessdto.MaterialScore{White: s.Material.White, Black: s.Material.Black, Diff: s.Material.Diff()},
		Captured:     toDTOCaptured(s.Captured),
		Finished:     s.Finished,
		Result:       s.Result,
		Outcome:      s.Outcome.String(),
		GameID:       s.GameID,
		RatingDelta:  s.RatingDelta,
		Profile:      ToDTOProfile(s.Profile),
		StartedAt:    s.StartedAt,
		UpdatedAt:    s.UpdatedAt,
	}
	if s.Outcome != nchess.NoOutcome {
		out.OutcomeMeta = s.OutcomeMethod.String()
	}
	if s.LastMove != nil {
		out.LastMove = []string{s.LastMove.From.String(), s.LastMove.To.String()}
	}
	return out
}

func ToDTOMoveSummary(m *svc.MoveSummary) *chessdto.MoveSummary {
	if m == nil {
		return nil
	}
	out := &chessdto.MoveSummary{
		State:       ToDTOState(m.State),
		Player:      toDTOPly(m.Player),
		BotPending:  m.BotPending,
		Finished:    m.Finished,
		GameID:      m.GameID,
		Profile:     ToDTOProfile(m.Profile),
		RatingDelta: m.RatingDelta,
	}
	if m.Bot != nil {
		bot := toDTOPly(*m.Bot)
		out.Bot = &bot
	}
	return out
}

func ToDTOTargets(t *svc.LegalTargets) *chessdto.LegalTargets {
	if t == nil {
		return nil
	}
	return &chessdto.LegalTargets{From: t.From, Targets: append([]string{}, t.Targets...)}
}

func toDTOPlies(list []svc.PlyRecord) []chessdto.Ply {
	out := make([]chessdto.Ply, 0, len(list))
	for _, p := range list {
		out = append(out, toDTOPly(p))
	}
	return out
}

func toDTOPly(p svc.PlyRecord) chessdto.Ply {
	return chessdto.Ply{
		By:         p.By,
		UCI:        p.UCI,
		SAN:        p.SAN,
		FEN:        p.FEN,
		Check:      p.Check,
		Commentary: p.Commentary,
		Nodes:      p.Nodes,
		ThinkMS:    p.ThinkMS,
	}
}

func toDTOCaptured(c svc.CapturedPieces) chessdto.CapturedPieces {
	return chessdto.CapturedPieces{
		White: toPieceTokenList(c.White),
		Black: toPieceTokenList(c.Black),
	}
}

func toPieceTokenList(list []nchess.PieceType) []string {
	tokens := make([]string, 0, len(list))
	for _, pt := range list {
		if tok := pieceTypeToToken(pt); tok != "" {
			tokens = append(tokens, tok)
		}
	}
	return tokens
}

func pieceTypeToToken(pt nchess.PieceType) string {
	switch pt {
	case nchess.Queen:
		return "queen"
	case nchess.Rook:
		return "rook"
	case nchess.Bishop:
		return "bishop"
	case nchess.Knight:
		return "knight"
	case nchess.Pawn:
		return "pawn"
	case nchess.King:
		return "king"
	default:
		return ""
	}
}

func ToDTOProfile(p *domain.ChessProfile) *chessdto.ChessProfile {
	if p == nil {
		return nil
	}
	out := &chessdto.ChessProfile{
		PreferredTier: p.PreferredTier,
		Rating:        p.Rating,
		GamesPlayed:   p.GamesPlayed,
		Wins:          p.Wins,
		Losses:        p.Losses,
		Draws:         p.Draws,
		Streak:        p.Streak,
		StreakType:    p.StreakType,
		LastTier:      p.LastTier,
		UpdatedAt:     p.UpdatedAt,
		CreatedAt:     p.CreatedAt,
	}
	if !p.LastPlayedAt.IsZero() {
		t := p.LastPlayedAt
		out.LastPlayedAt = &t
	}
	return out
}

func ToDTOGames(list []*domain.ChessGame) []*chessdto.ChessGame {
	out := make([]*chessdto.ChessGame, 0, len(list))
	for _, g := range list {
		if dto := ToDTOGame(g); dto != nil {
			out = append(out, dto)
		}
	}
	return out
}

func ToDTOGame(g *domain.ChessGame) *chessdto.ChessGame {
	if g == nil {
		return nil
	}
	return &chessdto.ChessGame{
		ID:           g.ID,
		SessionUUID:  g.SessionUUID,
		Tier:         g.Tier,
		BotName:      g.BotName,
		Result:       g.Result,
		ResultMethod: g.ResultMethod,
		MovesUCI:     append([]string{}, g.MovesUCI...),
		MovesSAN:     append([]string{}, g.MovesSAN...),
		PGN:          g.PGN,
		FinalFEN:     g.FinalFEN,
		StartedAt:    g.StartedAt,
		EndedAt:      g.EndedAt,
		DurationMS:   g.Duration.Milliseconds(),
		BotNodes:     g.BotNodes,
		BotThinkMS:   g.BotThinkTime.Milliseconds(),
	}
}

func ToDTOMeta(m chessdto.RequestMeta) svc.SessionMeta {
	return svc.SessionMeta{SessionID: m.SessionID, Room: m.Room, Sender: m.Sender}
}
