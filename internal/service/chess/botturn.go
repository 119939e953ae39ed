package chess

import (
	"context"
	"errors"
	"fmt"
	"time"

	nchess "github.com/corentings/chess/v2"
	corechess "github.com/park285/chessbattle/internal/chess"
	"github.com/park285/chessbattle/internal/chess/rules"
	"github.com/park285/chessbattle/internal/domain"
	"github.com/park285/chessbattle/internal/service/cache"
	"go.uber.org/zap"
)

// errStaleTurn marks a bot turn whose session moved on before it ran.
var errStaleTurn = errors.New("stale bot turn")

var pieceNames = map[nchess.PieceType]string{
	nchess.King:   "king",
	nchess.Queen:  "queen",
	nchess.Rook:   "rook",
	nchess.Bishop: "bishop",
	nchess.Knight: "knight",
	nchess.Pawn:   "pawn",
}

// describeMove is the commentary prompt for m, e.g. "knight from g1 to f3".
func describeMove(pos rules.Position, m rules.Move) string {
	name := pieceNames[pos.PieceAt(m.From()).Type()]
	if name == "" {
		name = "piece"
	}
	return fmt.Sprintf("%s from %s to %s", name, m.From().String(), m.To().String())
}

func (s *Service) scheduleBotTurn(identity sessionIdentity, sessionUUID string, plies int) {
	scheduled := s.pacer.schedule(identity.SessionID, s.cfg.ThinkDelay, func(ctx context.Context) {
		if _, err := s.runBotTurn(ctx, identity, sessionUUID, plies); err != nil && !errors.Is(err, errStaleTurn) {
			s.logger.Warn("chess bot turn failed",
				zap.String("session_uuid", sessionUUID),
				zap.Error(err),
			)
		}
	})
	if !scheduled {
		s.logger.Debug("chess bot turn not scheduled", zap.String("session_uuid", sessionUUID))
	}
}

// runBotTurn plays the bot's reply for the session as it was after plies
// half-moves. A session that has since changed yields errStaleTurn.
func (s *Service) runBotTurn(ctx context.Context, identity sessionIdentity, sessionUUID string, plies int) (*MoveSummary, error) {
	current, err := s.loadSession(ctx, identity.SessionID)
	if err != nil {
		return nil, err
	}
	if current == nil || current.SessionUUID != sessionUUID || len(current.Plies) != plies || current.finished() {
		return nil, errStaleTurn
	}
	game, err := replaySession(current)
	if err != nil {
		return nil, err
	}
	pos, err := currentPosition(game)
	if err != nil {
		return nil, err
	}
	if pos.Turn() != rules.Black {
		return nil, ErrNotBotTurn
	}

	s.events.Publish(Event{Type: EventBotThinking, PlayerHash: identity.PlayerHash, SessionUUID: sessionUUID, State: s.stateFromGame(current, game)})

	tier, _ := corechess.ParseTier(current.Tier)
	decision, ok, err := s.selectMove(ctx, pos, tier)
	if err != nil {
		return nil, err
	}

	var (
		reply PlyRecord
		desc  string
	)
	payload, err := cache.Update(ctx, s.cache, s.sessionKey(identity.SessionID), s.cfg.SessionTTL, func(cur *sessionPayload, exists bool) error {
		if !exists || cur.SessionUUID != sessionUUID || len(cur.Plies) != plies || cur.finished() {
			return errStaleTurn
		}
		cur.UpdatedAt = time.Now()
		if !ok {
			// 엔진이 둘 수를 못 찾으면 그대로 종료 처리
			cur.Status = statusFinished
			if pos.InCheck() {
				cur.Result = resultFromOutcome(nchess.WhiteWon)
				cur.Method = methodFromOutcome(nchess.Checkmate)
			} else {
				cur.Result = resultFromOutcome(nchess.Draw)
				cur.Method = methodFromOutcome(nchess.Stalemate)
			}
			return nil
		}
		g, err := replaySession(cur)
		if err != nil {
			return err
		}
		desc = describeMove(pos, decision.Move)
		reply, err = applyMove(g, pos, decision.Move, sideBot)
		if err != nil {
			return err
		}
		reply.Nodes = decision.Stats.Nodes
		reply.ThinkMS = decision.Duration.Milliseconds()
		cur.Plies = append(cur.Plies, reply)
		markOutcome(cur, g)
		return nil
	})
	if err != nil {
		return nil, err
	}

	summary := &MoveSummary{}
	if ok {
		s.annotate(identity, sessionUUID, reply, len(payload.Plies)-1, desc)
		summary.Bot = &reply
		s.logger.Info("chess bot moved",
			zap.String("session_uuid", sessionUUID),
			zap.String("tier", tier.String()),
			zap.String("move", reply.UCI),
			zap.Int64("nodes", reply.Nodes),
			zap.Int64("think_ms", reply.ThinkMS),
		)
	}

	if payload.finished() {
		if err := s.completeGame(ctx, identity, payload, summary); err != nil {
			return nil, err
		}
		if summary.Bot != nil {
			s.events.Publish(Event{Type: EventBotMoved, PlayerHash: identity.PlayerHash, SessionUUID: sessionUUID, Move: summary.Bot, State: summary.State})
		}
		return summary, nil
	}

	state, err := s.buildState(ctx, identity, payload)
	if err != nil {
		return nil, err
	}
	summary.State = state
	s.events.Publish(Event{Type: EventBotMoved, PlayerHash: identity.PlayerHash, SessionUUID: sessionUUID, Move: summary.Bot, State: state})
	return summary, nil
}

// selectMove bounds the search by the configured timeout. A deep search
// that runs out of time falls back to the greedy tier.
func (s *Service) selectMove(ctx context.Context, pos rules.Position, tier corechess.Tier) (corechess.Decision, bool, error) {
	searchCtx := ctx
	if s.cfg.SearchTimeout > 0 {
		var cancel context.CancelFunc
		searchCtx, cancel = context.WithTimeout(ctx, s.cfg.SearchTimeout)
		defer cancel()
	}
	decision, ok, err := s.engine.SelectMove(searchCtx, pos, tier)
	if err == nil {
		return decision, ok, nil
	}
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		s.logger.Warn("chess search timed out, using greedy move",
			zap.String("tier", tier.String()),
			zap.Duration("timeout", s.cfg.SearchTimeout),
		)
		return s.engine.SelectMove(ctx, pos, corechess.TierGreedy)
	}
	return corechess.Decision{}, false, fmt.Errorf("select bot move: %w", err)
}

// annotate asks the commentator about the ply at index in the background,
// stores the text on the session and publishes it. Moves never wait on it.
func (s *Service) annotate(identity sessionIdentity, sessionUUID string, ply PlyRecord, index int, desc string) {
	s.pacer.run(func(ctx context.Context) {
		text := s.commentary.Comment(ctx, desc)
		if text == "" || ctx.Err() != nil {
			return
		}
		_, err := cache.Update(ctx, s.cache, s.sessionKey(identity.SessionID), s.cfg.SessionTTL, func(cur *sessionPayload, exists bool) error {
			if !exists || cur.SessionUUID != sessionUUID || index >= len(cur.Plies) || cur.Plies[index].UCI != ply.UCI {
				return errStaleTurn
			}
			cur.Plies[index].Commentary = text
			return nil
		})
		if errors.Is(err, errStaleTurn) {
			return
		}
		if err != nil {
			s.logger.Warn("failed to store chess commentary", zap.Error(err))
			return
		}
		ply.Commentary = text
		s.events.Publish(Event{Type: EventCommentary, PlayerHash: identity.PlayerHash, SessionUUID: sessionUUID, Move: &ply})
	})
}

// completeGame stores the finished game, updates the player's profile and
// publishes game-over. Each session is recorded once.
func (s *Service) completeGame(ctx context.Context, identity sessionIdentity, payload *sessionPayload, summary *MoveSummary) error {
	game, err := replaySession(payload)
	if err != nil {
		return err
	}
	if payload.Method == methodFromOutcome(nchess.Resignation) {
		game.Resign(nchess.White)
	}

	endedAt := payload.UpdatedAt
	if endedAt.IsZero() {
		endedAt = time.Now()
	}
	nodes, think := payload.botTotals()
	record := &domain.ChessGame{
		SessionUUID:  payload.SessionUUID,
		PlayerHash:   identity.PlayerHash,
		RoomHash:     identity.RoomHash,
		Tier:         payload.Tier,
		BotName:      payload.BotName,
		Result:       payload.Result,
		ResultMethod: payload.Method,
		MovesUCI:     payload.movesUCI(),
		MovesSAN:     payload.movesSAN(),
		PGN:          game.String(),
		FinalFEN:     game.FEN(),
		StartedAt:    payload.StartedAt,
		EndedAt:      endedAt,
		Duration:     endedAt.Sub(payload.StartedAt),
		BotNodes:     nodes,
		BotThinkTime: think,
	}

	gameID, err := s.repo.InsertGame(ctx, record)
	fresh := err == nil
	switch {
	case errors.Is(err, ErrDuplicateGame):
		stored, lookupErr := s.repo.GetGameBySession(ctx, payload.SessionUUID, identity.PlayerHash)
		if lookupErr != nil {
			return lookupErr
		}
		if stored != nil {
			gameID = stored.ID
		}
	case err != nil:
		return err
	}

	if fresh {
		profile, err := s.fetchProfile(ctx, identity, false)
		if err != nil && !errors.Is(err, ErrProfileNotFound) {
			return err
		}
		profile, delta := applyGameResult(profile, identity, payload.Tier, outcomeFromResult(payload.Result), endedAt)
		if err := s.repo.UpsertProfile(ctx, profile); err != nil {
			return err
		}
		s.cacheProfile(ctx, identity, profile)
		summary.Profile = profile
		summary.RatingDelta = delta
		s.logger.Info("chess game recorded",
			zap.Int64("game_id", gameID),
			zap.String("session_uuid", payload.SessionUUID),
			zap.String("result", payload.Result),
			zap.String("method", payload.Method),
			zap.Int("rating_delta", delta),
		)
	}

	payload.GameID = gameID
	_, err = cache.Update(ctx, s.cache, s.sessionKey(identity.SessionID), s.cfg.SessionTTL, func(cur *sessionPayload, exists bool) error {
		if !exists || cur.SessionUUID != payload.SessionUUID || cur.GameID == gameID {
			return cache.ErrNoChange
		}
		cur.GameID = gameID
		return nil
	})
	if err != nil {
		s.logger.Warn("failed to store chess game id", zap.Error(err))
	}

	state, err := s.buildState(ctx, identity, payload)
	if err != nil {
		return err
	}
	state.RatingDelta = summary.RatingDelta
	if summary.Profile != nil {
		state.Profile = summary.Profile
	}
	summary.State = state
	summary.Finished = true
	summary.GameID = gameID
	s.events.Publish(Event{Type: EventGameOver, PlayerHash: identity.PlayerHash, SessionUUID: payload.SessionUUID, State: state})
	return nil
}

func outcomeFromResult(result string) nchess.Outcome {
	switch result {
	case resultFromOutcome(nchess.WhiteWon):
		return nchess.WhiteWon
	case resultFromOutcome(nchess.BlackWon):
		return nchess.BlackWon
	default:
		return nchess.Draw
	}
}
