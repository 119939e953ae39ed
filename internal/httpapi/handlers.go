package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/park285/chessbattle/internal/adapter/chesspresenter"
	corechess "github.com/park285/chessbattle/internal/chess"
	"github.com/park285/chessbattle/internal/chess/rules"
	svc "github.com/park285/chessbattle/internal/service/chess"
	"github.com/park285/chessbattle/pkg/chessdto"
	"go.uber.org/zap"
)

var statusByCode = map[string]int{
	"session_not_found":   http.StatusNotFound,
	"session_in_progress": http.StatusConflict,
	"invalid_move":        http.StatusUnprocessableEntity,
	"invalid_square":      http.StatusBadRequest,
	"invalid_position":    http.StatusBadRequest,
	"not_player_turn":     http.StatusConflict,
	"not_bot_turn":        http.StatusConflict,
	"undo_unavailable":    http.StatusConflict,
	"game_finished":       http.StatusConflict,
	"game_not_found":      http.StatusNotFound,
	"profile_not_found":   http.StatusNotFound,
}

func (s *Server) fail(c *gin.Context, err error) {
	body := s.format.Error(err)
	status, ok := statusByCode[body.Code]
	if !ok {
		status = http.StatusInternalServerError
		if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusGatewayTimeout
		}
		s.logger.Error("chess request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, body)
}

func (s *Server) badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, chessdto.DomainError{
		Code:    "bad_request",
		Message: s.format.BadRequest() + " " + err.Error(),
	})
}

func (s *Server) ctx(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), s.opts.RequestTimeout)
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) help(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": s.format.Help(), "tiers": tierNames()})
}

func (s *Server) startSession(c *gin.Context) {
	var req chessdto.StartSessionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			s.badRequest(c, err)
			return
		}
	}
	ctx, cancel := s.ctx(c)
	defer cancel()

	state, err := s.chess.StartSession(ctx, metaFrom(c), svc.StartOptions{Tier: req.Tier, FEN: req.FEN})
	resumed := errors.Is(err, svc.ErrSessionInProgress) && state != nil
	if err != nil && !resumed {
		s.fail(c, err)
		return
	}
	dto := chesspresenter.ToDTOState(state)
	status := http.StatusCreated
	if resumed {
		status = http.StatusOK
	}
	c.JSON(status, chessdto.StartSessionResponse{State: dto, Resumed: resumed, Message: s.format.Start(dto, resumed)})
}

func (s *Server) status(c *gin.Context) {
	ctx, cancel := s.ctx(c)
	defer cancel()
	state, err := s.chess.Status(ctx, metaFrom(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	dto := chesspresenter.ToDTOState(state)
	c.JSON(http.StatusOK, chessdto.StateResponse{State: dto, Message: s.format.Status(dto)})
}

func (s *Server) play(c *gin.Context) {
	var req chessdto.PlayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}
	ctx, cancel := s.ctx(c)
	defer cancel()
	summary, err := s.chess.Play(ctx, metaFrom(c), req.Move)
	if err != nil {
		s.fail(c, err)
		return
	}
	dto := chesspresenter.ToDTOMoveSummary(summary)
	c.JSON(http.StatusOK, chessdto.PlayResponse{Summary: dto, Message: s.format.Move(dto)})
}

func (s *Server) botTurn(c *gin.Context) {
	ctx, cancel := s.ctx(c)
	defer cancel()
	summary, err := s.chess.BotTurn(ctx, metaFrom(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	dto := chesspresenter.ToDTOMoveSummary(summary)
	c.JSON(http.StatusOK, chessdto.PlayResponse{Summary: dto, Message: s.format.Move(dto)})
}

func (s *Server) targets(c *gin.Context) {
	ctx, cancel := s.ctx(c)
	defer cancel()
	targets, err := s.chess.LegalTargets(ctx, metaFrom(c), c.Param("square"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, chesspresenter.ToDTOTargets(targets))
}

func (s *Server) stateAction(c *gin.Context, action func(context.Context, svc.SessionMeta) (*svc.SessionState, error), message func(*chessdto.SessionState) string) {
	ctx, cancel := s.ctx(c)
	defer cancel()
	state, err := action(ctx, metaFrom(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	dto := chesspresenter.ToDTOState(state)
	c.JSON(http.StatusOK, chessdto.StateResponse{State: dto, Message: message(dto)})
}

func (s *Server) undo(c *gin.Context)    { s.stateAction(c, s.chess.Undo, s.format.Undo) }
func (s *Server) newGame(c *gin.Context) { s.stateAction(c, s.chess.NewGame, s.format.NewGame) }
func (s *Server) resign(c *gin.Context)  { s.stateAction(c, s.chess.Resign, s.format.Resign) }

func (s *Server) setTier(c *gin.Context) {
	var req chessdto.TierRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}
	s.stateAction(c, func(ctx context.Context, meta svc.SessionMeta) (*svc.SessionState, error) {
		return s.chess.SetTier(ctx, meta, req.Tier)
	}, s.format.Tier)
}

func (s *Server) board(c *gin.Context) {
	ctx, cancel := s.ctx(c)
	defer cancel()
	data, err := s.chess.BoardPNG(ctx, metaFrom(c), c.Query("select"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/png", data)
}

func (s *Server) history(c *gin.Context) {
	limit := 0
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.badRequest(c, errors.New("limit must be a positive integer"))
			return
		}
		limit = n
	}
	ctx, cancel := s.ctx(c)
	defer cancel()
	games, err := s.chess.History(ctx, metaFrom(c), limit)
	if err != nil {
		s.fail(c, err)
		return
	}
	dtos := chesspresenter.ToDTOGames(games)
	for _, g := range dtos {
		g.Summary = s.format.HistoryItem(g)
	}
	c.JSON(http.StatusOK, chessdto.HistoryResponse{Games: dtos})
}

func (s *Server) game(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		s.badRequest(c, errors.New("game id must be a positive integer"))
		return
	}
	ctx, cancel := s.ctx(c)
	defer cancel()
	game, err := s.chess.Game(ctx, metaFrom(c), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, chessdto.GameResponse{Game: chesspresenter.ToDTOGame(game)})
}

func (s *Server) profile(c *gin.Context) {
	ctx, cancel := s.ctx(c)
	defer cancel()
	profile, err := s.chess.Profile(ctx, metaFrom(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	dto := chesspresenter.ToDTOProfile(profile)
	c.JSON(http.StatusOK, chessdto.ProfileResponse{Profile: dto, Message: s.format.Profile(dto)})
}

// moveCheck runs the engine on an arbitrary position without touching any
// session.
func (s *Server) moveCheck(c *gin.Context) {
	if s.engine == nil {
		c.AbortWithStatusJSON(http.StatusNotImplemented, chessdto.DomainError{Code: "unavailable", Message: "move check is disabled"})
		return
	}
	var req chessdto.MoveCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}
	pos, err := rules.ParseFEN(req.FEN)
	if err != nil {
		s.fail(c, svc.ErrInvalidPosition)
		return
	}
	tier, ok := corechess.ParseTier(req.Tier)
	if !ok && strings.TrimSpace(req.Tier) != "" {
		s.logger.Warn("unknown chess tier, using random", zap.String("tier", req.Tier))
	}
	ctx, cancel := s.ctx(c)
	defer cancel()
	decision, found, err := s.engine.SelectMove(ctx, pos, tier)
	if err != nil {
		s.fail(c, err)
		return
	}
	resp := chessdto.MoveCheckResponse{
		Tier:    decision.Tier.String(),
		Score:   decision.Score,
		Nodes:   decision.Stats.Nodes,
		Cutoffs: decision.Stats.Cutoffs,
		ThinkMS: decision.Duration.Milliseconds(),
		NoMove:  !found,
	}
	if found {
		resp.Move = decision.Move.UCI()
		resp.SAN = pos.SAN(decision.Move)
	}
	c.JSON(http.StatusOK, resp)
}

func tierNames() []string {
	tiers := corechess.Tiers()
	out := make([]string, 0, len(tiers))
	for _, t := range tiers {
		out = append(out, t.String())
	}
	return out
}
