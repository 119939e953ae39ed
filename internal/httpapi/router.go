// Package httpapi exposes the chess service over HTTP and a websocket event
// stream.
package httpapi

import (
	"context"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/park285/chessbattle/internal/adapter/chesspresenter"
	corechess "github.com/park285/chessbattle/internal/chess"
	"github.com/park285/chessbattle/internal/chess/rules"
	"github.com/park285/chessbattle/internal/domain"
	svc "github.com/park285/chessbattle/internal/service/chess"
	"go.uber.org/zap"
)

// ChessService is the part of *svc.Service the handlers use.
type ChessService interface {
	StartSession(ctx context.Context, meta svc.SessionMeta, opts svc.StartOptions) (*svc.SessionState, error)
	Status(ctx context.Context, meta svc.SessionMeta) (*svc.SessionState, error)
	LegalTargets(ctx context.Context, meta svc.SessionMeta, square string) (*svc.LegalTargets, error)
	Play(ctx context.Context, meta svc.SessionMeta, move string) (*svc.MoveSummary, error)
	BotTurn(ctx context.Context, meta svc.SessionMeta) (*svc.MoveSummary, error)
	Undo(ctx context.Context, meta svc.SessionMeta) (*svc.SessionState, error)
	NewGame(ctx context.Context, meta svc.SessionMeta) (*svc.SessionState, error)
	Resign(ctx context.Context, meta svc.SessionMeta) (*svc.SessionState, error)
	SetTier(ctx context.Context, meta svc.SessionMeta, tier string) (*svc.SessionState, error)
	History(ctx context.Context, meta svc.SessionMeta, limit int) ([]*domain.ChessGame, error)
	Game(ctx context.Context, meta svc.SessionMeta, id int64) (*domain.ChessGame, error)
	Profile(ctx context.Context, meta svc.SessionMeta) (*domain.ChessProfile, error)
	BoardPNG(ctx context.Context, meta svc.SessionMeta, selected string) ([]byte, error)
	Subscribe(meta svc.SessionMeta) (<-chan svc.Event, func())
}

// MoveSelector serves the session-less move check endpoint.
type MoveSelector interface {
	SelectMove(ctx context.Context, pos rules.Position, tier corechess.Tier) (corechess.Decision, bool, error)
}

type Options struct {
	CORSOrigins    []string
	RequestTimeout time.Duration
	PingInterval   time.Duration
	Logger         *zap.Logger
}

type Server struct {
	chess     ChessService
	engine    MoveSelector
	presenter *chesspresenter.Presenter
	format    *chesspresenter.Formatter
	opts      Options
	logger    *zap.Logger
}

func NewServer(chess ChessService, engine MoveSelector, presenter *chesspresenter.Presenter, opts Options) *Server {
	if presenter == nil {
		presenter = chesspresenter.NewPresenter(nil)
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = 30 * time.Second
	}
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}
	return &Server{
		chess:     chess,
		engine:    engine,
		presenter: presenter,
		format:    presenter.Formatter(),
		opts:      opts,
		logger:    opts.Logger,
	}
}

// Router builds the gin engine.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(s.logger))
	router.Use(cors.New(cors.Config{
		AllowOrigins: s.opts.CORSOrigins,
		AllowMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", headerRoom, headerPlayer, headerSession},
		MaxAge:       12 * time.Hour,
	}))

	router.GET("/health", s.health)

	api := router.Group("/api/chess")
	api.GET("/help", s.help)
	api.POST("/movecheck", s.moveCheck)

	player := api.Group("/")
	player.Use(requireMeta())
	player.POST("/session", s.startSession)
	player.GET("/session", s.status)
	player.POST("/move", s.play)
	player.POST("/bot", s.botTurn)
	player.GET("/targets/:square", s.targets)
	player.POST("/undo", s.undo)
	player.POST("/new", s.newGame)
	player.POST("/resign", s.resign)
	player.PUT("/tier", s.setTier)
	player.GET("/board.png", s.board)
	player.GET("/history", s.history)
	player.GET("/games/:id", s.game)
	player.GET("/profile", s.profile)
	player.GET("/events", s.events)

	return router
}
