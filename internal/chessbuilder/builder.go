// Package chessbuilder assembles the chess service and its HTTP front end
// from AppConfig.
package chessbuilder

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/park285/chessbattle/internal/adapter/chesspresenter"
	corechess "github.com/park285/chessbattle/internal/chess"
	"github.com/park285/chessbattle/internal/commentary"
	"github.com/park285/chessbattle/internal/config"
	"github.com/park285/chessbattle/internal/httpapi"
	"github.com/park285/chessbattle/internal/msgcat"
	"github.com/park285/chessbattle/internal/service/cache"
	svcchess "github.com/park285/chessbattle/internal/service/chess"
	"go.uber.org/zap"
)

type Deps struct {
	Service *svcchess.Service
	Engine  *corechess.Engine
	Cache   *cache.CacheService
	Repo    svcchess.Repository
	Server  *httpapi.Server

	db *sql.DB
}

// Close releases everything New opened, in reverse order.
func (d *Deps) Close() error {
	if d == nil {
		return nil
	}
	var errs []error
	if d.Service != nil {
		d.Service.Close()
	}
	if d.Cache != nil {
		errs = append(errs, d.Cache.Close())
	}
	if d.db != nil {
		errs = append(errs, d.db.Close())
	}
	return errors.Join(errs...)
}

func New(ctx context.Context, cfg *config.AppConfig, logger *zap.Logger) (deps *Deps, err error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	deps = &Deps{}
	defer func() {
		if err != nil {
			_ = deps.Close()
			deps = nil
		}
	}()

	if err := registerAliases(cfg.ChessTierAliases); err != nil {
		return nil, err
	}
	defaultTier, ok := corechess.ParseTier(cfg.ChessDefaultTier)
	if !ok {
		logger.Warn("unknown default chess tier, using random", zap.String("tier", cfg.ChessDefaultTier))
	}

	engineOpts := []corechess.Option{
		corechess.WithSearchOptions(corechess.SearchOptions{MaxDepth: cfg.ChessSearchDepth, Workers: cfg.ChessSearchWorkers}),
		corechess.WithLogger(logger.Named("engine")),
	}
	if cfg.ChessEngineSeedSet {
		engineOpts = append(engineOpts, corechess.WithSeed(cfg.ChessEngineSeed))
	}
	deps.Engine = corechess.NewEngine(engineOpts...)

	cconf, err := parseRedisURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	deps.Cache, err = cache.NewCacheService(*cconf, logger)
	if err != nil {
		return nil, fmt.Errorf("init cache: %w", err)
	}

	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		logger.Warn("DATABASE_URL not set, game history is kept in memory")
		deps.Repo = svcchess.NewMemoryRepository()
	} else {
		deps.db, err = openPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		deps.Repo = svcchess.NewRepository(deps.db)
	}

	var opts []svcchess.Option
	if strings.TrimSpace(cfg.CommentaryAPIKey) != "" {
		opts = append(opts, svcchess.WithCommentator(commentary.NewClient(cfg.CommentaryURL, cfg.CommentaryAPIKey,
			commentary.WithTimeout(cfg.CommentaryTimeout),
			commentary.WithModel(cfg.CommentaryModel),
			commentary.WithRetry(cfg.CommentaryRetry),
			commentary.WithLogger(logger.Named("commentary")),
		)))
	} else {
		logger.Info("commentary api key not set, commentary disabled")
	}

	deps.Service, err = svcchess.NewService(deps.Engine, deps.Cache, deps.Repo, svcchess.NewSVGBoardRenderer(), svcchess.Config{
		DefaultTier:   defaultTier,
		SessionTTL:    cfg.ChessSessionTTL,
		HistoryLimit:  cfg.ChessHistoryLimit,
		ThinkDelay:    cfg.ChessThinkDelay,
		SearchTimeout: cfg.ChessSearchTimeout,
		BotNames:      cfg.ChessBotNames,
	}, logger, opts...)
	if err != nil {
		return nil, err
	}

	catalog, err := msgcat.New(cfg.MessagesDir)
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}
	presenter := chesspresenter.NewPresenter(chesspresenter.NewFormatter(catalog))
	deps.Server = httpapi.NewServer(deps.Service, deps.Engine, presenter, httpapi.Options{
		CORSOrigins: cfg.CORSOrigins,
		Logger:      logger.Named("http"),
	})
	return deps, nil
}

func registerAliases(raw string) error {
	aliases, err := corechess.ParseTierAliases(raw)
	if err != nil {
		return fmt.Errorf("CHESS_TIER_ALIASES: %w", err)
	}
	for alias, tier := range aliases {
		if err := corechess.RegisterTierAlias(alias, tier); err != nil {
			return fmt.Errorf("CHESS_TIER_ALIASES: %w", err)
		}
	}
	return nil
}

func openPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := svcchess.EnsureSchema(pingCtx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return db, nil
}

func parseRedisURL(raw string) (*cache.CacheConfig, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	port := 6379
	if p := u.Port(); p != "" {
		if port, err = strconv.Atoi(p); err != nil {
			return nil, err
		}
	}
	db := 0
	if p := strings.TrimPrefix(u.Path, "/"); p != "" {
		if db, err = strconv.Atoi(p); err != nil {
			return nil, fmt.Errorf("redis db %q: %w", p, err)
		}
	}
	pass, _ := u.User.Password()
	return &cache.CacheConfig{Host: u.Hostname(), Port: port, Password: pass, DB: db}, nil
}
