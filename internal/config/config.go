package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	_ "github.com/joho/godotenv/autoload"
)

type AppConfig struct {
	HTTPAddr    string
	CORSOrigins []string

	RedisURL    string
	DatabaseURL string

	ChessDefaultTier   string
	ChessTierAliases   string
	ChessSearchDepth   int
	ChessSearchWorkers int
	ChessSearchTimeout time.Duration
	ChessThinkDelay    time.Duration
	ChessSessionTTL    time.Duration
	ChessHistoryLimit  int
	ChessBotNames      []string
	ChessEngineSeed    int64
	ChessEngineSeedSet bool

	CommentaryURL     string
	CommentaryAPIKey  string
	CommentaryModel   string
	CommentaryTimeout time.Duration
	CommentaryRetry   int

	MessagesDir string
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		HTTPAddr:           ":8080",
		CORSOrigins:        []string{"*"},
		ChessDefaultTier:   "greedy",
		ChessSearchDepth:   3,
		ChessSearchWorkers: 1,
		ChessThinkDelay:    3500 * time.Millisecond,
		ChessSessionTTL:    time.Hour,
		ChessHistoryLimit:  10,
		CommentaryTimeout:  4 * time.Second,
		CommentaryRetry:    2,
	}

	if v := env("HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}
	if list := splitList(env("CORS_ALLOWED_ORIGINS")); len(list) > 0 {
		cfg.CORSOrigins = list
	}

	cfg.RedisURL = env("REDIS_URL")
	cfg.DatabaseURL = env("DATABASE_URL")

	if v := env("CHESS_DEFAULT_TIER"); v != "" {
		cfg.ChessDefaultTier = v
	}
	cfg.ChessTierAliases = env("CHESS_TIER_ALIASES")
	if n, ok := positiveInt("CHESS_SEARCH_DEPTH"); ok {
		cfg.ChessSearchDepth = n
	}
	if n, ok := positiveInt("CHESS_SEARCH_WORKERS"); ok {
		cfg.ChessSearchWorkers = n
	}
	if d, ok := millis("CHESS_SEARCH_TIMEOUT_MS"); ok {
		cfg.ChessSearchTimeout = d
	}
	if d, ok := millis("CHESS_THINK_DELAY_MS"); ok {
		cfg.ChessThinkDelay = d
	}
	// 초 단위 정수 또는 "90m" 같은 duration 모두 허용
	if v := env("CHESS_SESSION_TTL"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return nil, fmt.Errorf("CHESS_SESSION_TTL: %w", err)
		}
		cfg.ChessSessionTTL = d
	}
	if n, ok := positiveInt("CHESS_HISTORY_LIMIT"); ok {
		cfg.ChessHistoryLimit = n
	}
	cfg.ChessBotNames = splitList(env("CHESS_BOT_NAMES"))
	if v := env("CHESS_ENGINE_SEED"); v != "" {
		seed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("CHESS_ENGINE_SEED: %w", err)
		}
		cfg.ChessEngineSeed = seed
		cfg.ChessEngineSeedSet = true
	}

	cfg.CommentaryURL = env("COMMENTARY_API_URL")
	cfg.CommentaryAPIKey = env("COMMENTARY_API_KEY")
	if cfg.CommentaryAPIKey == "" {
		cfg.CommentaryAPIKey = env("OPENAI_API_KEY")
	}
	cfg.CommentaryModel = env("COMMENTARY_MODEL")
	if d, ok := millis("COMMENTARY_TIMEOUT_MS"); ok && d > 0 {
		cfg.CommentaryTimeout = d
	}
	if v := env("COMMENTARY_RETRY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.CommentaryRetry = n
		}
	}

	cfg.MessagesDir = env("MESSAGES_DIR")

	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	return cfg, nil
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func positiveInt(key string) (int, bool) {
	v := env(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func millis(key string) (time.Duration, bool) {
	v := env(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, false
	}
	return time.Duration(n) * time.Millisecond, true
}

func parseSeconds(v string) (time.Duration, error) {
	if n, err := strconv.Atoi(v); err == nil {
		if n <= 0 {
			return 0, fmt.Errorf("must be positive, got %d", n)
		}
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("must be positive, got %s", d)
	}
	return d, nil
}
