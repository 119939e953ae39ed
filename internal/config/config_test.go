package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":8080" || cfg.ChessDefaultTier != "greedy" || cfg.ChessSearchDepth != 3 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.ChessThinkDelay != 3500*time.Millisecond || cfg.ChessSessionTTL != time.Hour {
		t.Fatalf("unexpected timing defaults: %+v", cfg)
	}
	if cfg.DatabaseURL != "" || cfg.ChessEngineSeedSet {
		t.Fatalf("unexpected optional values: %+v", cfg)
	}
}

func TestLoadRequiresRedis(t *testing.T) {
	t.Setenv("REDIS_URL", "")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error without REDIS_URL")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("REDIS_URL", "redis://cache:6379/1")
	t.Setenv("CHESS_DEFAULT_TIER", "hard")
	t.Setenv("CHESS_TIER_ALIASES", "novice=easy")
	t.Setenv("CHESS_SEARCH_WORKERS", "4")
	t.Setenv("CHESS_SEARCH_TIMEOUT_MS", "750")
	t.Setenv("CHESS_THINK_DELAY_MS", "0")
	t.Setenv("CHESS_SESSION_TTL", "90m")
	t.Setenv("CHESS_BOT_NAMES", "Ada, Boris ,")
	t.Setenv("CHESS_ENGINE_SEED", "42")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("CHESS_SEARCH_DEPTH", "-2")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ChessDefaultTier != "hard" || cfg.ChessTierAliases != "novice=easy" || cfg.ChessSearchWorkers != 4 {
		t.Fatalf("unexpected chess values: %+v", cfg)
	}
	if cfg.ChessSearchTimeout != 750*time.Millisecond || cfg.ChessThinkDelay != 0 || cfg.ChessSessionTTL != 90*time.Minute {
		t.Fatalf("unexpected durations: %+v", cfg)
	}
	if len(cfg.ChessBotNames) != 2 || cfg.ChessBotNames[1] != "Boris" {
		t.Fatalf("unexpected bot names: %v", cfg.ChessBotNames)
	}
	if !cfg.ChessEngineSeedSet || cfg.ChessEngineSeed != 42 {
		t.Fatalf("unexpected seed: %+v", cfg)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CommentaryAPIKey != "sk-test" {
		t.Fatalf("unexpected http values: %+v", cfg)
	}
	if cfg.ChessSearchDepth != 3 {
		t.Fatalf("invalid depth should keep default, got %d", cfg.ChessSearchDepth)
	}
}

func TestLoadRejectsBadTTL(t *testing.T) {
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("CHESS_SESSION_TTL", "-5")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for negative TTL")
	}
}
