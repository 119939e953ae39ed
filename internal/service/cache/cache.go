// Package cache stores JSON documents in Redis with a TTL.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var (
	// ErrConflict is returned when Update keeps losing the WATCH race.
	ErrConflict = errors.New("cache: concurrent update")
	// ErrNoChange aborts an Update without writing and without error.
	ErrNoChange = errors.New("cache: no change")
)

const maxUpdateAttempts = 5

type CacheConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	PoolSize int
}

func (c CacheConfig) addr() string {
	port := c.Port
	if port == 0 {
		port = 6379
	}
	return net.JoinHostPort(c.Host, strconv.Itoa(port))
}

type CacheService struct {
	rdb    *redis.Client
	logger *zap.Logger
}

func NewCacheService(cfg CacheConfig, logger *zap.Logger) (*CacheService, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("redis host required")
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewFromClient(rdb, logger), nil
}

// NewFromClient wraps an existing client; Close closes it.
func NewFromClient(rdb *redis.Client, logger *zap.Logger) *CacheService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheService{rdb: rdb, logger: logger}
}

func (c *CacheService) Client() *redis.Client { return c.rdb }

func (c *CacheService) Close() error {
	if c == nil || c.rdb == nil {
		return nil
	}
	return c.rdb.Close()
}

func (c *CacheService) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Get decodes the value at key into dst. A missing key is not an error and
// leaves dst untouched.
func (c *CacheService) Get(ctx context.Context, key string, dst any) error {
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("cache get %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		c.logger.Warn("cache payload decode failed", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("cache decode %s: %w", key, err)
	}
	return nil
}

func (c *CacheService) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache encode %s: %w", key, err)
	}
	if err := c.rdb.Set(ctx, key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	return nil
}

func (c *CacheService) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.rdb.Del(ctx, keys...).Err()
}

func (c *CacheService) Exists(ctx context.Context, key string) (bool, error) {
	n, err := c.rdb.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Update runs fn against the current value of key inside WATCH/MULTI and
// writes the result back with ttl. fn receives a fresh value on every attempt
// and exists=false when the key is absent. Returning ErrNoChange skips the
// write; any other error aborts the update and is returned as is.
func Update[T any](ctx context.Context, c *CacheService, key string, ttl time.Duration, fn func(cur *T, exists bool) error) (*T, error) {
	var out *T
	txf := func(tx *redis.Tx) error {
		cur := new(T)
		exists := true
		raw, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
			exists = false
		case err != nil:
			return err
		default:
			if jerr := json.Unmarshal(raw, cur); jerr != nil {
				return fmt.Errorf("cache decode %s: %w", key, jerr)
			}
		}

		if err := fn(cur, exists); err != nil {
			if errors.Is(err, ErrNoChange) {
				out = cur
				return nil
			}
			return err
		}

		encoded, err := json.Marshal(cur)
		if err != nil {
			return fmt.Errorf("cache encode %s: %w", key, err)
		}
		pipe := tx.TxPipeline()
		pipe.Set(ctx, key, encoded, ttl)
		if _, err := pipe.Exec(ctx); err != nil {
			return err
		}
		out = cur
		return nil
	}

	for attempt := 1; attempt <= maxUpdateAttempts; attempt++ {
		err := c.rdb.Watch(ctx, txf, key)
		if err == nil {
			return out, nil
		}
		if !errors.Is(err, redis.TxFailedErr) {
			return nil, err
		}
		c.logger.Debug("cache update retry", zap.String("key", key), zap.Int("attempt", attempt))
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
	return nil, ErrConflict
}
