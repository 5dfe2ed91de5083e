package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"taskmanager/internal/config"
)

const defaultDialTimeout = 5 * time.Second

// NewRedisClient connects the shared key-value store used for token
// revocation, rate limiting and the notification stream.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig, logger zerolog.Logger) (*redis.Client, error) {
	client := redis.NewClient(options(cfg))

	dial := cfg.DialTimeout
	if dial <= 0 {
		dial = defaultDialTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, dial)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}

	logger.Info().
		Str("addr", cfg.Addr).
		Int("db", cfg.DB).
		Int("pool_size", client.Options().PoolSize).
		Msg("redis connected")
	return client, nil
}

// zero values fall through to go-redis defaults
func options(cfg config.RedisConfig) *redis.Options {
	return &redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
}
