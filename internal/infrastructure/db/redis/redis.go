// Package redis holds the Redis connection and the update deduplication
// store built on it. Redis is optional: when no address is configured the
// dispatcher runs without dedup.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const connectTimeout = 5 * time.Second

// Config captures the settings for the dedup Redis instance.
type Config struct {
	Addr string
	DB   int
	// Timeout bounds the connectivity check; connectTimeout when zero.
	Timeout time.Duration
}

// Connect initialises a Redis client and validates connectivity with a ping,
// so a misconfigured address fails at startup instead of on the first update.
func Connect(ctx context.Context, cfg Config) (*redis.Client, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = connectTimeout
	}

	client := redis.NewClient(&redis.Options{
		Addr: cfg.Addr,
		DB:   cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return client, nil
}
