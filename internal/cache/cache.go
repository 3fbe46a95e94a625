// Package cache holds the statistics cache shared by the API replicas.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/schemajeli/schemajeli/internal/config"
	"github.com/schemajeli/schemajeli/internal/types"
)

const keyPrefix = "schemajeli:stats:"

type StatsCache interface {
	Get(ctx context.Context, key string) (*types.Stats, bool, error)
	Set(ctx context.Context, key string, stats *types.Stats) error
	Invalidate(ctx context.Context, keys ...string) error
}

// Noop is used when the cache is disabled; every lookup misses.
type Noop struct{}

func (Noop) Get(context.Context, string) (*types.Stats, bool, error) { return nil, false, nil }
func (Noop) Set(context.Context, string, *types.Stats) error         { return nil }
func (Noop) Invalidate(context.Context, ...string) error             { return nil }

type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis connects to Redis and pings it before returning.
func NewRedis(ctx context.Context, cfg config.Cache) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		MaxRetries:   3,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.RedisAddr, err)
	}

	return &Redis{client: client, ttl: cfg.TTL}, nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *Redis) Get(ctx context.Context, key string) (*types.Stats, bool, error) {
	raw, err := r.client.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var stats types.Stats
	if err := json.Unmarshal(raw, &stats); err != nil {
		return nil, false, fmt.Errorf("corrupt cached stats for %s: %w", key, err)
	}
	return &stats, true, nil
}

func (r *Redis) Set(ctx context.Context, key string, stats *types.Stats) error {
	raw, err := json.Marshal(stats)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, keyPrefix+key, raw, r.ttl).Err()
}

func (r *Redis) Invalidate(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = keyPrefix + k
	}
	return r.client.Del(ctx, full...).Err()
}
