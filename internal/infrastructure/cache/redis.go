package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"BoardWriter/internal/config"
	"BoardWriter/internal/domain"
	xerrors "BoardWriter/internal/errors"
	"BoardWriter/internal/ports"
)

// RedisCache keeps search results in Redis as JSON strings.
type RedisCache struct {
	client *redis.Client
}

var _ ports.SearchCache = (*RedisCache)(nil)

// NewRedisCache connects to Redis and verifies the connection with PING.
func NewRedisCache(ctx context.Context, cfg config.RedisConfig) (*RedisCache, error) {
	if cfg.Addr == "" {
		return nil, xerrors.New(xerrors.CodeConfig, "redis address must not be empty")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, xerrors.Wrap(xerrors.CodeTransport, err, "connect to redis "+cfg.Addr)
	}
	return &RedisCache{client: client}, nil
}

// NewRedisCacheWithClient wraps an existing client without pinging it.
func NewRedisCacheWithClient(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// Get returns cached results; a missing key is not an error.
func (c *RedisCache) Get(ctx context.Context, key string) ([]domain.SearchResult, bool, error) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, xerrors.Wrap(xerrors.CodeTransport, err, "redis get")
	}
	var results []domain.SearchResult
	if err := json.Unmarshal(raw, &results); err != nil {
		return nil, false, fmt.Errorf("decode cached results: %w", err)
	}
	return results, true, nil
}

// Set stores results under key. A zero ttl keeps the entry forever.
func (c *RedisCache) Set(ctx context.Context, key string, results []domain.SearchResult, ttl time.Duration) error {
	raw, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("encode results: %w", err)
	}
	if err := c.client.Set(ctx, key, raw, ttl).Err(); err != nil {
		return xerrors.Wrap(xerrors.CodeTransport, err, "redis set")
	}
	return nil
}

// Close releases the connection pool.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
