package redis

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"hybrid-auth-service/internal/util"
)

const (
	ipRateLimitPrefix = "ip_rate_limit:"
)

// commander is the subset of client.RedisClient used by this package.
type commander interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error)
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) (interface{}, error)
	IncrWithExpire(ctx context.Context, key string, expiration time.Duration) (int64, error)
	TTL(ctx context.Context, key string) (time.Duration, error)
	Del(ctx context.Context, keys ...string) error
}

type RateLimitResult struct {
	Allowed      bool
	CurrentCount int
	Limit        int
	RetryAfter   time.Duration
}

// RateLimitCache is a fixed-window counter per key. The window starts with
// the first hit and is not extended by later hits.
type RateLimitCache struct {
	client commander
	limit  int
	window time.Duration
}

func NewRateLimitCache(client commander, limit int, window time.Duration) *RateLimitCache {
	return &RateLimitCache{client: client, limit: limit, window: window}
}

func (c *RateLimitCache) AllowIP(ctx context.Context, operation, ipAddress string) (RateLimitResult, error) {
	return c.allow(ctx, ipRateLimitPrefix+operation+":"+ipAddress)
}

func (c *RateLimitCache) ResetIP(ctx context.Context, operation, ipAddress string) error {
	key := ipRateLimitPrefix + operation + ":" + ipAddress
	if err := c.client.Del(ctx, key); err != nil {
		return fmt.Errorf("failed to reset rate limit counter: %w", err)
	}
	return nil
}

func (c *RateLimitCache) allow(ctx context.Context, key string) (RateLimitResult, error) {
	count, err := c.client.IncrWithExpire(ctx, key, c.window)
	if err != nil {
		util.Error("Failed to increment rate limit counter",
			zap.String("key", key),
			zap.Error(err))
		return RateLimitResult{}, fmt.Errorf("failed to increment rate limit counter: %w", err)
	}

	result := RateLimitResult{
		Allowed:      int(count) <= c.limit,
		CurrentCount: int(count),
		Limit:        c.limit,
	}
	if result.Allowed {
		return result, nil
	}

	ttl, err := c.client.TTL(ctx, key)
	if err != nil || ttl <= 0 {
		ttl = c.window
	}
	result.RetryAfter = ttl

	util.Debug("Rate limit exceeded",
		zap.String("key", key),
		zap.Int("count", result.CurrentCount),
		zap.Int("limit", c.limit))

	return result, nil
}
