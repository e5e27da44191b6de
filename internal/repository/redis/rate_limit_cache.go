package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"booking-service/internal/client"
	"booking-service/internal/util"
)

const rateLimitPrefix = "rate_limit:"

// commander is the subset of client.RedisClient used by this package.
type commander interface {
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error)
	IncrWithExpire(ctx context.Context, key string, expiration time.Duration) (int64, error)
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) (interface{}, error)
}

var _ commander = (*client.RedisClient)(nil)

// RateLimitCache keeps fixed-window counters. The window starts at the first hit.
type RateLimitCache struct {
	client commander
}

func NewRateLimitCache(c commander) *RateLimitCache {
	return &RateLimitCache{client: c}
}

// IncrementCounter records one hit on key and returns the count inside the
// current window.
func (c *RateLimitCache) IncrementCounter(ctx context.Context, key string, window time.Duration) (int, error) {
	count, err := c.client.IncrWithExpire(ctx, rateLimitPrefix+key, window)
	if err != nil {
		util.Error("Failed to increment rate limit counter",
			zap.String("key", key),
			zap.Duration("window", window),
			zap.Error(err))
		return 0, fmt.Errorf("failed to increment rate limit counter: %w", err)
	}

	util.Debug("Rate limit counter incremented",
		zap.String("key", key),
		zap.Int64("count", count))

	return int(count), nil
}

func (c *RateLimitCache) GetCounter(ctx context.Context, key string) (int, error) {
	countStr, err := c.client.Get(ctx, rateLimitPrefix+key)
	if err != nil {
		if errors.Is(err, client.ErrKeyNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get rate limit counter: %w", err)
	}

	count, err := strconv.Atoi(countStr)
	if err != nil {
		return 0, fmt.Errorf("invalid counter format: %w", err)
	}
	return count, nil
}

func (c *RateLimitCache) ResetCounter(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, rateLimitPrefix+key); err != nil {
		return fmt.Errorf("failed to reset rate limit counter: %w", err)
	}
	return nil
}
