package limiters

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrRequestRateLimited = errors.New("request rate limited")
	ErrRequestUnavailable = errors.New("request limiter unavailable")
)

// RequestLimiterConfig holds a fixed-window budget.
type RequestLimiterConfig struct {
	MaxRequests int
	Window      time.Duration
}

// RequestLimiter caps how many provider-bound requests a key (an identity
// or a client origin) may issue per fixed window. It counts every request,
// not only failures.
type RequestLimiter struct {
	redis       redis.UniversalClient
	prefix      string
	maxRequests int64
	window      time.Duration
}

// NewRequestLimiter returns nil when the budget is not positive; a nil
// limiter allows everything.
func NewRequestLimiter(redisClient redis.UniversalClient, prefix string, cfg RequestLimiterConfig) *RequestLimiter {
	if cfg.MaxRequests <= 0 || cfg.Window <= 0 {
		return nil
	}
	return &RequestLimiter{
		redis:       redisClient,
		prefix:      prefix,
		maxRequests: int64(cfg.MaxRequests),
		window:      cfg.Window,
	}
}

func (l *RequestLimiter) key(k string) string {
	return l.prefix + ":" + k
}

// Allow consumes one request from the budget of k.
func (l *RequestLimiter) Allow(ctx context.Context, k string) error {
	if l == nil || k == "" {
		return nil
	}

	count, err := l.redis.Incr(ctx, l.key(k)).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRequestUnavailable, err)
	}
	if count == 1 {
		if err := l.redis.Expire(ctx, l.key(k), l.window).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrRequestUnavailable, err)
		}
	}
	if count > l.maxRequests {
		return ErrRequestRateLimited
	}
	return nil
}

func (l *RequestLimiter) Reset(ctx context.Context, k string) error {
	if l == nil || k == "" {
		return nil
	}
	if err := l.redis.Del(ctx, l.key(k)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRequestUnavailable, err)
	}
	return nil
}
