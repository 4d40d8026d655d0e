package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/airesearcher/frontend/pkg/response"
)

// RateLimiter counts requests per client IP in Redis. When Redis is nil or
// failing, an in-process token bucket per IP applies the same budget.
type RateLimiter struct {
	redis  *redis.Client
	logger *slog.Logger

	mu    sync.Mutex
	local map[string]*rate.Limiter
}

func NewRateLimiter(redisClient *redis.Client, logger *slog.Logger) *RateLimiter {
	return &RateLimiter{
		redis:  redisClient,
		logger: logger,
		local:  make(map[string]*rate.Limiter),
	}
}

// Limit creates a rate limiting middleware. Requests for which skip returns
// true are not counted.
func (rl *RateLimiter) Limit(keyPrefix string, maxRequests int, window time.Duration, skip func(*fiber.Ctx) bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if maxRequests <= 0 || (skip != nil && skip(c)) {
			return c.Next()
		}

		ip := c.IP()
		key := fmt.Sprintf("ratelimit:%s:%s", keyPrefix, ip)

		if rl.redis != nil {
			allowed, remaining, retryAfter, err := rl.redisAllow(c.Context(), key, maxRequests, window)
			if err == nil {
				if !allowed {
					c.Set("Retry-After", fmt.Sprintf("%d", int(retryAfter.Seconds())))
					return response.RateLimited(c)
				}
				c.Set("X-RateLimit-Limit", fmt.Sprintf("%d", maxRequests))
				c.Set("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))
				return c.Next()
			}
			rl.logger.Warn("rate limiter redis unavailable, using local limiter", "error", err)
		}

		if !rl.localLimiter(key, maxRequests, window).Allow() {
			return response.RateLimited(c)
		}
		c.Set("X-RateLimit-Limit", fmt.Sprintf("%d", maxRequests))
		return c.Next()
	}
}

// StartLimit limits job creation, POST /api/research and /api/research/start
func (rl *RateLimiter) StartLimit(maxPerHour int) fiber.Handler {
	return rl.Limit("start", maxPerHour, time.Hour, func(c *fiber.Ctx) bool {
		if c.Method() != fiber.MethodPost {
			return true
		}
		path := c.Params("*")
		return path != "research" && path != "research/start"
	})
}

func (rl *RateLimiter) redisAllow(ctx context.Context, key string, maxRequests int, window time.Duration) (bool, int, time.Duration, error) {
	count, err := rl.redis.Incr(ctx, key).Result()
	if err != nil {
		return false, 0, 0, err
	}

	// Set expiration on first request
	if count == 1 {
		rl.redis.Expire(ctx, key, window)
	}

	if count > int64(maxRequests) {
		ttl, _ := rl.redis.TTL(ctx, key).Result()
		return false, 0, ttl, nil
	}
	return true, maxRequests - int(count), 0, nil
}

func (rl *RateLimiter) localLimiter(key string, maxRequests int, window time.Duration) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	l, ok := rl.local[key]
	if !ok {
		l = rate.NewLimiter(rate.Every(window/time.Duration(maxRequests)), maxRequests)
		rl.local[key] = l
	}
	return l
}
