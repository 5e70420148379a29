package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// FailPolicy defines the behavior when the rate limit store (Redis) is unavailable.
type FailPolicy int

const (
	// FailOpen allows the request to proceed if Redis is unavailable.
	FailOpen FailPolicy = iota
	// FailClosed blocks the request (503 Service Unavailable) if Redis is unavailable.
	FailClosed
)

var errNoRateLimitStore = errors.New("rate limit store unavailable")

// Quota is the outcome of counting one request against a fixed window.
type Quota struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetIn   time.Duration
}

// RateLimiter counts requests per resource and caller in fixed Redis windows.
type RateLimiter struct {
	rdb      *redis.Client
	disabled bool
}

// NewRateLimiter builds a limiter for the given environment. Counting is
// skipped in test, development and stress environments so local and load
// test workflows are not throttled.
func NewRateLimiter(rdb *redis.Client, env string) *RateLimiter {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "", "test", "development", "stress":
		return &RateLimiter{rdb: rdb, disabled: true}
	}
	return &RateLimiter{rdb: rdb}
}

// Check counts one request for id against resource. The window starts with
// the first request and the key expires with it.
func (l *RateLimiter) Check(ctx context.Context, resource, id string, limit int, window time.Duration) (Quota, error) {
	if l == nil || l.disabled {
		return Quota{Allowed: true, Limit: limit, Remaining: limit}, nil
	}
	if l.rdb == nil {
		return Quota{}, errNoRateLimitStore
	}

	key := fmt.Sprintf("rl:%s:%s", resource, id)

	var incr *redis.IntCmd
	var ttl *redis.DurationCmd
	if _, err := l.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		ttl = pipe.PTTL(ctx, key)
		return nil
	}); err != nil {
		return Quota{}, err
	}

	resetIn := ttl.Val()
	// A key without expiry is a fresh window, or one whose EXPIRE was lost.
	if resetIn < 0 {
		if err := l.rdb.PExpire(ctx, key, window).Err(); err != nil {
			return Quota{}, err
		}
		resetIn = window
	}

	count := int(incr.Val())
	return Quota{
		Allowed:   count <= limit,
		Limit:     limit,
		Remaining: max(limit-count, 0),
		ResetIn:   resetIn,
	}, nil
}

// Limit returns a Fiber middleware enforcing limit requests per window for
// resource. It keys by authenticated userID when present, otherwise by
// remote IP, and fails open when Redis is unavailable.
func (l *RateLimiter) Limit(resource string, limit int, window time.Duration) fiber.Handler {
	return l.LimitWithPolicy(resource, limit, window, FailOpen)
}

// LimitWithPolicy is Limit with an explicit failure policy.
func (l *RateLimiter) LimitWithPolicy(resource string, limit int, window time.Duration, policy FailPolicy) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := c.UserContext()

		var id string
		if uid, ok := c.Locals("userID").(uint); ok && uid != 0 {
			id = fmt.Sprintf("user:%d", uid)
		} else {
			id = "ip:" + c.IP()
		}

		quota, err := l.Check(ctx, resource, id, limit, window)
		if err != nil {
			if policy == FailClosed {
				Logger.WarnContext(ctx, "rate limit store unavailable, failing closed",
					slog.String("path", c.Path()),
					slog.String("resource", resource),
					slog.String("error", err.Error()),
				)
				return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
					"error": "rate limit unavailable",
				})
			}
			Logger.WarnContext(ctx, "rate limit store unavailable, failing open",
				slog.String("resource", resource),
				slog.String("error", err.Error()),
			)
			return c.Next()
		}

		resetSeconds := strconv.Itoa(int(quota.ResetIn.Round(time.Second).Seconds()))
		c.Set("X-RateLimit-Limit", strconv.Itoa(quota.Limit))
		c.Set("X-RateLimit-Remaining", strconv.Itoa(quota.Remaining))
		c.Set("X-RateLimit-Reset", resetSeconds)

		if !quota.Allowed {
			RateLimitRejections.WithLabelValues(resource).Inc()
			c.Set(fiber.HeaderRetryAfter, resetSeconds)
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "rate limit exceeded",
			})
		}
		return c.Next()
	}
}
