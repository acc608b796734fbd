package middleware

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"warden/internal/cache"
	"warden/internal/models"
	"warden/internal/observability"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// Limit is a fixed-window quota on one write endpoint, counted per actor.
type Limit struct {
	Resource string
	Max      int
	Window   time.Duration
	// FailClosed answers 503 instead of letting the request through when
	// Redis is unavailable.
	FailClosed bool
}

// Quotas for the user-facing write endpoints. Reports are also capped by
// open count in the case service; this only bounds bursts.
var (
	ReportLimit = Limit{Resource: "reports", Max: 10, Window: time.Minute}
	AppealLimit = Limit{Resource: "appeals", Max: 3, Window: 10 * time.Minute}
)

var errNoRedis = errors.New("rate limiter has no redis client")

// RateLimiter enforces Limits in Redis. It is a pass-through outside
// production-like environments so local and load-test runs are not throttled.
type RateLimiter struct {
	rdb     *redis.Client
	enabled bool
}

// NewRateLimiter returns a limiter for env ("test", "development", "stress"
// and "" disable it).
func NewRateLimiter(rdb *redis.Client, env string) *RateLimiter {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "", "test", "development", "stress":
		return &RateLimiter{rdb: rdb}
	}
	return &RateLimiter{rdb: rdb, enabled: true}
}

// Allow counts one hit by subject and reports whether it fits the quota,
// with the time left in the current window.
func (rl *RateLimiter) Allow(ctx context.Context, l Limit, subject string) (bool, time.Duration, error) {
	if !rl.enabled {
		return true, 0, nil
	}
	if rl.rdb == nil {
		return false, 0, errNoRedis
	}

	key := cache.RateLimitKey(l.Resource, subject)
	var incr *redis.IntCmd
	var ttl *redis.DurationCmd
	_, err := rl.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		// SET NX opens the window; INCR keeps its expiry.
		pipe.SetNX(ctx, key, 0, l.Window)
		incr = pipe.Incr(ctx, key)
		ttl = pipe.TTL(ctx, key)
		return nil
	})
	if err != nil {
		observability.RedisErrorRate.WithLabelValues("ratelimit").Inc()
		return false, 0, err
	}
	return incr.Val() <= int64(l.Max), ttl.Val(), nil
}

// Handler applies l to the authenticated actor, or the remote IP when
// AuthRequired did not run.
func (rl *RateLimiter) Handler(l Limit) fiber.Handler {
	return func(c *fiber.Ctx) error {
		subject := "ip:" + c.IP()
		if actor := ActorID(c); actor != "" {
			subject = "actor:" + actor
		}

		allowed, reset, err := rl.Allow(c.UserContext(), l, subject)
		if err != nil {
			Logger.WarnContext(c.UserContext(), "rate limit check failed",
				slog.String("resource", l.Resource),
				slog.String("subject", subject),
				slog.Bool("fail_closed", l.FailClosed),
				slog.String("error", err.Error()),
			)
			if l.FailClosed {
				return c.Status(fiber.StatusServiceUnavailable).JSON(models.ErrorResponse{
					Error: "rate limit unavailable",
					Code:  "RATE_LIMIT_UNAVAILABLE",
				})
			}
			return c.Next()
		}
		if !allowed {
			if reset > 0 {
				c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(reset.Round(time.Second)/time.Second)))
			}
			return c.Status(fiber.StatusTooManyRequests).JSON(models.ErrorResponse{
				Error: "too many " + l.Resource + ", try again later",
				Code:  "RATE_LIMITED",
			})
		}
		return c.Next()
	}
}
