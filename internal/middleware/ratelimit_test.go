package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLimiterRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestRateLimiterDisabledOutsideProduction(t *testing.T) {
	for _, env := range []string{"", "test", "development", "stress"} {
		rl := NewRateLimiter(nil, env)
		allowed, _, err := rl.Allow(context.Background(), Limit{Resource: "reports", Max: 1, Window: time.Minute}, "actor:u1")
		require.NoError(t, err, env)
		assert.True(t, allowed, env)
	}
}

func TestRateLimiterNilRedisErrors(t *testing.T) {
	rl := NewRateLimiter(nil, "production")
	allowed, _, err := rl.Allow(context.Background(), ReportLimit, "actor:u1")
	assert.ErrorIs(t, err, errNoRedis)
	assert.False(t, allowed)
}

func TestRateLimiterCountsPerWindow(t *testing.T) {
	mr, rdb := newLimiterRedis(t)
	rl := NewRateLimiter(rdb, "production")
	ctx := context.Background()
	l := Limit{Resource: "reports", Max: 2, Window: time.Minute}

	for i := 0; i < 2; i++ {
		allowed, _, err := rl.Allow(ctx, l, "actor:u1")
		require.NoError(t, err)
		assert.True(t, allowed)
	}
	allowed, reset, err := rl.Allow(ctx, l, "actor:u1")
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Greater(t, reset, time.Duration(0))
	assert.Greater(t, mr.TTL("ratelimit:reports:actor:u1"), time.Duration(0))

	// other actors and resources have their own windows
	allowed, _, err = rl.Allow(ctx, l, "actor:u2")
	require.NoError(t, err)
	assert.True(t, allowed)
	allowed, _, err = rl.Allow(ctx, AppealLimit, "actor:u1")
	require.NoError(t, err)
	assert.True(t, allowed)

	mr.FastForward(2 * time.Minute)
	allowed, _, err = rl.Allow(ctx, l, "actor:u1")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestRateLimiterHandler(t *testing.T) {
	t.Run("limits per actor with retry hint", func(t *testing.T) {
		_, rdb := newLimiterRedis(t)
		rl := NewRateLimiter(rdb, "production")
		app := fiber.New()
		app.Post("/reports", func(c *fiber.Ctx) error {
			c.Locals(ActorLocal, "u1")
			return c.Next()
		}, rl.Handler(Limit{Resource: "reports", Max: 1, Window: time.Minute}), func(c *fiber.Ctx) error {
			return c.SendStatus(fiber.StatusCreated)
		})

		resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/reports", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusCreated, resp.StatusCode)
		_ = resp.Body.Close()

		resp, err = app.Test(httptest.NewRequest(http.MethodPost, "/reports", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
		assert.NotEmpty(t, resp.Header.Get(fiber.HeaderRetryAfter))
		_ = resp.Body.Close()
	})

	t.Run("fail open without redis", func(t *testing.T) {
		rl := NewRateLimiter(nil, "production")
		app := fiber.New()
		app.Post("/reports", rl.Handler(ReportLimit), func(c *fiber.Ctx) error {
			return c.SendStatus(fiber.StatusCreated)
		})
		resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/reports", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusCreated, resp.StatusCode)
		_ = resp.Body.Close()
	})

	t.Run("fail closed without redis", func(t *testing.T) {
		rl := NewRateLimiter(nil, "production")
		app := fiber.New()
		strict := ReportLimit
		strict.FailClosed = true
		app.Post("/reports", rl.Handler(strict), func(c *fiber.Ctx) error {
			return c.SendStatus(fiber.StatusCreated)
		})
		resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/reports", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		_ = resp.Body.Close()
	})
}
