// Package cache provides Redis connection setup and key layout for the engine.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"warden/internal/observability"

	"github.com/redis/go-redis/v9"
)

var client *redis.Client

type metricsHook struct{}

func (h metricsHook) DialHook(next redis.DialHook) redis.DialHook {
	return next
}

func (h metricsHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		err := next(ctx, cmd)
		if err != nil && !errors.Is(err, redis.Nil) {
			observability.RedisErrorRate.WithLabelValues(cmd.Name()).Inc()
		}
		return err
	}
}

func (h metricsHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		err := next(ctx, cmds)
		if err != nil && !errors.Is(err, redis.Nil) {
			observability.RedisErrorRate.WithLabelValues("pipeline").Inc()
		}
		return err
	}
}

// Options parses either a redis:// URL or a bare host:port address.
func Options(addr string) (*redis.Options, error) {
	if strings.Contains(addr, "://") {
		parsed, err := redis.ParseURL(addr)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_URL %q: %w", addr, err)
		}
		return parsed, nil
	}
	return &redis.Options{Addr: addr}, nil
}

// NewClient builds an instrumented client without touching the package global.
func NewClient(addr string) (*redis.Client, error) {
	opts, err := Options(addr)
	if err != nil {
		return nil, err
	}
	c := redis.NewClient(opts)
	c.AddHook(metricsHook{})
	return c, nil
}

// InitRedis connects the package-level client. Restriction flags, counters
// and streams all depend on Redis, so unlike a pure cache a failed ping is
// returned to the caller.
func InitRedis(addr string) error {
	c, err := NewClient(addr)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return fmt.Errorf("redis ping: %w", err)
	}
	log.Println("Redis connected successfully")
	client = c
	return nil
}

// GetClient returns the current Redis client instance.
func GetClient() *redis.Client {
	return client
}
