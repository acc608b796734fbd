package restrictions

import (
	"context"
	"time"

	"warden/internal/observability"

	"github.com/redis/go-redis/v9"
)

// FlagStore holds ephemeral restriction flags read on the hot path.
type FlagStore interface {
	// Sync sets every key in set with its TTL and deletes every key in
	// clear, atomically.
	Sync(ctx context.Context, set map[string]time.Duration, clear []string) error
	// Get returns one presence bit per key, in order.
	Get(ctx context.Context, keys []string) ([]bool, error)
}

// RedisFlagStore keeps flags as plain keys with a TTL.
type RedisFlagStore struct {
	client *redis.Client
}

// NewRedisFlagStore wraps a go-redis client.
func NewRedisFlagStore(client *redis.Client) *RedisFlagStore {
	return &RedisFlagStore{client: client}
}

func (s *RedisFlagStore) Sync(ctx context.Context, set map[string]time.Duration, clear []string) error {
	if len(set) == 0 && len(clear) == 0 {
		return nil
	}
	pipe := s.client.TxPipeline()
	for k, ttl := range set {
		pipe.Set(ctx, k, "1", ttl)
	}
	if len(clear) > 0 {
		pipe.Del(ctx, clear...)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		observability.RedisErrorRate.WithLabelValues("flag_sync").Inc()
		return err
	}
	return nil
}

func (s *RedisFlagStore) Get(ctx context.Context, keys []string) ([]bool, error) {
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		observability.RedisErrorRate.WithLabelValues("flag_mget").Inc()
		return nil, err
	}
	out := make([]bool, len(keys))
	for i, v := range vals {
		out[i] = v != nil
	}
	return out, nil
}
