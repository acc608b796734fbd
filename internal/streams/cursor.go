package streams

import (
	"context"
	"errors"
	"fmt"

	"warden/internal/cache"
	"warden/internal/observability"

	"github.com/redis/go-redis/v9"
)

// CursorStore persists consumer positions. Load returns "" when nothing
// has been committed yet.
type CursorStore interface {
	Load(ctx context.Context, stream, consumer string) (string, error)
	Commit(ctx context.Context, stream, consumer, cursor string) error
}

// RedisCursorStore keeps one key per stream and consumer.
type RedisCursorStore struct {
	client *redis.Client
}

func NewRedisCursorStore(client *redis.Client) *RedisCursorStore {
	return &RedisCursorStore{client: client}
}

func (s *RedisCursorStore) Load(ctx context.Context, stream, consumer string) (string, error) {
	cursor, err := s.client.Get(ctx, cache.CursorKey(stream, consumer)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		observability.RedisErrorRate.WithLabelValues("cursor_load").Inc()
		return "", fmt.Errorf("load cursor %s/%s: %w", stream, consumer, err)
	}
	return cursor, nil
}

func (s *RedisCursorStore) Commit(ctx context.Context, stream, consumer, cursor string) error {
	if err := s.client.Set(ctx, cache.CursorKey(stream, consumer), cursor, 0).Err(); err != nil {
		observability.RedisErrorRate.WithLabelValues("cursor_commit").Inc()
		return fmt.Errorf("commit cursor %s/%s: %w", stream, consumer, err)
	}
	return nil
}
