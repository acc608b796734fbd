// Package streams carries moderation events over Redis Streams.
package streams

import (
	"context"
	"errors"
	"fmt"
	"time"

	"warden/internal/observability"

	"github.com/redis/go-redis/v9"
)

// StartCursor reads a stream from its first entry.
const StartCursor = "0-0"

// Entry is one stream record.
type Entry struct {
	ID     string
	Fields map[string]string
}

// Publisher appends events to a named stream.
type Publisher interface {
	Publish(ctx context.Context, stream string, fields map[string]string) (string, error)
}

// Reader reads entries after cursor, blocking up to block when none are
// pending; block <= 0 returns at once. An empty result is not an error.
type Reader interface {
	Read(ctx context.Context, stream, cursor string, count int64, block time.Duration) ([]Entry, error)
}

// RedisStreams implements Publisher and Reader with XADD and XREAD.
type RedisStreams struct {
	client *redis.Client
	maxLen int64
}

// NewRedisStreams trims streams approximately to maxLen entries; zero
// disables trimming.
func NewRedisStreams(client *redis.Client, maxLen int64) *RedisStreams {
	return &RedisStreams{client: client, maxLen: maxLen}
}

func (s *RedisStreams) Publish(ctx context.Context, stream string, fields map[string]string) (string, error) {
	values := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		values[k] = v
	}
	args := &redis.XAddArgs{Stream: stream, Values: values}
	if s.maxLen > 0 {
		args.MaxLen = s.maxLen
		args.Approx = true
	}
	id, err := s.client.XAdd(ctx, args).Result()
	if err != nil {
		observability.RedisErrorRate.WithLabelValues("xadd").Inc()
		return "", fmt.Errorf("xadd %s: %w", stream, err)
	}
	return id, nil
}

func (s *RedisStreams) Read(ctx context.Context, stream, cursor string, count int64, block time.Duration) ([]Entry, error) {
	if cursor == "" {
		cursor = StartCursor
	}
	if block <= 0 {
		block = -1
	}
	res, err := s.client.XRead(ctx, &redis.XReadArgs{
		Streams: []string{stream, cursor},
		Count:   count,
		Block:   block,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		observability.RedisErrorRate.WithLabelValues("xread").Inc()
		return nil, fmt.Errorf("xread %s: %w", stream, err)
	}
	var out []Entry
	for _, st := range res {
		for _, msg := range st.Messages {
			fields := make(map[string]string, len(msg.Values))
			for k, v := range msg.Values {
				fields[k] = fmt.Sprint(v)
			}
			out = append(out, Entry{ID: msg.ID, Fields: fields})
		}
	}
	return out, nil
}
