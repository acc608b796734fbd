package streams

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupStreams(t *testing.T, maxLen int64) *RedisStreams {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStreams(client, maxLen)
}

func TestPublishAndRead(t *testing.T) {
	ctx := context.Background()
	s := setupStreams(t, 0)

	first, err := s.Publish(ctx, "moderation:reports", map[string]string{"case_id": "c1"})
	require.NoError(t, err)
	_, err = s.Publish(ctx, "moderation:reports", map[string]string{"case_id": "c2"})
	require.NoError(t, err)

	entries, err := s.Read(ctx, "moderation:reports", "", 10, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, first, entries[0].ID)
	assert.Equal(t, "c1", entries[0].Fields["case_id"])

	entries, err = s.Read(ctx, "moderation:reports", first, 10, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "c2", entries[0].Fields["case_id"])
}

func TestReadEmptyIsNotAnError(t *testing.T) {
	s := setupStreams(t, 0)
	_, err := s.Publish(context.Background(), "ingress", map[string]string{"type": "text"})
	require.NoError(t, err)

	entries, err := s.Read(context.Background(), "ingress", "9999999999999-0", 10, 10*time.Millisecond)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestReadRespectsCount(t *testing.T) {
	ctx := context.Background()
	s := setupStreams(t, 1000)
	for i := 0; i < 5; i++ {
		_, err := s.Publish(ctx, "ingress", map[string]string{"n": "x"})
		require.NoError(t, err)
	}
	entries, err := s.Read(ctx, "ingress", StartCursor, 3, 0)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestRedisCursorStore(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := NewRedisCursorStore(client)

	cursor, err := store.Load(ctx, "ingress", "safety_scanner")
	require.NoError(t, err)
	assert.Empty(t, cursor)

	require.NoError(t, store.Commit(ctx, "ingress", "safety_scanner", "1700000000000-3"))
	require.NoError(t, store.Commit(ctx, "ingress", "text_consumer", "1700000000000-1"))

	cursor, err = store.Load(ctx, "ingress", "safety_scanner")
	require.NoError(t, err)
	assert.Equal(t, "1700000000000-3", cursor)
	cursor, err = store.Load(ctx, "ingress", "text_consumer")
	require.NoError(t, err)
	assert.Equal(t, "1700000000000-1", cursor)
}
