package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"warden/internal/cache"
	"warden/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupNotifier(t *testing.T) (*Notifier, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewNotifier(rdb), mr
}

func TestNotifier_NilRedisIsNoop(t *testing.T) {
	n := NewNotifier(nil)
	assert.NoError(t, n.PublishUser(context.Background(), "u1", "test payload"))
	assert.NoError(t, n.PersistNotification(context.Background(), "u1", "moderation.warning", "c1", "mod", nil))
}

func TestPersistNotification(t *testing.T) {
	ctx := context.Background()
	n, _ := setupNotifier(t)

	require.NoError(t, n.PersistNotification(ctx, "u1", "moderation.warning", "c1", "mod", models.Payload{"reason": "spam"}))
	require.NoError(t, n.PersistNotification(ctx, "u1", "moderation.appeal_resolved", "a1", "mod", nil))

	items, err := n.Inbox(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "moderation.appeal_resolved", items[0].Kind)
	assert.Equal(t, "c1", items[1].RefID)
	assert.Equal(t, "spam", items[1].Payload.String("reason"))
}

func TestInboxIsCapped(t *testing.T) {
	ctx := context.Background()
	n, mr := setupNotifier(t)
	for i := 0; i < cache.InboxMaxLen+5; i++ {
		require.NoError(t, n.PersistNotification(ctx, "u1", "k", fmt.Sprint(i), "", nil))
	}
	list, err := mr.List(cache.InboxKey("u1"))
	require.NoError(t, err)
	assert.Len(t, list, cache.InboxMaxLen)

	var newest Notification
	require.NoError(t, json.Unmarshal([]byte(list[0]), &newest))
	assert.Equal(t, fmt.Sprint(cache.InboxMaxLen+4), newest.RefID)
}

func TestNotifier_PatternSubscriberStopsOnCancel(t *testing.T) {
	n, _ := setupNotifier(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var received int32
	payloads := make(chan string, 4)
	require.NoError(t, n.StartPatternSubscriber(ctx, func(_ string, payload string) {
		atomic.AddInt32(&received, 1)
		payloads <- payload
	}))

	assert.Eventually(t, func() bool {
		_ = n.PublishUser(context.Background(), "u1", "before-cancel")
		return atomic.LoadInt32(&received) >= 1
	}, time.Second, 20*time.Millisecond)

	cancel()
	time.Sleep(20 * time.Millisecond)
	for len(payloads) > 0 {
		<-payloads
	}

	require.NoError(t, n.PublishUser(context.Background(), "u1", "after-cancel"))
	assert.Never(t, func() bool {
		select {
		case payload := <-payloads:
			return payload == "after-cancel"
		default:
			return false
		}
	}, 200*time.Millisecond, 10*time.Millisecond)
}
