// Package notifications persists moderation notices to per-user inboxes
// and fans them out over Redis pub/sub.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"warden/internal/cache"
	"warden/internal/models"
	"warden/internal/observability"

	"github.com/redis/go-redis/v9"
)

// Notification is one inbox entry.
type Notification struct {
	Kind      string         `json:"kind"`
	UserID    string         `json:"user_id"`
	RefID     string         `json:"ref_id"`
	ActorID   string         `json:"actor_id,omitempty"`
	Payload   models.Payload `json:"payload,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Notifier provides helpers to publish notifications into Redis channels
type Notifier struct {
	rdb *redis.Client
	now func() time.Time
}

// NewNotifier creates a new Notifier instance using the provided Redis client.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb, now: time.Now}
}

// PersistNotification pushes onto the user's capped inbox and publishes
// the same entry on the user's channel.
func (n *Notifier) PersistNotification(ctx context.Context, userID, kind, refID, actorID string, payload models.Payload) error {
	if n.rdb == nil {
		return nil
	}
	raw, err := json.Marshal(Notification{
		Kind:      kind,
		UserID:    userID,
		RefID:     refID,
		ActorID:   actorID,
		Payload:   payload,
		CreatedAt: n.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	key := cache.InboxKey(userID)
	pipe := n.rdb.TxPipeline()
	pipe.LPush(ctx, key, raw)
	pipe.LTrim(ctx, key, 0, cache.InboxMaxLen-1)
	pipe.Publish(ctx, cache.UserChannel(userID), raw)
	if _, err := pipe.Exec(ctx); err != nil {
		observability.RedisErrorRate.WithLabelValues("notify").Inc()
		return fmt.Errorf("persist notification: %w", err)
	}
	return nil
}

// PublishUser sends a notification payload to a user's channel.
func (n *Notifier) PublishUser(ctx context.Context, userID string, payload string) error {
	if n.rdb == nil {
		return nil
	}
	return n.rdb.Publish(ctx, cache.UserChannel(userID), payload).Err()
}

// Inbox returns up to limit of the user's newest notifications.
func (n *Notifier) Inbox(ctx context.Context, userID string, limit int64) ([]Notification, error) {
	if n.rdb == nil {
		return nil, nil
	}
	if limit <= 0 || limit > cache.InboxMaxLen {
		limit = cache.InboxMaxLen
	}
	raw, err := n.rdb.LRange(ctx, cache.InboxKey(userID), 0, limit-1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Notification, 0, len(raw))
	for _, r := range raw {
		var item Notification
		if err := json.Unmarshal([]byte(r), &item); err != nil {
			continue
		}
		out = append(out, item)
	}
	return out, nil
}

// StartPatternSubscriber subscribes to pattern `notifications:user:*` and calls onMessage
// for each incoming message. onMessage receives channel and payload.
func (n *Notifier) StartPatternSubscriber(
	ctx context.Context, onMessage func(channel string, payload string),
) error {
	if n.rdb == nil {
		return nil
	}
	sub := n.rdb.PSubscribe(ctx, cache.UserChannel("*"))
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							observability.GlobalLogger.Error("panic in notification subscriber",
								slog.Any("panic", r),
								slog.String("stack", string(debug.Stack())),
							)
						}
					}()
					onMessage(msg.Channel, msg.Payload)
				}()
			}
		}
	}()

	return nil
}
