package detectors

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
)

// CounterStore increments TTL-bounded counters shared between detector runs.
type CounterStore interface {
	// Incr increments key and (re)arms its expiry, returning the new count.
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// RedisCounterStore keeps counters in Redis.
type RedisCounterStore struct {
	Client *redis.Client
}

// NewRedisCounterStore wraps an existing client.
func NewRedisCounterStore(client *redis.Client) *RedisCounterStore {
	return &RedisCounterStore{Client: client}
}

func (s *RedisCounterStore) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	// increment and expire in a single round-trip
	multi := s.Client.TxPipeline()
	incr := multi.Incr(ctx, key)
	multi.Expire(ctx, key, ttl)
	if _, err := multi.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

type memCount struct {
	n       int64
	expires time.Time
}

// MemCounterStore is a single-node CounterStore. Entries are bounded by an
// expirable LRU; per-key TTLs are enforced on read.
type MemCounterStore struct {
	mu   sync.Mutex
	data *expirable.LRU[string, memCount]
	now  func() time.Time
}

// NewMemCounterStore creates a store holding at most capacity keys, none
// living longer than maxTTL.
func NewMemCounterStore(capacity int, maxTTL time.Duration) *MemCounterStore {
	return &MemCounterStore{
		data: expirable.NewLRU[string, memCount](capacity, nil, maxTTL),
		now:  time.Now,
	}
}

func (s *MemCounterStore) Incr(_ context.Context, key string, ttl time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	c, ok := s.data.Get(key)
	if !ok || !now.Before(c.expires) {
		c = memCount{}
	}
	c.n++
	c.expires = now.Add(ttl)
	s.data.Add(key, c)
	return c.n, nil
}
