// Package subjects resolves subject owners and user handles against the
// content domains, with an expiring LRU in front.
package subjects

import (
	"context"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "warden_subject_cache_lookups_total",
	Help: "Subject and handle cache lookups by kind and result",
}, []string{"kind", "result"})

// OwnerResolver finds the user that owns a subject.
type OwnerResolver interface {
	ResolveOwner(ctx context.Context, subjectType, subjectID string) (string, error)
}

// HandleResolver maps a public handle to a canonical user id.
type HandleResolver interface {
	ResolveHandle(ctx context.Context, handle string) (string, error)
}

type entry struct {
	Updated time.Time
	Value   string
	Err     error
}

// CachedResolver memoizes owner and handle lookups. Errors are cached for
// ErrTTL so a failing content domain is not hammered.
type CachedResolver struct {
	owners  OwnerResolver
	handles HandleResolver
	ErrTTL  time.Duration

	ownerCache  *expirable.LRU[string, entry]
	handleCache *expirable.LRU[string, entry]
	now         func() time.Time
}

// NewCachedResolver wraps owners and handles; either may be nil. Capacity
// of zero means unlimited size and ttl of zero means no expiry.
func NewCachedResolver(owners OwnerResolver, handles HandleResolver, capacity int, ttl time.Duration) *CachedResolver {
	return &CachedResolver{
		owners:      owners,
		handles:     handles,
		ErrTTL:      5 * time.Second,
		ownerCache:  expirable.NewLRU[string, entry](capacity, nil, ttl),
		handleCache: expirable.NewLRU[string, entry](capacity, nil, ttl),
		now:         time.Now,
	}
}

func (c *CachedResolver) stale(e entry) bool {
	return e.Err != nil && c.now().Sub(e.Updated) > c.ErrTTL
}

func (c *CachedResolver) lookup(kind string, lru *expirable.LRU[string, entry], key string, fetch func() (string, error)) (string, error) {
	if e, ok := lru.Get(key); ok && !c.stale(e) {
		cacheLookups.WithLabelValues(kind, "hit").Inc()
		return e.Value, e.Err
	}
	cacheLookups.WithLabelValues(kind, "miss").Inc()

	v, err := fetch()
	lru.Add(key, entry{Updated: c.now(), Value: v, Err: err})
	return v, err
}

// ResolveOwner returns the cached owner of subjectType/subjectID.
func (c *CachedResolver) ResolveOwner(ctx context.Context, subjectType, subjectID string) (string, error) {
	if c.owners == nil {
		return "", ErrNotFound
	}
	key := subjectType + ":" + subjectID
	return c.lookup("owner", c.ownerCache, key, func() (string, error) {
		return c.owners.ResolveOwner(ctx, subjectType, subjectID)
	})
}

// ResolveHandle returns the cached user id for handle, ignoring a leading
// "@" and letter case.
func (c *CachedResolver) ResolveHandle(ctx context.Context, handle string) (string, error) {
	if c.handles == nil {
		return "", ErrNotFound
	}
	key := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(handle), "@"))
	if key == "" {
		return "", ErrNotFound
	}
	return c.lookup("handle", c.handleCache, key, func() (string, error) {
		return c.handles.ResolveHandle(ctx, key)
	})
}

// Purge drops every cached entry.
func (c *CachedResolver) Purge() {
	c.ownerCache.Purge()
	c.handleCache.Purge()
}
