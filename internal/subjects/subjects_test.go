package subjects

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingResolver struct {
	calls int
	owner string
	err   error
}

func (c *countingResolver) ResolveOwner(_ context.Context, _, _ string) (string, error) {
	c.calls++
	return c.owner, c.err
}

func (c *countingResolver) ResolveHandle(_ context.Context, handle string) (string, error) {
	c.calls++
	return "id-" + handle, c.err
}

func TestCachedResolverMemoizes(t *testing.T) {
	inner := &countingResolver{owner: "u1"}
	c := NewCachedResolver(inner, inner, 10, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		owner, err := c.ResolveOwner(ctx, "post", "p1")
		require.NoError(t, err)
		assert.Equal(t, "u1", owner)
	}
	assert.Equal(t, 1, inner.calls)

	id, err := c.ResolveHandle(ctx, "@Alice")
	require.NoError(t, err)
	assert.Equal(t, "id-alice", id)
	_, _ = c.ResolveHandle(ctx, "alice")
	assert.Equal(t, 2, inner.calls)
}

func TestCachedResolverRefreshesStaleErrors(t *testing.T) {
	inner := &countingResolver{err: errors.New("down")}
	c := NewCachedResolver(inner, nil, 10, time.Hour)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	_, err := c.ResolveOwner(ctx, "post", "p1")
	require.Error(t, err)
	_, err = c.ResolveOwner(ctx, "post", "p1")
	require.Error(t, err)
	assert.Equal(t, 1, inner.calls)

	now = now.Add(c.ErrTTL + time.Second)
	inner.err, inner.owner = nil, "u9"
	owner, err := c.ResolveOwner(ctx, "post", "p1")
	require.NoError(t, err)
	assert.Equal(t, "u9", owner)
	assert.Equal(t, 2, inner.calls)
}

func TestCachedResolverWithoutBackends(t *testing.T) {
	c := NewCachedResolver(nil, nil, 0, 0)
	_, err := c.ResolveOwner(context.Background(), "post", "p1")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = c.ResolveHandle(context.Background(), "bob")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestHTTPResolver(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/subjects/post/p1/owner":
			_, _ = w.Write([]byte(`{"owner_id":"u1"}`))
		case "/handles/alice":
			_, _ = w.Write([]byte(`{"user_id":"u2"}`))
		case "/subjects/post/broken/owner":
			w.WriteHeader(http.StatusBadGateway)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	r := NewHTTPResolver(srv.Client(), srv.URL+"/", "tok")
	ctx := context.Background()

	owner, err := r.ResolveOwner(ctx, "post", "p1")
	require.NoError(t, err)
	assert.Equal(t, "u1", owner)

	id, err := r.ResolveHandle(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "u2", id)

	_, err = r.ResolveOwner(ctx, "post", "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = r.ResolveOwner(ctx, "post", "broken")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}
