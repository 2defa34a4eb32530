package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) *ResponseCache {
	t.Helper()
	cache, err := NewResponseCache(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { cache.Close() })
	return cache
}

func TestResponseCacheMiss(t *testing.T) {
	cache := newTestCache(t)

	got, err := cache.Get(context.Background(), "https://api.met.no/missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestResponseCachePutGet(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()
	expires := time.Now().Add(30 * time.Minute).Truncate(time.Second)

	want := CachedResponse{
		URL:          "https://api.met.no/weatherapi/locationforecast/2.0/compact?lat=59.91&lon=10.75",
		Body:         []byte(`{"properties":{"timeseries":[]}}`),
		ContentType:  "application/json",
		LastModified: "Tue, 16 Jun 2026 10:00:00 GMT",
		Expires:      expires,
	}
	require.NoError(t, cache.Put(ctx, want))

	got, err := cache.Get(ctx, want.URL)
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, want.Body, got.Body)
	assert.Equal(t, want.ContentType, got.ContentType)
	assert.Equal(t, want.LastModified, got.LastModified)
	assert.True(t, got.Expires.Equal(expires), "expires = %v, want %v", got.Expires, expires)
	assert.True(t, got.Fresh(time.Now()))
	assert.False(t, got.FetchedAt.IsZero())
}

func TestResponseCacheReplace(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	url := "https://api.weather.gov/alerts/active/area/NY"
	require.NoError(t, cache.Put(ctx, CachedResponse{URL: url, Body: []byte("old")}))
	require.NoError(t, cache.Put(ctx, CachedResponse{URL: url, Body: []byte("new")}))

	got, err := cache.Get(ctx, url)
	require.NoError(t, err)
	assert.Equal(t, "new", string(got.Body))
	assert.True(t, got.Expires.IsZero())
	assert.False(t, got.Fresh(time.Now()))
}

func TestResponseCacheTouch(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	url := "https://api.met.no/x"
	require.NoError(t, cache.Put(ctx, CachedResponse{URL: url, Body: []byte("b"), Expires: time.Now().Add(-time.Minute)}))

	got, err := cache.Get(ctx, url)
	require.NoError(t, err)
	assert.False(t, got.Fresh(time.Now()))

	require.NoError(t, cache.Touch(ctx, url, time.Now().Add(time.Hour)))
	got, err = cache.Get(ctx, url)
	require.NoError(t, err)
	assert.True(t, got.Fresh(time.Now()))
}

func TestResponseCachePurge(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, cache.Put(ctx, CachedResponse{URL: "expired", Body: []byte("a"), Expires: now.Add(-time.Hour)}))
	require.NoError(t, cache.Put(ctx, CachedResponse{URL: "fresh", Body: []byte("b"), Expires: now.Add(time.Hour)}))
	require.NoError(t, cache.Put(ctx, CachedResponse{URL: "noexpiry", Body: []byte("c")}))

	n, err := cache.Purge(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := cache.Get(ctx, "expired")
	require.NoError(t, err)
	assert.Nil(t, got)

	for _, url := range []string{"fresh", "noexpiry"} {
		got, err := cache.Get(ctx, url)
		require.NoError(t, err)
		assert.NotNil(t, got, url)
	}
}

func TestResponseCacheReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	ctx := context.Background()

	cache, err := NewResponseCache(path)
	require.NoError(t, err)
	require.NoError(t, cache.Put(ctx, CachedResponse{URL: "u", Body: []byte("kept")}))
	require.NoError(t, cache.Close())

	cache, err = NewResponseCache(path)
	require.NoError(t, err)
	defer cache.Close()

	got, err := cache.Get(ctx, "u")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "kept", string(got.Body))

	has, err := cache.columnExists("responses", "content_type")
	require.NoError(t, err)
	assert.True(t, has)
}
