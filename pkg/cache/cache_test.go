package cache_test

import (
	"testing"
	"time"

	"freelaw.courtlistener.cl-update-index/pkg/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type jsonObj = map[string]interface{}

func newLocal(t *testing.T, prefix string) cache.Cache {
	t.Helper()
	// local cache config object
	config := cache.CacheConfig{
		Type:       cache.CACHE_LOCAL,
		Expiration: 2880,
		Prefix:     prefix,
	}
	localCache, err := cache.CreateCache(config)
	require.NoError(t, err)
	t.Cleanup(func() { _ = localCache.Close() })
	return localCache
}

func TestLocalCacheGetStringValue(t *testing.T) {
	localCache := newLocal(t, "")

	require.NoError(t, localCache.Set("testkey", "testvalue", cache.DefaultTTL))

	val := ""
	require.True(t, localCache.Get("testkey", &val))
	assert.Equal(t, "testvalue", val)
}

func TestLocalCacheGetObjectValue(t *testing.T) {
	localCache := newLocal(t, "")

	data := make(jsonObj, 1)
	data["example"] = 1
	require.NoError(t, localCache.Set("testkey", data, cache.DefaultTTL))

	val := make(jsonObj)
	require.True(t, localCache.Get("testkey", &val))
	assert.Equal(t, float64(1), val["example"])
}

func TestLocalCacheStruct(t *testing.T) {
	type result struct {
		TaskID   string        `json:"task_id"`
		Count    int           `json:"count"`
		Duration time.Duration `json:"duration"`
	}
	localCache := newLocal(t, "clu:")

	require.NoError(t, localCache.Set("abc", result{TaskID: "abc", Count: 3, Duration: time.Second}, cache.NoTTL))

	var got result
	require.True(t, localCache.Get("abc", &got))
	assert.Equal(t, result{TaskID: "abc", Count: 3, Duration: time.Second}, got)
}

func TestLocalCacheMissAndDelete(t *testing.T) {
	localCache := newLocal(t, "")

	val := ""
	assert.False(t, localCache.Get("missing", &val))

	require.NoError(t, localCache.Set("gone", "soon", cache.DefaultTTL))
	localCache.Delete("gone")
	assert.False(t, localCache.Get("gone", &val))
}

func TestLocalCacheExpiry(t *testing.T) {
	localCache := newLocal(t, "")

	require.NoError(t, localCache.Set("short", "lived", 10*time.Millisecond))
	time.Sleep(50 * time.Millisecond)
	val := ""
	assert.False(t, localCache.Get("short", &val))
}

func TestUnknownCache(t *testing.T) {
	_, err := cache.CreateCache(cache.CacheConfig{Type: "memcached"})
	assert.EqualError(t, err, `invalid cache name "memcached". must be one of: local, redis`)
}
