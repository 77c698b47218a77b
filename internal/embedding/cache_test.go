package embedding

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheKey_DistinguishesTriple(t *testing.T) {
	base := CacheKey(ProviderOpenAI, "text-embedding-3-small", "hello")

	assert.NotEqual(t, base, CacheKey(ProviderOpenAI, "text-embedding-3-small", "goodbye"))
	assert.NotEqual(t, base, CacheKey(ProviderOpenAI, "text-embedding-3-large", "hello"))
	assert.NotEqual(t, base, CacheKey(ProviderGemini, "text-embedding-3-small", "hello"))
	assert.Equal(t, base, CacheKey(ProviderOpenAI, "text-embedding-3-small", "hello"))
}

func TestMemoryCache_GetSet(t *testing.T) {
	cache := NewMemoryCache(10, time.Hour)

	_, ok := cache.Get("missing")
	assert.False(t, ok)

	cache.Set("k1", []float32{0.1, 0.2})
	vec, ok := cache.Get("k1")
	require.True(t, ok)
	assert.Equal(t, []float32{0.1, 0.2}, vec)
}

func TestMemoryCache_TTLExpiry(t *testing.T) {
	cache := NewMemoryCache(10, time.Minute).(*memoryCache)

	now := time.Now()
	cache.now = func() time.Time { return now }
	cache.Set("k1", []float32{1})

	_, ok := cache.Get("k1")
	assert.True(t, ok)

	cache.now = func() time.Time { return now.Add(2 * time.Minute) }
	_, ok = cache.Get("k1")
	assert.False(t, ok, "expired entry should be evicted on read")
}

func TestMemoryCache_CapacityEviction(t *testing.T) {
	cache := NewMemoryCache(2, time.Hour)

	cache.Set("a", []float32{1})
	cache.Set("b", []float32{2})
	cache.Set("c", []float32{3}) // evicts "a", the oldest insertion

	_, ok := cache.Get("a")
	assert.False(t, ok)
	_, ok = cache.Get("b")
	assert.True(t, ok)
	_, ok = cache.Get("c")
	assert.True(t, ok)
}

func TestMemoryCache_Stats(t *testing.T) {
	cache := NewMemoryCache(10, time.Hour).(*memoryCache)

	cache.Set("k", []float32{1})
	cache.Get("k")
	cache.Get("nope")

	stats := cache.Stats()
	assert.Equal(t, 1, stats.Size)
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
}

func TestParseProvider(t *testing.T) {
	for _, tag := range []string{"openai", "claude", "gemini"} {
		_, err := ParseProvider(tag)
		assert.NoError(t, err, tag)
	}
	_, err := ParseProvider("cohere")
	assert.Error(t, err)
}

func TestNewProvider_ClaudeRejected(t *testing.T) {
	_, err := NewProvider(ProviderClaude, "key", "")
	assert.Error(t, err)
}
