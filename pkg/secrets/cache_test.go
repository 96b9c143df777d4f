package secrets

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type appCreds struct {
	ClientID string
}

func TestCache_PutAndGet(t *testing.T) {
	cache := NewCache[appCreds](time.Minute)
	key := "prod|me|fitbit"

	_, ok := cache.Get(key)
	assert.False(t, ok, "expected miss on empty cache")

	cache.Put(key, appCreds{ClientID: "23ABCD"})

	got, ok := cache.Get(key)
	assert.True(t, ok)
	assert.Equal(t, "23ABCD", got.ClientID)
}

func TestCache_Expiration(t *testing.T) {
	cache := NewCache[appCreds](time.Minute)
	now := time.Date(2021, 3, 1, 12, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }

	cache.Put("k", appCreds{ClientID: "a"})
	now = now.Add(2 * time.Minute)

	_, ok := cache.Get("k")
	assert.False(t, ok, "expected expired cache entry")
}

func TestCache_Bust(t *testing.T) {
	cache := NewCache[appCreds](time.Minute)
	cache.Put("k", appCreds{ClientID: "a"})

	cache.Bust("k")
	_, ok := cache.Get("k")
	assert.False(t, ok)
}
