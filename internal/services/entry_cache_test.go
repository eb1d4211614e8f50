package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/AnshRaj112/kokoro-journal/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func cachedEntry(owner string, i int) models.JournalEntry {
	return models.JournalEntry{
		ID:          fmt.Sprintf("e%d", i),
		OwnerID:     owner,
		EntryFields: sampleFields(fmt.Sprint(i)),
		Timestamp:   time.Date(2024, 1, 1, 0, 0, i, 0, time.UTC),
	}
}

func TestRecentCache(t *testing.T) {
	mr, rdb := newTestRedis(t)
	cache := NewRecentCache(rdb, zap.NewNop())
	ctx := context.Background()

	// A cold cache stays cold on push.
	require.NoError(t, cache.Push(ctx, cachedEntry("u1", 1)))
	_, ok := cache.Get(ctx, "u1")
	assert.False(t, ok)

	cache.Warm(ctx, "u1", []models.JournalEntry{cachedEntry("u1", 2), cachedEntry("u1", 1)})
	require.NoError(t, cache.Push(ctx, cachedEntry("u1", 3)))

	got, ok := cache.Get(ctx, "u1")
	require.True(t, ok)
	require.Len(t, got, 3)
	assert.Equal(t, "e3", got[0].ID)
	assert.Equal(t, "e1", got[2].ID)
	assert.Equal(t, "u1", got[0].OwnerID)
	assert.Equal(t, "3 event", got[0].TodayEvent)
	assert.Equal(t, recentTTL, mr.TTL(recentKey("u1")))
}

func TestRecentCacheTrims(t *testing.T) {
	_, rdb := newTestRedis(t)
	cache := NewRecentCache(rdb, zap.NewNop())
	ctx := context.Background()

	cache.Warm(ctx, "u1", []models.JournalEntry{cachedEntry("u1", 0)})
	for i := 1; i <= recentMaxLen+5; i++ {
		require.NoError(t, cache.Push(ctx, cachedEntry("u1", i)))
	}

	got, ok := cache.Get(ctx, "u1")
	require.True(t, ok)
	assert.Len(t, got, recentMaxLen)
	assert.Equal(t, fmt.Sprintf("e%d", recentMaxLen+5), got[0].ID)
}

func TestRecentCacheNilClient(t *testing.T) {
	cache := NewRecentCache(nil, zap.NewNop())
	assert.NoError(t, cache.Push(context.Background(), cachedEntry("u1", 1)))
	cache.Invalidate(context.Background(), "u1")
	_, ok := cache.Get(context.Background(), "u1")
	assert.False(t, ok)
}

func TestRecentCacheInvalidate(t *testing.T) {
	mr, rdb := newTestRedis(t)
	cache := NewRecentCache(rdb, zap.NewNop())
	ctx := context.Background()

	cache.Warm(ctx, "u1", []models.JournalEntry{cachedEntry("u1", 1)})
	cache.Warm(ctx, "u2", []models.JournalEntry{cachedEntry("u2", 1)})
	cache.Invalidate(ctx, "u1")

	assert.False(t, mr.Exists(recentKey("u1")))
	assert.True(t, mr.Exists(recentKey("u2")))

	// The next push does not recreate a partial list.
	require.NoError(t, cache.Push(ctx, cachedEntry("u1", 2)))
	_, ok := cache.Get(ctx, "u1")
	assert.False(t, ok)
}

func TestRecentCachePushError(t *testing.T) {
	mr, rdb := newTestRedis(t)
	cache := NewRecentCache(rdb, zap.NewNop())
	require.NoError(t, mr.Set(recentKey("u1"), "not a list"))

	assert.Error(t, cache.Push(context.Background(), cachedEntry("u1", 1)))
}
