package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/AnshRaj112/kokoro-journal/internal/models"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	recentKeyPrefix = "records:"
	recentKeySuffix = ":recent"
	recentMaxLen    = 20
	recentTTL       = 1 * time.Hour
)

func recentKey(ownerID string) string {
	return recentKeyPrefix + ownerID + recentKeySuffix
}

// RecentCache keeps the newest entries of each namespace in a Redis list
// (newest at head).
type RecentCache struct {
	rdb *redis.Client
	log *zap.Logger
}

func NewRecentCache(rdb *redis.Client, log *zap.Logger) *RecentCache {
	return &RecentCache{rdb: rdb, log: log}
}

// Push adds an entry after it was saved. A cold cache stays cold so a
// partial list is never served. Callers must serialize Push with Warm for
// the same owner.
func (c *RecentCache) Push(ctx context.Context, entry models.JournalEntry) error {
	if c == nil || c.rdb == nil {
		return nil
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	key := recentKey(entry.OwnerID)
	pipe := c.rdb.TxPipeline()
	pipe.LPushX(ctx, key, data)
	pipe.LTrim(ctx, key, 0, recentMaxLen-1)
	pipe.Expire(ctx, key, recentTTL)
	_, err = pipe.Exec(ctx)
	return err
}

// Invalidate drops the cached list so the next read goes to the store.
func (c *RecentCache) Invalidate(ctx context.Context, ownerID string) {
	if c == nil || c.rdb == nil {
		return
	}
	if err := c.rdb.Del(ctx, recentKey(ownerID)).Err(); err != nil {
		c.log.Error("recent cache invalidate failed", zap.String("owner_id", ownerID), zap.Error(err))
	}
}

// Get returns the cached entries, newest first. ok is false on a miss.
func (c *RecentCache) Get(ctx context.Context, ownerID string) ([]models.JournalEntry, bool) {
	if c == nil || c.rdb == nil {
		return nil, false
	}

	raw, err := c.rdb.LRange(ctx, recentKey(ownerID), 0, -1).Result()
	if err != nil || len(raw) == 0 {
		return nil, false
	}

	entries := make([]models.JournalEntry, 0, len(raw))
	for _, item := range raw {
		var e models.JournalEntry
		if json.Unmarshal([]byte(item), &e) != nil {
			continue
		}
		e.OwnerID = ownerID
		entries = append(entries, e)
	}
	return entries, true
}

// Warm replaces the cached list with entries (newest first).
func (c *RecentCache) Warm(ctx context.Context, ownerID string, entries []models.JournalEntry) {
	if c == nil || c.rdb == nil || len(entries) == 0 {
		return
	}

	key := recentKey(ownerID)
	pipe := c.rdb.TxPipeline()
	pipe.Del(ctx, key)
	for _, e := range entries {
		data, err := json.Marshal(e)
		if err != nil {
			continue
		}
		pipe.RPush(ctx, key, data)
	}
	pipe.LTrim(ctx, key, 0, recentMaxLen-1)
	pipe.Expire(ctx, key, recentTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		c.log.Warn("recent cache warm failed", zap.String("owner_id", ownerID), zap.Error(err))
	}
}
