package services

import (
	"context"
	"testing"
	"time"

	"github.com/AnshRaj112/kokoro-journal/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
	"go.uber.org/zap"
)

func recordDoc(owner, tag string, ts time.Time) bson.D {
	f := sampleFields(tag)
	return bson.D{
		{Key: "_id", Value: primitive.NewObjectID()},
		{Key: "owner_id", Value: owner},
		{Key: "namespace", Value: models.Namespace(owner)},
		{Key: "todayEvent", Value: f.TodayEvent},
		{Key: "impression", Value: f.Impression},
		{Key: "emotion", Value: f.Emotion},
		{Key: "insight", Value: f.Insight},
		{Key: "nextStep", Value: f.NextStep},
		{Key: "timestamp", Value: ts},
	}
}

func namespaceOf(mt *mtest.T) string {
	return mt.Coll.Database().Name() + "." + mt.Coll.Name()
}

func TestMongoEntryStoreAppend(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("timestamp after newest", func(mt *mtest.T) {
		newest := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, namespaceOf(mt), mtest.FirstBatch, recordDoc("u1", "a", newest)),
			mtest.CreateSuccessResponse(),
		)

		store := NewMongoEntryStore(mt.Coll, nil, zap.NewNop())
		// Clock behind the newest stored entry.
		store.now = func() time.Time { return newest.Add(-time.Minute) }

		entry, err := store.Append(context.Background(), "u1", sampleFields("b"))
		require.NoError(mt, err)
		assert.Equal(mt, newest.Add(time.Millisecond), entry.Timestamp)
		assert.Equal(mt, "u1", entry.OwnerID)
		assert.Equal(mt, "b event", entry.TodayEvent)
		assert.Len(mt, entry.ID, 24)
	})

	mt.Run("first entry uses clock", func(mt *mtest.T) {
		now := time.Date(2024, 5, 1, 12, 0, 0, 987654321, time.UTC)
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, namespaceOf(mt), mtest.FirstBatch),
			mtest.CreateSuccessResponse(),
		)

		store := NewMongoEntryStore(mt.Coll, nil, zap.NewNop())
		store.now = func() time.Time { return now }

		entry, err := store.Append(context.Background(), "u1", sampleFields("a"))
		require.NoError(mt, err)
		assert.Equal(mt, now.Truncate(time.Millisecond), entry.Timestamp)
	})

	mt.Run("cache push failure drops cached list", func(mt *mtest.T) {
		mr, rdb := newTestRedis(mt.T)
		require.NoError(mt, mr.Set(recentKey("u1"), "not a list"))
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, namespaceOf(mt), mtest.FirstBatch),
			mtest.CreateSuccessResponse(),
		)

		store := NewMongoEntryStore(mt.Coll, rdb, zap.NewNop())
		_, err := store.Append(context.Background(), "u1", sampleFields("a"))
		require.NoError(mt, err)
		assert.False(mt, mr.Exists(recentKey("u1")))
	})

	mt.Run("insert failure", func(mt *mtest.T) {
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, namespaceOf(mt), mtest.FirstBatch),
			mtest.CreateCommandErrorResponse(mtest.CommandError{Code: 91, Name: "ShutdownInProgress", Message: "shutting down"}),
		)

		store := NewMongoEntryStore(mt.Coll, nil, zap.NewNop())
		_, err := store.Append(context.Background(), "u1", sampleFields("a"))
		assert.Error(mt, err)
	})
}

func TestMongoEntryStoreRecent(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("newest first from mongo", func(mt *mtest.T) {
		base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, namespaceOf(mt), mtest.FirstBatch,
			recordDoc("u1", "c", base.Add(2*time.Hour)),
			recordDoc("u1", "b", base.Add(time.Hour)),
			recordDoc("u1", "a", base),
		))

		store := NewMongoEntryStore(mt.Coll, nil, zap.NewNop())
		entries, err := store.Recent(context.Background(), "u1", 2)
		require.NoError(mt, err)
		require.Len(mt, entries, 2)
		assert.Equal(mt, "c event", entries[0].TodayEvent)
		assert.Equal(mt, "b event", entries[1].TodayEvent)
		assert.Equal(mt, "u1", entries[0].OwnerID)
	})

	mt.Run("served from warm cache", func(mt *mtest.T) {
		_, rdb := newTestRedis(mt.T)
		base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, namespaceOf(mt), mtest.FirstBatch,
			recordDoc("u1", "b", base.Add(time.Hour)),
			recordDoc("u1", "a", base),
		))

		store := NewMongoEntryStore(mt.Coll, rdb, zap.NewNop())
		first, err := store.Recent(context.Background(), "u1", 4)
		require.NoError(mt, err)
		require.Len(mt, first, 2)

		// No mock response left: a second query would fail.
		second, err := store.Recent(context.Background(), "u1", 4)
		require.NoError(mt, err)
		assert.Equal(mt, first[0].ID, second[0].ID)
		assert.Equal(mt, first[1].TodayEvent, second[1].TodayEvent)
	})
}

func TestMongoEntryStoreRecentWaitsForAppend(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("cold cache warmed after in-flight append", func(mt *mtest.T) {
		_, rdb := newTestRedis(mt.T)
		base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, namespaceOf(mt), mtest.FirstBatch,
			recordDoc("u1", "b", base.Add(time.Hour)),
			recordDoc("u1", "a", base),
		))

		store := NewMongoEntryStore(mt.Coll, rdb, zap.NewNop())

		// An append holding the lock: its push skipped the cold cache.
		store.appendMu.Lock()

		done := make(chan []models.JournalEntry, 1)
		go func() {
			entries, err := store.Recent(context.Background(), "u1", 4)
			assert.NoError(mt, err)
			done <- entries
		}()

		select {
		case <-done:
			store.appendMu.Unlock()
			mt.Fatal("cache miss was served while an append was in flight")
		case <-time.After(100 * time.Millisecond):
		}
		store.appendMu.Unlock()

		var got []models.JournalEntry
		select {
		case got = <-done:
		case <-time.After(2 * time.Second):
			mt.Fatal("Recent did not return")
		}
		require.Len(mt, got, 2)
		assert.Equal(mt, "b event", got[0].TodayEvent)

		cached, ok := store.cache.Get(context.Background(), "u1")
		require.True(mt, ok)
		require.Len(mt, cached, 2)
		assert.Equal(mt, got[0].ID, cached[0].ID)
	})
}

func TestMongoEntryStoreSubscribe(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("initial load and change", func(mt *mtest.T) {
		_, rdb := newTestRedis(mt.T)
		base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
		ns := namespaceOf(mt)
		mt.AddMockResponses(
			// initial load
			mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, recordDoc("u1", "a", base)),
			// append: newest lookup and insert
			mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, recordDoc("u1", "a", base)),
			mtest.CreateSuccessResponse(),
			// re-query after the change notification
			mtest.CreateCursorResponse(0, ns, mtest.FirstBatch,
				recordDoc("u1", "b", base.Add(time.Hour)),
				recordDoc("u1", "a", base),
			),
		)

		store := NewMongoEntryStore(mt.Coll, rdb, zap.NewNop())
		rec := &deliveryRecorder{}
		sub, err := store.Subscribe(context.Background(), "u1", rec.onChange)
		require.NoError(mt, err)
		defer sub.Unsubscribe()

		require.Eventually(mt, func() bool { return rec.count() == 1 }, 2*time.Second, 10*time.Millisecond)
		assert.Len(mt, rec.last(), 1)

		_, err = store.Append(context.Background(), "u1", sampleFields("b"))
		require.NoError(mt, err)

		require.Eventually(mt, func() bool { return len(rec.last()) == 2 }, 2*time.Second, 10*time.Millisecond)
		assert.Equal(mt, "b event", rec.last()[0].TodayEvent)

		sub.Unsubscribe()
		sub.Unsubscribe()
	})

	mt.Run("requires redis", func(mt *mtest.T) {
		store := NewMongoEntryStore(mt.Coll, nil, zap.NewNop())
		_, err := store.Subscribe(context.Background(), "u1", func([]models.JournalEntry) {})
		assert.Error(mt, err)
	})
}
