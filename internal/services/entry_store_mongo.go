package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/AnshRaj112/kokoro-journal/internal/models"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

const (
	// RecordsCollection holds every journal entry.
	RecordsCollection = "records"
	// RecordEventsPrefix is the pub/sub channel prefix for namespace changes.
	RecordEventsPrefix = "records:"

	recordQueryTimeout = 5 * time.Second
)

type recordDocument struct {
	ID                 primitive.ObjectID `bson:"_id,omitempty"`
	OwnerID            string             `bson:"owner_id"`
	Namespace          string             `bson:"namespace"`
	models.EntryFields `bson:",inline"`
	Timestamp          time.Time `bson:"timestamp"`
}

func (d recordDocument) entry() models.JournalEntry {
	return models.JournalEntry{
		ID:          d.ID.Hex(),
		OwnerID:     d.OwnerID,
		EntryFields: d.EntryFields,
		Timestamp:   d.Timestamp.UTC(),
	}
}

// EnsureRecordIndexes configures indexes for the records collection.
// Called on startup from main after Mongo has connected.
func EnsureRecordIndexes(ctx context.Context, col *mongo.Collection) error {
	model := mongo.IndexModel{
		Keys: bson.D{
			{Key: "owner_id", Value: 1},
			{Key: "timestamp", Value: -1},
		},
		Options: options.Index().SetName("idx_owner_timestamp"),
	}
	_, err := col.Indexes().CreateOne(ctx, model)
	return err
}

// MongoEntryStore stores entries in MongoDB and fans out changes through
// Redis pub/sub.
type MongoEntryStore struct {
	col   *mongo.Collection
	rdb   *redis.Client
	cache *RecentCache
	log   *zap.Logger
	now   func() time.Time

	appendMu sync.Mutex
}

func NewMongoEntryStore(col *mongo.Collection, rdb *redis.Client, log *zap.Logger) *MongoEntryStore {
	log = log.Named("records")
	return &MongoEntryStore{
		col:   col,
		rdb:   rdb,
		cache: NewRecentCache(rdb, log),
		log:   log,
		now:   time.Now,
	}
}

func (s *MongoEntryStore) Append(ctx context.Context, ownerID string, fields models.EntryFields) (*models.JournalEntry, error) {
	if ownerID == "" {
		return nil, ErrNoIdentity
	}

	s.appendMu.Lock()
	defer s.appendMu.Unlock()

	newest, err := s.newestTimestamp(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("load newest timestamp: %w", err)
	}

	doc := recordDocument{
		ID:          primitive.NewObjectID(),
		OwnerID:     ownerID,
		Namespace:   models.Namespace(ownerID),
		EntryFields: fields,
		Timestamp:   nextTimestamp(s.now(), newest),
	}
	if _, err := s.col.InsertOne(ctx, doc); err != nil {
		return nil, fmt.Errorf("insert record: %w", err)
	}

	entry := doc.entry()
	if err := s.cache.Push(ctx, entry); err != nil {
		s.log.Warn("recent cache push failed", zap.String("owner_id", ownerID), zap.Error(err))
		s.cache.Invalidate(ctx, ownerID)
	}
	if s.rdb != nil {
		if err := s.rdb.Publish(ctx, RecordEventsPrefix+ownerID, entry.ID).Err(); err != nil {
			s.log.Warn("record change notification failed", zap.String("owner_id", ownerID), zap.Error(err))
		}
	}
	return &entry, nil
}

func (s *MongoEntryStore) newestTimestamp(ctx context.Context, ownerID string) (time.Time, error) {
	var doc recordDocument
	opts := options.FindOne().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetProjection(bson.M{"timestamp": 1})
	err := s.col.FindOne(ctx, bson.M{"owner_id": ownerID}, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	return doc.Timestamp, nil
}

func (s *MongoEntryStore) Recent(ctx context.Context, ownerID string, n int) ([]models.JournalEntry, error) {
	if n <= 0 {
		return nil, nil
	}
	if n <= recentMaxLen {
		if cached, ok := s.cache.Get(ctx, ownerID); ok {
			if len(cached) > n {
				cached = cached[:n]
			}
			return cached, nil
		}
	}

	entries, err := s.loadRecent(ctx, ownerID, n)
	if err != nil {
		return nil, err
	}
	if len(entries) > n {
		entries = entries[:n]
	}
	return entries, nil
}

// loadRecent reads the newest entries from Mongo and warms the cache. It
// holds appendMu so an append cannot land between the query and the warm
// and be missing from the cached list.
func (s *MongoEntryStore) loadRecent(ctx context.Context, ownerID string, n int) ([]models.JournalEntry, error) {
	s.appendMu.Lock()
	defer s.appendMu.Unlock()

	if n <= recentMaxLen {
		if cached, ok := s.cache.Get(ctx, ownerID); ok {
			return cached, nil
		}
	}

	entries, err := s.find(ctx, ownerID, int64(max(n, recentMaxLen)))
	if err != nil {
		return nil, err
	}
	s.cache.Warm(ctx, ownerID, entries)
	return entries, nil
}

// find returns entries newest first; limit 0 means all.
func (s *MongoEntryStore) find(ctx context.Context, ownerID string, limit int64) ([]models.JournalEntry, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}

	cur, err := s.col.Find(ctx, bson.M{"owner_id": ownerID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	entries := []models.JournalEntry{}
	for cur.Next(ctx) {
		var doc recordDocument
		if err := cur.Decode(&doc); err != nil {
			s.log.Warn("skipping undecodable record", zap.String("owner_id", ownerID), zap.Error(err))
			continue
		}
		entries = append(entries, doc.entry())
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *MongoEntryStore) Subscribe(ctx context.Context, ownerID string, onChange func([]models.JournalEntry)) (*Subscription, error) {
	if ownerID == "" {
		return nil, ErrNoIdentity
	}
	if s.rdb == nil {
		return nil, errors.New("live subscriptions need redis")
	}

	pubsub := s.rdb.Subscribe(ctx, RecordEventsPrefix+ownerID)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe records: %w", err)
	}

	subCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		ch := pubsub.Channel()

		deliver := func() {
			queryCtx, cancelQuery := context.WithTimeout(subCtx, recordQueryTimeout)
			entries, err := s.find(queryCtx, ownerID, 0)
			cancelQuery()
			if err != nil {
				if subCtx.Err() == nil {
					s.log.Error("record query failed", zap.String("owner_id", ownerID), zap.Error(err))
				}
				return
			}
			if subCtx.Err() != nil {
				return
			}
			onChange(entries)
		}

		deliver()
		for {
			select {
			case <-subCtx.Done():
				return
			case _, ok := <-ch:
				if !ok {
					return
				}
				// Collapse a burst of notifications into one query.
				for drained := false; !drained; {
					select {
					case _, ok := <-ch:
						if !ok {
							return
						}
					default:
						drained = true
					}
				}
				deliver()
			}
		}
	}()

	return newSubscription(func() {
		cancel()
		_ = pubsub.Close()
		<-done
	}), nil
}
