package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/AnshRaj112/kokoro-journal/internal/models"
)

// ErrNoIdentity is returned when an operation needs a signed-in identity.
var ErrNoIdentity = errors.New("no signed-in identity")

// StoreWriteError wraps a failed append. Nothing was stored.
type StoreWriteError struct {
	Err error
}

func (e *StoreWriteError) Error() string {
	return fmt.Sprintf("store write failed: %v", e.Err)
}

func (e *StoreWriteError) Unwrap() error { return e.Err }

// EntryStore persists journal entries under their owner's namespace.
type EntryStore interface {
	// Append stores fields as a new entry and returns it with its
	// store-assigned id and timestamp.
	Append(ctx context.Context, ownerID string, fields models.EntryFields) (*models.JournalEntry, error)
	// Subscribe calls onChange with every entry of the namespace, newest
	// first, once on initial load and again after each change.
	Subscribe(ctx context.Context, ownerID string, onChange func([]models.JournalEntry)) (*Subscription, error)
	// Recent returns up to n entries, newest first.
	Recent(ctx context.Context, ownerID string, n int) ([]models.JournalEntry, error)
}

// Subscription is a live entry subscription.
type Subscription struct {
	stop func()
}

func newSubscription(stop func()) *Subscription {
	LiveSubscriptions.Inc()
	return &Subscription{stop: sync.OnceFunc(func() {
		stop()
		LiveSubscriptions.Dec()
	})}
}

// Unsubscribe releases the subscription and waits until no further
// deliveries can happen. Calls after the first do nothing.
func (s *Subscription) Unsubscribe() {
	if s != nil {
		s.stop()
	}
}

// nextTimestamp returns a millisecond timestamp strictly after newest.
func nextTimestamp(now, newest time.Time) time.Time {
	ts := now.UTC().Truncate(time.Millisecond)
	if !newest.IsZero() && !ts.After(newest) {
		ts = newest.UTC().Truncate(time.Millisecond).Add(time.Millisecond)
	}
	return ts
}
