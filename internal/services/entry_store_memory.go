package services

import (
	"context"
	"sync"
	"time"

	"github.com/AnshRaj112/kokoro-journal/internal/models"
	"github.com/google/uuid"
)

// MemoryEntryStore keeps entries in process memory.
type MemoryEntryStore struct {
	mu      sync.Mutex
	entries map[string][]models.JournalEntry // newest first
	subs    map[string]map[*memorySubscriber]struct{}
	now     func() time.Time
}

type memorySubscriber struct {
	notify chan struct{}
	quit   chan struct{}
	done   chan struct{}
}

func NewMemoryEntryStore() *MemoryEntryStore {
	return &MemoryEntryStore{
		entries: make(map[string][]models.JournalEntry),
		subs:    make(map[string]map[*memorySubscriber]struct{}),
		now:     time.Now,
	}
}

func (m *MemoryEntryStore) Append(ctx context.Context, ownerID string, fields models.EntryFields) (*models.JournalEntry, error) {
	if ownerID == "" {
		return nil, ErrNoIdentity
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var newest time.Time
	if list := m.entries[ownerID]; len(list) > 0 {
		newest = list[0].Timestamp
	}

	entry := models.JournalEntry{
		ID:          uuid.NewString(),
		OwnerID:     ownerID,
		EntryFields: fields,
		Timestamp:   nextTimestamp(m.now(), newest),
	}
	m.entries[ownerID] = append([]models.JournalEntry{entry}, m.entries[ownerID]...)

	for sub := range m.subs[ownerID] {
		sub.signal()
	}
	return &entry, nil
}

func (m *MemoryEntryStore) Recent(ctx context.Context, ownerID string, n int) ([]models.JournalEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries := m.snapshot(ownerID)
	if n >= 0 && len(entries) > n {
		entries = entries[:n]
	}
	return entries, nil
}

func (m *MemoryEntryStore) Subscribe(ctx context.Context, ownerID string, onChange func([]models.JournalEntry)) (*Subscription, error) {
	if ownerID == "" {
		return nil, ErrNoIdentity
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sub := &memorySubscriber{
		notify: make(chan struct{}, 1),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}

	m.mu.Lock()
	if m.subs[ownerID] == nil {
		m.subs[ownerID] = make(map[*memorySubscriber]struct{})
	}
	m.subs[ownerID][sub] = struct{}{}
	m.mu.Unlock()

	// Initial load.
	sub.signal()

	go func() {
		defer close(sub.done)
		for {
			select {
			case <-sub.quit:
				return
			case <-sub.notify:
			}
			entries := m.snapshot(ownerID)
			select {
			case <-sub.quit:
				return
			default:
			}
			onChange(entries)
		}
	}()

	return newSubscription(func() {
		m.mu.Lock()
		delete(m.subs[ownerID], sub)
		if len(m.subs[ownerID]) == 0 {
			delete(m.subs, ownerID)
		}
		m.mu.Unlock()
		close(sub.quit)
		<-sub.done
	}), nil
}

func (m *MemoryEntryStore) snapshot(ownerID string) []models.JournalEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.entries[ownerID]
	out := make([]models.JournalEntry, len(list))
	copy(out, list)
	return out
}

// signal coalesces pending change notifications.
func (s *memorySubscriber) signal() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}
