package services

import (
	"context"
	"sync"
	"testing"

	"github.com/AnshRaj112/kokoro-journal/internal/models"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func sampleFields(tag string) models.EntryFields {
	return models.EntryFields{
		TodayEvent: tag + " event",
		Impression: tag + " impression",
		Emotion:    tag + " emotion",
		Insight:    tag + " insight",
		NextStep:   tag + " next step",
	}
}

type fakeVerifier struct {
	mu       sync.Mutex
	calls    int
	identity *models.Identity
	err      error
}

func (f *fakeVerifier) Verify(ctx context.Context, email, password string) (*models.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	id := *f.identity
	return &id, nil
}

func (f *fakeVerifier) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeCompletion struct {
	mu       sync.Mutex
	requests []CompletionRequest
	reply    string
	err      error
}

func (f *fakeCompletion) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	return f.reply, f.err
}

func (f *fakeCompletion) Requests() []CompletionRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]CompletionRequest(nil), f.requests...)
}
