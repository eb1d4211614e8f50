package services

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/AnshRaj112/kokoro-journal/internal/models"
	"github.com/redis/go-redis/v9"
)

const (
	// SessionDuration is 7 days
	SessionDuration = 7 * 24 * time.Hour
	// SessionKeyPrefix is the Redis key prefix for sessions
	SessionKeyPrefix = "session:"
	// UserSessionKeyPrefix is the Redis key prefix for user->session mapping
	UserSessionKeyPrefix = "user_session:"
	// SessionEventsPrefix is the pub/sub channel prefix for identity changes
	SessionEventsPrefix = "session_events:"

	sessionEventSignedOut = "signed_out"
)

// SessionStore keeps sessions in Redis. Each session holds the identity
// returned by the credential verifier and nothing else.
type SessionStore struct {
	rdb *redis.Client
}

func NewSessionStore(rdb *redis.Client) *SessionStore {
	return &SessionStore{rdb: rdb}
}

// Create stores a new session for identity and returns its token.
// A previous session for the same identity is invalidated so the 7-day
// timer restarts from this sign-in.
func (s *SessionStore) Create(ctx context.Context, identity models.Identity) (string, error) {
	if err := s.InvalidateUser(ctx, identity.ID); err != nil {
		return "", err
	}

	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", err
	}
	token := base64.RawURLEncoding.EncodeToString(tokenBytes)

	data, err := json.Marshal(identity)
	if err != nil {
		return "", err
	}

	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, SessionKeyPrefix+token, data, SessionDuration)
	pipe.Set(ctx, UserSessionKeyPrefix+identity.ID, token, SessionDuration)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("store session: %w", err)
	}
	return token, nil
}

// Lookup returns the identity behind token, or ErrSessionNotFound.
func (s *SessionStore) Lookup(ctx context.Context, token string) (*models.Identity, error) {
	if token == "" {
		return nil, ErrSessionNotFound
	}

	data, err := s.rdb.Get(ctx, SessionKeyPrefix+token).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	var identity models.Identity
	if err := json.Unmarshal(data, &identity); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &identity, nil
}

// Invalidate removes a session and notifies its watchers.
func (s *SessionStore) Invalidate(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}

	sessionKey := SessionKeyPrefix + token
	data, err := s.rdb.Get(ctx, sessionKey).Bytes()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	if err == nil {
		var identity models.Identity
		if json.Unmarshal(data, &identity) == nil && identity.ID != "" {
			// Only drop the mapping if it still points at this token.
			userKey := UserSessionKeyPrefix + identity.ID
			if current, _ := s.rdb.Get(ctx, userKey).Result(); current == token {
				s.rdb.Del(ctx, userKey)
			}
		}
	}

	if err := s.rdb.Del(ctx, sessionKey).Err(); err != nil {
		return err
	}
	return s.rdb.Publish(ctx, SessionEventsPrefix+token, sessionEventSignedOut).Err()
}

// InvalidateUser invalidates the current session of a user, if any.
func (s *SessionStore) InvalidateUser(ctx context.Context, userID string) error {
	token, err := s.rdb.Get(ctx, UserSessionKeyPrefix+userID).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return err
	}
	return s.Invalidate(ctx, token)
}

// Watch calls onSignedOut once when the session behind token is invalidated.
// The returned stop function releases the subscription and is idempotent.
func (s *SessionStore) Watch(ctx context.Context, token string, onSignedOut func()) (stop func(), err error) {
	pubsub := s.rdb.Subscribe(ctx, SessionEventsPrefix+token)
	// Wait for the subscription confirmation so no event published after
	// Watch returns can be missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("watch session: %w", err)
	}

	watchCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		ch := pubsub.Channel()
		for {
			select {
			case <-watchCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				if msg.Payload == sessionEventSignedOut {
					onSignedOut()
					return
				}
			}
		}
	}()

	return sync.OnceFunc(func() {
		cancel()
		_ = pubsub.Close()
		<-done
	}), nil
}
