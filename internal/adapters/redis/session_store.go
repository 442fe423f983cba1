package redis

// Package redis backs the dashboard's sign-in sessions with Redis so
// they survive restarts and are shared across replicas.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	domainauth "github.com/LeHak0/Neuro-Triage/internal/domain/auth"
	"github.com/LeHak0/Neuro-Triage/internal/ports"
)

const sessionKeyPrefix = "auth:session:"

// ErrNotFound is returned when a session is absent or already reaped by
// its TTL.
var ErrNotFound = errors.New("session not found")

// SessionStore implements ports.SessionStore on Redis. Keys carry a TTL
// matching the session expiry, so Redis reaps stale records on its own.
type SessionStore struct {
	client redis.UniversalClient
}

// NewSessionStore creates a Redis-backed session store.
func NewSessionStore(client redis.UniversalClient) *SessionStore {
	return &SessionStore{client: client}
}

func (s *SessionStore) Put(ctx context.Context, sess domainauth.Session) error {
	if sess.ID == "" {
		return errors.New("session ID cannot be empty")
	}
	ttl := time.Until(sess.ExpiresAt)
	if ttl <= 0 {
		return errors.New("session is already expired")
	}

	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	return s.client.Set(ctx, sessionKeyPrefix+sess.ID, data, ttl).Err()
}

func (s *SessionStore) Find(ctx context.Context, id string) (domainauth.Session, error) {
	if id == "" {
		return domainauth.Session{}, ErrNotFound
	}

	data, err := s.client.Get(ctx, sessionKeyPrefix+id).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domainauth.Session{}, ErrNotFound
		}
		return domainauth.Session{}, fmt.Errorf("redis get: %w", err)
	}

	var sess domainauth.Session
	if err := json.Unmarshal([]byte(data), &sess); err != nil {
		return domainauth.Session{}, fmt.Errorf("unmarshal session: %w", err)
	}
	return sess, nil
}

func (s *SessionStore) Revoke(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	return s.client.Del(ctx, sessionKeyPrefix+id).Err()
}

var _ ports.SessionStore = (*SessionStore)(nil)
