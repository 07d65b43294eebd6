package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	"github.com/spaceko/resource-status-service/internal/core/domain"
	"github.com/spaceko/resource-status-service/internal/core/ports"
)

const sessionKeyPrefix = "session:"

// SessionStore keeps each session as a JSON value whose TTL is the
// session's deadline, so Redis evicts idle and expired sessions itself.
type SessionStore struct {
	client Client
	idle   time.Duration
	cb     *gobreaker.CircuitBreaker
	now    func() time.Time
}

var _ ports.SessionStore = (*SessionStore)(nil)

func NewSessionStore(client Client, idle time.Duration) *SessionStore {
	return &SessionStore{client: client, idle: idle, cb: newBreaker(), now: time.Now}
}

func (s *SessionStore) WithClock(now func() time.Time) *SessionStore {
	s.now = now
	return s
}

func sessionKey(id string) string { return sessionKeyPrefix + id }

func (s *SessionStore) Save(ctx context.Context, session domain.Session) error {
	ttl := session.Deadline(s.idle).Sub(s.now())
	if ttl <= 0 {
		return s.Delete(ctx, session.SessionID)
	}
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	_, err = guard(s.cb, "save session", func() (string, error) {
		return s.client.Set(ctx, sessionKey(session.SessionID), string(payload), ttl).Result()
	})
	return err
}

// Update rewrites the session with SET XX, so a session deleted by a
// concurrent logout stays deleted.
func (s *SessionStore) Update(ctx context.Context, session domain.Session) error {
	ttl := session.Deadline(s.idle).Sub(s.now())
	if ttl <= 0 {
		if err := s.Delete(ctx, session.SessionID); err != nil {
			return err
		}
		return domain.ErrNotFound
	}
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	updated, err := guard(s.cb, "update session", func() (bool, error) {
		return s.client.SetXX(ctx, sessionKey(session.SessionID), string(payload), ttl).Result()
	})
	if err != nil {
		return err
	}
	if !updated {
		return domain.ErrNotFound
	}
	return nil
}

func (s *SessionStore) Get(ctx context.Context, sessionID string) (domain.Session, error) {
	raw, err := guard(s.cb, "get session", func() (string, error) {
		return s.client.Get(ctx, sessionKey(sessionID)).Result()
	})
	if err != nil {
		return domain.Session{}, err
	}
	var session domain.Session
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		return domain.Session{}, fmt.Errorf("decode session: %w", err)
	}
	return session, nil
}

func (s *SessionStore) Delete(ctx context.Context, sessionID string) error {
	_, err := guard(s.cb, "delete session", func() (int64, error) {
		return s.client.Del(ctx, sessionKey(sessionID)).Result()
	})
	return err
}

// DeleteExpired is a no-op: every key carries its own TTL.
func (s *SessionStore) DeleteExpired(ctx context.Context, now time.Time, idle time.Duration) (int, error) {
	return 0, nil
}
