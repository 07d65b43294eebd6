package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/spaceko/resource-status-service/internal/core/domain"
	"github.com/spaceko/resource-status-service/internal/core/ports"
	"github.com/spaceko/resource-status-service/internal/logging"
)

const (
	DefaultSessionTTL  = 24 * time.Hour
	DefaultIdleTimeout = 30 * time.Minute
)

// SessionManager drives sessions through Anonymous -> Authenticated ->
// {Expired, LoggedOut}. Expired sessions are never renewed.
type SessionManager struct {
	users    ports.UserStore
	sessions ports.SessionStore
	ttl      time.Duration
	idle     time.Duration
	now      func() time.Time
	newID    func() string
	logger   *slog.Logger
}

var _ ports.SessionService = (*SessionManager)(nil)

func NewSessionManager(users ports.UserStore, sessions ports.SessionStore, ttl, idle time.Duration, logger *slog.Logger) *SessionManager {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	if idle <= 0 {
		idle = DefaultIdleTimeout
	}
	return &SessionManager{
		users:    users,
		sessions: sessions,
		ttl:      ttl,
		idle:     idle,
		now:      time.Now,
		newID:    uuid.NewString,
		logger:   logging.OrDefault(logger),
	}
}

// WithClock replaces the time source. Used by tests.
func (m *SessionManager) WithClock(now func() time.Time) *SessionManager {
	m.now = now
	return m
}

func (m *SessionManager) IdleTimeout() time.Duration { return m.idle }

func (m *SessionManager) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return logging.Component(ctx, m.logger, "SessionManager", operation, attrs...)
}

// Login authenticates code under the declared role and opens a session.
func (m *SessionManager) Login(ctx context.Context, code string, declared domain.UserType) (session domain.Session, user domain.User, err error) {
	logger := m.loggerWith(ctx, "Login", "user_code", code, "declared_type", declared)
	defer func() {
		if err != nil {
			logger.WarnContext(ctx, "login rejected", "error", err, "error_kind", domain.ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "login succeeded", "session_id", session.SessionID)
	}()

	encoded, ok := domain.UserTypeForCode(code)
	if !ok {
		err = domain.ErrInvalidCode
		return
	}
	if encoded != declared {
		err = domain.ErrRoleMismatch
		return
	}

	user, err = m.users.GetByCode(ctx, code)
	if errors.Is(err, domain.ErrNotFound) {
		err = fmt.Errorf("%w: unknown identity", domain.ErrInvalidCode)
		return
	}
	if err != nil {
		err = fmt.Errorf("lookup user: %w", err)
		return
	}
	if !user.IsActive {
		err = domain.ErrAccountInactive
		return
	}
	if user.UserType != declared {
		err = domain.ErrRoleMismatch
		return
	}

	now := m.now()
	session = domain.Session{
		SessionID:    m.newID(),
		UserCode:     user.UserCode,
		UserType:     user.UserType,
		Username:     user.Username,
		CreatedAt:    now,
		LastActivity: now,
		ExpiresAt:    now.Add(m.ttl),
	}
	if err = m.sessions.Save(ctx, session); err != nil {
		err = fmt.Errorf("save session: %w", err)
		return
	}
	return session, user, nil
}

// IsValid reports whether s is inside both its absolute and idle windows.
func (m *SessionManager) IsValid(s domain.Session) bool {
	return !s.Expired(m.now(), m.idle)
}

// Validate loads a session and rejects it when missing or expired. Expired
// sessions are removed.
func (m *SessionManager) Validate(ctx context.Context, sessionID string) (domain.Session, error) {
	if sessionID == "" {
		return domain.Session{}, domain.ErrUnauthenticated
	}
	s, err := m.sessions.Get(ctx, sessionID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Session{}, domain.ErrUnauthenticated
	}
	if err != nil {
		return domain.Session{}, fmt.Errorf("load session: %w", err)
	}
	if !m.IsValid(s) {
		if err := m.sessions.Delete(ctx, sessionID); err != nil {
			m.loggerWith(ctx, "Validate").WarnContext(ctx, "failed to drop expired session", "error", err)
		}
		return domain.Session{}, domain.ErrSessionExpired
	}
	return s, nil
}

// Touch extends the idle window of a valid session.
func (m *SessionManager) Touch(ctx context.Context, sessionID string) (domain.Session, error) {
	s, err := m.Validate(ctx, sessionID)
	if err != nil {
		return domain.Session{}, err
	}
	s.LastActivity = m.now()
	if err := m.update(ctx, s); err != nil {
		return domain.Session{}, err
	}
	return s, nil
}

// BindRefresh records the fingerprint of the refresh token issued for the
// session, replacing any earlier one.
func (m *SessionManager) BindRefresh(ctx context.Context, sessionID, fingerprint string) (domain.Session, error) {
	s, err := m.Validate(ctx, sessionID)
	if err != nil {
		return domain.Session{}, err
	}
	s.RefreshHash = fingerprint
	if err := m.update(ctx, s); err != nil {
		return domain.Session{}, err
	}
	return s, nil
}

// update writes s back only if it still exists. A session removed since it
// was read, by logout or expiry, is reported as unauthenticated.
func (m *SessionManager) update(ctx context.Context, s domain.Session) error {
	err := m.sessions.Update(ctx, s)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.ErrUnauthenticated
	}
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Logout invalidates the session. Logging out twice is not an error.
func (m *SessionManager) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	err := m.sessions.Delete(ctx, sessionID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("delete session: %w", err)
	}
	m.loggerWith(ctx, "Logout", "session_id", sessionID).InfoContext(ctx, "session closed")
	return nil
}

// Sweep removes every expired session and returns how many were dropped.
func (m *SessionManager) Sweep(ctx context.Context) (int, error) {
	n, err := m.sessions.DeleteExpired(ctx, m.now(), m.idle)
	if err != nil {
		return 0, fmt.Errorf("sweep sessions: %w", err)
	}
	if n > 0 {
		m.loggerWith(ctx, "Sweep").InfoContext(ctx, "expired sessions removed", "count", n)
	}
	return n, nil
}
