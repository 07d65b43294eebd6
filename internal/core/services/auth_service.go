package services

import (
	"context"
	"crypto/rsa"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"

	"github.com/spaceko/resource-status-service/internal/core/domain"
	"github.com/spaceko/resource-status-service/internal/core/ports"
	"github.com/spaceko/resource-status-service/internal/logging"
)

const (
	DefaultAccessTokenTTL  = time.Hour
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour

	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

// Claims carried by both token types. Subject is the user code.
type Claims struct {
	Role      string `json:"role"`
	SessionID string `json:"sid"`
	TokenType string `json:"typ"`
	jwt.RegisteredClaims
}

// AuthService issues RS256 tokens bound to sessions. A token is only
// honoured while its session is valid.
type AuthService struct {
	sessions   *SessionManager
	users      ports.UserStore
	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
	logger     *slog.Logger
}

var _ ports.AuthService = (*AuthService)(nil)

func NewAuthService(
	sessions *SessionManager,
	users ports.UserStore,
	privateKey *rsa.PrivateKey,
	accessTTL, refreshTTL time.Duration,
	logger *slog.Logger,
) *AuthService {
	if accessTTL <= 0 {
		accessTTL = DefaultAccessTokenTTL
	}
	if refreshTTL <= 0 {
		refreshTTL = DefaultRefreshTokenTTL
	}
	return &AuthService{
		sessions:   sessions,
		users:      users,
		privateKey: privateKey,
		publicKey:  &privateKey.PublicKey,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
		logger:     logging.OrDefault(logger),
	}
}

// WithClock replaces the time source used for token stamps. Used by tests.
func (s *AuthService) WithClock(now func() time.Time) *AuthService {
	s.now = now
	return s
}

func (s *AuthService) Login(ctx context.Context, code string, declared domain.UserType) (domain.AuthResult, error) {
	session, user, err := s.sessions.Login(ctx, code, declared)
	if err != nil {
		return domain.AuthResult{}, err
	}
	return s.issue(ctx, session, user)
}

// Refresh exchanges a refresh token for a new token pair. The presented token
// must be the latest one issued for its session.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (domain.AuthResult, error) {
	logger := logging.Component(ctx, s.logger, "AuthService", "Refresh")

	claims, err := s.parse(refreshToken, tokenTypeRefresh)
	if err != nil {
		logger.WarnContext(ctx, "refresh token rejected", "error", err)
		return domain.AuthResult{}, domain.ErrUnauthenticated
	}

	session, err := s.sessions.Validate(ctx, claims.SessionID)
	if err != nil {
		return domain.AuthResult{}, err
	}
	if subtle.ConstantTimeCompare([]byte(session.RefreshHash), []byte(fingerprint(refreshToken))) != 1 {
		logger.WarnContext(ctx, "refresh token reuse detected", "session_id", session.SessionID, "user_code", session.UserCode)
		if err := s.sessions.Logout(ctx, session.SessionID); err != nil {
			logger.ErrorContext(ctx, "failed to revoke session after token reuse", "error", err)
		}
		return domain.AuthResult{}, domain.ErrUnauthenticated
	}

	user, err := s.users.GetByCode(ctx, session.UserCode)
	if err != nil {
		return domain.AuthResult{}, fmt.Errorf("lookup user: %w", err)
	}
	if !user.IsActive {
		return domain.AuthResult{}, domain.ErrAccountInactive
	}
	return s.issue(ctx, session, user)
}

func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	return s.sessions.Logout(ctx, sessionID)
}

// Authenticate verifies an access token, checks its session and records the
// activity. Any failure means the caller is not authenticated.
func (s *AuthService) Authenticate(ctx context.Context, accessToken string) (domain.Actor, error) {
	claims, err := s.parse(accessToken, tokenTypeAccess)
	if err != nil {
		return domain.Actor{}, fmt.Errorf("%w: %v", domain.ErrUnauthenticated, err)
	}
	session, err := s.sessions.Touch(ctx, claims.SessionID)
	if err != nil {
		return domain.Actor{}, err
	}
	if session.UserCode != claims.Subject || string(session.UserType) != claims.Role {
		return domain.Actor{}, fmt.Errorf("%w: token does not match session", domain.ErrUnauthenticated)
	}

	user, err := s.users.GetByCode(ctx, session.UserCode)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Actor{}, fmt.Errorf("%w: user no longer exists", domain.ErrUnauthenticated)
	}
	if err != nil {
		return domain.Actor{}, fmt.Errorf("lookup user: %w", err)
	}
	if !user.IsActive {
		// A disabled account loses its session on the next request.
		if err := s.sessions.Logout(ctx, session.SessionID); err != nil {
			logging.Component(ctx, s.logger, "AuthService", "Authenticate").ErrorContext(ctx, "failed to revoke session of inactive user", "error", err)
		}
		return domain.Actor{}, domain.ErrAccountInactive
	}
	return session.Actor(), nil
}

func (s *AuthService) issue(ctx context.Context, session domain.Session, user domain.User) (domain.AuthResult, error) {
	now := s.now()
	access, err := s.sign(session, tokenTypeAccess, now, now.Add(s.accessTTL))
	if err != nil {
		return domain.AuthResult{}, fmt.Errorf("sign access token: %w", err)
	}

	refreshExpiry := now.Add(s.refreshTTL)
	if refreshExpiry.After(session.ExpiresAt) {
		refreshExpiry = session.ExpiresAt
	}
	refresh, err := s.sign(session, tokenTypeRefresh, now, refreshExpiry)
	if err != nil {
		return domain.AuthResult{}, fmt.Errorf("sign refresh token: %w", err)
	}
	if _, err := s.sessions.BindRefresh(ctx, session.SessionID, fingerprint(refresh)); err != nil {
		return domain.AuthResult{}, err
	}

	return domain.AuthResult{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    now.Add(s.accessTTL),
		User:         user,
		SessionID:    session.SessionID,
	}, nil
}

func (s *AuthService) sign(session domain.Session, tokenType string, issuedAt, expiresAt time.Time) (string, error) {
	claims := Claims{
		Role:      string(session.UserType),
		SessionID: session.SessionID,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   session.UserCode,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	return token.SignedString(s.privateKey)
}

func (s *AuthService) parse(raw, tokenType string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.publicKey, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("token not valid")
	}
	if claims.TokenType != tokenType {
		return nil, fmt.Errorf("expected %s token, got %q", tokenType, claims.TokenType)
	}
	if claims.SessionID == "" || claims.Subject == "" {
		return nil, errors.New("token missing session or subject")
	}
	return claims, nil
}

// fingerprint is the stored form of a refresh token.
func fingerprint(token string) string {
	sum := blake2b.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
