package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/spaceko/resource-status-service/internal/core/domain"
	"github.com/spaceko/resource-status-service/internal/logging"
)

// Authenticator resolves a bearer access token to the acting identity.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (domain.Actor, error)
}

type AuthMiddleware struct {
	auth   Authenticator
	logger *slog.Logger
}

func NewAuthMiddleware(auth Authenticator, logger *slog.Logger) *AuthMiddleware {
	return &AuthMiddleware{auth: auth, logger: logging.OrDefault(logger)}
}

type contextKey string

const actorKey contextKey = "actor"

// WithActor attaches the authenticated actor to ctx.
func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

// ActorFrom returns the actor set by RequireSession.
func ActorFrom(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorKey).(domain.Actor)
	return actor, ok
}

// RequireSession verifies the bearer token and its session. An expired
// session is rejected and never renewed.
func (m *AuthMiddleware) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger := logging.Component(r.Context(), m.logger, "AuthMiddleware", "RequireSession")

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			logger.DebugContext(r.Context(), "missing authorization header")
			writeError(w, http.StatusUnauthorized, "missing authorization header", "")
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
			logger.DebugContext(r.Context(), "invalid authorization header format")
			writeError(w, http.StatusUnauthorized, "invalid authorization header", "")
			return
		}

		actor, err := m.auth.Authenticate(r.Context(), parts[1])
		if err != nil {
			logger.InfoContext(r.Context(), "authentication failed", "error_kind", domain.ErrorKind(err), "error", err)
			msg := "invalid or expired token"
			if errors.Is(err, domain.ErrSessionExpired) {
				msg = "session expired"
			}
			if domain.HTTPStatus(err) == http.StatusInternalServerError {
				writeError(w, http.StatusServiceUnavailable, "authentication unavailable", "")
				return
			}
			writeError(w, http.StatusUnauthorized, msg, "")
			return
		}

		ctx := WithActor(r.Context(), actor)
		if l := logging.FromContext(ctx); l != nil {
			ctx = logging.ContextWithLogger(ctx, l.With("user_code", actor.UserCode, "user_type", string(actor.UserType)))
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole wraps RequireSession and admits only the listed user types.
func (m *AuthMiddleware) RequireRole(roles []domain.UserType, next http.Handler) http.Handler {
	return m.RequireSession(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, _ := ActorFrom(r.Context())
		for _, role := range roles {
			if actor.UserType == role {
				next.ServeHTTP(w, r)
				return
			}
		}
		logging.Component(r.Context(), m.logger, "AuthMiddleware", "RequireRole").
			InfoContext(r.Context(), "role not permitted", "required", roles, "user_type", actor.UserType)
		writeError(w, http.StatusForbidden, "forbidden", "Insufficient permissions")
	}))
}

type errorBody struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg, reason string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Error: msg, Reason: reason})
}
