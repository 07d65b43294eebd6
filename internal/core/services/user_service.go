package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/spaceko/resource-status-service/internal/core/domain"
	"github.com/spaceko/resource-status-service/internal/core/entitlement"
	"github.com/spaceko/resource-status-service/internal/core/ports"
	"github.com/spaceko/resource-status-service/internal/logging"
)

// UserService provisions identities. Every operation is gated by the
// create_user entitlement.
type UserService struct {
	users  ports.UserStore
	audit  ports.AuditLog
	now    func() time.Time
	logger *slog.Logger
}

var _ ports.UserService = (*UserService)(nil)

func NewUserService(users ports.UserStore, audit ports.AuditLog, logger *slog.Logger) *UserService {
	return &UserService{users: users, audit: audit, now: time.Now, logger: logging.OrDefault(logger)}
}

func (s *UserService) CreateUser(ctx context.Context, actor domain.Actor, user domain.User) (created domain.User, err error) {
	logger := logging.Component(ctx, s.logger, "UserService", "CreateUser",
		"actor", actor.UserCode,
		"user_code", user.UserCode,
		"user_type", user.UserType,
	)
	defer func() {
		if err != nil {
			logger.WarnContext(ctx, "user not created", "error", err, "error_kind", domain.ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "user created")
	}()

	if err = entitlement.Decide(actor.UserType, actor.UserCode, entitlement.ActionCreateUser, nil).Err(); err != nil {
		return
	}

	user.UserCode = strings.TrimSpace(user.UserCode)
	user.Username = strings.TrimSpace(user.Username)
	if err = user.Validate(); err != nil {
		return
	}
	user.IsActive = true
	user.CreatedBy = actor.UserCode
	user.CreatedAt = s.now()

	created, err = s.users.Create(ctx, user)
	if err != nil {
		if !errors.Is(err, domain.ErrConflict) {
			err = fmt.Errorf("persist user: %w", err)
		}
		return
	}

	if aerr := s.audit.Append(ctx, domain.AuditEntry{
		ID:        uuid.NewString(),
		Timestamp: created.CreatedAt,
		Action:    domain.AuditUserCreate,
		UserCode:  actor.UserCode,
		UserType:  actor.UserType,
		SessionID: actor.SessionID,
	}); aerr != nil {
		logger.ErrorContext(ctx, "failed to append audit entry", "error", aerr)
	}
	return created, nil
}

func (s *UserService) ListUsers(ctx context.Context, actor domain.Actor) ([]domain.User, error) {
	if err := entitlement.Decide(actor.UserType, actor.UserCode, entitlement.ActionCreateUser, nil).Err(); err != nil {
		return nil, err
	}
	return s.users.List(ctx)
}

// SetActive enables or disables an account. The superadmin account cannot be
// disabled.
func (s *UserService) SetActive(ctx context.Context, actor domain.Actor, code string, active bool) error {
	if err := entitlement.Decide(actor.UserType, actor.UserCode, entitlement.ActionCreateUser, nil).Err(); err != nil {
		return err
	}
	if code == domain.SuperAdminCode && !active {
		return domain.NewValidationError("userCode", "the superadmin account cannot be disabled")
	}
	if err := s.users.SetActive(ctx, code, active); err != nil {
		return err
	}
	logging.Component(ctx, s.logger, "UserService", "SetActive").
		InfoContext(ctx, "account state changed", "actor", actor.UserCode, "user_code", code, "active", active)
	return nil
}
