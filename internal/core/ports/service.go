package ports

import (
	"context"

	"github.com/spaceko/resource-status-service/internal/core/domain"
)

type ResourceService interface {
	ListResources(ctx context.Context, filter domain.ResourceFilter) ([]domain.Resource, error)
	GetResource(ctx context.Context, id int64) (domain.Resource, error)
	CreateResource(ctx context.Context, in domain.ResourceInput, actor domain.Actor) (domain.MutationResult, error)
	ApplyStatusUpdate(ctx context.Context, ref domain.ResourceRef, status domain.Status, actor domain.Actor) (domain.MutationResult, error)
	ApplyVerification(ctx context.Context, id int64, actor domain.Actor) (domain.MutationResult, error)
	GetSnapshot(ctx context.Context) (domain.AppState, error)
	Reconcile(ctx context.Context, clientVersion int64) (domain.ReconcileResult, error)
	Subscribe(fn func(domain.ResourceChange)) (unsubscribe func())
}

type SessionService interface {
	Login(ctx context.Context, code string, declared domain.UserType) (domain.Session, domain.User, error)
	Validate(ctx context.Context, sessionID string) (domain.Session, error)
	Touch(ctx context.Context, sessionID string) (domain.Session, error)
	Logout(ctx context.Context, sessionID string) error
}

type AuthService interface {
	Login(ctx context.Context, code string, declared domain.UserType) (domain.AuthResult, error)
	Refresh(ctx context.Context, refreshToken string) (domain.AuthResult, error)
	Logout(ctx context.Context, sessionID string) error
	Authenticate(ctx context.Context, accessToken string) (domain.Actor, error)
}

type UserService interface {
	CreateUser(ctx context.Context, actor domain.Actor, user domain.User) (domain.User, error)
	ListUsers(ctx context.Context, actor domain.Actor) ([]domain.User, error)
	SetActive(ctx context.Context, actor domain.Actor, code string, active bool) error
}

type ContributorService interface {
	Top(ctx context.Context, limit int) ([]domain.Contributor, error)
}

type AuditService interface {
	Recent(ctx context.Context, actor domain.Actor, limit int) ([]domain.AuditEntry, error)
}
