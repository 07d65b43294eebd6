package ports

import (
	"context"
	"time"

	"github.com/spaceko/resource-status-service/internal/core/domain"
)

// ResourceStore is the backend-agnostic resource persistence contract. It
// does not check entitlements; callers go through the synchronizer.
type ResourceStore interface {
	List(ctx context.Context, filter domain.ResourceFilter) ([]domain.Resource, error)
	GetByID(ctx context.Context, id int64) (domain.Resource, error)
	// GetByName returns ErrNotFound when no resource has the name and a
	// validation error when the name is ambiguous.
	GetByName(ctx context.Context, name string) (domain.Resource, error)
	// Create assigns the id, stamps LastUpdated and leaves verification unset.
	Create(ctx context.Context, in domain.ResourceInput) (domain.Resource, error)
	// Update merges patch and always refreshes LastUpdated.
	Update(ctx context.Context, id int64, patch domain.ResourcePatch) (domain.Resource, error)

	CurrentVersion(ctx context.Context) (int64, error)
	// BumpVersion increments the snapshot version by one and returns it.
	BumpVersion(ctx context.Context) (int64, error)

	// UpdateVersioned and CreateVersioned apply the change and bump the
	// version as one unit: either both are stored or neither is.
	UpdateVersioned(ctx context.Context, id int64, patch domain.ResourcePatch) (domain.Resource, int64, error)
	CreateVersioned(ctx context.Context, in domain.ResourceInput) (domain.Resource, int64, error)
}

type UserStore interface {
	GetByCode(ctx context.Context, code string) (domain.User, error)
	// Create returns ErrConflict when the user code is taken.
	Create(ctx context.Context, user domain.User) (domain.User, error)
	List(ctx context.Context) ([]domain.User, error)
	SetActive(ctx context.Context, code string, active bool) error
}

type ContributorStore interface {
	// Increment adds one accepted update for actor.
	Increment(ctx context.Context, actor domain.Actor, at time.Time) error
	// Top returns contributors ordered by update count, highest first.
	Top(ctx context.Context, limit int) ([]domain.Contributor, error)
}

type SessionStore interface {
	Save(ctx context.Context, session domain.Session) error
	// Update replaces a stored session and returns ErrNotFound when it is
	// gone. It never recreates a deleted session.
	Update(ctx context.Context, session domain.Session) error
	Get(ctx context.Context, sessionID string) (domain.Session, error)
	// Delete is idempotent.
	Delete(ctx context.Context, sessionID string) error
	DeleteExpired(ctx context.Context, now time.Time, idle time.Duration) (int, error)
}

// AuditLog is a bounded, append-only log; the oldest entries are dropped
// first once capacity is reached.
type AuditLog interface {
	Append(ctx context.Context, entry domain.AuditEntry) error
	Recent(ctx context.Context, limit int) ([]domain.AuditEntry, error)
}

type RateLimiter interface {
	// Allow records one attempt for key and reports whether it is within budget.
	Allow(ctx context.Context, key string) (bool, error)
}
