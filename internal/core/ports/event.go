package ports

import (
	"context"

	"github.com/spaceko/resource-status-service/internal/core/domain"
)

// ResourceChangePublisher fans accepted mutations out of the process.
type ResourceChangePublisher interface {
	PublishResourceChanged(ctx context.Context, change domain.ResourceChange) error
}

// SnapshotArchiver stores point-in-time copies of the resource snapshot and
// returns the key it was written under.
type SnapshotArchiver interface {
	Archive(ctx context.Context, state domain.AppState) (string, error)
}

// SyncMetrics records synchronizer activity.
type SyncMetrics interface {
	ObserveMutation(action domain.AuditAction, outcome string)
	ObserveReconcile(action domain.ReconcileAction)
	SetVersion(version int64)
}
