package services

import (
	"context"

	"github.com/spaceko/resource-status-service/internal/core/domain"
	"github.com/spaceko/resource-status-service/internal/core/ports"
)

// ContributorBoard serves the contributor leaderboard.
type ContributorBoard struct {
	contributors ports.ContributorStore
}

var _ ports.ContributorService = (*ContributorBoard)(nil)

const (
	defaultContributorLimit = 10
	maxContributorLimit     = 100
)

func NewContributorBoard(contributors ports.ContributorStore) *ContributorBoard {
	return &ContributorBoard{contributors: contributors}
}

// Top returns contributors by update count, highest first. Non-positive
// limits fall back to the default; large ones are capped.
func (b *ContributorBoard) Top(ctx context.Context, limit int) ([]domain.Contributor, error) {
	if limit <= 0 {
		limit = defaultContributorLimit
	}
	if limit > maxContributorLimit {
		limit = maxContributorLimit
	}
	return b.contributors.Top(ctx, limit)
}

// AuditReader exposes the audit log to admin-class identities.
type AuditReader struct {
	audit ports.AuditLog
}

var _ ports.AuditService = (*AuditReader)(nil)

func NewAuditReader(audit ports.AuditLog) *AuditReader {
	return &AuditReader{audit: audit}
}

func (r *AuditReader) Recent(ctx context.Context, actor domain.Actor, limit int) ([]domain.AuditEntry, error) {
	if !actor.UserType.IsAdminClass() {
		return nil, &domain.AuthorizationError{Reason: "Only admins can read the audit log"}
	}
	if limit <= 0 {
		limit = 50
	}
	return r.audit.Recent(ctx, limit)
}
