package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spaceko/resource-status-service/internal/core/domain"
	"github.com/spaceko/resource-status-service/internal/core/entitlement"
	"github.com/spaceko/resource-status-service/internal/core/ports"
	"github.com/spaceko/resource-status-service/internal/logging"
)

const (
	outcomeAccepted = "accepted"
	outcomeDenied   = "denied"
	outcomeRejected = "rejected"
	outcomeFailed   = "failed"
)

// Synchronizer is the single gate for resource mutations and the authority
// for snapshot reconciliation. Every write runs entitlement check, persist,
// version bump, contributor count and audit under a per-resource lock.
type Synchronizer struct {
	resources    ports.ResourceStore
	contributors ports.ContributorStore
	audit        ports.AuditLog
	publisher    ports.ResourceChangePublisher
	metrics      ports.SyncMetrics
	limiter      ports.RateLimiter

	logger *slog.Logger
	now    func() time.Time
	newID  func() string
	locks  *keyedMutex

	subMu       sync.RWMutex
	subscribers map[uint64]func(domain.ResourceChange)
	nextSub     uint64
}

var _ ports.ResourceService = (*Synchronizer)(nil)

type SyncOption func(*Synchronizer)

func WithPublisher(p ports.ResourceChangePublisher) SyncOption {
	return func(s *Synchronizer) { s.publisher = p }
}

func WithSyncMetrics(m ports.SyncMetrics) SyncOption {
	return func(s *Synchronizer) { s.metrics = m }
}

// WithMutationLimiter caps how often a single identity may write.
func WithMutationLimiter(l ports.RateLimiter) SyncOption {
	return func(s *Synchronizer) { s.limiter = l }
}

func WithSyncLogger(l *slog.Logger) SyncOption {
	return func(s *Synchronizer) { s.logger = l }
}

func WithSyncClock(now func() time.Time) SyncOption {
	return func(s *Synchronizer) { s.now = now }
}

func WithSyncIDGenerator(gen func() string) SyncOption {
	return func(s *Synchronizer) { s.newID = gen }
}

func NewSynchronizer(
	resources ports.ResourceStore,
	contributors ports.ContributorStore,
	audit ports.AuditLog,
	opts ...SyncOption,
) *Synchronizer {
	s := &Synchronizer{
		resources:    resources,
		contributors: contributors,
		audit:        audit,
		now:          time.Now,
		newID:        uuid.NewString,
		locks:        newKeyedMutex(),
		subscribers:  make(map[uint64]func(domain.ResourceChange)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.OrDefault(s.logger)
	return s
}

func (s *Synchronizer) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return logging.Component(ctx, s.logger, "Synchronizer", operation, attrs...)
}

// Subscribe registers fn to be called after every accepted mutation. fn runs
// on the writer's goroutine and must not block.
func (s *Synchronizer) Subscribe(fn func(domain.ResourceChange)) func() {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subscribers[id] = fn
	s.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subscribers, id)
			s.subMu.Unlock()
		})
	}
}

func (s *Synchronizer) ListResources(ctx context.Context, filter domain.ResourceFilter) ([]domain.Resource, error) {
	list, err := s.resources.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list resources: %w", err)
	}
	return list, nil
}

func (s *Synchronizer) GetResource(ctx context.Context, id int64) (domain.Resource, error) {
	return s.resources.GetByID(ctx, id)
}

func (s *Synchronizer) GetSnapshot(ctx context.Context) (domain.AppState, error) {
	version, err := s.resources.CurrentVersion(ctx)
	if err != nil {
		return domain.AppState{}, fmt.Errorf("read version: %w", err)
	}
	list, err := s.resources.List(ctx, domain.ResourceFilter{})
	if err != nil {
		return domain.AppState{}, fmt.Errorf("list resources: %w", err)
	}
	state := domain.AppState{Resources: list, Version: version}
	for _, r := range list {
		if r.LastUpdated.After(state.LastUpdated) {
			state.LastUpdated = r.LastUpdated
		}
	}
	return state, nil
}

// Reconcile compares a client's cached version to the server's. The server
// list is always returned; client data is never applied.
func (s *Synchronizer) Reconcile(ctx context.Context, clientVersion int64) (domain.ReconcileResult, error) {
	logger := s.loggerWith(ctx, "Reconcile", "client_version", clientVersion)

	state, err := s.GetSnapshot(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "failed to read snapshot", "error", err, "error_kind", domain.ErrorKind(err))
		return domain.ReconcileResult{}, err
	}

	result := domain.ReconcileResult{Data: state.Resources, Version: state.Version}
	switch {
	case clientVersion < state.Version:
		result.Action = domain.ReconcileServerWins
	case clientVersion > state.Version:
		result.Action = domain.ReconcileConflict
		logger.WarnContext(ctx, "client snapshot ahead of server", "server_version", state.Version)
	default:
		result.Action = domain.ReconcileNoChanges
	}

	if s.metrics != nil {
		s.metrics.ObserveReconcile(result.Action)
	}
	return result, nil
}

// ApplyStatusUpdate changes the status of the resource identified by ref on
// behalf of actor.
func (s *Synchronizer) ApplyStatusUpdate(ctx context.Context, ref domain.ResourceRef, status domain.Status, actor domain.Actor) (domain.MutationResult, error) {
	logger := s.loggerWith(ctx, "ApplyStatusUpdate",
		"resource", ref.String(),
		"user_code", actor.UserCode,
		"user_type", actor.UserType,
		"status", status,
	)

	if err := s.checkBudget(ctx, logger, actor); err != nil {
		s.observe(domain.AuditResourceUpdate, outcomeRejected)
		return domain.MutationResult{}, err
	}

	// Resolved outside the lock; the row is re-read by id once it is held.
	id := ref.ID
	if id == 0 {
		r, err := s.resources.GetByName(ctx, ref.Name)
		if err != nil {
			return domain.MutationResult{}, s.mutationFailed(ctx, logger, domain.AuditResourceUpdate, err)
		}
		id = r.ID
	}

	var before, after domain.Resource
	var version int64
	err := s.withResourceLock(id, func() error {
		var err error
		before, err = s.resources.GetByID(ctx, id)
		if err != nil {
			return err
		}

		if err := entitlement.Decide(actor.UserType, actor.UserCode, entitlement.ActionUpdate, &before).Err(); err != nil {
			return err
		}
		if _, err := before.WithStatus(status); err != nil {
			return err
		}

		updatedBy := actor.UserCode
		after, version, err = s.resources.UpdateVersioned(ctx, id, domain.ResourcePatch{Status: &status, UpdatedBy: &updatedBy})
		if err != nil {
			return fmt.Errorf("persist status update: %w", err)
		}

		if err := s.contributors.Increment(ctx, actor, s.now()); err != nil {
			logger.ErrorContext(ctx, "failed to count contribution", "error", err)
		}
		s.appendAudit(ctx, logger, domain.AuditEntry{
			Action:       domain.AuditResourceUpdate,
			UserCode:     actor.UserCode,
			UserType:     actor.UserType,
			ResourceID:   before.ID,
			ResourceName: before.Name,
			OldStatus:    before.Status(),
			NewStatus:    after.Status(),
			SessionID:    actor.SessionID,
		})
		return nil
	})
	if err != nil {
		return domain.MutationResult{}, s.mutationFailed(ctx, logger, domain.AuditResourceUpdate, err)
	}

	logger.InfoContext(ctx, "resource status updated", "resource_id", id, "version", version)
	return s.committed(ctx, logger, domain.AuditResourceUpdate, after, version, actor)
}

// ApplyVerification stamps the resource as verified by actor. The status is
// left unchanged. Verifying an already verified resource re-stamps it with
// the latest verifier.
func (s *Synchronizer) ApplyVerification(ctx context.Context, id int64, actor domain.Actor) (domain.MutationResult, error) {
	logger := s.loggerWith(ctx, "ApplyVerification",
		"resource_id", id,
		"user_code", actor.UserCode,
		"user_type", actor.UserType,
	)

	var after domain.Resource
	var version int64
	err := s.withResourceLock(id, func() error {
		before, err := s.resources.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := entitlement.Decide(actor.UserType, actor.UserCode, entitlement.ActionVerify, &before).Err(); err != nil {
			return err
		}

		v := domain.Verification{By: actor.UserCode, At: s.now()}
		after, version, err = s.resources.UpdateVersioned(ctx, id, domain.ResourcePatch{Verification: &v})
		if err != nil {
			return fmt.Errorf("persist verification: %w", err)
		}

		s.appendAudit(ctx, logger, domain.AuditEntry{
			Action:       domain.AuditResourceVerification,
			UserCode:     actor.UserCode,
			UserType:     actor.UserType,
			ResourceID:   before.ID,
			ResourceName: before.Name,
			SessionID:    actor.SessionID,
		})
		return nil
	})
	if err != nil {
		return domain.MutationResult{}, s.mutationFailed(ctx, logger, domain.AuditResourceVerification, err)
	}

	logger.InfoContext(ctx, "resource verified", "version", version)
	return s.committed(ctx, logger, domain.AuditResourceVerification, after, version, actor)
}

// CreateResource provisions a new resource. Only admin-class identities may
// create resources.
func (s *Synchronizer) CreateResource(ctx context.Context, in domain.ResourceInput, actor domain.Actor) (domain.MutationResult, error) {
	logger := s.loggerWith(ctx, "CreateResource",
		"name", in.Name,
		"user_code", actor.UserCode,
		"user_type", actor.UserType,
	)

	if !actor.UserType.IsAdminClass() {
		err := &domain.AuthorizationError{Reason: "Only admins can create resources"}
		return domain.MutationResult{}, s.mutationFailed(ctx, logger, domain.AuditResourceCreate, err)
	}
	candidate := domain.Resource{Name: in.Name, Type: in.Type, Details: in.Details}
	if err := candidate.Validate(); err != nil {
		return domain.MutationResult{}, s.mutationFailed(ctx, logger, domain.AuditResourceCreate, err)
	}

	created, version, err := s.resources.CreateVersioned(ctx, in)
	if err != nil {
		return domain.MutationResult{}, s.mutationFailed(ctx, logger, domain.AuditResourceCreate, fmt.Errorf("persist resource: %w", err))
	}
	s.appendAudit(ctx, logger, domain.AuditEntry{
		Action:       domain.AuditResourceCreate,
		UserCode:     actor.UserCode,
		UserType:     actor.UserType,
		ResourceID:   created.ID,
		ResourceName: created.Name,
		NewStatus:    created.Status(),
		SessionID:    actor.SessionID,
	})

	logger.InfoContext(ctx, "resource created", "resource_id", created.ID, "version", version)
	return s.committed(ctx, logger, domain.AuditResourceCreate, created, version, actor)
}

func (s *Synchronizer) withResourceLock(id int64, fn func() error) error {
	unlock := s.locks.Lock(id)
	defer unlock()
	return fn()
}

func (s *Synchronizer) checkBudget(ctx context.Context, logger *slog.Logger, actor domain.Actor) error {
	if s.limiter == nil {
		return nil
	}
	ok, err := s.limiter.Allow(ctx, "mutation:"+actor.UserCode)
	if err != nil {
		logger.WarnContext(ctx, "mutation rate limiter unavailable", "error", err)
		return nil
	}
	if !ok {
		logger.WarnContext(ctx, "mutation rate limit exceeded")
		return domain.ErrRateLimited
	}
	return nil
}

// mutationFailed logs err at the level its kind deserves and passes it on.
// Denials are expected and never logged as server errors.
func (s *Synchronizer) mutationFailed(ctx context.Context, logger *slog.Logger, action domain.AuditAction, err error) error {
	var aErr *domain.AuthorizationError
	var vErr *domain.ValidationError
	switch {
	case errors.As(err, &aErr):
		logger.WarnContext(ctx, "mutation denied", "reason", aErr.Reason)
		s.observe(action, outcomeDenied)
	case errors.As(err, &vErr), errors.Is(err, domain.ErrNotFound):
		logger.InfoContext(ctx, "mutation rejected", "error", err, "error_kind", domain.ErrorKind(err))
		s.observe(action, outcomeRejected)
	default:
		logger.ErrorContext(ctx, "mutation failed", "error", err, "error_kind", domain.ErrorKind(err))
		s.observe(action, outcomeFailed)
	}
	return err
}

func (s *Synchronizer) appendAudit(ctx context.Context, logger *slog.Logger, entry domain.AuditEntry) {
	entry.ID = s.newID()
	entry.Timestamp = s.now()
	if err := s.audit.Append(ctx, entry); err != nil {
		logger.ErrorContext(ctx, "failed to append audit entry", "error", err)
	}
}

// committed runs the post-write fan-out and assembles the result. The write
// has already happened, so failures here are logged and not returned.
func (s *Synchronizer) committed(ctx context.Context, logger *slog.Logger, action domain.AuditAction, r domain.Resource, version int64, actor domain.Actor) (domain.MutationResult, error) {
	s.observe(action, outcomeAccepted)
	if s.metrics != nil {
		s.metrics.SetVersion(version)
	}

	change := domain.ResourceChange{
		EventID:   s.newID(),
		Action:    action,
		Resource:  r,
		Version:   version,
		ChangedBy: actor.UserCode,
		ChangedAt: s.now(),
	}
	s.notify(change)
	if s.publisher != nil {
		if err := s.publisher.PublishResourceChanged(ctx, change); err != nil {
			logger.ErrorContext(ctx, "failed to publish resource change", "error", err, "event_id", change.EventID)
		}
	}

	list, err := s.resources.List(ctx, domain.ResourceFilter{})
	if err != nil {
		logger.ErrorContext(ctx, "failed to list resources after write", "error", err)
		list = []domain.Resource{r}
	}
	return domain.MutationResult{Resource: r, Resources: list, Version: version}, nil
}

func (s *Synchronizer) notify(change domain.ResourceChange) {
	s.subMu.RLock()
	fns := make([]func(domain.ResourceChange), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		fns = append(fns, fn)
	}
	s.subMu.RUnlock()

	for _, fn := range fns {
		fn(change)
	}
}

func (s *Synchronizer) observe(action domain.AuditAction, outcome string) {
	if s.metrics != nil {
		s.metrics.ObserveMutation(action, outcome)
	}
}
