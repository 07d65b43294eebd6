package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/spaceko/resource-status-service/internal/core/domain"
	"github.com/spaceko/resource-status-service/internal/core/ports"
)

// MemoryStore keeps resources and the snapshot version in process memory.
// It backs demo mode and tests that need real store semantics.
type MemoryStore struct {
	mu        sync.RWMutex
	resources map[int64]domain.Resource
	nextID    int64
	version   int64
	now       func() time.Time
}

var (
	_ ports.ResourceStore    = (*MemoryStore)(nil)
	_ ports.UserStore        = (*MemoryUserStore)(nil)
	_ ports.ContributorStore = (*MemoryContributorStore)(nil)
)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		resources: make(map[int64]domain.Resource),
		nextID:    1,
		now:       time.Now,
	}
}

// WithClock replaces the time source used for LastUpdated stamps.
func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	s.now = now
	return s
}

func (s *MemoryStore) List(ctx context.Context, filter domain.ResourceFilter) ([]domain.Resource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Resource, 0, len(s.resources))
	for _, r := range s.resources {
		if filter.Matches(r) {
			out = append(out, r.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) GetByID(ctx context.Context, id int64) (domain.Resource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.resources[id]
	if !ok {
		return domain.Resource{}, domain.ErrNotFound
	}
	return r.Clone(), nil
}

func (s *MemoryStore) GetByName(ctx context.Context, name string) (domain.Resource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var found []domain.Resource
	for _, r := range s.resources {
		if r.Name == name {
			found = append(found, r)
		}
	}
	switch len(found) {
	case 0:
		return domain.Resource{}, domain.ErrNotFound
	case 1:
		return found[0].Clone(), nil
	}
	return domain.Resource{}, domain.NewValidationError("name", "resource name is ambiguous, use the id")
}

func (s *MemoryStore) Create(ctx context.Context, in domain.ResourceInput) (domain.Resource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertLocked(in)
}

// CreateVersioned inserts the resource and bumps the version under one lock.
func (s *MemoryStore) CreateVersioned(ctx context.Context, in domain.ResourceInput) (domain.Resource, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := s.insertLocked(in)
	if err != nil {
		return domain.Resource{}, 0, err
	}
	s.version++
	return r, s.version, nil
}

func (s *MemoryStore) insertLocked(in domain.ResourceInput) (domain.Resource, error) {
	r := domain.Resource{Name: in.Name, Type: in.Type, Details: in.Details}
	if err := r.Validate(); err != nil {
		return domain.Resource{}, err
	}
	r.ID = s.nextID
	s.nextID++
	r.LastUpdated = s.now()
	s.resources[r.ID] = r
	return r.Clone(), nil
}

func (s *MemoryStore) Update(ctx context.Context, id int64, patch domain.ResourcePatch) (domain.Resource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateLocked(id, patch)
}

// UpdateVersioned merges patch and bumps the version under one lock.
func (s *MemoryStore) UpdateVersioned(ctx context.Context, id int64, patch domain.ResourcePatch) (domain.Resource, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, err := s.updateLocked(id, patch)
	if err != nil {
		return domain.Resource{}, 0, err
	}
	s.version++
	return next, s.version, nil
}

func (s *MemoryStore) updateLocked(id int64, patch domain.ResourcePatch) (domain.Resource, error) {
	r, ok := s.resources[id]
	if !ok {
		return domain.Resource{}, domain.ErrNotFound
	}
	next, err := patch.Apply(r)
	if err != nil {
		return domain.Resource{}, err
	}
	if err := next.Validate(); err != nil {
		return domain.Resource{}, err
	}
	next.LastUpdated = s.now()
	s.resources[id] = next
	return next.Clone(), nil
}

func (s *MemoryStore) CurrentVersion(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version, nil
}

func (s *MemoryStore) BumpVersion(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.version++
	return s.version, nil
}

type MemoryUserStore struct {
	mu    sync.RWMutex
	users map[string]domain.User
}

func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{users: make(map[string]domain.User)}
}

func (s *MemoryUserStore) GetByCode(ctx context.Context, code string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[code]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return u, nil
}

func (s *MemoryUserStore) Create(ctx context.Context, user domain.User) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[user.UserCode]; exists {
		return domain.User{}, domain.ErrConflict
	}
	s.users[user.UserCode] = user
	return user, nil
}

func (s *MemoryUserStore) List(ctx context.Context) ([]domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserCode < out[j].UserCode })
	return out, nil
}

func (s *MemoryUserStore) SetActive(ctx context.Context, code string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[code]
	if !ok {
		return domain.ErrNotFound
	}
	u.IsActive = active
	s.users[code] = u
	return nil
}

type MemoryContributorStore struct {
	mu           sync.RWMutex
	contributors map[string]domain.Contributor
}

func NewMemoryContributorStore() *MemoryContributorStore {
	return &MemoryContributorStore{contributors: make(map[string]domain.Contributor)}
}

func (s *MemoryContributorStore) Increment(ctx context.Context, actor domain.Actor, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.contributors[actor.UserCode]
	c.UserCode = actor.UserCode
	c.UserType = actor.UserType
	if actor.Username != "" {
		c.Username = actor.Username
	}
	c.UpdateCount++
	c.LastActive = at
	s.contributors[actor.UserCode] = c
	return nil
}

func (s *MemoryContributorStore) Top(ctx context.Context, limit int) ([]domain.Contributor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Contributor, 0, len(s.contributors))
	for _, c := range s.contributors {
		out = append(out, c)
	}
	sortContributors(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// sortContributors orders by update count, then most recent activity.
func sortContributors(cs []domain.Contributor) {
	sort.Slice(cs, func(i, j int) bool {
		if cs[i].UpdateCount != cs[j].UpdateCount {
			return cs[i].UpdateCount > cs[j].UpdateCount
		}
		if !cs[i].LastActive.Equal(cs[j].LastActive) {
			return cs[i].LastActive.After(cs[j].LastActive)
		}
		return cs[i].UserCode < cs[j].UserCode
	})
}
