// Package mocks provides mock implementations of port interfaces for testing.
// Each mock keeps its data in memory, records calls and lets tests inject
// errors per operation.
package mocks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/spaceko/resource-status-service/internal/core/domain"
	"github.com/spaceko/resource-status-service/internal/core/ports"
)

// MockResourceStore implements ports.ResourceStore for testing.
type MockResourceStore struct {
	mu sync.RWMutex

	resources map[int64]domain.Resource
	nextID    int64
	version   int64

	// Call tracking for verification
	UpdateCalls []int64
	BumpCalls   int

	// Error injection for testing error scenarios
	ListError    error
	GetError     error
	CreateError  error
	UpdateError  error
	VersionError error
	BumpError    error
}

var _ ports.ResourceStore = (*MockResourceStore)(nil)

func NewMockResourceStore() *MockResourceStore {
	return &MockResourceStore{resources: make(map[int64]domain.Resource), nextID: 1}
}

// SeedResource stores r as-is for test setup. A zero ID is assigned.
func (m *MockResourceStore) SeedResource(r domain.Resource) domain.Resource {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.ID == 0 {
		r.ID = m.nextID
	}
	if r.ID >= m.nextID {
		m.nextID = r.ID + 1
	}
	m.resources[r.ID] = r.Clone()
	return r
}

// SetVersion sets the snapshot version for test setup.
func (m *MockResourceStore) SetVersion(v int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.version = v
}

func (m *MockResourceStore) List(ctx context.Context, filter domain.ResourceFilter) ([]domain.Resource, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.ListError != nil {
		return nil, m.ListError
	}
	out := make([]domain.Resource, 0, len(m.resources))
	for _, r := range m.resources {
		if filter.Matches(r) {
			out = append(out, r.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MockResourceStore) GetByID(ctx context.Context, id int64) (domain.Resource, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.GetError != nil {
		return domain.Resource{}, m.GetError
	}
	r, ok := m.resources[id]
	if !ok {
		return domain.Resource{}, domain.ErrNotFound
	}
	return r.Clone(), nil
}

func (m *MockResourceStore) GetByName(ctx context.Context, name string) (domain.Resource, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.GetError != nil {
		return domain.Resource{}, m.GetError
	}
	for _, r := range m.resources {
		if r.Name == name {
			return r.Clone(), nil
		}
	}
	return domain.Resource{}, domain.ErrNotFound
}

func (m *MockResourceStore) Create(ctx context.Context, in domain.ResourceInput) (domain.Resource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createLocked(in)
}

// CreateVersioned fails as a whole when CreateError or BumpError is set.
func (m *MockResourceStore) CreateVersioned(ctx context.Context, in domain.ResourceInput) (domain.Resource, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.BumpCalls++
	if m.BumpError != nil {
		return domain.Resource{}, 0, m.BumpError
	}
	r, err := m.createLocked(in)
	if err != nil {
		return domain.Resource{}, 0, err
	}
	m.version++
	return r, m.version, nil
}

func (m *MockResourceStore) createLocked(in domain.ResourceInput) (domain.Resource, error) {
	if m.CreateError != nil {
		return domain.Resource{}, m.CreateError
	}
	r := domain.Resource{ID: m.nextID, Name: in.Name, Type: in.Type, Details: in.Details, LastUpdated: time.Now()}
	m.nextID++
	m.resources[r.ID] = r
	return r.Clone(), nil
}

func (m *MockResourceStore) Update(ctx context.Context, id int64, patch domain.ResourcePatch) (domain.Resource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UpdateCalls = append(m.UpdateCalls, id)
	next, err := m.patchLocked(id, patch)
	if err != nil {
		return domain.Resource{}, err
	}
	m.resources[id] = next
	return next.Clone(), nil
}

// UpdateVersioned leaves the resource untouched when BumpError is set.
func (m *MockResourceStore) UpdateVersioned(ctx context.Context, id int64, patch domain.ResourcePatch) (domain.Resource, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UpdateCalls = append(m.UpdateCalls, id)
	next, err := m.patchLocked(id, patch)
	if err != nil {
		return domain.Resource{}, 0, err
	}
	m.BumpCalls++
	if m.BumpError != nil {
		return domain.Resource{}, 0, m.BumpError
	}
	m.resources[id] = next
	m.version++
	return next.Clone(), m.version, nil
}

func (m *MockResourceStore) patchLocked(id int64, patch domain.ResourcePatch) (domain.Resource, error) {
	if m.UpdateError != nil {
		return domain.Resource{}, m.UpdateError
	}
	r, ok := m.resources[id]
	if !ok {
		return domain.Resource{}, domain.ErrNotFound
	}
	next, err := patch.Apply(r)
	if err != nil {
		return domain.Resource{}, err
	}
	next.LastUpdated = time.Now()
	return next, nil
}

func (m *MockResourceStore) CurrentVersion(ctx context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.VersionError != nil {
		return 0, m.VersionError
	}
	return m.version, nil
}

func (m *MockResourceStore) BumpVersion(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.BumpCalls++
	if m.BumpError != nil {
		return 0, m.BumpError
	}
	m.version++
	return m.version, nil
}

// MockUserStore implements ports.UserStore for testing.
type MockUserStore struct {
	mu    sync.RWMutex
	users map[string]domain.User

	GetByCodeCalls []string

	GetError    error
	CreateError error
}

var _ ports.UserStore = (*MockUserStore)(nil)

func NewMockUserStore() *MockUserStore {
	return &MockUserStore{users: make(map[string]domain.User)}
}

// SeedUser adds a user for test setup.
func (m *MockUserStore) SeedUser(u domain.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.UserCode] = u
}

func (m *MockUserStore) GetByCode(ctx context.Context, code string) (domain.User, error) {
	m.mu.Lock()
	m.GetByCodeCalls = append(m.GetByCodeCalls, code)
	m.mu.Unlock()

	if m.GetError != nil {
		return domain.User{}, m.GetError
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[code]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return u, nil
}

func (m *MockUserStore) Create(ctx context.Context, u domain.User) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateError != nil {
		return domain.User{}, m.CreateError
	}
	if _, ok := m.users[u.UserCode]; ok {
		return domain.User{}, domain.ErrConflict
	}
	m.users[u.UserCode] = u
	return u, nil
}

func (m *MockUserStore) List(ctx context.Context) ([]domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserCode < out[j].UserCode })
	return out, nil
}

func (m *MockUserStore) SetActive(ctx context.Context, code string, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[code]
	if !ok {
		return domain.ErrNotFound
	}
	u.IsActive = active
	m.users[code] = u
	return nil
}

// MockContributorStore implements ports.ContributorStore for testing.
type MockContributorStore struct {
	mu     sync.RWMutex
	counts map[string]domain.Contributor

	IncrementError error
}

var _ ports.ContributorStore = (*MockContributorStore)(nil)

func NewMockContributorStore() *MockContributorStore {
	return &MockContributorStore{counts: make(map[string]domain.Contributor)}
}

func (m *MockContributorStore) Increment(ctx context.Context, actor domain.Actor, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.IncrementError != nil {
		return m.IncrementError
	}
	c := m.counts[actor.UserCode]
	c.UserCode = actor.UserCode
	c.Username = actor.Username
	c.UserType = actor.UserType
	c.UpdateCount++
	c.LastActive = at
	m.counts[actor.UserCode] = c
	return nil
}

func (m *MockContributorStore) Top(ctx context.Context, limit int) ([]domain.Contributor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Contributor, 0, len(m.counts))
	for _, c := range m.counts {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdateCount != out[j].UpdateCount {
			return out[i].UpdateCount > out[j].UpdateCount
		}
		return out[i].UserCode < out[j].UserCode
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Count returns the update count recorded for code.
func (m *MockContributorStore) Count(code string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.counts[code].UpdateCount
}

// MockAuditLog implements ports.AuditLog for testing.
type MockAuditLog struct {
	mu      sync.RWMutex
	Entries []domain.AuditEntry

	AppendError error
}

var _ ports.AuditLog = (*MockAuditLog)(nil)

func NewMockAuditLog() *MockAuditLog {
	return &MockAuditLog{}
}

func (m *MockAuditLog) Append(ctx context.Context, entry domain.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.AppendError != nil {
		return m.AppendError
	}
	m.Entries = append(m.Entries, entry)
	return nil
}

func (m *MockAuditLog) Recent(ctx context.Context, limit int) ([]domain.AuditEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.AuditEntry, 0, len(m.Entries))
	for i := len(m.Entries) - 1; i >= 0; i-- {
		out = append(out, m.Entries[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// GetEntries returns a copy of the recorded entries, oldest first.
func (m *MockAuditLog) GetEntries() []domain.AuditEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.AuditEntry, len(m.Entries))
	copy(out, m.Entries)
	return out
}

// MockSessionStore implements ports.SessionStore for testing.
type MockSessionStore struct {
	mu       sync.RWMutex
	sessions map[string]domain.Session

	SaveError   error
	GetError    error
	DeleteError error
}

var _ ports.SessionStore = (*MockSessionStore)(nil)

func NewMockSessionStore() *MockSessionStore {
	return &MockSessionStore{sessions: make(map[string]domain.Session)}
}

func (m *MockSessionStore) Save(ctx context.Context, s domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveError != nil {
		return m.SaveError
	}
	m.sessions[s.SessionID] = s
	return nil
}

func (m *MockSessionStore) Update(ctx context.Context, s domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveError != nil {
		return m.SaveError
	}
	if _, ok := m.sessions[s.SessionID]; !ok {
		return domain.ErrNotFound
	}
	m.sessions[s.SessionID] = s
	return nil
}

func (m *MockSessionStore) Get(ctx context.Context, id string) (domain.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.GetError != nil {
		return domain.Session{}, m.GetError
	}
	s, ok := m.sessions[id]
	if !ok {
		return domain.Session{}, domain.ErrNotFound
	}
	return s, nil
}

func (m *MockSessionStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.DeleteError != nil {
		return m.DeleteError
	}
	delete(m.sessions, id)
	return nil
}

func (m *MockSessionStore) DeleteExpired(ctx context.Context, now time.Time, idle time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, s := range m.sessions {
		if s.Expired(now, idle) {
			delete(m.sessions, id)
			n++
		}
	}
	return n, nil
}

// Has reports whether a session with id is stored.
func (m *MockSessionStore) Has(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.sessions[id]
	return ok
}
