package mocks

import (
	"context"
	"sync"

	"github.com/spaceko/resource-status-service/internal/core/domain"
	"github.com/spaceko/resource-status-service/internal/core/ports"
)

// MockChangePublisher implements ports.ResourceChangePublisher for testing.
// This mock allows us to test the synchronizer and the outbox relay without
// a real RabbitMQ connection.
type MockChangePublisher struct {
	mu sync.RWMutex

	// Track published events for verification
	PublishedEvents []domain.ResourceChange

	// Error injection for testing error scenarios
	PublishError error

	// Track number of calls
	PublishCallCount int
}

var _ ports.ResourceChangePublisher = (*MockChangePublisher)(nil)

func NewMockChangePublisher() *MockChangePublisher {
	return &MockChangePublisher{
		PublishedEvents: make([]domain.ResourceChange, 0),
	}
}

func (m *MockChangePublisher) PublishResourceChanged(ctx context.Context, change domain.ResourceChange) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.PublishCallCount++

	if m.PublishError != nil {
		return m.PublishError
	}

	m.PublishedEvents = append(m.PublishedEvents, change)
	return nil
}

// GetPublishedEvents returns a copy of all published events.
func (m *MockChangePublisher) GetPublishedEvents() []domain.ResourceChange {
	m.mu.RLock()
	defer m.mu.RUnlock()

	events := make([]domain.ResourceChange, len(m.PublishedEvents))
	copy(events, m.PublishedEvents)
	return events
}

func (m *MockChangePublisher) GetPublishCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.PublishCallCount
}

// Reset clears all tracking data.
func (m *MockChangePublisher) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.PublishedEvents = make([]domain.ResourceChange, 0)
	m.PublishError = nil
	m.PublishCallCount = 0
}

// MockRateLimiter implements ports.RateLimiter with a fixed budget per key.
type MockRateLimiter struct {
	mu       sync.Mutex
	Limit    int
	attempts map[string]int

	AllowError error
}

var _ ports.RateLimiter = (*MockRateLimiter)(nil)

func NewMockRateLimiter(limit int) *MockRateLimiter {
	return &MockRateLimiter{Limit: limit, attempts: make(map[string]int)}
}

func (m *MockRateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.AllowError != nil {
		return false, m.AllowError
	}
	m.attempts[key]++
	return m.attempts[key] <= m.Limit, nil
}

// MockSyncMetrics implements ports.SyncMetrics by counting observations.
type MockSyncMetrics struct {
	mu         sync.Mutex
	Mutations  map[string]int
	Reconciles map[domain.ReconcileAction]int
	Version    int64
}

var _ ports.SyncMetrics = (*MockSyncMetrics)(nil)

func NewMockSyncMetrics() *MockSyncMetrics {
	return &MockSyncMetrics{
		Mutations:  make(map[string]int),
		Reconciles: make(map[domain.ReconcileAction]int),
	}
}

func (m *MockSyncMetrics) ObserveMutation(action domain.AuditAction, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Mutations[string(action)+"/"+outcome]++
}

func (m *MockSyncMetrics) ObserveReconcile(action domain.ReconcileAction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Reconciles[action]++
}

func (m *MockSyncMetrics) SetVersion(v int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Version = v
}

// MutationCount returns how often action finished with outcome.
func (m *MockSyncMetrics) MutationCount(action domain.AuditAction, outcome string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Mutations[string(action)+"/"+outcome]
}
