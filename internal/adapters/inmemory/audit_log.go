package inmemory

import (
	"context"
	"sync"

	"github.com/spaceko/resource-status-service/internal/core/domain"
	"github.com/spaceko/resource-status-service/internal/core/ports"
)

const DefaultAuditCapacity = 500

// AuditLog is a fixed-size ring buffer. Once full, each append overwrites
// the oldest entry.
type AuditLog struct {
	mu      sync.RWMutex
	entries []domain.AuditEntry
	next    int
	full    bool
}

var _ ports.AuditLog = (*AuditLog)(nil)

func NewAuditLog(capacity int) *AuditLog {
	if capacity <= 0 {
		capacity = DefaultAuditCapacity
	}
	return &AuditLog{entries: make([]domain.AuditEntry, capacity)}
}

func (a *AuditLog) Append(ctx context.Context, entry domain.AuditEntry) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries[a.next] = entry
	a.next = (a.next + 1) % len(a.entries)
	if a.next == 0 {
		a.full = true
	}
	return nil
}

// Recent returns up to limit entries, newest first. A non-positive limit
// returns everything held.
func (a *AuditLog) Recent(ctx context.Context, limit int) ([]domain.AuditEntry, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	size := a.next
	if a.full {
		size = len(a.entries)
	}
	if limit <= 0 || limit > size {
		limit = size
	}
	out := make([]domain.AuditEntry, 0, limit)
	for i := 0; i < limit; i++ {
		idx := (a.next - 1 - i + len(a.entries)) % len(a.entries)
		out = append(out, a.entries[idx])
	}
	return out, nil
}
