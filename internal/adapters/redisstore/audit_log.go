package redisstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sony/gobreaker"

	"github.com/spaceko/resource-status-service/internal/core/domain"
	"github.com/spaceko/resource-status-service/internal/core/ports"
)

const (
	auditKey = "audit:log"

	DefaultAuditCapacity = 500
)

// AuditLog is a capped Redis list, newest entry at the head.
type AuditLog struct {
	client   Client
	capacity int64
	cb       *gobreaker.CircuitBreaker
}

var _ ports.AuditLog = (*AuditLog)(nil)

func NewAuditLog(client Client, capacity int) *AuditLog {
	if capacity <= 0 {
		capacity = DefaultAuditCapacity
	}
	return &AuditLog{client: client, capacity: int64(capacity), cb: newBreaker()}
}

func (a *AuditLog) Append(ctx context.Context, entry domain.AuditEntry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode audit entry: %w", err)
	}
	if _, err := guard(a.cb, "append audit entry", func() (int64, error) {
		return a.client.LPush(ctx, auditKey, string(payload)).Result()
	}); err != nil {
		return err
	}
	_, err = guard(a.cb, "trim audit log", func() (string, error) {
		return a.client.LTrim(ctx, auditKey, 0, a.capacity-1).Result()
	})
	return err
}

func (a *AuditLog) Recent(ctx context.Context, limit int) ([]domain.AuditEntry, error) {
	stop := int64(limit) - 1
	if limit <= 0 || int64(limit) > a.capacity {
		stop = a.capacity - 1
	}
	raw, err := guard(a.cb, "read audit log", func() ([]string, error) {
		return a.client.LRange(ctx, auditKey, 0, stop).Result()
	})
	if err != nil {
		return nil, err
	}
	out := make([]domain.AuditEntry, 0, len(raw))
	for _, item := range raw {
		var e domain.AuditEntry
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			return nil, fmt.Errorf("decode audit entry: %w", err)
		}
		out = append(out, e)
	}
	return out, nil
}
