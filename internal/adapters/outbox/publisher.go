package outbox

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"

	"github.com/spaceko/resource-status-service/internal/config"
	"github.com/spaceko/resource-status-service/internal/core/domain"
	"github.com/spaceko/resource-status-service/internal/core/ports"
)

// EventResourceChanged is the outbox event_type of a resource change.
const EventResourceChanged = "resource.changed"

// Publisher records resource changes in outbox_events. The insert trigger
// notifies the relay, which forwards them to the broker.
type Publisher struct {
	db *sql.DB
	cb *gobreaker.CircuitBreaker
}

var _ ports.ResourceChangePublisher = (*Publisher)(nil)

func NewPublisher(db *sql.DB) *Publisher {
	return &Publisher{db: db, cb: config.NewCircuitBreaker(config.BreakerPostgres)}
}

func (p *Publisher) PublishResourceChanged(ctx context.Context, change domain.ResourceChange) error {
	if change.EventID == "" {
		change.EventID = uuid.NewString()
	}
	payload, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("encode outbox payload: %w", err)
	}

	_, err = p.cb.Execute(func() (interface{}, error) {
		_, err := p.db.ExecContext(ctx,
			`INSERT INTO outbox_events (id, event_type, payload) VALUES ($1, $2, $3)`,
			change.EventID, EventResourceChanged, payload,
		)
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}
	return nil
}
