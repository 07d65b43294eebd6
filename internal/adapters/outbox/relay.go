package outbox

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/lib/pq"
	"github.com/sony/gobreaker"

	"github.com/spaceko/resource-status-service/internal/config"
	"github.com/spaceko/resource-status-service/internal/core/domain"
	"github.com/spaceko/resource-status-service/internal/core/ports"
	"github.com/spaceko/resource-status-service/internal/logging"
)

const (
	// PostgreSQL NOTIFY/LISTEN configuration
	listenerMinReconnectInterval = 10 * time.Second
	listenerMaxReconnectInterval = time.Minute
	outboxChannelName            = "outbox_channel"

	// Event processing timeouts
	eventProcessTimeout     = 30 * time.Second
	batchProcessTimeout     = 60 * time.Second
	periodicProcessInterval = 90 * time.Second

	healthCheckStaleThreshold = 5 * time.Minute

	maxEventsPerBatch = 100
)

// Relay listens for PostgreSQL NOTIFY signals on the outbox_channel
// and forwards resource changes to the broker.
type Relay struct {
	db            *sql.DB
	publisher     ports.ResourceChangePublisher
	dbURL         string
	dbCB          *gobreaker.CircuitBreaker
	logger        *slog.Logger
	lastProcessed atomic.Int64
	healthy       atomic.Bool
	now           func() time.Time
}

type outboxRecord struct {
	ID        string
	EventType string
	Payload   []byte
}

func NewRelay(db *sql.DB, dbURL string, publisher ports.ResourceChangePublisher, logger *slog.Logger) *Relay {
	r := &Relay{
		db:        db,
		dbURL:     dbURL,
		publisher: publisher,
		dbCB:      config.NewCircuitBreaker(config.BreakerRelayDB),
		logger:    logging.OrDefault(logger).With("component", "OutboxRelay"),
		now:       time.Now,
	}
	r.markProcessed()
	r.healthy.Store(true)
	return r
}

func (r *Relay) markProcessed() {
	r.lastProcessed.Store(r.now().UnixNano())
}

// IsHealthy reports whether the relay process is alive. An open breaker is
// degraded but recoverable, so it does not fail liveness.
func (r *Relay) IsHealthy() bool {
	return r.healthy.Load()
}

// IsReady reports whether the relay can process events.
func (r *Relay) IsReady() bool {
	if r.dbCB.State() == gobreaker.StateOpen {
		return false
	}
	last := time.Unix(0, r.lastProcessed.Load())
	if r.now().Sub(last) > healthCheckStaleThreshold {
		return false
	}
	return r.healthy.Load()
}

// Start listens for outbox notifications until ctx is cancelled.
func (r *Relay) Start(ctx context.Context) error {
	reportProblem := func(ev pq.ListenerEventType, err error) {
		if err != nil {
			r.logger.WarnContext(ctx, "listener error", "event", ev, "error", err)
		}
	}

	listener := pq.NewListener(r.dbURL, listenerMinReconnectInterval, listenerMaxReconnectInterval, reportProblem)
	defer listener.Close()

	if err := listener.Listen(outboxChannelName); err != nil {
		return err
	}
	r.logger.InfoContext(ctx, "listening for notifications", "channel", outboxChannelName)

	// Catch up on anything written while the relay was down.
	if err := r.processUnprocessedEvents(ctx); err != nil {
		r.logger.ErrorContext(ctx, "startup backlog failed", "error", err)
	}

	ticker := time.NewTicker(periodicProcessInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.InfoContext(ctx, "shutting down")
			return ctx.Err()

		case notification := <-listener.Notify:
			if notification == nil {
				r.logger.WarnContext(ctx, "nil notification, listener reconnecting")
				r.healthy.Store(false)
				continue
			}
			if err := r.processEventByID(ctx, notification.Extra); err != nil {
				r.logger.ErrorContext(ctx, "event processing failed", "event_id", notification.Extra, "error", err)
				continue
			}
			r.markProcessed()
			r.healthy.Store(true)

		case <-ticker.C:
			go listener.Ping()
			if err := r.processUnprocessedEvents(ctx); err != nil {
				r.logger.ErrorContext(ctx, "periodic processing failed", "error", err)
				continue
			}
			r.markProcessed()
		}
	}
}

// dispatch forwards one record. Records that cannot be decoded are
// reported as handled so they are not retried forever.
func (r *Relay) dispatch(ctx context.Context, rec outboxRecord) error {
	if rec.EventType != EventResourceChanged {
		r.logger.WarnContext(ctx, "skipping unknown event type", "event_id", rec.ID, "event_type", rec.EventType)
		return nil
	}
	var change domain.ResourceChange
	if err := json.Unmarshal(rec.Payload, &change); err != nil {
		r.logger.ErrorContext(ctx, "invalid payload", "event_id", rec.ID, "error", err)
		return nil
	}
	return r.publisher.PublishResourceChanged(ctx, change)
}

func (r *Relay) processEventByID(ctx context.Context, eventID string) error {
	ctx, cancel := context.WithTimeout(ctx, eventProcessTimeout)
	defer cancel()

	_, err := r.dbCB.Execute(func() (interface{}, error) {
		tx, err := r.db.BeginTx(ctx, nil)
		if err != nil {
			return nil, err
		}
		defer tx.Rollback()

		var rec outboxRecord
		err = tx.QueryRowContext(ctx, `
			SELECT id, event_type, payload
			FROM outbox_events
			WHERE id = $1 AND processed_at IS NULL
			FOR UPDATE SKIP LOCKED`, eventID).Scan(&rec.ID, &rec.EventType, &rec.Payload)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}

		if err := r.dispatch(ctx, rec); err != nil {
			return nil, err
		}
		if _, err := tx.ExecContext(ctx, `UPDATE outbox_events SET processed_at = NOW() WHERE id = $1`, rec.ID); err != nil {
			return nil, err
		}
		return nil, tx.Commit()
	})
	return err
}

func (r *Relay) processUnprocessedEvents(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, batchProcessTimeout)
	defer cancel()

	_, err := r.dbCB.Execute(func() (interface{}, error) {
		tx, err := r.db.BeginTx(ctx, nil)
		if err != nil {
			return nil, err
		}
		defer tx.Rollback()

		rows, err := tx.QueryContext(ctx, `
			SELECT id, event_type, payload
			FROM outbox_events
			WHERE processed_at IS NULL
			ORDER BY created_at
			LIMIT $1
			FOR UPDATE SKIP LOCKED`, maxEventsPerBatch)
		if err != nil {
			return nil, err
		}

		var records []outboxRecord
		for rows.Next() {
			var rec outboxRecord
			if err := rows.Scan(&rec.ID, &rec.EventType, &rec.Payload); err != nil {
				rows.Close()
				return nil, err
			}
			records = append(records, rec)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()

		for _, rec := range records {
			if err := r.dispatch(ctx, rec); err != nil {
				r.logger.ErrorContext(ctx, "publish failed", "event_id", rec.ID, "error", err)
				continue
			}
			if _, err := tx.ExecContext(ctx, `UPDATE outbox_events SET processed_at = NOW() WHERE id = $1`, rec.ID); err != nil {
				return nil, err
			}
			r.logger.DebugContext(ctx, "processed event", "event_id", rec.ID)
		}
		return nil, tx.Commit()
	})
	return err
}
