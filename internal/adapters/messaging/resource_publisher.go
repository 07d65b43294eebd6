package messaging

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/spaceko/resource-status-service/internal/core/domain"
)

// EventResourceChanged is the AMQP message type of a resource change.
const EventResourceChanged = "resource.changed"

func (rmq *RabbitMQBroker) PublishResourceChanged(ctx context.Context, change domain.ResourceChange) error {
	body, err := json.Marshal(change)
	if err != nil {
		return err
	}

	// Respect context deadline
	if deadline, ok := ctx.Deadline(); ok {
		if time.Until(deadline) <= 0 {
			return ctx.Err()
		}
	}

	_, err = rmq.cb.Execute(func() (interface{}, error) {
		err := rmq.ch.PublishWithContext(
			ctx,
			rmq.exchange,
			"",    // fanout ignores the routing key
			false, // mandatory
			false, // immediate
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent,
				MessageId:    change.EventID,
				Type:         EventResourceChanged,
				Timestamp:    change.ChangedAt,
				Body:         body,
			},
		)
		return nil, err
	})
	return err
}
