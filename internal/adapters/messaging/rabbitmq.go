package messaging

import (
	"context"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sony/gobreaker"

	"github.com/spaceko/resource-status-service/internal/config"
	"github.com/spaceko/resource-status-service/internal/core/ports"
)

// amqpChannel is the part of *amqp.Channel the broker publishes through.
type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// RabbitMQBroker implements ports.ResourceChangePublisher by publishing to a
// durable fanout exchange, so every bound queue sees every change.
type RabbitMQBroker struct {
	conn     *amqp.Connection
	ch       amqpChannel
	exchange string
	cb       *gobreaker.CircuitBreaker
}

var _ ports.ResourceChangePublisher = (*RabbitMQBroker)(nil)

func NewRabbitMQBroker(amqpURL, exchange string) (*RabbitMQBroker, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}

	err = ch.ExchangeDeclare(
		exchange,
		amqp.ExchangeFanout,
		true,  // durable
		false, // autoDelete
		false, // internal
		false, // noWait
		nil,   // args
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	broker := newBroker(ch, exchange)
	broker.conn = conn
	return broker, nil
}

func newBroker(ch amqpChannel, exchange string) *RabbitMQBroker {
	return &RabbitMQBroker{
		ch:       ch,
		exchange: exchange,
		cb:       config.NewCircuitBreaker(config.BreakerRabbitMQ),
	}
}

// Ready reports whether the publisher breaker is closed.
func (rmq *RabbitMQBroker) Ready() bool {
	return rmq.cb.State() != gobreaker.StateOpen
}

func (rmq *RabbitMQBroker) Close() error {
	if rmq.ch != nil {
		if err := rmq.ch.Close(); err != nil {
			return err
		}
	}
	if rmq.conn != nil {
		return rmq.conn.Close()
	}
	return nil
}
