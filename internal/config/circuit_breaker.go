package config

import (
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
)

// Breaker names shared by the adapters. The timeout of each breaker is
// keyed off its name.
const (
	BreakerRedis        = "Redis-Auth"
	BreakerPostgres     = "PostgreSQL"
	BreakerRelayDB      = "Relay-PostgreSQL"
	BreakerRabbitMQ     = "RabbitMQ-Publisher"
	BreakerArchive      = "S3-Archive"
	BreakerSyncAPI      = "Sync-API"
	breakerTripFailures = 3
)

// NewCircuitBreaker creates a circuit breaker with standard settings.
// The name parameter uniquely identifies the circuit breaker instance.
func NewCircuitBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(BreakerSettings(name))
}

// BreakerSettings returns the settings NewCircuitBreaker uses for name.
func BreakerSettings(name string) gobreaker.Settings {
	return gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    time.Second * 10,
		Timeout:     BreakerTimeout(name),
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerTripFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Error("[CRITICAL] circuit breaker state change",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	}
}

// BreakerTimeout is how long a breaker stays open before probing again.
// Redis aligns with the 5s health check timeout.
func BreakerTimeout(name string) time.Duration {
	switch name {
	case BreakerRedis:
		return time.Second * 5
	case BreakerPostgres, BreakerRelayDB:
		return time.Second * 10
	default:
		return time.Second * 30
	}
}
