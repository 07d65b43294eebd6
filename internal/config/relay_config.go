package config

import "os"

// RelayConfig holds configuration for the outbox relay service.
type RelayConfig struct {
	DatabaseURL      string
	RabbitMQURL      string
	ResourceExchange string
	HealthPort       string
}

func LoadRelayConfig() *RelayConfig {
	dbURL := os.Getenv("DB_CONNECTION_STRING")
	if dbURL == "" {
		panic("DB_CONNECTION_STRING environment variable is required")
	}

	rabbitURL := os.Getenv("RABBITMQ_URL")
	if rabbitURL == "" {
		panic("RABBITMQ_URL environment variable is required")
	}

	return &RelayConfig{
		DatabaseURL:      dbURL,
		RabbitMQURL:      rabbitURL,
		ResourceExchange: getEnv("RESOURCE_EXCHANGE", "resource.changes"),
		HealthPort:       getEnv("RELAY_HEALTH_PORT", "8090"),
	}
}
