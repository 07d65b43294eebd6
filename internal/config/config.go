package config

import (
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"

	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Port         string
	Env          string
	StoreBackend string
	DatabaseURL  string

	RedisAddress  string
	RedisPassword string

	JWTPrivateKey *rsa.PrivateKey
	JWTPublicKey  *rsa.PublicKey

	AccessTokenTTL     time.Duration
	RefreshTokenTTL    time.Duration
	SessionTTL         time.Duration
	SessionIdleTimeout time.Duration
	SessionSweep       time.Duration

	AllowedOrigins   []string
	AuthRateLimit    int
	AuthRateWindow   time.Duration
	MutationLimit    int
	AuditLogCapacity int
	SeedFile         string

	S3              S3Config
	ArchiveInterval time.Duration

	RabbitMQURL      string
	ResourceExchange string
}

// S3Config locates the snapshot archive bucket. Archiving is off when
// Bucket is empty.
type S3Config struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
	Prefix    string
}

func (c S3Config) Enabled() bool { return c.Bucket != "" }

func (c *Config) IsProduction() bool { return c.Env == EnvProduction }

// Load reads the environment. It panics when a required value is missing
// or malformed.
func Load() *Config {
	cfg := &Config{
		Port:               getEnv("PORT", "8080"),
		Env:                getEnv("APP_ENV", EnvDevelopment),
		StoreBackend:       getEnv("STORE_BACKEND", StoreMemory),
		DatabaseURL:        os.Getenv("DB_CONNECTION_STRING"),
		RedisAddress:       os.Getenv("REDIS_ADDRESS"),
		RedisPassword:      os.Getenv("REDIS_PASSWORD"),
		AccessTokenTTL:     getDuration("ACCESS_TOKEN_TTL", time.Hour),
		RefreshTokenTTL:    getDuration("REFRESH_TOKEN_TTL", 7*24*time.Hour),
		SessionTTL:         getDuration("SESSION_TTL", 24*time.Hour),
		SessionIdleTimeout: getDuration("SESSION_IDLE_TIMEOUT", 30*time.Minute),
		SessionSweep:       getDuration("SESSION_SWEEP_INTERVAL", 5*time.Minute),
		AllowedOrigins:     getList("ALLOWED_ORIGINS", []string{"http://localhost:5173"}),
		AuthRateLimit:      getInt("AUTH_RATE_LIMIT", 5),
		AuthRateWindow:     getDuration("AUTH_RATE_WINDOW", 15*time.Minute),
		MutationLimit:      getInt("MUTATION_RATE_LIMIT", 30),
		AuditLogCapacity:   getInt("AUDIT_LOG_CAPACITY", 500),
		SeedFile:           os.Getenv("SEED_FILE"),
		S3: S3Config{
			Bucket:    os.Getenv("S3_BUCKET"),
			Region:    getEnv("S3_REGION", "us-east-1"),
			Endpoint:  os.Getenv("S3_ENDPOINT"),
			AccessKey: os.Getenv("S3_ACCESS_KEY"),
			SecretKey: os.Getenv("S3_SECRET_KEY"),
			Prefix:    getEnv("S3_PREFIX", "snapshots"),
		},
		ArchiveInterval:  getDuration("ARCHIVE_INTERVAL", time.Hour),
		RabbitMQURL:      os.Getenv("RABBITMQ_URL"),
		ResourceExchange: getEnv("RESOURCE_EXCHANGE", "resource.changes"),
	}

	switch cfg.StoreBackend {
	case StoreMemory:
	case StorePostgres:
		if cfg.DatabaseURL == "" {
			panic("DB_CONNECTION_STRING environment variable is required")
		}
	default:
		panic("STORE_BACKEND must be memory or postgres, got " + cfg.StoreBackend)
	}

	privateKey, err := loadPrivateKey(getEnv("PRIVATE_KEY_PATH", "/etc/certs/private.pem"))
	switch {
	case errors.Is(err, fs.ErrNotExist) && !cfg.IsProduction():
		slog.Warn("private key not found, generating an ephemeral signing key")
		privateKey, err = rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			panic("Failed to generate private key: " + err.Error())
		}
	case err != nil:
		panic("Failed to load private key: " + err.Error())
	}
	cfg.JWTPrivateKey = privateKey
	cfg.JWTPublicKey = &privateKey.PublicKey

	if path := os.Getenv("PUBLIC_KEY_PATH"); path != "" {
		publicKey, err := loadPublicKey(path)
		if err != nil {
			panic("Failed to load public key: " + err.Error())
		}
		if !publicKey.Equal(&privateKey.PublicKey) {
			panic("PUBLIC_KEY_PATH does not match the private key")
		}
		cfg.JWTPublicKey = publicKey
	}

	return cfg
}

func loadPrivateKey(path string) (*rsa.PrivateKey, error) {
	keyData, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	privateKey, err := jwt.ParseRSAPrivateKeyFromPEM(keyData)
	if err != nil {
		return nil, err
	}
	return privateKey, nil
}

func loadPublicKey(path string) (*rsa.PublicKey, error) {
	keyData, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	publicKey, err := jwt.ParseRSAPublicKeyFromPEM(keyData)
	if err != nil {
		return nil, err
	}
	return publicKey, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		panic(fmt.Sprintf("%s must be a positive duration, got %q", key, v))
	}
	return d
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		panic(fmt.Sprintf("%s must be a positive integer, got %q", key, v))
	}
	return n
}

func getList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
