package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"

	"github.com/spaceko/resource-status-service/internal/adapters/archive"
	"github.com/spaceko/resource-status-service/internal/adapters/handler"
	"github.com/spaceko/resource-status-service/internal/adapters/inmemory"
	"github.com/spaceko/resource-status-service/internal/adapters/messaging"
	"github.com/spaceko/resource-status-service/internal/adapters/metrics"
	"github.com/spaceko/resource-status-service/internal/adapters/middleware"
	"github.com/spaceko/resource-status-service/internal/adapters/outbox"
	"github.com/spaceko/resource-status-service/internal/adapters/redisstore"
	"github.com/spaceko/resource-status-service/internal/adapters/repository"
	"github.com/spaceko/resource-status-service/internal/adapters/seed"
	"github.com/spaceko/resource-status-service/internal/config"
	"github.com/spaceko/resource-status-service/internal/core/ports"
	"github.com/spaceko/resource-status-service/internal/core/services"
	"github.com/spaceko/resource-status-service/internal/logging"
)

type stores struct {
	resources    ports.ResourceStore
	users        ports.UserStore
	contributors ports.ContributorStore
	publisher    ports.ResourceChangePublisher
	db           *sql.DB
}

type sessionBackend struct {
	sessions     ports.SessionStore
	audit        ports.AuditLog
	loginLimiter ports.RateLimiter
	writeLimiter ports.RateLimiter
	redisClient  *redis.Client
}

func main() {
	cfg := config.Load()

	store := pflag.String("store", cfg.StoreBackend, "resource store backend: memory or postgres")
	seedFile := pflag.String("seed", cfg.SeedFile, "YAML seed file (default: built-in campus data)")
	port := pflag.String("port", cfg.Port, "HTTP listen port")
	pflag.Parse()
	cfg.StoreBackend, cfg.SeedFile, cfg.Port = *store, *seedFile, *port

	logger := logging.New(cfg.Env)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open stores", "backend", cfg.StoreBackend, "error", err)
		os.Exit(1)
	}
	if st.db != nil {
		defer st.db.Close()
	}

	backend, err := openSessionBackend(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	if backend.redisClient != nil {
		defer backend.redisClient.Close()
	}

	data, err := seed.LoadFile(cfg.SeedFile)
	if err != nil {
		logger.Error("failed to load seed data", "file", cfg.SeedFile, "error", err)
		os.Exit(1)
	}
	seeded, err := seed.Apply(ctx, data, st.resources, st.users, time.Now().UTC())
	if err != nil {
		logger.Error("failed to apply seed data", "error", err)
		os.Exit(1)
	}
	logger.Info("seed data applied", "users", seeded.Users, "resources", seeded.Resources)

	prom := metrics.New()
	syncOpts := []services.SyncOption{
		services.WithSyncMetrics(prom),
		services.WithMutationLimiter(backend.writeLimiter),
		services.WithSyncLogger(logger),
	}
	if st.publisher != nil {
		syncOpts = append(syncOpts, services.WithPublisher(st.publisher))
	}
	synchronizer := services.NewSynchronizer(st.resources, st.contributors, backend.audit, syncOpts...)
	if state, err := synchronizer.GetSnapshot(ctx); err == nil {
		prom.SetVersion(state.Version)
	}

	sessionManager := services.NewSessionManager(st.users, backend.sessions, cfg.SessionTTL, cfg.SessionIdleTimeout, logger)
	authService := services.NewAuthService(sessionManager, st.users, cfg.JWTPrivateKey, cfg.AccessTokenTTL, cfg.RefreshTokenTTL, logger)
	userService := services.NewUserService(st.users, backend.audit, logger)

	var archiver ports.SnapshotArchiver
	if cfg.S3.Enabled() {
		client, err := archive.NewS3Client(ctx, cfg.S3)
		if err != nil {
			logger.Error("failed to configure snapshot archive", "error", err)
			os.Exit(1)
		}
		archiver = archive.NewS3Archiver(client, cfg.S3.Bucket, cfg.S3.Prefix)
		logger.Info("snapshot archiving enabled", "bucket", cfg.S3.Bucket, "interval", cfg.ArchiveInterval)
	}
	jobs := services.NewMaintenance(sessionManager, synchronizer, archiver, logger)
	go jobs.Run(ctx, cfg.SessionSweep, cfg.ArchiveInterval)

	resp := handler.NewResponder(logger, cfg.IsProduction())
	router := handler.Router{
		Resources:      handler.NewResourceHandler(synchronizer, resp),
		Events:         handler.NewEventsHandler(synchronizer, logger),
		Auth:           handler.NewAuthHandler(authService, resp),
		Users:          handler.NewUserHandler(userService, resp),
		Board:          handler.NewBoardHandler(services.NewContributorBoard(st.contributors), services.NewAuditReader(backend.audit), resp),
		Health:         newHealthHandler(st.db, backend.redisClient, logger),
		AuthMiddleware: middleware.NewAuthMiddleware(authService, logger),
		LoginLimit:     middleware.RateLimit(backend.loginLimiter, "login", logger),
		Metrics:        prom.Handler(),
	}
	mux := http.NewServeMux()
	router.Register(mux)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           middleware.CORSMiddleware(cfg.AllowedOrigins)(middleware.Observe(logger, prom)(mux)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting server", "port", cfg.Port, "store", cfg.StoreBackend, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
	if closer, ok := st.publisher.(interface{ Close() error }); ok {
		_ = closer.Close()
	}
	logger.Info("shutdown complete")
}

func openStores(ctx context.Context, cfg *config.Config, logger *slog.Logger) (stores, error) {
	if cfg.StoreBackend == config.StorePostgres {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return stores{}, err
		}
		if err := repository.RunMigrations(ctx, db); err != nil {
			db.Close()
			return stores{}, err
		}
		logger.Info("postgres store ready, changes go through the outbox")
		return stores{
			resources:    repository.NewPostgresStore(db),
			users:        repository.NewPostgresUserStore(db),
			contributors: repository.NewPostgresContributorStore(db),
			publisher:    outbox.NewPublisher(db),
			db:           db,
		}, nil
	}

	st := stores{
		resources:    repository.NewMemoryStore(),
		users:        repository.NewMemoryUserStore(),
		contributors: repository.NewMemoryContributorStore(),
	}
	if cfg.RabbitMQURL != "" {
		broker, err := messaging.NewRabbitMQBroker(cfg.RabbitMQURL, cfg.ResourceExchange)
		if err != nil {
			logger.Warn("rabbitmq unavailable, changes stay in-process", "error", err)
		} else {
			st.publisher = broker
		}
	}
	logger.Info("in-memory store ready, state is lost on restart")
	return st, nil
}

func openSessionBackend(ctx context.Context, cfg *config.Config, logger *slog.Logger) (sessionBackend, error) {
	if cfg.RedisAddress == "" {
		logger.Info("no REDIS_ADDRESS, sessions and audit log kept in memory")
		return sessionBackend{
			sessions:     inmemory.NewSessionStore(),
			audit:        inmemory.NewAuditLog(cfg.AuditLogCapacity),
			loginLimiter: inmemory.NewRateLimiter(cfg.AuthRateLimit, cfg.AuthRateWindow),
			writeLimiter: inmemory.NewRateLimiter(cfg.MutationLimit, time.Minute),
		}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddress,
		Password: cfg.RedisPassword,
		DB:       0,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return sessionBackend{}, err
	}
	logger.Info("authenticated with redis", "address", cfg.RedisAddress)
	return sessionBackend{
		sessions:     redisstore.NewSessionStore(client, cfg.SessionIdleTimeout),
		audit:        redisstore.NewAuditLog(client, cfg.AuditLogCapacity),
		loginLimiter: redisstore.NewRateLimiter(client, cfg.AuthRateLimit, cfg.AuthRateWindow),
		writeLimiter: redisstore.NewRateLimiter(client, cfg.MutationLimit, time.Minute),
		redisClient:  client,
	}, nil
}

// newHealthHandler keeps absent backends as untyped nils so the handler
// reports them as in-memory instead of down.
func newHealthHandler(db *sql.DB, client *redis.Client, logger *slog.Logger) *handler.HealthHandler {
	switch {
	case db != nil && client != nil:
		return handler.NewHealthHandler(db, client, logger)
	case db != nil:
		return handler.NewHealthHandler(db, nil, logger)
	case client != nil:
		return handler.NewHealthHandler(nil, client, logger)
	}
	return handler.NewHealthHandler(nil, nil, logger)
}
