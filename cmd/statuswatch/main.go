package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/spaceko/resource-status-service/internal/client"
	"github.com/spaceko/resource-status-service/internal/core/domain"
	"github.com/spaceko/resource-status-service/internal/logging"
)

func main() {
	home, _ := os.UserCacheDir()
	apiURL := pflag.String("api", "http://localhost:8080", "resource status API base URL")
	cacheDir := pflag.String("cache-dir", filepath.Join(home, "spaceko"), "directory for the cached snapshot")
	interval := pflag.Duration("interval", client.DefaultPollInterval, "sync interval")
	reset := pflag.Bool("reset", false, "clear the cached snapshot and session, then exit")
	pflag.Parse()

	logger := logging.New(os.Getenv("APP_ENV"))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := client.NewFileBlobStore(*cacheDir)
	if err != nil {
		logger.Error("failed to open cache directory", "dir", *cacheDir, "error", err)
		os.Exit(1)
	}
	cache := client.NewCache(store, client.NewHTTPClient(*apiURL, nil), logger)

	if *reset {
		if err := cache.Reset(ctx); err != nil {
			logger.Error("failed to reset cache", "error", err)
			os.Exit(1)
		}
		logger.Info("cache cleared", "dir", *cacheDir)
		return
	}

	if err := cache.Load(ctx); err != nil {
		logger.Warn("starting without cached snapshot", "error", err)
	}
	if state, ok := cache.Snapshot(); ok {
		report(logger, state, false)
	}

	cache.Subscribe(func(state domain.AppState) {
		report(logger, state, cache.Stale())
	})

	logger.Info("watching resource status", "api", *apiURL, "interval", interval.String())
	cache.Poll(ctx, *interval)
}

func report(logger *slog.Logger, state domain.AppState, stale bool) {
	counts := make(map[domain.Status]int)
	for _, r := range state.Resources {
		counts[r.Status()]++
	}
	logger.Info("snapshot",
		"version", state.Version,
		"resources", len(state.Resources),
		"available", counts[domain.StatusAvailable],
		"occupied", counts[domain.StatusOccupied],
		"open", counts[domain.StatusOpen],
		"closed", counts[domain.StatusClosed],
		"stale", stale,
	)
}
