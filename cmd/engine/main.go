// Command engine runs the achievement progress service: it wires the
// catalog and progress stores, the idempotency guard, the event bus, the
// engine facade, and the HTTP API, then serves until interrupted.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	goredis "github.com/redis/go-redis/v9"

	"github.com/ridepool-hub/ridepool-achievements/config"
	"github.com/ridepool-hub/ridepool-achievements/internal/application/engine"
	"github.com/ridepool-hub/ridepool-achievements/internal/domain/achievement"
	"github.com/ridepool-hub/ridepool-achievements/internal/infrastructure/messaging"
	"github.com/ridepool-hub/ridepool-achievements/internal/infrastructure/persistence/memory"
	"github.com/ridepool-hub/ridepool-achievements/internal/infrastructure/persistence/postgres"
	"github.com/ridepool-hub/ridepool-achievements/internal/infrastructure/persistence/redis"
	httpapi "github.com/ridepool-hub/ridepool-achievements/internal/interface/http"
)

func main() {
	if err := run(); err != nil {
		slog.Error("service terminated", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	logger.Info("starting achievement service",
		"name", cfg.App.Name,
		"version", cfg.App.Version,
		"environment", string(cfg.App.Environment),
	)

	// ── Storage ──────────────────────────────────────────────────────────

	var (
		catalog achievement.CatalogRepository
		store   achievement.ProgressRepository
	)

	if cfg.Database.URL != "" {
		conn, err := postgres.NewConnectionFromURL(ctx, cfg.Database.URL)
		if err != nil {
			return fmt.Errorf("connecting to postgres: %w", err)
		}
		defer conn.Close()

		if err := postgres.Migrate(ctx, conn, logger); err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}

		catalog = postgres.NewCatalogRepository(conn)
		store = postgres.NewProgressRepository(conn)
		logger.Info("using postgres storage")
	} else {
		memCatalog, err := memory.NewSeededCatalog(memory.SeedDefinitions()...)
		if err != nil {
			return fmt.Errorf("seeding in-memory catalog: %w", err)
		}
		catalog = memCatalog
		store = memory.NewProgressStore(memCatalog)
		logger.Warn("no DATABASE_URL set, using in-memory storage")
	}

	// ── Redis: idempotency guard and progress cache ──────────────────────

	var guard engine.IdempotencyGuard
	var redisClient *goredis.Client

	if cfg.Redis.URL != "" && !cfg.Redis.Disabled {
		redisClient, err = redis.NewClientFromURL(ctx, cfg.Redis.URL)
		if err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		defer redisClient.Close()

		if cfg.Features.Enabled(config.FeatureEventDedup) {
			guard = redis.NewIdempotencyGuard(redisClient, cfg.Engine.IdempotencyTTL)
		}
		if cfg.Features.Enabled(config.FeatureProgressCache) {
			store = redis.NewCachedProgressRepository(store, redisClient, cfg.Engine.ProgressCacheTTL, logger)
		}
		logger.Info("using redis",
			"dedup", cfg.Features.Enabled(config.FeatureEventDedup),
			"progress_cache", cfg.Features.Enabled(config.FeatureProgressCache),
		)
	}
	if guard == nil {
		if cfg.Features.Enabled(config.FeatureEventDedup) {
			guard = engine.NewMemoryGuard(cfg.Engine.IdempotencyTTL)
		} else {
			guard = engine.NoopGuard()
		}
	}

	// ── Engine ───────────────────────────────────────────────────────────

	classifierCfg := engine.DefaultClassifierConfig()
	classifierCfg.EagerProvisioning = cfg.Features.Enabled(config.FeatureEagerProvisioning)
	if cfg.Features.Enabled(config.FeatureLegacyJoinedAttribution) {
		classifierCfg.JoinedActor = engine.JoinedActorDriver
	}

	eng, err := engine.New(engine.Config{
		Catalog:                 catalog,
		Store:                   store,
		Classifier:              engine.NewClassifier(classifierCfg),
		Guard:                   guard,
		Logger:                  logger,
		LockShards:              cfg.Engine.LockShards,
		SaveMaxAttempts:         cfg.Engine.SaveMaxAttempts,
		BreakerFailureThreshold: cfg.Engine.BreakerFailureThreshold,
	})
	if err != nil {
		return fmt.Errorf("creating engine: %w", err)
	}

	// ── Event bus ────────────────────────────────────────────────────────

	bus := messaging.NewInMemoryEventBus(messaging.InMemoryEventBusConfig{Logger: logger})
	defer bus.Close()

	if err := eng.Subscribe(bus); err != nil {
		return fmt.Errorf("subscribing engine: %w", err)
	}

	// ── HTTP ─────────────────────────────────────────────────────────────

	handler := httpapi.NewHandler(eng, catalog, bus, cfg.App.Version, logger)
	server := httpapi.NewServer(httpapi.Config{
		Host:         cfg.HTTP.Host,
		Port:         cfg.HTTP.Port,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
		AdminKeyHash: cfg.HTTP.AdminKeyHash,
	}, handler, logger)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := server.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	if err := bus.Close(); err != nil {
		errs = append(errs, fmt.Errorf("event bus close: %w", err))
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	logger.Info("service stopped cleanly")
	return nil
}

// newLogger builds the process logger. Development gets human-readable
// text, everything else JSON for log aggregation.
func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	if cfg.App.Debug {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.App.Environment == config.EnvDevelopment {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler).With(
		"service", cfg.App.Name,
		"version", cfg.App.Version,
	)
}
