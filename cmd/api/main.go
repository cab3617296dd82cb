package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/assetledger/api/routes"
	"github.com/angelmondragon/assetledger/internal/engine"
	"github.com/angelmondragon/assetledger/pkg/config"
	"github.com/angelmondragon/assetledger/pkg/db"
	"github.com/angelmondragon/assetledger/pkg/logger"
	"github.com/angelmondragon/assetledger/pkg/metrics"
	"github.com/angelmondragon/assetledger/pkg/migrate"
	"github.com/angelmondragon/assetledger/pkg/redis"
)

const (
	serviceName     = "api"
	shutdownTimeout = 15 * time.Second
)

func main() {
	logg := logger.New(logger.Options{ServiceName: serviceName})
	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}
	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	logg = logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithField(ctx, "env", cfg.App.Env)

	if err := run(ctx, cfg, logg); err != nil {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "api server shut down")
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) error {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("bootstrap database: %w", err)
	}
	defer closeQuietly(logg, "database", dbClient.Close)

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return fmt.Errorf("dev migrations: %w", err)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return fmt.Errorf("bootstrap redis: %w", err)
	}
	defer closeQuietly(logg, "redis", redisClient.Close)

	eng, err := engine.Build(ctx, engine.Params{
		Config:  cfg.Inventory,
		DB:      dbClient,
		Logger:  logg,
		Metrics: metrics.NewInventoryMetrics(prometheus.DefaultRegisterer),
	})
	if err != nil {
		return fmt.Errorf("build inventory engine: %w", err)
	}

	server := &http.Server{
		Addr:              listenAddr(cfg),
		ReadHeaderTimeout: 10 * time.Second,
		Handler: routes.NewRouter(cfg, logg, routes.Dependencies{
			DB:          dbClient,
			Redis:       redisClient,
			Idempotency: redisClient,
			Gatherer:    prometheus.DefaultGatherer,
			HTTPMetrics: metrics.NewHTTPMetrics(prometheus.DefaultRegisterer),
		}, routes.Services{
			Purchasing: eng.Purchasing,
			Receiving:  eng.Receiving,
			Ledger:     eng.Ledger,
			Movements:  eng.Movements,
			Reconcile:  eng.Reconcile,
		}),
	}

	logg.Info(logg.WithFields(ctx, map[string]any{
		"addr":     server.Addr,
		"statuses": len(eng.Registry.All()),
	}), "starting api server")

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logg.Info(ctx, "draining api server")
		return server.Shutdown(shutdownCtx)
	})
	return group.Wait()
}

// listenAddr prefers the platform-injected PORT over the configured one.
func listenAddr(cfg *config.Config) string {
	if port := os.Getenv("PORT"); port != "" {
		return ":" + port
	}
	return ":" + cfg.App.Port
}

func closeQuietly(logg *logger.Logger, name string, closeFn func() error) {
	if err := closeFn(); err != nil {
		logg.Error(context.Background(), "error closing "+name, err)
	}
}
