package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/assetledger/internal/cron"
	"github.com/angelmondragon/assetledger/internal/engine"
	"github.com/angelmondragon/assetledger/pkg/config"
	"github.com/angelmondragon/assetledger/pkg/db"
	"github.com/angelmondragon/assetledger/pkg/instance"
	"github.com/angelmondragon/assetledger/pkg/logger"
	"github.com/angelmondragon/assetledger/pkg/metrics"
	"github.com/angelmondragon/assetledger/pkg/migrate"
	"github.com/angelmondragon/assetledger/pkg/outbox"
	"github.com/angelmondragon/assetledger/pkg/redis"
)

const serviceName = "cron-worker"

// errCycleFailed marks a -once run where a job failed or timed out.
var errCycleFailed = errors.New("cron cycle had failing jobs")

func main() {
	once := flag.Bool("once", false, "run a single cycle and exit")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: serviceName})
	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}
	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = serviceName
	logg = logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"instance": instance.GetID(),
		"interval": cfg.Reconcile.Interval.String(),
		"once":     *once,
	})

	if err := run(ctx, cfg, logg, *once); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped", err)
		os.Exit(1)
	}
	logg.Info(ctx, "cron worker shut down")
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger, once bool) error {
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

	service, err := buildService(ctx, cfg, logg, dbClient, redisClient)
	if err != nil {
		return err
	}

	if once {
		res, err := service.RunOnce(ctx)
		if err != nil {
			return err
		}
		for job, result := range res.Results {
			if result == metrics.JobResultFailure || result == metrics.JobResultTimeout {
				return fmt.Errorf("%w: %s %s", errCycleFailed, job, result)
			}
		}
		return nil
	}

	group, groupCtx := errgroup.WithContext(ctx)
	if addr := cfg.Reconcile.MetricsAddr; addr != "" {
		group.Go(func() error { return metrics.Serve(groupCtx, addr, prometheus.DefaultGatherer) })
	}
	group.Go(func() error {
		logg.Info(groupCtx, "starting cron worker")
		return service.Run(groupCtx)
	})
	return group.Wait()
}

func buildService(ctx context.Context, cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client) (*cron.Service, error) {
	inventoryMetrics := metrics.NewInventoryMetrics(prometheus.DefaultRegisterer)
	eng, err := engine.Build(ctx, engine.Params{
		Config:  cfg.Inventory,
		DB:      dbClient,
		Logger:  logg,
		Metrics: inventoryMetrics,
	})
	if err != nil {
		return nil, fmt.Errorf("build inventory engine: %w", err)
	}

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(serviceName), instance.GetID(), cfg.Reconcile.LockTTL)
	if err != nil {
		return nil, fmt.Errorf("cron lock: %w", err)
	}
	reconcileJob, err := cron.NewInventoryReconcileJob(cron.InventoryReconcileJobParams{
		Logger:     logg,
		Reconciler: eng.Reconcile,
		Gauge:      inventoryMetrics,
	})
	if err != nil {
		return nil, fmt.Errorf("reconcile job: %w", err)
	}
	retentionJob, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:      logg,
		Repository:  outbox.NewRepository(dbClient.DB()),
		DeadLetters: outbox.NewDLQRepository(dbClient.DB()),
		Retention:   cfg.Reconcile.OutboxRetentionDays,
	})
	if err != nil {
		return nil, fmt.Errorf("outbox retention job: %w", err)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(reconcileJob, retentionJob),
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Reconcile.Interval,
	})
	if err != nil {
		return nil, fmt.Errorf("cron service: %w", err)
	}
	return service, nil
}

func closeQuietly(logg *logger.Logger, name string, closeFn func() error) {
	if err := closeFn(); err != nil {
		logg.Error(context.Background(), "error closing "+name, err)
	}
}
