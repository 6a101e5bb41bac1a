package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/cardrail/backend/internal/accounts"
	"github.com/cardrail/backend/internal/cron"
	"github.com/cardrail/backend/internal/ledger"
	"github.com/cardrail/backend/internal/reconciliation"
	"github.com/cardrail/backend/internal/statements"
	"github.com/cardrail/backend/pkg/config"
	"github.com/cardrail/backend/pkg/db"
	"github.com/cardrail/backend/pkg/logger"
	"github.com/cardrail/backend/pkg/metrics"
	"github.com/cardrail/backend/pkg/migrate"
	"github.com/cardrail/backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	accountsRepo := accounts.NewRepository(dbClient.DB())
	ledgerRepo := ledger.NewRepository(dbClient.DB())

	statementsSvc, err := statements.NewService(dbClient, statements.NewRepository(dbClient.DB()), ledgerRepo, accountsRepo, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create statements service", err)
		os.Exit(1)
	}

	feed, err := reconciliation.NewHTTPFeed(cfg.Reconciliation.FeedURL, cfg.Reconciliation.FeedAPIKey, nil, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create settlement feed client", err)
		os.Exit(1)
	}
	reconciliationSvc, err := reconciliation.NewService(dbClient, reconciliation.NewRepository(dbClient.DB()), ledgerRepo, feed, cfg.Reconciliation, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create reconciliation service", err)
		os.Exit(1)
	}

	reconcileJob, err := cron.NewSettlementReconcileJob(cron.SettlementReconcileJobParams{
		Logger:       logg,
		Service:      reconciliationSvc,
		LookbackDays: cfg.Reconciliation.LookbackDays,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create settlement reconcile job", err)
		os.Exit(1)
	}
	statementJob, err := cron.NewStatementJob(cron.StatementJobParams{
		Logger:  logg,
		Service: statementsSvc,
		RunDay:  cfg.Reconciliation.StatementsDay,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create statement job", err)
		os.Exit(1)
	}

	metricsCollector := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey("cron-worker:"+envName(cfg.App.Env)), 0)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(reconcileJob, statementJob),
		Lock:     lock,
		Metrics:  metricsCollector,
		Interval: cfg.Reconciliation.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func envName(env string) string {
	if env == "" {
		return "local"
	}
	return env
}
