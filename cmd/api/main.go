package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/cardrail/backend/api/controllers"
	"github.com/cardrail/backend/api/routes"
	"github.com/cardrail/backend/internal/accounts"
	"github.com/cardrail/backend/internal/idempotency"
	"github.com/cardrail/backend/internal/ledger"
	"github.com/cardrail/backend/internal/notifications"
	"github.com/cardrail/backend/internal/reconciliation"
	"github.com/cardrail/backend/internal/statements"
	"github.com/cardrail/backend/pkg/config"
	"github.com/cardrail/backend/pkg/db"
	"github.com/cardrail/backend/pkg/logger"
	"github.com/cardrail/backend/pkg/metrics"
	"github.com/cardrail/backend/pkg/migrate"
	"github.com/cardrail/backend/pkg/pubsub"
	"github.com/cardrail/backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
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

	checks := map[string]controllers.Pinger{
		"db":    dbClient,
		"redis": redisClient,
	}

	var notifier notifications.Notifier = notifications.NoopNotifier{}
	if cfg.GCP.ProjectID != "" {
		pubsubClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap pubsub", err)
			os.Exit(1)
		}
		defer func() {
			if err := pubsubClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing pubsub", err)
			}
		}()
		notifier, err = notifications.NewPubSubNotifier(pubsubClient.BalancePublisher(), logg)
		if err != nil {
			logg.Error(context.Background(), "failed to create balance notifier", err)
			os.Exit(1)
		}
		checks["pubsub"] = pubsubClient
	} else {
		logg.Warn(context.Background(), "GCP project not configured, balance notifications disabled")
	}

	guard, err := idempotency.NewGuard(redisClient, cfg.Idempotency, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create idempotency guard", err)
		os.Exit(1)
	}

	accountsRepo := accounts.NewRepository(dbClient.DB())
	accountsSvc, err := accounts.NewService(accountsRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create accounts service", err)
		os.Exit(1)
	}

	ledgerMetrics := metrics.NewLedgerMetrics(prometheus.DefaultRegisterer)
	ledgerRepo := ledger.NewRepository(dbClient.DB())
	ledgerSvc, err := ledger.NewService(dbClient, ledgerRepo, accountsRepo, accountsSvc, notifier, ledgerMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to create ledger service", err)
		os.Exit(1)
	}

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

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Dependencies{
			Config:    cfg,
			Logger:    logg,
			Guard:     guard,
			Accounts:  accountsSvc,
			Ledger:    ledgerSvc,
			Statement: statementsSvc,
			Recon:     reconciliationSvc,
			Checks:    checks,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
