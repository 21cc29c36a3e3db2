package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"

	"github.com/dealguardhq/dealguard-backend/internal/deals"
	"github.com/dealguardhq/dealguard-backend/internal/estimate"
	"github.com/dealguardhq/dealguard-backend/internal/ledger"
	"github.com/dealguardhq/dealguard-backend/internal/policy"
	"github.com/dealguardhq/dealguard-backend/internal/simulations"
	"github.com/dealguardhq/dealguard-backend/pkg/config"
	"github.com/dealguardhq/dealguard-backend/pkg/db"
	"github.com/dealguardhq/dealguard-backend/pkg/instance"
	"github.com/dealguardhq/dealguard-backend/pkg/logger"
	"github.com/dealguardhq/dealguard-backend/pkg/migrate"
	"github.com/dealguardhq/dealguard-backend/pkg/outbox/idempotency"
	"github.com/dealguardhq/dealguard-backend/pkg/pubsub"
	"github.com/dealguardhq/dealguard-backend/pkg/redis"
)

const processedEventTTL = 7 * 24 * time.Hour

func main() {
	logg := logger.New(logger.Options{ServiceName: "worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	fatal := func(msg string, err error) {
		logg.Error(context.Background(), msg, err)
		os.Exit(1)
	}

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		fatal("failed to bootstrap database", err)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		fatal("failed to run dev migrations", err)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		fatal("failed to bootstrap redis", err)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	pubsubClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		fatal("failed to bootstrap pubsub", err)
	}
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing pubsub client", err)
		}
	}()

	conn := dbClient.DB()
	policySvc, err := policy.NewService(policy.NewRepository(conn), logg)
	if err != nil {
		fatal("failed to create policy service", err)
	}
	ledgerSvc, err := ledger.NewService(ledger.NewRepository(conn))
	if err != nil {
		fatal("failed to create ledger service", err)
	}
	engine, err := estimate.NewEngine(cfg.Estimation)
	if err != nil {
		fatal("failed to create estimation engine", err)
	}
	dealsSvc, err := deals.NewService(deals.NewRepository(conn), dbClient, policySvc, engine, ledgerSvc)
	if err != nil {
		fatal("failed to create deals service", err)
	}

	manager, err := idempotency.NewManager(redisClient, processedEventTTL)
	if err != nil {
		fatal("failed to create idempotency manager", err)
	}
	consumer, err := simulations.NewConsumer(dealsSvc, pubsubClient.SimulationsSubscription(), manager, logg)
	if err != nil {
		fatal("failed to create simulation consumer", err)
	}

	service, err := NewService(ServiceParams{
		Config:             cfg,
		Logger:             logg,
		DB:                 dbClient,
		Redis:              redisClient,
		PubSub:             pubsubClient,
		SimulationConsumer: consumer,
	})
	if err != nil {
		fatal("failed to create worker", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"instance": instance.GetID(),
	})
	logg.Info(ctx, "starting simulation worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "worker shutting down gracefully")
}
