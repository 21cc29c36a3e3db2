package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/dealguardhq/dealguard-backend/api/routes"
	"github.com/dealguardhq/dealguard-backend/internal/bids"
	"github.com/dealguardhq/dealguard-backend/internal/changeorders"
	"github.com/dealguardhq/dealguard-backend/internal/deals"
	"github.com/dealguardhq/dealguard-backend/internal/estimate"
	"github.com/dealguardhq/dealguard-backend/internal/events"
	"github.com/dealguardhq/dealguard-backend/internal/gates/bidspread"
	"github.com/dealguardhq/dealguard-backend/internal/gates/changeorder"
	"github.com/dealguardhq/dealguard-backend/internal/gates/exposure"
	"github.com/dealguardhq/dealguard-backend/internal/gates/variance"
	"github.com/dealguardhq/dealguard-backend/internal/invoices"
	"github.com/dealguardhq/dealguard-backend/internal/ledger"
	"github.com/dealguardhq/dealguard-backend/internal/policy"
	"github.com/dealguardhq/dealguard-backend/internal/vendors"
	"github.com/dealguardhq/dealguard-backend/pkg/config"
	"github.com/dealguardhq/dealguard-backend/pkg/db"
	"github.com/dealguardhq/dealguard-backend/pkg/locks"
	"github.com/dealguardhq/dealguard-backend/pkg/logger"
	"github.com/dealguardhq/dealguard-backend/pkg/metrics"
	"github.com/dealguardhq/dealguard-backend/pkg/migrate"
	"github.com/dealguardhq/dealguard-backend/pkg/outbox"
	"github.com/dealguardhq/dealguard-backend/pkg/redis"
)

const shutdownGrace = 15 * time.Second

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
	fatal := func(msg string, err error) {
		logg.Error(context.Background(), msg, err)
		os.Exit(1)
	}

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		fatal("failed to bootstrap database", err)
	}

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		fatal("failed to run dev migrations", err)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		fatal("failed to bootstrap redis", err)
	}
	defer func() {
		if err := multierr.Combine(redisClient.Close(), dbClient.Close()); err != nil {
			logg.Error(context.Background(), "error closing clients", err)
		}
	}()

	locker, err := locks.NewRedisLocker(redisClient.Raw(), redisClient, cfg.Locks)
	if err != nil {
		fatal("failed to create deal locker", err)
	}

	registry := prometheus.NewRegistry()
	gateMetrics := metrics.NewGateMetrics(registry)

	conn := dbClient.DB()
	policyRepo := policy.NewRepository(conn)
	dealsRepo := deals.NewRepository(conn)
	vendorsRepo := vendors.NewRepository(conn)
	bidsRepo := bids.NewRepository(conn)
	invoicesRepo := invoices.NewRepository(conn)
	ordersRepo := changeorders.NewRepository(conn)

	outboxSvc := outbox.NewService(outbox.NewRepository(conn), logg)

	policySvc, err := policy.NewService(policyRepo, logg)
	if err != nil {
		fatal("failed to create policy service", err)
	}
	ledgerSvc, err := ledger.NewService(ledger.NewRepository(conn))
	if err != nil {
		fatal("failed to create ledger service", err)
	}
	eventsSvc, err := events.NewService(events.NewRepository(conn), outboxSvc)
	if err != nil {
		fatal("failed to create events service", err)
	}
	engine, err := estimate.NewEngine(cfg.Estimation)
	if err != nil {
		fatal("failed to create estimation engine", err)
	}
	dealsSvc, err := deals.NewService(dealsRepo, dbClient, policySvc, engine, ledgerSvc)
	if err != nil {
		fatal("failed to create deals service", err)
	}
	vendorsSvc, err := vendors.NewService(vendorsRepo)
	if err != nil {
		fatal("failed to create vendors service", err)
	}
	bidsSvc, err := bids.NewService(bidsRepo, dealsRepo, vendorsRepo)
	if err != nil {
		fatal("failed to create bids service", err)
	}

	exposureGate, err := exposure.NewService(dealsRepo, policySvc, engine, eventsSvc, dbClient, gateMetrics)
	if err != nil {
		fatal("failed to create exposure gate", err)
	}
	bidSpreadGate, err := bidspread.NewService(bidsRepo, dealsRepo, policySvc, ledgerSvc, eventsSvc, dbClient, locker, gateMetrics)
	if err != nil {
		fatal("failed to create bid spread gate", err)
	}
	varianceGate, err := variance.NewService(invoicesRepo, dealsRepo, vendorsRepo, policySvc, ledgerSvc, eventsSvc, outboxSvc, dbClient, locker, gateMetrics)
	if err != nil {
		fatal("failed to create variance gate", err)
	}
	changeOrderGate, err := changeorder.NewService(ordersRepo, dealsRepo, policySvc, ledgerSvc, eventsSvc, dbClient, locker, gateMetrics)
	if err != nil {
		fatal("failed to create change order gate", err)
	}

	handler := routes.NewRouter(routes.Deps{
		Config:   cfg,
		Logger:   logg,
		DB:       dbClient,
		Redis:    redisClient,
		Registry: registry,

		Deals:        dealsSvc,
		Vendors:      vendorsSvc,
		Bids:         bidsSvc,
		Ledger:       ledgerSvc,
		Events:       eventsSvc,
		Invoices:     invoicesRepo,
		ChangeOrders: ordersRepo,

		ExposureGate:    exposureGate,
		BidSpreadGate:   bidSpreadGate,
		VarianceGate:    varianceGate,
		ChangeOrderGate: changeOrderGate,
	})

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
		Addr:    addr,
		Handler: handler,
	}

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-runCtx.Done():
		logg.Info(ctx, "shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "error during server shutdown", err)
		}
	}

	logg.Info(ctx, "api server stopped")
}
