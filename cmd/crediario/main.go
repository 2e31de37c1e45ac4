package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/crediario-erp/crediario/internal/app"
	"github.com/crediario-erp/crediario/internal/clients"
	"github.com/crediario-erp/crediario/internal/credit"
	"github.com/crediario-erp/crediario/internal/inventory"
	"github.com/crediario-erp/crediario/internal/observability"
	"github.com/crediario-erp/crediario/internal/orders"
	"github.com/crediario-erp/crediario/internal/platform/cache"
	"github.com/crediario-erp/crediario/internal/platform/db"
	"github.com/crediario-erp/crediario/internal/shared"
	"github.com/crediario-erp/crediario/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis connect", slog.Any("error", err))
	}
	if redisClient != nil {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	auditLogger := shared.NewAuditLogger(pool)
	idempotencyStore := shared.NewIdempotencyStore(pool)
	metrics := observability.NewMetrics()
	clock := shared.SystemClock{}

	clientsRepo := clients.NewRepository(pool)
	clientsService := clients.NewService(clientsRepo)
	clientsHandler := clients.NewHandler(logger, clientsService)

	inventoryRepo := inventory.NewRepository(pool)
	inventoryService := inventory.NewService(inventoryRepo)
	inventoryHandler := inventory.NewHandler(logger, inventoryService)

	ordersRepo := orders.NewRepository(pool)
	ordersService := orders.NewService(ordersRepo, clientsService, clock)
	ordersHandler := orders.NewHandler(logger, ordersService)

	creditRepo := credit.NewRepository(pool)
	creditService := credit.NewService(
		creditRepo,
		ordersService,
		clientsService,
		inventoryService,
		auditLogger,
		idempotencyStore,
		metrics,
		clock,
		logger,
		credit.ServiceConfig{
			DefaultDailyRatePct: cfg.CreditDefaultDailyRatePct,
			DefaultGraceDays:    cfg.CreditDefaultGraceDays,
		},
	)
	creditHandler := credit.NewHandler(logger, creditService)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		CreditHandler:    creditHandler,
		ClientsHandler:   clientsHandler,
		OrdersHandler:    ordersHandler,
		InventoryHandler: inventoryHandler,
		JobHandler:       jobHandler,
		Metrics:          metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
