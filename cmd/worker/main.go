package main

import (
	"context"
	"log/slog"
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
		slog.Default().Info("test mode detected, skipping worker startup")
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

	clientsService := clients.NewService(clients.NewRepository(pool))
	inventoryService := inventory.NewService(inventory.NewRepository(pool))
	ordersService := orders.NewService(orders.NewRepository(pool), clientsService, clock)

	creditService := credit.NewService(
		credit.NewRepository(pool),
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

	recalcJob := jobs.NewInterestRecalcJob(creditService, redisClient, logger, cfg.CreditRecalcLockTTL)

	recalcTask, err := jobs.NewInterestRecalcTask(time.Time{})
	if err != nil {
		logger.Error("build interest recalc task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskInterestRecalc, Handler: recalcJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "0 2 * * *", Task: recalcTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
