package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	"github.com/buchwerk/buchwerk/internal/app"
	"github.com/buchwerk/buchwerk/internal/fiscalyear"
	"github.com/buchwerk/buchwerk/internal/ledger"
	"github.com/buchwerk/buchwerk/internal/platform/cache"
	"github.com/buchwerk/buchwerk/internal/platform/db"
	"github.com/buchwerk/buchwerk/internal/report"
	"github.com/buchwerk/buchwerk/internal/skr03"
	"github.com/buchwerk/buchwerk/jobs"
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	classify, err := skr03.NewMap(skr03.Table())
	if err != nil {
		logger.Error("load classification table", slog.Any("error", err))
		os.Exit(1)
	}

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	ledgerRepo := ledger.NewRepository(pool, classify)
	fiscalRepo := fiscalyear.NewRepository(pool, classify)
	balanceService := report.NewBalanceSheetService(ledgerRepo, classify, fiscalRepo, fiscalRepo)
	guvService := report.NewGuVService(ledgerRepo, classify)
	reportCache := cache.NewReportCache(redisClient, cfg.ReportCacheTTL)

	integrityJob := jobs.NewLedgerIntegrityJob(pool, logger)
	warmupJob := jobs.NewReportWarmupJob(balanceService, guvService, reportCache, logger)

	integrityTask, err := jobs.NewLedgerIntegrityTask(jobs.LedgerIntegrityPayload{})
	if err != nil {
		logger.Error("build integrity task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskLedgerIntegrity, Handler: integrityJob.Handle},
			{Type: jobs.TaskReportWarmup, Handler: warmupJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "30 1 * * *", Task: integrityTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
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
