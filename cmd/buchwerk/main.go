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
	"github.com/joho/godotenv"

	"github.com/buchwerk/buchwerk/internal/app"
	"github.com/buchwerk/buchwerk/internal/fiscalyear"
	fiscalyearhttp "github.com/buchwerk/buchwerk/internal/fiscalyear/http"
	"github.com/buchwerk/buchwerk/internal/ledger"
	ledgerhttp "github.com/buchwerk/buchwerk/internal/ledger/http"
	"github.com/buchwerk/buchwerk/internal/platform/cache"
	"github.com/buchwerk/buchwerk/internal/platform/db"
	"github.com/buchwerk/buchwerk/internal/report"
	"github.com/buchwerk/buchwerk/internal/shared"
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
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer redisClient.Close()
	reportCache := cache.NewReportCache(redisClient, cfg.ReportCacheTTL)

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	jobsClient, err := jobs.NewClient(redisOpts)
	if err != nil {
		logger.Error("connect job queue", slog.Any("error", err))
		os.Exit(1)
	}
	defer jobsClient.Close()

	audit := shared.NewAuditLogger(pool)

	ledgerRepo := ledger.NewRepository(pool, classify)
	fiscalRepo := fiscalyear.NewRepository(pool, classify)

	balanceService := report.NewBalanceSheetService(ledgerRepo, classify, fiscalRepo, fiscalRepo)
	guvService := report.NewGuVService(ledgerRepo, classify)

	fiscalService := fiscalyear.NewService(fiscalRepo, balanceService, audit)
	ledgerService := ledger.NewService(ledgerRepo, audit, fiscalService)

	router := app.NewRouter(app.RouterParams{
		Logger: logger,
		Config: cfg,
		LedgerHandler: ledgerhttp.NewHandler(logger, ledgerService).
			WithReportCache(reportCache),
		FiscalYearHandler: fiscalyearhttp.NewHandler(logger, fiscalService, balanceService, guvService, ledgerRepo).
			WithReportCache(reportCache).
			WithQueue(jobsClient),
		JobsHandler: jobs.NewHandler(asynq.NewInspector(redisOpts), logger),
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
