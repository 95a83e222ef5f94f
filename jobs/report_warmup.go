package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/buchwerk/buchwerk/internal/platform/cache"
	"github.com/buchwerk/buchwerk/internal/report"
)

// ReportWarmupJob precomputes the balance sheet and GuV of a fiscal year
// into the report cache, so the first dashboard request after a posting
// burst does not pay the aggregation cost.
type ReportWarmupJob struct {
	Balance *report.BalanceSheetService
	GuV     *report.GuVService
	Cache   *cache.ReportCache
	Logger  *slog.Logger
}

// NewReportWarmupJob initialises the warmup handler.
func NewReportWarmupJob(balance *report.BalanceSheetService, guv *report.GuVService, c *cache.ReportCache, logger *slog.Logger) *ReportWarmupJob {
	return &ReportWarmupJob{Balance: balance, GuV: guv, Cache: c, Logger: logger}
}

// Handle executes the warmup.
func (j *ReportWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Balance == nil || j.Cache == nil {
		return errors.New("report warmup: handler not configured")
	}
	var payload ReportWarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.CompanyID <= 0 || payload.FiscalYearID <= 0 {
		return asynq.SkipRetry
	}

	snap, err := j.Balance.Compute(ctx, payload.CompanyID, payload.FiscalYearID)
	if err != nil {
		return err
	}
	if err := j.Cache.Set(ctx, "balance", payload.CompanyID, payload.FiscalYearID, snap); err != nil {
		return err
	}
	if j.GuV != nil {
		guv, err := j.GuV.Compute(ctx, payload.CompanyID, payload.FiscalYearID)
		if err != nil {
			return err
		}
		if err := j.Cache.Set(ctx, "guv", payload.CompanyID, payload.FiscalYearID, guv); err != nil {
			return err
		}
	}

	j.Logger.Info("report cache warmed",
		slog.Int64("company_id", payload.CompanyID),
		slog.Int64("fiscal_year_id", payload.FiscalYearID),
		slog.Bool("balanced", snap.Balanced))
	return nil
}
