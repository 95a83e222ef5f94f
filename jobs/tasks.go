// Package jobs holds the background task definitions and the Asynq worker
// runtime: ledger integrity scans and report cache warmup.
package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLedgerIntegrity verifies that every posted entry balances and
	// that open years show no trial balance drift.
	TaskLedgerIntegrity = "ledger:integrity"
	// TaskReportWarmup precomputes report payloads into the cache.
	TaskReportWarmup = "report:warmup"
)

// LedgerIntegrityPayload scopes an integrity scan. A zero CompanyID scans
// every company.
type LedgerIntegrityPayload struct {
	CompanyID int64 `json:"companyId"`
}

// NewLedgerIntegrityTask constructs an integrity scan task.
func NewLedgerIntegrityTask(payload LedgerIntegrityPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerIntegrity, data), nil
}

// ReportWarmupPayload names the fiscal year whose reports get precomputed.
type ReportWarmupPayload struct {
	CompanyID    int64 `json:"companyId"`
	FiscalYearID int64 `json:"fiscalYearId"`
}

// NewReportWarmupTask constructs a warmup task.
func NewReportWarmupTask(payload ReportWarmupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskReportWarmup, data), nil
}
