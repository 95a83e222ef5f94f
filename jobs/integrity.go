package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/buchwerk/buchwerk/internal/skr03"
)

// LedgerIntegrityJob cross-checks the posted ledger: every entry must
// balance line by line, and open years must show zero trial balance drift.
// Findings are logged and returned as an error so the task surfaces as
// failed.
type LedgerIntegrityJob struct {
	Pool   *pgxpool.Pool
	Logger *slog.Logger
	clock  func() time.Time
}

// NewLedgerIntegrityJob initialises the integrity handler.
func NewLedgerIntegrityJob(pool *pgxpool.Pool, logger *slog.Logger) *LedgerIntegrityJob {
	return &LedgerIntegrityJob{
		Pool:   pool,
		Logger: logger,
		clock:  func() time.Time { return time.Now().UTC() },
	}
}

// Handle executes the scan.
func (j *LedgerIntegrityJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Pool == nil {
		return errors.New("ledger integrity: handler not configured")
	}
	var payload LedgerIntegrityPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	start := j.clock()
	var unbalanced, drifted []int64
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if unbalanced, err = j.unbalancedEntries(gctx, payload.CompanyID); err != nil {
			return fmt.Errorf("entry scan: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if drifted, err = j.driftedYears(gctx, payload.CompanyID); err != nil {
			return fmt.Errorf("drift scan: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("ledger integrity: %w", err)
	}

	j.Logger.Info("ledger integrity scan finished",
		slog.Int("unbalanced_entries", len(unbalanced)),
		slog.Int("drifted_years", len(drifted)),
		slog.Duration("took", j.clock().Sub(start)))

	if len(unbalanced) > 0 || len(drifted) > 0 {
		for _, id := range unbalanced {
			j.Logger.Error("journal entry does not balance", slog.Int64("entry_id", id))
		}
		for _, year := range drifted {
			j.Logger.Error("fiscal year trial balance drift", slog.Int64("fiscal_year_id", year))
		}
		return fmt.Errorf("ledger integrity: %d unbalanced entries, %d drifted years",
			len(unbalanced), len(drifted))
	}
	return nil
}

// unbalancedEntries returns posted entries whose debit and credit line sums
// differ.
func (j *LedgerIntegrityJob) unbalancedEntries(ctx context.Context, companyID int64) ([]int64, error) {
	rows, err := j.Pool.Query(ctx, `SELECT je.id FROM journal_entries je
JOIN journal_lines li ON li.entry_id = je.id
WHERE je.posted_at IS NOT NULL AND ($1 = 0 OR je.company_id = $1)
GROUP BY je.id
HAVING SUM(CASE WHEN li.direction = 'DEBIT' THEN li.amount ELSE -li.amount END) <> 0`,
		companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// driftedYears returns open fiscal years whose posted debits and credits
// diverge beyond the materiality threshold.
func (j *LedgerIntegrityJob) driftedYears(ctx context.Context, companyID int64) ([]int64, error) {
	rows, err := j.Pool.Query(ctx, `SELECT fy.id,
COALESCE(SUM(CASE WHEN li.direction = 'DEBIT' THEN li.amount ELSE -li.amount END), 0)::text
FROM fiscal_years fy
LEFT JOIN journal_entries je ON je.fiscal_year_id = fy.id AND je.posted_at IS NOT NULL
LEFT JOIN journal_lines li ON li.entry_id = je.id
WHERE NOT fy.closed AND ($1 = 0 OR fy.company_id = $1)
GROUP BY fy.id`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		var raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, err
		}
		drift, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, err
		}
		if drift.Abs().GreaterThanOrEqual(skr03.Materiality) {
			ids = append(ids, id)
		}
	}
	return ids, rows.Err()
}
