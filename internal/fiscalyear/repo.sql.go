package fiscalyear

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/buchwerk/buchwerk/internal/ledger"
	"github.com/buchwerk/buchwerk/internal/platform/db"
	"github.com/buchwerk/buchwerk/internal/report"
	"github.com/buchwerk/buchwerk/internal/skr03"
)

// Repository persists fiscal years and balance sheet snapshots.
type Repository struct {
	pool     *pgxpool.Pool
	classify *skr03.Map
}

// NewRepository constructs Repository. The classification map provisions
// accounts touched by opening and closing entries.
func NewRepository(pool *pgxpool.Pool, classify *skr03.Map) *Repository {
	return &Repository{pool: pool, classify: classify}
}

type txRepository struct {
	ledger.TxRepository
	tx pgx.Tx
}

// WithTx runs fn inside a repeatable-read transaction whose repository also
// carries the ledger surface.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil || r.pool == nil {
		return errors.New("fiscalyear: repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{TxRepository: ledger.NewTxRepository(tx, r.classify), tx: tx})
	})
}

const yearColumns = `id, company_id, year, start_date, end_date, opening_posted_at, closed, closed_at, created_at, updated_at`

func scanYear(row pgx.Row) (FiscalYear, error) {
	var fy FiscalYear
	err := row.Scan(&fy.ID, &fy.CompanyID, &fy.Year, &fy.StartDate, &fy.EndDate,
		&fy.OpeningPostedAt, &fy.Closed, &fy.ClosedAt, &fy.CreatedAt, &fy.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return FiscalYear{}, ErrYearNotFound
	}
	return fy, err
}

// YearByID loads a fiscal year outside any transaction.
func (r *Repository) YearByID(ctx context.Context, fiscalYearID int64) (FiscalYear, error) {
	return scanYear(r.pool.QueryRow(ctx,
		`SELECT `+yearColumns+` FROM fiscal_years WHERE id = $1`, fiscalYearID))
}

// IsClosed implements the report year gate.
func (r *Repository) IsClosed(ctx context.Context, fiscalYearID int64) (bool, error) {
	fy, err := r.YearByID(ctx, fiscalYearID)
	if err != nil {
		return false, err
	}
	return fy.Closed, nil
}

// LoadClosingSnapshot implements the report snapshot store. A missing
// snapshot returns nil without error.
func (r *Repository) LoadClosingSnapshot(ctx context.Context, fiscalYearID int64) (*report.Snapshot, error) {
	var payload []byte
	err := r.pool.QueryRow(ctx,
		`SELECT payload FROM balance_sheets WHERE fiscal_year_id = $1 AND sheet_type = $2`,
		fiscalYearID, SheetClosing).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	snap, err := decodeSnapshot(payload)
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

func (r *txRepository) YearForUpdate(ctx context.Context, fiscalYearID int64) (FiscalYear, error) {
	return scanYear(r.tx.QueryRow(ctx,
		`SELECT `+yearColumns+` FROM fiscal_years WHERE id = $1 FOR UPDATE`, fiscalYearID))
}

func (r *txRepository) YearByNumber(ctx context.Context, companyID int64, year int) (FiscalYear, error) {
	return scanYear(r.tx.QueryRow(ctx,
		`SELECT `+yearColumns+` FROM fiscal_years WHERE company_id = $1 AND year = $2 FOR UPDATE`,
		companyID, year))
}

func (r *txRepository) CreateYear(ctx context.Context, fy FiscalYear) (FiscalYear, error) {
	created := fy
	err := r.tx.QueryRow(ctx, `INSERT INTO fiscal_years (company_id, year, start_date, end_date)
VALUES ($1, $2, $3, $4) RETURNING id, created_at, updated_at`,
		fy.CompanyID, fy.Year, fy.StartDate, fy.EndDate).
		Scan(&created.ID, &created.CreatedAt, &created.UpdatedAt)
	if isUniqueViolation(err) {
		return FiscalYear{}, ErrYearExists
	}
	return created, err
}

func (r *txRepository) SetOpeningPosted(ctx context.Context, fiscalYearID int64, at time.Time) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE fiscal_years SET opening_posted_at = $2, updated_at = NOW()
WHERE id = $1 AND opening_posted_at IS NULL`, fiscalYearID, at)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrOpeningAlreadyPosted
	}
	return nil
}

func (r *txRepository) MarkClosed(ctx context.Context, fiscalYearID int64, at time.Time) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE fiscal_years SET closed = TRUE, closed_at = $2, updated_at = NOW()
WHERE id = $1 AND NOT closed`, fiscalYearID, at)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrYearClosed
	}
	return nil
}

func (r *txRepository) MarkReopened(ctx context.Context, fiscalYearID int64) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE fiscal_years SET closed = FALSE, closed_at = NULL, updated_at = NOW()
WHERE id = $1 AND closed`, fiscalYearID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrYearNotClosed
	}
	return nil
}

func (r *txRepository) SaveSnapshot(ctx context.Context, fiscalYearID int64, sheet SheetType, snap report.Snapshot) error {
	payload, err := encodeSnapshot(snap)
	if err != nil {
		return err
	}
	_, err = r.tx.Exec(ctx, `INSERT INTO balance_sheets (fiscal_year_id, sheet_type, payload)
VALUES ($1, $2, $3)`, fiscalYearID, sheet, payload)
	if isUniqueViolation(err) {
		return ErrSnapshotExists
	}
	return err
}

func (r *txRepository) LoadSnapshot(ctx context.Context, fiscalYearID int64, sheet SheetType) (*report.Snapshot, error) {
	var payload []byte
	err := r.tx.QueryRow(ctx,
		`SELECT payload FROM balance_sheets WHERE fiscal_year_id = $1 AND sheet_type = $2`,
		fiscalYearID, sheet).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	snap, err := decodeSnapshot(payload)
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

func (r *txRepository) DeleteSnapshot(ctx context.Context, fiscalYearID int64, sheet SheetType) error {
	_, err := r.tx.Exec(ctx,
		`DELETE FROM balance_sheets WHERE fiscal_year_id = $1 AND sheet_type = $2`,
		fiscalYearID, sheet)
	return err
}

func (r *txRepository) DeleteClosingEntries(ctx context.Context, fiscalYearID int64) (int64, error) {
	if _, err := r.tx.Exec(ctx, `DELETE FROM journal_lines WHERE entry_id IN (
SELECT id FROM journal_entries WHERE fiscal_year_id = $1 AND entry_type = $2)`,
		fiscalYearID, ledger.EntryTypeClosing); err != nil {
		return 0, err
	}
	cmd, err := r.tx.Exec(ctx,
		`DELETE FROM journal_entries WHERE fiscal_year_id = $1 AND entry_type = $2`,
		fiscalYearID, ledger.EntryTypeClosing)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
