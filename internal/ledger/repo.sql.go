package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/buchwerk/buchwerk/internal/platform/db"
	"github.com/buchwerk/buchwerk/internal/report"
	"github.com/buchwerk/buchwerk/internal/skr03"
)

// Repository persists ledger entities.
type Repository struct {
	pool     *pgxpool.Pool
	classify *skr03.Map
}

// NewRepository constructs Repository. The classification map backs template
// based account provisioning.
func NewRepository(pool *pgxpool.Pool, classify *skr03.Map) *Repository {
	return &Repository{pool: pool, classify: classify}
}

type txRepository struct {
	tx       pgx.Tx
	classify *skr03.Map
}

// NewTxRepository wraps an already open transaction. Other domains use it to
// post journal entries inside their own transactional work.
func NewTxRepository(tx pgx.Tx, classify *skr03.Map) TxRepository {
	return &txRepository{tx: tx, classify: classify}
}

// WithTx executes fn within a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil || r.pool == nil {
		return errors.New("ledger: repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx, classify: r.classify})
	})
}

const postedBalancesSQL = `SELECT a.code, a.name, a.type,
COALESCE(SUM(CASE WHEN li.direction = 'DEBIT' THEN li.amount ELSE 0 END), 0)::text,
COALESCE(SUM(CASE WHEN li.direction = 'CREDIT' THEN li.amount ELSE 0 END), 0)::text
FROM journal_lines li
JOIN journal_entries je ON je.id = li.entry_id
JOIN accounts a ON a.id = li.account_id
WHERE je.company_id = $1 AND je.fiscal_year_id = $2
  AND je.posted_at IS NOT NULL
  AND je.entry_type <> 'CLOSING'
  AND a.code NOT LIKE $3
GROUP BY a.code, a.name, a.type
ORDER BY a.code`

// PostedAccountBalances aggregates debit and credit totals per account from
// posted, non-closing journal entries, excluding statistical 9xxx accounts.
// Implements report.LedgerReader.
func (r *Repository) PostedAccountBalances(ctx context.Context, companyID, fiscalYearID int64) ([]report.AccountBalance, error) {
	rows, err := r.pool.Query(ctx, postedBalancesSQL, companyID, fiscalYearID, skr03.SystemAccountPrefix+"%")
	if err != nil {
		return nil, err
	}
	return scanAccountBalances(rows)
}

// PostedAccountBalances reads through the open transaction, so a close sees
// exactly the rows its own transaction sees.
func (r *txRepository) PostedAccountBalances(ctx context.Context, companyID, fiscalYearID int64) ([]report.AccountBalance, error) {
	rows, err := r.tx.Query(ctx, postedBalancesSQL, companyID, fiscalYearID, skr03.SystemAccountPrefix+"%")
	if err != nil {
		return nil, err
	}
	return scanAccountBalances(rows)
}

func scanAccountBalances(rows pgx.Rows) ([]report.AccountBalance, error) {
	defer rows.Close()
	var balances []report.AccountBalance
	for rows.Next() {
		var b report.AccountBalance
		var debit, credit string
		if err := rows.Scan(&b.Code, &b.Name, &b.Type, &debit, &credit); err != nil {
			return nil, err
		}
		var err error
		if b.Debit, err = decimal.NewFromString(debit); err != nil {
			return nil, err
		}
		if b.Credit, err = decimal.NewFromString(credit); err != nil {
			return nil, err
		}
		balances = append(balances, b)
	}
	return balances, rows.Err()
}

func (r *txRepository) AccountByCode(ctx context.Context, companyID int64, code string) (Account, error) {
	var a Account
	err := r.tx.QueryRow(ctx, `SELECT id, company_id, code, name, type, created_at, updated_at
FROM accounts WHERE company_id = $1 AND code = $2`, companyID, code).
		Scan(&a.ID, &a.CompanyID, &a.Code, &a.Name, &a.Type, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrAccountMissing
		}
		return Account{}, err
	}
	return a, nil
}

func (r *txRepository) CreateAccountFromTemplate(ctx context.Context, companyID int64, code string) (Account, error) {
	tmpl, ok := r.classify.TemplateFor(code)
	if !ok {
		return Account{}, ErrAccountMissing
	}
	var a Account
	err := r.tx.QueryRow(ctx, `INSERT INTO accounts (company_id, code, name, type)
VALUES ($1, $2, $3, $4) RETURNING id, company_id, code, name, type, created_at, updated_at`,
		companyID, tmpl.Code, tmpl.Name, tmpl.Type).
		Scan(&a.ID, &a.CompanyID, &a.Code, &a.Name, &a.Type, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return Account{}, err
	}
	return a, nil
}

func (r *txRepository) NextSequence(ctx context.Context, fiscalYearID int64, entryType EntryType) (int64, error) {
	lo, hi := SequenceRange(entryType)
	var next int64
	err := r.tx.QueryRow(ctx, `SELECT COALESCE(MAX(sequence) + 1, $2)
FROM journal_entries WHERE fiscal_year_id = $1 AND sequence BETWEEN $2 AND $3`,
		fiscalYearID, lo, hi).Scan(&next)
	if err != nil {
		return 0, err
	}
	if next > hi {
		return 0, ErrSequenceExhausted
	}
	return next, nil
}

func (r *txRepository) InsertEntry(ctx context.Context, in PostingInput, sequence int64) (JournalEntry, error) {
	entry := JournalEntry{
		CompanyID:    in.CompanyID,
		FiscalYearID: in.FiscalYearID,
		BookingDate:  in.BookingDate,
		EntryType:    in.EntryType,
		Sequence:     sequence,
		Memo:         in.Memo,
		SourceRef:    in.SourceRef,
	}
	err := r.tx.QueryRow(ctx, `INSERT INTO journal_entries (company_id, fiscal_year_id, booking_date, entry_type, sequence, memo, source_ref)
VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id, created_at, updated_at`,
		in.CompanyID, in.FiscalYearID, in.BookingDate, in.EntryType, sequence, in.Memo, in.SourceRef).
		Scan(&entry.ID, &entry.CreatedAt, &entry.UpdatedAt)
	if err != nil {
		return JournalEntry{}, err
	}
	return entry, nil
}

func (r *txRepository) InsertLines(ctx context.Context, entryID int64, lines []ResolvedLine) error {
	for _, line := range lines {
		if _, err := r.tx.Exec(ctx, `INSERT INTO journal_lines (entry_id, account_id, amount, direction)
VALUES ($1, $2, $3, $4)`, entryID, line.AccountID, line.Amount.StringFixed(2), line.Direction); err != nil {
			return err
		}
	}
	return nil
}

func (r *txRepository) MarkEntryPosted(ctx context.Context, entryID int64, at time.Time) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE journal_entries SET posted_at = $2, updated_at = NOW()
WHERE id = $1 AND posted_at IS NULL`, entryID, at)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrEntryImmutable
	}
	return nil
}

func (r *txRepository) GetEntryWithLines(ctx context.Context, entryID int64) (JournalEntry, error) {
	var entry JournalEntry
	err := r.tx.QueryRow(ctx, `SELECT id, company_id, fiscal_year_id, booking_date, entry_type, sequence, memo, source_ref, posted_at, created_at, updated_at
FROM journal_entries WHERE id = $1`, entryID).
		Scan(&entry.ID, &entry.CompanyID, &entry.FiscalYearID, &entry.BookingDate, &entry.EntryType,
			&entry.Sequence, &entry.Memo, &entry.SourceRef, &entry.PostedAt, &entry.CreatedAt, &entry.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return JournalEntry{}, ErrEntryNotFound
		}
		return JournalEntry{}, err
	}
	rows, err := r.tx.Query(ctx, `SELECT li.id, li.entry_id, li.account_id, a.code, li.amount::text, li.direction, li.created_at
FROM journal_lines li JOIN accounts a ON a.id = li.account_id
WHERE li.entry_id = $1 ORDER BY li.id`, entryID)
	if err != nil {
		return JournalEntry{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var line LineItem
		var amount string
		if err := rows.Scan(&line.ID, &line.EntryID, &line.AccountID, &line.AccountCode, &amount, &line.Direction, &line.CreatedAt); err != nil {
			return JournalEntry{}, err
		}
		if line.Amount, err = decimal.NewFromString(amount); err != nil {
			return JournalEntry{}, err
		}
		entry.Lines = append(entry.Lines, line)
	}
	if err := rows.Err(); err != nil {
		return JournalEntry{}, err
	}
	return entry, nil
}

func (r *txRepository) UpdateEntryMemo(ctx context.Context, entryID int64, memo string) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE journal_entries SET memo = $2, updated_at = NOW()
WHERE id = $1 AND posted_at IS NULL`, entryID, memo)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() > 0 {
		return nil
	}
	var posted bool
	err = r.tx.QueryRow(ctx, `SELECT posted_at IS NOT NULL FROM journal_entries WHERE id = $1`, entryID).Scan(&posted)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrEntryNotFound
		}
		return err
	}
	if posted {
		return ErrEntryImmutable
	}
	return nil
}
