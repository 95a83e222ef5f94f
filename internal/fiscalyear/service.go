package fiscalyear

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/buchwerk/buchwerk/internal/ledger"
	"github.com/buchwerk/buchwerk/internal/report"
	"github.com/buchwerk/buchwerk/internal/shared"
)

// RepositoryPort opens transactions over fiscal year state. Opening and
// closing entries commit in the same transaction as the year state change.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	YearByID(ctx context.Context, fiscalYearID int64) (FiscalYear, error)
}

// TxRepository is the transactional surface of the fiscal year store. It
// embeds the ledger surface so lifecycle entries post atomically.
type TxRepository interface {
	ledger.TxRepository

	YearForUpdate(ctx context.Context, fiscalYearID int64) (FiscalYear, error)
	YearByNumber(ctx context.Context, companyID int64, year int) (FiscalYear, error)
	CreateYear(ctx context.Context, fy FiscalYear) (FiscalYear, error)
	SetOpeningPosted(ctx context.Context, fiscalYearID int64, at time.Time) error
	MarkClosed(ctx context.Context, fiscalYearID int64, at time.Time) error
	MarkReopened(ctx context.Context, fiscalYearID int64) error
	SaveSnapshot(ctx context.Context, fiscalYearID int64, sheet SheetType, snap report.Snapshot) error
	LoadSnapshot(ctx context.Context, fiscalYearID int64, sheet SheetType) (*report.Snapshot, error)
	DeleteSnapshot(ctx context.Context, fiscalYearID int64, sheet SheetType) error
	DeleteClosingEntries(ctx context.Context, fiscalYearID int64) (int64, error)
}

// AuditPort records lifecycle actions.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// BalanceComputer computes a fresh balance sheet from the posted ledger.
// ComputeFreshFrom reads through the supplied reader, which lets the close
// aggregate inside its own transaction.
type BalanceComputer interface {
	ComputeFresh(ctx context.Context, companyID, fiscalYearID int64) (report.Snapshot, error)
	ComputeFreshFrom(ctx context.Context, reader report.LedgerReader, companyID, fiscalYearID int64) (report.Snapshot, error)
}

// Service drives the fiscal year lifecycle.
type Service struct {
	repo    RepositoryPort
	balance BalanceComputer
	audit   AuditPort
	now     func() time.Time
}

// NewService constructs Service.
func NewService(repo RepositoryPort, balance BalanceComputer, audit AuditPort) *Service {
	return &Service{repo: repo, balance: balance, audit: audit, now: time.Now}
}

// WithNow overrides the clock, for tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// CreateYear registers a calendar fiscal year for the company.
func (s *Service) CreateYear(ctx context.Context, companyID int64, year int) (FiscalYear, error) {
	if year < 1900 || year > 9999 {
		return FiscalYear{}, fmt.Errorf("fiscalyear: implausible year %d", year)
	}
	var created FiscalYear
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.YearByNumber(ctx, companyID, year); err == nil {
			return ErrYearExists
		} else if !errors.Is(err, ErrYearNotFound) {
			return err
		}
		var err error
		created, err = tx.CreateYear(ctx, FiscalYear{
			CompanyID: companyID,
			Year:      year,
			StartDate: time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC),
			EndDate:   time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC),
		})
		return err
	})
	return created, err
}

// Get loads a fiscal year by id.
func (s *Service) Get(ctx context.Context, fiscalYearID int64) (FiscalYear, error) {
	return s.repo.YearByID(ctx, fiscalYearID)
}

// EnsurePostable implements the posting gate for the ledger. A booking is
// accepted only into an existing, open year whose date range contains the
// booking date.
func (s *Service) EnsurePostable(ctx context.Context, fiscalYearID int64, date time.Time) error {
	fy, err := s.repo.YearByID(ctx, fiscalYearID)
	if err != nil {
		return err
	}
	if fy.Closed {
		return ErrYearClosed
	}
	if !fy.Contains(date) {
		return ErrDateOutOfRange
	}
	return nil
}

func (s *Service) record(ctx context.Context, action string, fy FiscalYear, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if meta == nil {
		meta = map[string]any{}
	}
	meta["year"] = fy.Year
	meta["company_id"] = fy.CompanyID
	_ = s.audit.Record(ctx, shared.AuditLog{
		Action:   action,
		Entity:   "fiscal_year",
		EntityID: fmt.Sprintf("%d", fy.ID),
		Meta:     meta,
		At:       s.now(),
	})
}
