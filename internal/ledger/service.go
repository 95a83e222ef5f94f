package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/buchwerk/buchwerk/internal/report"
	"github.com/buchwerk/buchwerk/internal/shared"
)

// RepositoryPort abstracts transactional repository behaviour.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// AuditPort records ledger events for compliance.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// YearGuard verifies a fiscal year accepts postings on the given date. The
// fiscal year service implements this; closed years reject every posting.
type YearGuard interface {
	EnsurePostable(ctx context.Context, fiscalYearID int64, date time.Time) error
}

// ResolvedLine is a posting line with its account resolved to a ledger row.
type ResolvedLine struct {
	AccountID   int64
	AccountCode string
	Amount      decimal.Decimal
	Direction   Direction
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	AccountByCode(ctx context.Context, companyID int64, code string) (Account, error)
	CreateAccountFromTemplate(ctx context.Context, companyID int64, code string) (Account, error)
	NextSequence(ctx context.Context, fiscalYearID int64, entryType EntryType) (int64, error)
	InsertEntry(ctx context.Context, in PostingInput, sequence int64) (JournalEntry, error)
	InsertLines(ctx context.Context, entryID int64, lines []ResolvedLine) error
	MarkEntryPosted(ctx context.Context, entryID int64, at time.Time) error
	GetEntryWithLines(ctx context.Context, entryID int64) (JournalEntry, error)
	UpdateEntryMemo(ctx context.Context, entryID int64, memo string) error
	PostedAccountBalances(ctx context.Context, companyID, fiscalYearID int64) ([]report.AccountBalance, error)
}

// Service coordinates posting journal entries.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
	guard YearGuard
	now   func() time.Time
}

// NewService constructs the ledger service.
func NewService(repo RepositoryPort, audit AuditPort, guard YearGuard) *Service {
	return &Service{repo: repo, audit: audit, guard: guard, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// PostEntry validates, persists, and posts a new journal entry in one
// transaction. The entry is immutable from the moment the call returns.
func (s *Service) PostEntry(ctx context.Context, input PostingInput) (JournalEntry, error) {
	if err := input.Validate(); err != nil {
		return JournalEntry{}, err
	}
	var entry JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if s.guard != nil {
			if err := s.guard.EnsurePostable(ctx, input.FiscalYearID, input.BookingDate); err != nil {
				return err
			}
		}
		var err error
		entry, err = PostWithinTx(ctx, tx, input, s.now())
		return err
	})
	if err != nil {
		return JournalEntry{}, err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			Action:   "journal.post",
			Entity:   "journal_entry",
			EntityID: fmt.Sprintf("%d", entry.ID),
			Meta: map[string]any{
				"sequence":   entry.Sequence,
				"entry_type": string(entry.EntryType),
				"source_ref": entry.SourceRef.String(),
			},
			At: s.now(),
		})
	}
	return entry, nil
}

// GetEntry loads an entry with its lines.
func (s *Service) GetEntry(ctx context.Context, entryID int64) (JournalEntry, error) {
	var entry JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		entry, err = tx.GetEntryWithLines(ctx, entryID)
		return err
	})
	return entry, err
}

// UpdateMemo changes the memo of an unposted entry. Posted entries refuse the
// change with ErrEntryImmutable.
func (s *Service) UpdateMemo(ctx context.Context, entryID int64, memo string) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.UpdateEntryMemo(ctx, entryID, memo)
	})
}

// PostWithinTx resolves, inserts, and posts one entry inside an already open
// transaction. The closing service uses it so opening and closing entries
// commit atomically with the fiscal year state change.
func PostWithinTx(ctx context.Context, tx TxRepository, input PostingInput, at time.Time) (JournalEntry, error) {
	resolved, err := resolveLines(ctx, tx, input.CompanyID, input.Lines)
	if err != nil {
		return JournalEntry{}, err
	}
	seq, err := tx.NextSequence(ctx, input.FiscalYearID, input.EntryType)
	if err != nil {
		return JournalEntry{}, err
	}
	entry, err := tx.InsertEntry(ctx, input, seq)
	if err != nil {
		return JournalEntry{}, err
	}
	if err := tx.InsertLines(ctx, entry.ID, resolved); err != nil {
		return JournalEntry{}, err
	}
	if err := tx.MarkEntryPosted(ctx, entry.ID, at); err != nil {
		return JournalEntry{}, err
	}
	entry.PostedAt = &at
	entry.Lines = toLineItems(entry.ID, resolved)
	return entry, nil
}

func resolveLines(ctx context.Context, tx TxRepository, companyID int64, lines []PostingLineInput) ([]ResolvedLine, error) {
	resolved := make([]ResolvedLine, 0, len(lines))
	for _, line := range lines {
		account, err := tx.AccountByCode(ctx, companyID, line.AccountCode)
		if errors.Is(err, ErrAccountMissing) {
			account, err = tx.CreateAccountFromTemplate(ctx, companyID, line.AccountCode)
		}
		if err != nil {
			return nil, err
		}
		resolved = append(resolved, ResolvedLine{
			AccountID:   account.ID,
			AccountCode: account.Code,
			Amount:      line.Amount,
			Direction:   line.Direction,
		})
	}
	return resolved, nil
}

func toLineItems(entryID int64, lines []ResolvedLine) []LineItem {
	out := make([]LineItem, 0, len(lines))
	for _, line := range lines {
		out = append(out, LineItem{
			EntryID:     entryID,
			AccountID:   line.AccountID,
			AccountCode: line.AccountCode,
			Amount:      line.Amount,
			Direction:   line.Direction,
		})
	}
	return out
}
