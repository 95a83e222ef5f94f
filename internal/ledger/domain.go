// Package ledger owns journal entries and line items: posting with the
// debit-equals-credit invariant, sequence ranges per entry type, and GoBD
// immutability of posted entries.
package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/buchwerk/buchwerk/internal/skr03"
)

// EntryType tags a journal entry's role in the fiscal year lifecycle.
type EntryType string

const (
	EntryTypeNormal  EntryType = "NORMAL"
	EntryTypeOpening EntryType = "OPENING"
	EntryTypeClosing EntryType = "CLOSING"
)

// Direction marks a line item as debit (Soll) or credit (Haben).
type Direction string

const (
	DirectionDebit  Direction = "DEBIT"
	DirectionCredit Direction = "CREDIT"
)

// SequenceRange returns the inclusive sequence window reserved for an entry
// type within a fiscal year: opening entries sort before all normal activity,
// closing entries after.
func SequenceRange(t EntryType) (int64, int64) {
	switch t {
	case EntryTypeOpening:
		return 0, 999
	case EntryTypeClosing:
		return 9000, 9999
	default:
		return 1000, 8999
	}
}

// Account models a chart of accounts row scoped to a company.
type Account struct {
	ID        int64
	CompanyID int64
	Code      string
	Name      string
	Type      skr03.AccountType
	CreatedAt time.Time
	UpdatedAt time.Time
}

// LineItem stores one debit or credit amount against an account. Amounts are
// strictly positive; the direction carries the sign.
type LineItem struct {
	ID          int64
	EntryID     int64
	AccountID   int64
	AccountCode string
	Amount      decimal.Decimal
	Direction   Direction
	CreatedAt   time.Time
}

// JournalEntry captures posting metadata. Once PostedAt is set the entry and
// its line items are immutable.
type JournalEntry struct {
	ID           int64
	CompanyID    int64
	FiscalYearID int64
	BookingDate  time.Time
	EntryType    EntryType
	Sequence     int64
	Memo         string
	SourceRef    uuid.UUID
	PostedAt     *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Lines        []LineItem
}

// PostingLineInput describes one line of a posting request.
type PostingLineInput struct {
	AccountCode string
	Amount      decimal.Decimal
	Direction   Direction
}

// PostingInput groups fields required to create and post a journal entry.
type PostingInput struct {
	CompanyID    int64
	FiscalYearID int64
	BookingDate  time.Time
	EntryType    EntryType
	Memo         string
	SourceRef    uuid.UUID
	Lines        []PostingLineInput
}

var (
	// ErrUnbalanced indicates debit != credit.
	ErrUnbalanced = errors.New("ledger: journal lines must balance")
	// ErrTooFewLines indicates less than two lines.
	ErrTooFewLines = errors.New("ledger: journal requires at least two lines")
	// ErrEntryNotFound indicates missing entry.
	ErrEntryNotFound = errors.New("ledger: journal entry not found")
	// ErrEntryImmutable indicates an attempted change to a posted entry.
	ErrEntryImmutable = errors.New("ledger: posted entries are immutable")
	// ErrAccountMissing indicates an account that neither exists nor can be
	// provisioned from a template.
	ErrAccountMissing = errors.New("ledger: account missing and no template available")
	// ErrSequenceExhausted indicates the sequence window for the entry type
	// is full.
	ErrSequenceExhausted = errors.New("ledger: sequence range exhausted")
)

// Validate ensures posting input meets the entry invariants before any write.
func (in PostingInput) Validate() error {
	if in.CompanyID == 0 || in.FiscalYearID == 0 {
		return errors.New("ledger: company and fiscal year required")
	}
	if in.BookingDate.IsZero() {
		return errors.New("ledger: booking date required")
	}
	switch in.EntryType {
	case EntryTypeNormal, EntryTypeOpening, EntryTypeClosing:
	default:
		return fmt.Errorf("ledger: invalid entry type %q", in.EntryType)
	}
	if len(in.Lines) < 2 {
		return ErrTooFewLines
	}
	debit := decimal.Zero
	credit := decimal.Zero
	for idx, line := range in.Lines {
		if line.AccountCode == "" {
			return fmt.Errorf("ledger: line %d missing account", idx)
		}
		if line.Amount.Sign() <= 0 {
			return fmt.Errorf("ledger: line %d amount must be positive", idx)
		}
		if !line.Amount.Equal(line.Amount.Round(2)) {
			return fmt.Errorf("ledger: line %d amount has sub-cent precision", idx)
		}
		switch line.Direction {
		case DirectionDebit:
			debit = debit.Add(line.Amount)
		case DirectionCredit:
			credit = credit.Add(line.Amount)
		default:
			return fmt.Errorf("ledger: line %d invalid direction %q", idx, line.Direction)
		}
	}
	if !debit.Equal(credit) {
		return fmt.Errorf("%w: debit %s credit %s", ErrUnbalanced, debit.StringFixed(2), credit.StringFixed(2))
	}
	return nil
}
