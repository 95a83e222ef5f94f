// Package fiscalyear manages the lifecycle of a fiscal year from opening
// balance over day-to-day bookings to the audited annual close.
package fiscalyear

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Status describes where a fiscal year stands in its lifecycle.
type Status string

const (
	// StatusOpen means the year exists but no opening balance was posted.
	StatusOpen Status = "OPEN"
	// StatusActive means the opening balance is posted and normal bookings
	// are accepted.
	StatusActive Status = "ACTIVE"
	// StatusClosed means the closing entry and snapshot are posted. The
	// year no longer accepts bookings.
	StatusClosed Status = "CLOSED"
)

// SheetType distinguishes the stored snapshot of the opening balance from
// the one frozen at closing.
type SheetType string

const (
	SheetOpening SheetType = "opening"
	SheetClosing SheetType = "closing"
)

// FiscalYear is one accounting period of a company.
type FiscalYear struct {
	ID              int64
	CompanyID       int64
	Year            int
	StartDate       time.Time
	EndDate         time.Time
	OpeningPostedAt *time.Time
	Closed          bool
	ClosedAt        *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Status derives the lifecycle state from the persisted fields.
func (fy FiscalYear) Status() Status {
	switch {
	case fy.Closed:
		return StatusClosed
	case fy.OpeningPostedAt != nil:
		return StatusActive
	default:
		return StatusOpen
	}
}

// Contains reports whether the booking date falls into the year.
func (fy FiscalYear) Contains(date time.Time) bool {
	d := date.Truncate(24 * time.Hour)
	return !d.Before(fy.StartDate) && !d.After(fy.EndDate)
}

var (
	// ErrYearNotFound means no fiscal year matches the given id or number.
	ErrYearNotFound = errors.New("fiscalyear: fiscal year not found")
	// ErrYearClosed means the year refuses bookings or state changes.
	ErrYearClosed = errors.New("fiscalyear: fiscal year is closed")
	// ErrOpeningNotPosted means closing was attempted before the year's
	// opening balance was posted.
	ErrOpeningNotPosted = errors.New("fiscalyear: opening balance not posted")
	// ErrYearNotClosed means the operation requires a closed year.
	ErrYearNotClosed = errors.New("fiscalyear: fiscal year is not closed")
	// ErrDateOutOfRange means the booking date lies outside the year.
	ErrDateOutOfRange = errors.New("fiscalyear: booking date outside fiscal year")
	// ErrOpeningAlreadyPosted guards against a second opening entry.
	ErrOpeningAlreadyPosted = errors.New("fiscalyear: opening balance already posted")
	// ErrNoClosingSnapshot means the prior year has no closing snapshot to
	// carry forward from.
	ErrNoClosingSnapshot = errors.New("fiscalyear: no closing snapshot available")
	// ErrSnapshotExists means a snapshot of that sheet type is already
	// stored for the year.
	ErrSnapshotExists = errors.New("fiscalyear: snapshot already stored")
	// ErrNextYearOpened blocks reopening once the follow-up year has
	// posted its opening balance.
	ErrNextYearOpened = errors.New("fiscalyear: next year already posted its opening balance")
	// ErrYearExists means the company already has a year with that number.
	ErrYearExists = errors.New("fiscalyear: fiscal year already exists")
	// ErrReasonRequired means an administrative unwind was requested
	// without a documented reason.
	ErrReasonRequired = errors.New("fiscalyear: reopen requires a reason")
)

// ImbalanceError reports a closing attempt over an unbalanced ledger. Both
// side totals travel with the error so callers can show the difference.
type ImbalanceError struct {
	Aktiva  decimal.Decimal
	Passiva decimal.Decimal
}

func (e *ImbalanceError) Error() string {
	return fmt.Sprintf("fiscalyear: balance sheet out of balance, Aktiva %s vs Passiva %s",
		e.Aktiva.StringFixed(2), e.Passiva.StringFixed(2))
}

// Difference returns Aktiva minus Passiva.
func (e *ImbalanceError) Difference() decimal.Decimal {
	return e.Aktiva.Sub(e.Passiva)
}
