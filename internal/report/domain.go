// Package report computes balance sheets, GuV statements, and trial balances
// from aggregated journal line items.
package report

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/buchwerk/buchwerk/internal/skr03"
)

// AccountBalance carries the aggregated posted debit and credit totals of one
// account for a fiscal year. It is derived per report run, never persisted.
type AccountBalance struct {
	Code   string
	Name   string
	Type   skr03.AccountType
	Debit  decimal.Decimal
	Credit decimal.Decimal
}

// LedgerReader fetches aggregated balances from posted, non-closing journal
// entries, excluding statistical 9xxx accounts.
type LedgerReader interface {
	PostedAccountBalances(ctx context.Context, companyID, fiscalYearID int64) ([]AccountBalance, error)
}

// YearGate answers whether a fiscal year has been closed.
type YearGate interface {
	IsClosed(ctx context.Context, fiscalYearID int64) (bool, error)
}

// SnapshotStore loads the stored, posted closing snapshot of a fiscal year.
// A nil snapshot with nil error means no snapshot exists.
type SnapshotStore interface {
	LoadClosingSnapshot(ctx context.Context, fiscalYearID int64) (*Snapshot, error)
}
