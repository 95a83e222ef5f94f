package fiscalyear

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/buchwerk/buchwerk/internal/ledger"
	"github.com/buchwerk/buchwerk/internal/report"
	"github.com/buchwerk/buchwerk/internal/skr03"
)

// CloseOptions steer the annual close.
type CloseOptions struct {
	// CarryForward posts the opening balance of the follow-up year in the
	// same transaction, creating that year if needed. Skipped without
	// error when the follow-up year already has an opening balance.
	CarryForward bool
}

// CloseResult reports what the close produced.
type CloseResult struct {
	Entry          ledger.JournalEntry
	Snapshot       report.Snapshot
	CarriedForward bool
}

// Close performs the annual close: it freezes the balance sheet, posts the
// SBK entry moving every balance into the clearing account, stores the
// closing snapshot, and marks the year closed. An unbalanced ledger refuses
// the close with an ImbalanceError before anything is written. The sheet
// that gets frozen is recomputed inside the transaction, after the year row
// is locked, so a posting racing the close is either in the snapshot or
// refused by the closed flag, never lost between the two.
func (s *Service) Close(ctx context.Context, companyID, fiscalYearID int64, opts CloseOptions) (CloseResult, error) {
	// Cheap pre-check outside the transaction. The authoritative
	// computation happens under the year lock below.
	snap, err := s.balance.ComputeFresh(ctx, companyID, fiscalYearID)
	if err != nil {
		return CloseResult{}, err
	}
	if !snap.Balanced {
		return CloseResult{}, &ImbalanceError{Aktiva: snap.Aktiva.Total, Passiva: snap.Passiva.Total}
	}

	var (
		result CloseResult
		fy     FiscalYear
	)
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		fy, err = tx.YearForUpdate(ctx, fiscalYearID)
		if err != nil {
			return err
		}
		if fy.Closed {
			return ErrYearClosed
		}
		if fy.OpeningPostedAt == nil {
			return ErrOpeningNotPosted
		}
		snap, err = s.balance.ComputeFreshFrom(ctx, tx, companyID, fiscalYearID)
		if err != nil {
			return err
		}
		if !snap.Balanced {
			return &ImbalanceError{Aktiva: snap.Aktiva.Total, Passiva: snap.Passiva.Total}
		}
		if lines := closingLines(snap); len(lines) > 0 {
			result.Entry, err = ledger.PostWithinTx(ctx, tx, ledger.PostingInput{
				CompanyID:    fy.CompanyID,
				FiscalYearID: fy.ID,
				BookingDate:  fy.EndDate,
				EntryType:    ledger.EntryTypeClosing,
				Memo:         fmt.Sprintf("Schlussbilanz %d", fy.Year),
				SourceRef:    uuid.New(),
				Lines:        lines,
			}, s.now())
			if err != nil {
				return err
			}
		}
		if err := tx.SaveSnapshot(ctx, fy.ID, SheetClosing, snap); err != nil {
			return err
		}
		if err := tx.MarkClosed(ctx, fy.ID, s.now()); err != nil {
			return err
		}
		result.Snapshot = snap
		if !opts.CarryForward {
			return nil
		}
		next, err := tx.YearByNumber(ctx, fy.CompanyID, fy.Year+1)
		if errors.Is(err, ErrYearNotFound) {
			next, err = tx.CreateYear(ctx, FiscalYear{
				CompanyID: fy.CompanyID,
				Year:      fy.Year + 1,
				StartDate: time.Date(fy.Year+1, time.January, 1, 0, 0, 0, 0, time.UTC),
				EndDate:   time.Date(fy.Year+1, time.December, 31, 0, 0, 0, 0, time.UTC),
			})
		}
		if err != nil {
			return err
		}
		if next.Closed || next.OpeningPostedAt != nil {
			return nil
		}
		if _, err := s.postOpeningTx(ctx, tx, next, snap); err != nil {
			return err
		}
		result.CarriedForward = true
		return nil
	})
	if err != nil {
		return CloseResult{}, err
	}
	s.record(ctx, "fiscalyear.close", fy, map[string]any{
		"aktiva":          snap.Aktiva.Total.StringFixed(2),
		"passiva":         snap.Passiva.Total.StringFixed(2),
		"carried_forward": result.CarriedForward,
	})
	return result, nil
}

// Reopen unwinds a close: the closing entry and snapshot are removed and
// the year accepts bookings again. Refused once the follow-up year has
// posted its opening balance, because that opening was derived from the
// snapshot being removed.
func (s *Service) Reopen(ctx context.Context, companyID, fiscalYearID int64, reason string) error {
	if reason == "" {
		return fmt.Errorf("reopen: %w", ErrReasonRequired)
	}
	var (
		fy      FiscalYear
		removed int64
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		fy, err = tx.YearForUpdate(ctx, fiscalYearID)
		if err != nil {
			return err
		}
		if !fy.Closed {
			return ErrYearNotClosed
		}
		next, err := tx.YearByNumber(ctx, fy.CompanyID, fy.Year+1)
		if err == nil && next.OpeningPostedAt != nil {
			return ErrNextYearOpened
		}
		if err != nil && !errors.Is(err, ErrYearNotFound) {
			return err
		}
		removed, err = tx.DeleteClosingEntries(ctx, fy.ID)
		if err != nil {
			return err
		}
		if err := tx.DeleteSnapshot(ctx, fy.ID, SheetClosing); err != nil {
			return err
		}
		return tx.MarkReopened(ctx, fy.ID)
	})
	if err != nil {
		return err
	}
	s.record(ctx, "fiscalyear.reopen", fy, map[string]any{"entries_removed": removed, "reason": reason})
	return nil
}

// closingLines mirrors the opening entry: every Aktiva balance is credited
// out and every Passiva balance debited out, each side settled against the
// clearing account 9000.
func closingLines(snap report.Snapshot) []ledger.PostingLineInput {
	var lines []ledger.PostingLineInput
	var aktivaTotal, passivaTotal decimal.Decimal

	for _, row := range flattenSide(snap.Aktiva) {
		amount, dir := carryDirection(row.Balance, ledger.DirectionCredit)
		if amount.IsZero() {
			continue
		}
		lines = append(lines, ledger.PostingLineInput{AccountCode: row.Code, Amount: amount, Direction: dir})
		aktivaTotal = aktivaTotal.Add(row.Balance)
	}
	for _, row := range flattenSide(snap.Passiva) {
		amount, dir := carryDirection(row.Balance, ledger.DirectionDebit)
		if amount.IsZero() {
			continue
		}
		lines = append(lines, ledger.PostingLineInput{AccountCode: row.Code, Amount: amount, Direction: dir})
		passivaTotal = passivaTotal.Add(row.Balance)
	}
	// Book the annual result onto retained earnings so the clearing
	// account settles to zero.
	if net := syntheticNetIncome(snap); net.Abs().GreaterThanOrEqual(skr03.Materiality) {
		amount, dir := carryDirection(net, ledger.DirectionDebit)
		lines = append(lines, ledger.PostingLineInput{AccountCode: skr03.RetainedEarningsCode, Amount: amount, Direction: dir})
		passivaTotal = passivaTotal.Add(net)
	}
	if len(lines) == 0 {
		return nil
	}
	if aktivaTotal.Sign() != 0 {
		amount, dir := carryDirection(aktivaTotal, ledger.DirectionDebit)
		lines = append(lines, ledger.PostingLineInput{AccountCode: skr03.ClearingAccountCode, Amount: amount, Direction: dir})
	}
	if passivaTotal.Sign() != 0 {
		amount, dir := carryDirection(passivaTotal, ledger.DirectionCredit)
		lines = append(lines, ledger.PostingLineInput{AccountCode: skr03.ClearingAccountCode, Amount: amount, Direction: dir})
	}
	return lines
}
