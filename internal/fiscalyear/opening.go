package fiscalyear

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/buchwerk/buchwerk/internal/ledger"
	"github.com/buchwerk/buchwerk/internal/report"
	"github.com/buchwerk/buchwerk/internal/skr03"
)

// CreateOpeningBalance posts the EBK entry for the year, carrying forward
// the balances frozen in the prior year's closing snapshot. The entry, the
// stored opening snapshot, and the year state change commit atomically.
func (s *Service) CreateOpeningBalance(ctx context.Context, companyID int64, fiscalYearID int64) (ledger.JournalEntry, error) {
	var (
		entry ledger.JournalEntry
		fy    FiscalYear
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		fy, err = tx.YearForUpdate(ctx, fiscalYearID)
		if err != nil {
			return err
		}
		prior, err := tx.YearByNumber(ctx, companyID, fy.Year-1)
		if err != nil {
			if errors.Is(err, ErrYearNotFound) {
				return fmt.Errorf("%w: no prior year %d", ErrNoClosingSnapshot, fy.Year-1)
			}
			return err
		}
		snap, err := tx.LoadSnapshot(ctx, prior.ID, SheetClosing)
		if err != nil {
			return err
		}
		if snap == nil {
			return ErrNoClosingSnapshot
		}
		entry, err = s.postOpeningTx(ctx, tx, fy, *snap)
		return err
	})
	if err != nil {
		return ledger.JournalEntry{}, err
	}
	s.record(ctx, "fiscalyear.opening", fy, map[string]any{"entry_id": entry.ID})
	return entry, nil
}

// OpenWithSnapshot posts the EBK entry from an explicitly supplied balance
// sheet, for companies migrating in with existing balances.
func (s *Service) OpenWithSnapshot(ctx context.Context, fiscalYearID int64, snap report.Snapshot) (ledger.JournalEntry, error) {
	var (
		entry ledger.JournalEntry
		fy    FiscalYear
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		fy, err = tx.YearForUpdate(ctx, fiscalYearID)
		if err != nil {
			return err
		}
		entry, err = s.postOpeningTx(ctx, tx, fy, snap)
		return err
	})
	if err != nil {
		return ledger.JournalEntry{}, err
	}
	s.record(ctx, "fiscalyear.opening", fy, map[string]any{"entry_id": entry.ID, "source": "migration"})
	return entry, nil
}

// postOpeningTx builds and posts the EBK entry inside the given transaction.
// Both the annual close (carry-forward) and the explicit opening call run
// through here.
func (s *Service) postOpeningTx(ctx context.Context, tx TxRepository, fy FiscalYear, snap report.Snapshot) (ledger.JournalEntry, error) {
	if fy.Closed {
		return ledger.JournalEntry{}, ErrYearClosed
	}
	if fy.OpeningPostedAt != nil {
		return ledger.JournalEntry{}, ErrOpeningAlreadyPosted
	}
	// The EBK entry balances against 9000 by construction, so an
	// unbalanced input sheet would post without complaint and bake the
	// gap into the ledger. Refuse it here instead.
	if snap.Imbalance().Abs().GreaterThanOrEqual(skr03.Materiality) {
		return ledger.JournalEntry{}, &ImbalanceError{Aktiva: snap.Aktiva.Total, Passiva: snap.Passiva.Total}
	}
	lines := openingLines(snap)
	if len(lines) == 0 {
		// Nothing to carry forward. The year still counts as opened.
		return ledger.JournalEntry{}, tx.SetOpeningPosted(ctx, fy.ID, s.now())
	}
	entry, err := ledger.PostWithinTx(ctx, tx, ledger.PostingInput{
		CompanyID:    fy.CompanyID,
		FiscalYearID: fy.ID,
		BookingDate:  fy.StartDate,
		EntryType:    ledger.EntryTypeOpening,
		Memo:         fmt.Sprintf("Eröffnungsbilanz %d", fy.Year),
		SourceRef:    uuid.New(),
		Lines:        lines,
	}, s.now())
	if err != nil {
		return ledger.JournalEntry{}, err
	}
	opening := snap
	opening.FiscalYearID = fy.ID
	opening.GuV = nil
	if err := tx.SaveSnapshot(ctx, fy.ID, SheetOpening, opening); err != nil {
		return ledger.JournalEntry{}, err
	}
	if err := tx.SetOpeningPosted(ctx, fy.ID, s.now()); err != nil {
		return ledger.JournalEntry{}, err
	}
	return entry, nil
}

// openingLines turns a balance sheet into EBK posting lines. Every Aktiva
// account is debited and every Passiva account credited, each side balanced
// against the clearing account 9000. Synthetic rows such as the folded-in
// net income stay out; the profit travels inside the capital accounts once
// the close has booked it.
func openingLines(snap report.Snapshot) []ledger.PostingLineInput {
	var lines []ledger.PostingLineInput
	var aktivaTotal, passivaTotal decimal.Decimal

	for _, row := range flattenSide(snap.Aktiva) {
		amount, dir := carryDirection(row.Balance, ledger.DirectionDebit)
		if amount.IsZero() {
			continue
		}
		lines = append(lines, ledger.PostingLineInput{AccountCode: row.Code, Amount: amount, Direction: dir})
		aktivaTotal = aktivaTotal.Add(row.Balance)
	}
	for _, row := range flattenSide(snap.Passiva) {
		amount, dir := carryDirection(row.Balance, ledger.DirectionCredit)
		if amount.IsZero() {
			continue
		}
		lines = append(lines, ledger.PostingLineInput{AccountCode: row.Code, Amount: amount, Direction: dir})
		passivaTotal = passivaTotal.Add(row.Balance)
	}
	// The folded-in annual result has no account of its own; it carries
	// forward on the retained earnings account.
	if net := syntheticNetIncome(snap); net.Abs().GreaterThanOrEqual(skr03.Materiality) {
		amount, dir := carryDirection(net, ledger.DirectionCredit)
		lines = append(lines, ledger.PostingLineInput{AccountCode: skr03.RetainedEarningsCode, Amount: amount, Direction: dir})
		passivaTotal = passivaTotal.Add(net)
	}
	if len(lines) == 0 {
		return nil
	}
	if aktivaTotal.Sign() != 0 {
		amount, dir := carryDirection(aktivaTotal, ledger.DirectionCredit)
		lines = append(lines, ledger.PostingLineInput{AccountCode: skr03.ClearingAccountCode, Amount: amount, Direction: dir})
	}
	if passivaTotal.Sign() != 0 {
		amount, dir := carryDirection(passivaTotal, ledger.DirectionDebit)
		lines = append(lines, ledger.PostingLineInput{AccountCode: skr03.ClearingAccountCode, Amount: amount, Direction: dir})
	}
	return lines
}

// syntheticNetIncome sums the synthetic rows on the Passiva side, which is
// where the annual result gets folded in.
func syntheticNetIncome(snap report.Snapshot) decimal.Decimal {
	var net decimal.Decimal
	for _, section := range snap.Passiva.Sections {
		for _, row := range section.FlattenAccounts() {
			if row.Synthetic {
				net = net.Add(row.Balance)
			}
		}
	}
	return net
}

// flattenSide collects every non-synthetic account row of one side whose
// balance clears the materiality threshold.
func flattenSide(side report.SideSheet) []report.PositionRow {
	var rows []report.PositionRow
	for _, section := range side.Sections {
		for _, row := range section.FlattenAccounts() {
			if row.Synthetic || row.Balance.Abs().LessThan(skr03.Materiality) {
				continue
			}
			rows = append(rows, row)
		}
	}
	return rows
}

// carryDirection maps a signed contribution to a posting amount and
// direction. Negative contributions came from accounts pinned to the other
// side; they post in the opposite direction.
func carryDirection(balance decimal.Decimal, natural ledger.Direction) (decimal.Decimal, ledger.Direction) {
	amount := balance.Round(2)
	if amount.Sign() >= 0 {
		return amount, natural
	}
	flipped := ledger.DirectionCredit
	if natural == ledger.DirectionCredit {
		flipped = ledger.DirectionDebit
	}
	return amount.Neg(), flipped
}
