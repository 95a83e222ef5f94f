package report

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/buchwerk/buchwerk/internal/skr03"
)

// SideSheet holds the sections and total of one balance sheet side.
type SideSheet struct {
	Sections []Section       `json:"sections"`
	Total    decimal.Decimal `json:"total"`
}

// Snapshot is the full computed balance sheet. For closed fiscal years the
// stored snapshot is returned verbatim; open years are recomputed from the
// ledger on every call.
type Snapshot struct {
	FiscalYearID int64        `json:"fiscalYearId"`
	Aktiva       SideSheet    `json:"aktiva"`
	Passiva      SideSheet    `json:"passiva"`
	Balanced     bool         `json:"balanced"`
	GuV          *GuVSnapshot `json:"guv,omitempty"`
}

// Imbalance returns the Aktiva minus Passiva difference.
func (s Snapshot) Imbalance() decimal.Decimal {
	return s.Aktiva.Total.Sub(s.Passiva.Total)
}

// BalanceSheetService computes balance sheet snapshots.
type BalanceSheetService struct {
	ledger   LedgerReader
	classify *skr03.Map
	store    SnapshotStore
	years    YearGate
}

// NewBalanceSheetService constructs a BalanceSheetService. store and years
// may be nil for purely computational use (tests, closing-in-progress).
func NewBalanceSheetService(ledger LedgerReader, classify *skr03.Map, store SnapshotStore, years YearGate) *BalanceSheetService {
	return &BalanceSheetService{ledger: ledger, classify: classify, store: store, years: years}
}

// Compute returns the balance sheet for a fiscal year. Closed years resolve
// to the stored closing snapshot; legacy snapshots without GuV data get the
// GuV computed on the fly without touching the stored Aktiva/Passiva figures.
func (s *BalanceSheetService) Compute(ctx context.Context, companyID, fiscalYearID int64) (Snapshot, error) {
	if s.years != nil && s.store != nil {
		closed, err := s.years.IsClosed(ctx, fiscalYearID)
		if err != nil {
			return Snapshot{}, err
		}
		if closed {
			stored, err := s.store.LoadClosingSnapshot(ctx, fiscalYearID)
			if err != nil {
				return Snapshot{}, err
			}
			if stored != nil {
				if stored.GuV == nil {
					guv, err := s.computeGuV(ctx, companyID, fiscalYearID)
					if err != nil {
						return Snapshot{}, err
					}
					stored.GuV = &guv
				}
				return *stored, nil
			}
		}
	}
	return s.ComputeFresh(ctx, companyID, fiscalYearID)
}

// ComputeFresh always aggregates from the ledger, bypassing any stored
// snapshot.
func (s *BalanceSheetService) ComputeFresh(ctx context.Context, companyID, fiscalYearID int64) (Snapshot, error) {
	return s.ComputeFreshFrom(ctx, s.ledger, companyID, fiscalYearID)
}

// ComputeFreshFrom aggregates through the supplied reader instead of the
// service's own. The closing service passes its transaction here so the
// frozen sheet reflects exactly the ledger rows visible to that
// transaction.
func (s *BalanceSheetService) ComputeFreshFrom(ctx context.Context, reader LedgerReader, companyID, fiscalYearID int64) (Snapshot, error) {
	balances, err := reader.PostedAccountBalances(ctx, companyID, fiscalYearID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("report: load balances: %w", err)
	}
	guv := BuildGuV(s.classify, balances)
	return buildSnapshot(s.classify, fiscalYearID, balances, guv), nil
}

func (s *BalanceSheetService) computeGuV(ctx context.Context, companyID, fiscalYearID int64) (GuVSnapshot, error) {
	balances, err := s.ledger.PostedAccountBalances(ctx, companyID, fiscalYearID)
	if err != nil {
		return GuVSnapshot{}, err
	}
	return BuildGuV(s.classify, balances), nil
}

func buildSnapshot(classify *skr03.Map, fiscalYearID int64, balances []AccountBalance, guv GuVSnapshot) Snapshot {
	var aktiva, passiva []PlacedAccount
	for _, acc := range balances {
		rsid, rule := classificationFor(classify, acc)
		pos := skr03.Resolve(rule, acc.Debit, acc.Credit, rsid)
		if pos == nil {
			continue
		}
		row := PositionRow{
			Code:         acc.Code,
			Name:         acc.Name,
			Balance:      signedContribution(pos),
			DebitBalance: pos.DebitBalance,
		}
		placed := PlacedAccount{RSID: pos.RSID, Row: row}
		if pos.Side == skr03.SideAktiva {
			aktiva = append(aktiva, placed)
		} else {
			passiva = append(passiva, placed)
		}
	}

	aktivaSections := BuildSections(skr03.AktivaTemplates(), aktiva)
	passivaSections := BuildSections(skr03.PassivaTemplates(), passiva)
	passivaSections = injectNetIncome(passivaSections, guv.NetIncome)

	snap := Snapshot{
		FiscalYearID: fiscalYearID,
		Aktiva:       SideSheet{Sections: aktivaSections, Total: sumSections(aktivaSections)},
		Passiva:      SideSheet{Sections: passivaSections, Total: sumSections(passivaSections)},
		GuV:          &guv,
	}
	snap.Balanced = snap.Imbalance().Abs().Cmp(skr03.Materiality) < 0
	return snap
}

func classificationFor(classify *skr03.Map, acc AccountBalance) (string, skr03.Rule) {
	if c, ok := classify.Lookup(acc.Code); ok {
		return c.RSID, c.Rule
	}
	return skr03.FallbackRSIDFor(acc.Type), skr03.DefaultRuleFor(acc.Type)
}

// signedContribution converts the absolute resolved balance into the signed
// contribution to the resolved side: an account presented on its natural side
// counts positive, one pinned to the opposite side counts negative.
func signedContribution(pos *skr03.ResolvedPosition) decimal.Decimal {
	natural := pos.Side == skr03.SideAktiva
	if pos.DebitBalance == natural {
		return pos.Balance
	}
	return pos.Balance.Neg()
}

// injectNetIncome folds the GuV result into the Eigenkapital section as a
// synthetic pseudo-account. This is the single injection point: the snapshot
// total is the plain sum of the section totals afterwards.
func injectNetIncome(sections []Section, netIncome decimal.Decimal) []Section {
	if netIncome.Abs().Cmp(skr03.Materiality) < 0 {
		return sections
	}
	row := PositionRow{
		Name:         ResultLabelFor(netIncome),
		Balance:      netIncome,
		DebitBalance: netIncome.Sign() < 0,
		Synthetic:    true,
	}
	out := make([]Section, len(sections))
	copy(out, sections)
	for i, sec := range out {
		if sec.RSID != skr03.RSIDEigenkapital {
			continue
		}
		sec.Accounts = append(append([]PositionRow(nil), sec.Accounts...), row)
		sec.Total = sec.Total.Add(netIncome)
		sec.AccountCount++
		out[i] = sec
		return out
	}
	ek := Section{
		Key:          "eigenkapital",
		RSID:         skr03.RSIDEigenkapital,
		Label:        "Eigenkapital",
		Level:        1,
		Accounts:     []PositionRow{row},
		Total:        netIncome,
		AccountCount: 1,
	}
	return append([]Section{ek}, out...)
}

func sumSections(sections []Section) decimal.Decimal {
	total := decimal.Zero
	for _, sec := range sections {
		total = total.Add(sec.Total)
	}
	return total
}
