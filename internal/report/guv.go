package report

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/buchwerk/buchwerk/internal/skr03"
)

// Result labels mandated by §275 HGB for the bottom line of the GuV.
const (
	LabelProfit = "Jahresüberschuss"
	LabelLoss   = "Jahresfehlbetrag"
)

// Display type values steer the UI sign convention only; subtotals always
// carry the true accounting sign.
const (
	DisplayPositive = "positive"
	DisplayNegative = "negative"
)

// GuVAccount is one account line of a GuV section. Amount is credit minus
// debit, so revenue is positive and expense negative.
type GuVAccount struct {
	Code   string          `json:"code"`
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"`
}

// GuVSection is one of the mandated §275 Abs. 2 HGB sections. Empty sections
// are still emitted to preserve the legal ordering.
type GuVSection struct {
	Key         string          `json:"key"`
	Label       string          `json:"label"`
	Accounts    []GuVAccount    `json:"accounts"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	DisplayType string          `json:"displayType"`
}

// GuVSnapshot is the computed profit and loss statement.
type GuVSnapshot struct {
	Sections    []GuVSection    `json:"sections"`
	NetIncome   decimal.Decimal `json:"netIncome"`
	ResultLabel string          `json:"resultLabel"`
}

// ResultLabelFor returns the legally mandated label for a net income amount.
func ResultLabelFor(netIncome decimal.Decimal) string {
	if netIncome.Sign() >= 0 {
		return LabelProfit
	}
	return LabelLoss
}

// BuildGuV aggregates P&L accounts into the fixed GuV section order. Balance
// sheet accounts and accounts with an immaterial net amount are skipped.
func BuildGuV(classify *skr03.Map, balances []AccountBalance) GuVSnapshot {
	bySection := make(map[string][]GuVAccount)
	for _, acc := range balances {
		rsid, ok := guvRSID(classify, acc)
		if !ok {
			continue
		}
		amount := acc.Credit.Sub(acc.Debit)
		if amount.Abs().Cmp(skr03.Materiality) < 0 {
			continue
		}
		bySection[rsid] = append(bySection[rsid], GuVAccount{Code: acc.Code, Name: acc.Name, Amount: amount})
	}

	defs := skr03.GuVSections()
	sections := make([]GuVSection, 0, len(defs))
	netIncome := decimal.Zero
	for _, def := range defs {
		sec := GuVSection{
			Key:         def.Key,
			Label:       def.Label,
			Subtotal:    decimal.Zero,
			DisplayType: DisplayPositive,
		}
		if def.Expense {
			sec.DisplayType = DisplayNegative
		}
		accounts := bySection[def.RSID]
		sort.Slice(accounts, func(i, j int) bool { return accounts[i].Code < accounts[j].Code })
		for _, acc := range accounts {
			sec.Accounts = append(sec.Accounts, acc)
			sec.Subtotal = sec.Subtotal.Add(acc.Amount)
		}
		netIncome = netIncome.Add(sec.Subtotal)
		sections = append(sections, sec)
	}

	return GuVSnapshot{
		Sections:    sections,
		NetIncome:   netIncome,
		ResultLabel: ResultLabelFor(netIncome),
	}
}

func guvRSID(classify *skr03.Map, acc AccountBalance) (string, bool) {
	if c, ok := classify.Lookup(acc.Code); ok {
		if skr03.IsBalanceRSID(c.RSID) {
			return "", false
		}
		return c.RSID, true
	}
	switch acc.Type {
	case skr03.AccountTypeRevenue, skr03.AccountTypeExpense:
		return skr03.FallbackRSIDFor(acc.Type), true
	default:
		return "", false
	}
}

// GuVService computes the profit and loss statement for a fiscal year.
type GuVService struct {
	ledger   LedgerReader
	classify *skr03.Map
}

// NewGuVService constructs a GuVService.
func NewGuVService(ledger LedgerReader, classify *skr03.Map) *GuVService {
	return &GuVService{ledger: ledger, classify: classify}
}

// Compute fetches posted balances and builds the GuV snapshot.
func (s *GuVService) Compute(ctx context.Context, companyID, fiscalYearID int64) (GuVSnapshot, error) {
	balances, err := s.ledger.PostedAccountBalances(ctx, companyID, fiscalYearID)
	if err != nil {
		return GuVSnapshot{}, err
	}
	return BuildGuV(s.classify, balances), nil
}
