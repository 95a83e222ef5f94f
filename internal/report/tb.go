package report

import (
	"sort"

	"github.com/shopspring/decimal"
)

// TrialBalanceRow is one account of the Summen- und Saldenliste.
type TrialBalanceRow struct {
	Code    string          `json:"code"`
	Name    string          `json:"name"`
	Debit   decimal.Decimal `json:"debit"`
	Credit  decimal.Decimal `json:"credit"`
	Balance decimal.Decimal `json:"balance"`
}

// TrialBalanceGroup aggregates accounts of one SKR03 Kontenklasse.
type TrialBalanceGroup struct {
	Key      string            `json:"key"`
	Accounts []TrialBalanceRow `json:"accounts"`
	Debit    decimal.Decimal   `json:"debit"`
	Credit   decimal.Decimal   `json:"credit"`
	Balance  decimal.Decimal   `json:"balance"`
}

// TrialBalance is the grouped Summen- und Saldenliste over posted entries.
type TrialBalance struct {
	Groups      []TrialBalanceGroup `json:"groups"`
	TotalDebit  decimal.Decimal     `json:"totalDebit"`
	TotalCredit decimal.Decimal     `json:"totalCredit"`
}

// Drift reports the debit minus credit difference; anything at or above the
// materiality threshold indicates a broken ledger.
func (tb TrialBalance) Drift() decimal.Decimal {
	return tb.TotalDebit.Sub(tb.TotalCredit)
}

// BuildTrialBalance groups account balances by Kontenklasse (first digit of
// the account code).
func BuildTrialBalance(balances []AccountBalance) TrialBalance {
	groups := make(map[string]*TrialBalanceGroup)
	keys := make([]string, 0)
	tb := TrialBalance{TotalDebit: decimal.Zero, TotalCredit: decimal.Zero}

	for _, acc := range balances {
		key := groupKey(acc.Code)
		grp, ok := groups[key]
		if !ok {
			grp = &TrialBalanceGroup{Key: key, Debit: decimal.Zero, Credit: decimal.Zero, Balance: decimal.Zero}
			groups[key] = grp
			keys = append(keys, key)
		}
		row := TrialBalanceRow{
			Code:    acc.Code,
			Name:    acc.Name,
			Debit:   acc.Debit,
			Credit:  acc.Credit,
			Balance: acc.Debit.Sub(acc.Credit),
		}
		grp.Accounts = append(grp.Accounts, row)
		grp.Debit = grp.Debit.Add(row.Debit)
		grp.Credit = grp.Credit.Add(row.Credit)
		grp.Balance = grp.Balance.Add(row.Balance)
	}

	sort.Strings(keys)
	for _, key := range keys {
		grp := groups[key]
		sort.Slice(grp.Accounts, func(i, j int) bool { return grp.Accounts[i].Code < grp.Accounts[j].Code })
		tb.Groups = append(tb.Groups, *grp)
		tb.TotalDebit = tb.TotalDebit.Add(grp.Debit)
		tb.TotalCredit = tb.TotalCredit.Add(grp.Credit)
	}
	return tb
}

func groupKey(code string) string {
	if code == "" {
		return "?"
	}
	return code[:1]
}
