// Package skr03 holds the static SKR03 account classification tables and the
// presentation rule engine that maps account balances onto balance sheet and
// GuV report positions.
package skr03

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// AccountType enumerates chart of accounts categories.
type AccountType string

const (
	AccountTypeAsset     AccountType = "ASSET"
	AccountTypeLiability AccountType = "LIABILITY"
	AccountTypeEquity    AccountType = "EQUITY"
	AccountTypeRevenue   AccountType = "REVENUE"
	AccountTypeExpense   AccountType = "EXPENSE"
)

// Side names the two halves of the balance sheet.
type Side string

const (
	SideAktiva  Side = "AKTIVA"
	SidePassiva Side = "PASSIVA"
)

// RuleKind discriminates the closed set of presentation rule variants.
type RuleKind string

const (
	RuleAssetOnly     RuleKind = "ASSET_ONLY"
	RuleLiabilityOnly RuleKind = "LIABILITY_ONLY"
	RuleEquityOnly    RuleKind = "EQUITY_ONLY"
	RulePnLOnly       RuleKind = "PNL_ONLY"
	RuleBidirectional RuleKind = "BIDIRECTIONAL"
)

// Rule decides where an account is presented. Fixed kinds pin the account to
// its semantic report section regardless of balance direction; bidirectional
// rules carry separate target sections for debit and credit balances.
type Rule struct {
	Kind       RuleKind
	Name       string
	DebitRSID  string
	CreditRSID string
}

// Fixed constructs a fixed-position rule.
func Fixed(kind RuleKind) Rule {
	return Rule{Kind: kind}
}

// Bidirectional constructs a balance-direction-dependent rule.
func Bidirectional(name, debitRSID, creditRSID string) Rule {
	return Rule{Kind: RuleBidirectional, Name: name, DebitRSID: debitRSID, CreditRSID: creditRSID}
}

// Classification is one immutable mapping entry from account code to report
// section identity.
type Classification struct {
	Code string
	RSID string
	Rule Rule
}

// ResolvedPosition is the outcome of applying a presentation rule to an
// account's aggregated debit/credit totals.
type ResolvedPosition struct {
	RSID         string
	Side         Side
	Balance      decimal.Decimal
	DebitBalance bool
}

// Materiality is the epsilon below which a net balance is treated as zero.
// Accounts at or under this threshold never appear on a report.
var Materiality = decimal.New(1, -2)

// ErrInvalidRuleKind indicates a rule kind outside the closed variant set.
var ErrInvalidRuleKind = errors.New("skr03: invalid presentation rule kind")

const aktivaPrefix = "b.aktiva"

// SideOf derives the balance sheet side from a report section id.
func SideOf(rsid string) Side {
	if strings.HasPrefix(rsid, aktivaPrefix) {
		return SideAktiva
	}
	return SidePassiva
}

// IsBalanceRSID reports whether the section id belongs to the balance sheet
// rather than the GuV.
func IsBalanceRSID(rsid string) bool {
	return strings.HasPrefix(rsid, "b.")
}
