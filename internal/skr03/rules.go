package skr03

import "github.com/shopspring/decimal"

// Resolve applies a presentation rule to an account's aggregated totals and
// returns the resolved report position, or nil when the account does not
// appear on the balance sheet (P&L-only rules and balances under the
// materiality threshold).
func Resolve(rule Rule, totalDebit, totalCredit decimal.Decimal, semanticRSID string) *ResolvedPosition {
	net := totalDebit.Sub(totalCredit)
	if net.Abs().Cmp(Materiality) < 0 {
		return nil
	}
	if rule.Kind == RulePnLOnly {
		return nil
	}
	debitBalance := net.Sign() > 0

	rsid := semanticRSID
	if rule.Kind == RuleBidirectional {
		if debitBalance {
			if rule.DebitRSID != "" {
				rsid = rule.DebitRSID
			}
		} else {
			if rule.CreditRSID != "" {
				rsid = rule.CreditRSID
			}
		}
	}

	return &ResolvedPosition{
		RSID:         rsid,
		Side:         SideOf(rsid),
		Balance:      net.Abs(),
		DebitBalance: debitBalance,
	}
}

// FallbackRSIDFor names the semantic report section assumed for accounts the
// classification table does not know.
func FallbackRSIDFor(t AccountType) string {
	switch t {
	case AccountTypeAsset:
		return RSIDSonstigeVG
	case AccountTypeLiability:
		return RSIDVerbSonstige
	case AccountTypeEquity:
		return RSIDKapital
	case AccountTypeRevenue:
		return RSIDSonstigeErtraege
	default:
		return RSIDSonstigeAufwendungen
	}
}

// DefaultRuleFor infers a fixed presentation rule from the account type when
// no explicit classification exists. Revenue and expense accounts always map
// to a P&L-only rule so they can never land on the balance sheet.
func DefaultRuleFor(t AccountType) Rule {
	switch t {
	case AccountTypeAsset:
		return Fixed(RuleAssetOnly)
	case AccountTypeLiability:
		return Fixed(RuleLiabilityOnly)
	case AccountTypeEquity:
		return Fixed(RuleEquityOnly)
	default:
		return Fixed(RulePnLOnly)
	}
}
