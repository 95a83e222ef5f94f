package skr03

import (
	"testing"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestResolveBidirectionalRoundTrip(t *testing.T) {
	rule := Bidirectional("bank_bidirectional", RSIDLiquideMittel, RSIDVerbKredit)

	debit := Resolve(rule, dec("150"), dec("0"), RSIDLiquideMittel)
	if debit == nil {
		t.Fatal("expected position for debit balance")
	}
	if debit.RSID != RSIDLiquideMittel {
		t.Fatalf("debit balance routed to %s", debit.RSID)
	}
	if debit.Side != SideAktiva || !debit.DebitBalance {
		t.Fatalf("debit balance landed on wrong side: %+v", debit)
	}
	if !debit.Balance.Equal(dec("150")) {
		t.Fatalf("unexpected balance %s", debit.Balance)
	}

	credit := Resolve(rule, dec("0"), dec("150"), RSIDLiquideMittel)
	if credit == nil {
		t.Fatal("expected position for credit balance")
	}
	if credit.RSID != RSIDVerbKredit {
		t.Fatalf("credit balance routed to %s", credit.RSID)
	}
	if credit.Side != SidePassiva || credit.DebitBalance {
		t.Fatalf("credit balance landed on wrong side: %+v", credit)
	}
	if !credit.Balance.Equal(dec("150")) {
		t.Fatalf("unexpected balance %s", credit.Balance)
	}
}

func TestResolveZeroBalanceSuppressed(t *testing.T) {
	rule := Fixed(RuleAssetOnly)
	if pos := Resolve(rule, dec("500.00"), dec("500.00"), RSIDLiquideMittel); pos != nil {
		t.Fatalf("expected nil for net zero balance, got %+v", pos)
	}
	if pos := Resolve(rule, dec("100.005"), dec("100.00"), RSIDLiquideMittel); pos != nil {
		t.Fatalf("expected nil below materiality threshold, got %+v", pos)
	}
}

func TestResolvePnLOnlyNeverOnBalanceSheet(t *testing.T) {
	rule := Fixed(RulePnLOnly)
	if pos := Resolve(rule, dec("1000"), dec("0"), RSIDUmsatzerloese); pos != nil {
		t.Fatalf("pnl-only account resolved to %+v", pos)
	}
}

func TestResolveFixedIgnoresBalanceDirection(t *testing.T) {
	rule := Fixed(RuleEquityOnly)
	pos := Resolve(rule, dec("300"), dec("0"), RSIDKapital)
	if pos == nil {
		t.Fatal("expected position")
	}
	if pos.RSID != RSIDKapital || pos.Side != SidePassiva {
		t.Fatalf("fixed rule moved account: %+v", pos)
	}
	if !pos.DebitBalance {
		t.Fatal("expected debit balance flag")
	}
}

func TestResolveBidirectionalFallsBackToSemanticRSID(t *testing.T) {
	rule := Bidirectional("fll_standard", "", RSIDVerbSonstige)
	pos := Resolve(rule, dec("80"), dec("0"), RSIDForderungen)
	if pos == nil || pos.RSID != RSIDForderungen {
		t.Fatalf("expected fallback to semantic rsid, got %+v", pos)
	}
}

func TestDefaultRuleFor(t *testing.T) {
	cases := []struct {
		typ  AccountType
		kind RuleKind
	}{
		{AccountTypeAsset, RuleAssetOnly},
		{AccountTypeLiability, RuleLiabilityOnly},
		{AccountTypeEquity, RuleEquityOnly},
		{AccountTypeRevenue, RulePnLOnly},
		{AccountTypeExpense, RulePnLOnly},
	}
	for _, tc := range cases {
		if got := DefaultRuleFor(tc.typ); got.Kind != tc.kind {
			t.Fatalf("%s: expected %s got %s", tc.typ, tc.kind, got.Kind)
		}
	}
}
