package report

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/buchwerk/buchwerk/internal/skr03"
)

func testMap(t *testing.T) *skr03.Map {
	t.Helper()
	m, err := skr03.NewMap(skr03.Table())
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func bal(code, name string, typ skr03.AccountType, debit, credit string) AccountBalance {
	return AccountBalance{Code: code, Name: name, Type: typ, Debit: dec(debit), Credit: dec(credit)}
}

func TestBuildGuVEmitsAllSectionsInOrder(t *testing.T) {
	guv := BuildGuV(testMap(t), nil)
	defs := skr03.GuVSections()
	if len(guv.Sections) != len(defs) {
		t.Fatalf("expected %d sections, got %d", len(defs), len(guv.Sections))
	}
	for i, def := range defs {
		if guv.Sections[i].Key != def.Key {
			t.Fatalf("section %d: expected %s got %s", i, def.Key, guv.Sections[i].Key)
		}
		if !guv.Sections[i].Subtotal.IsZero() {
			t.Fatalf("empty section %s has subtotal %s", def.Key, guv.Sections[i].Subtotal)
		}
	}
	if guv.ResultLabel != LabelProfit {
		t.Fatalf("zero result labelled %q", guv.ResultLabel)
	}
}

func TestBuildGuVNetIncome(t *testing.T) {
	guv := BuildGuV(testMap(t), []AccountBalance{
		bal("8400", "Erlöse 19% USt", skr03.AccountTypeRevenue, "0", "1000"),
		bal("3400", "Wareneingang", skr03.AccountTypeExpense, "300", "0"),
		bal("4120", "Gehälter", skr03.AccountTypeExpense, "200", "0"),
		bal("1200", "Bank", skr03.AccountTypeAsset, "1000", "500"),
	})
	if !guv.NetIncome.Equal(dec("500")) {
		t.Fatalf("net income %s", guv.NetIncome)
	}
	if guv.ResultLabel != LabelProfit {
		t.Fatalf("label %q", guv.ResultLabel)
	}
	var material GuVSection
	for _, sec := range guv.Sections {
		if sec.Key == "materialaufwand" {
			material = sec
		}
	}
	if !material.Subtotal.Equal(dec("-300")) {
		t.Fatalf("materialaufwand subtotal %s, want true accounting sign", material.Subtotal)
	}
	if material.DisplayType != DisplayNegative {
		t.Fatalf("materialaufwand display type %q", material.DisplayType)
	}
}

func TestBuildGuVLossLabel(t *testing.T) {
	guv := BuildGuV(testMap(t), []AccountBalance{
		bal("8400", "Erlöse", skr03.AccountTypeRevenue, "0", "100"),
		bal("4930", "Bürobedarf", skr03.AccountTypeExpense, "250", "0"),
	})
	if !guv.NetIncome.Equal(dec("-150")) {
		t.Fatalf("net income %s", guv.NetIncome)
	}
	if guv.ResultLabel != LabelLoss {
		t.Fatalf("label %q", guv.ResultLabel)
	}
}

func TestBuildGuVUnclassifiedFallsBackByType(t *testing.T) {
	guv := BuildGuV(testMap(t), []AccountBalance{
		bal("5500", "Fremdleistung", skr03.AccountTypeExpense, "40", "0"),
	})
	found := false
	for _, sec := range guv.Sections {
		if sec.Key == "sonstige_betriebliche_aufwendungen" && len(sec.Accounts) == 1 {
			found = true
		}
	}
	if !found {
		t.Fatal("unclassified expense not routed to sonstige aufwendungen")
	}
}

type stubLedger struct {
	balances []AccountBalance
	err      error
	calls    int
}

func (s *stubLedger) PostedAccountBalances(ctx context.Context, companyID, fiscalYearID int64) ([]AccountBalance, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return append([]AccountBalance(nil), s.balances...), nil
}

func TestGuVServiceCompute(t *testing.T) {
	ledger := &stubLedger{balances: []AccountBalance{
		bal("8400", "Erlöse", skr03.AccountTypeRevenue, "0", "119"),
	}}
	svc := NewGuVService(ledger, testMap(t))
	guv, err := svc.Compute(context.Background(), 1, 1)
	if err != nil {
		t.Fatal(err)
	}
	if !guv.NetIncome.Equal(decimal.RequireFromString("119")) {
		t.Fatalf("net income %s", guv.NetIncome)
	}
}
