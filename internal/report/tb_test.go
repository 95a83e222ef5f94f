package report

import (
	"testing"

	"github.com/buchwerk/buchwerk/internal/skr03"
)

func TestBuildTrialBalanceGroupsByKontenklasse(t *testing.T) {
	tb := BuildTrialBalance([]AccountBalance{
		bal("1000", "Kasse", skr03.AccountTypeAsset, "200", "150"),
		bal("1200", "Bank", skr03.AccountTypeAsset, "100", "50"),
		bal("8400", "Erlöse", skr03.AccountTypeRevenue, "0", "100"),
	})
	if len(tb.Groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(tb.Groups))
	}
	if tb.Groups[0].Key != "1" || tb.Groups[1].Key != "8" {
		t.Fatalf("group keys %s %s", tb.Groups[0].Key, tb.Groups[1].Key)
	}
	if !tb.TotalDebit.Equal(dec("300")) || !tb.TotalCredit.Equal(dec("300")) {
		t.Fatalf("totals %s / %s", tb.TotalDebit, tb.TotalCredit)
	}
	if !tb.Drift().IsZero() {
		t.Fatalf("drift %s", tb.Drift())
	}
	if !tb.Groups[0].Balance.Equal(dec("100")) {
		t.Fatalf("group balance %s", tb.Groups[0].Balance)
	}
}
