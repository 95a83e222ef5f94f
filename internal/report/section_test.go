package report

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/buchwerk/buchwerk/internal/skr03"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func placed(rsid, code string, balance string) PlacedAccount {
	return PlacedAccount{RSID: rsid, Row: PositionRow{Code: code, Name: "Konto " + code, Balance: dec(balance), DebitBalance: true}}
}

func TestBuildSectionsPlacesAccountsAtDeepestNode(t *testing.T) {
	sections := BuildSections(skr03.AktivaTemplates(), []PlacedAccount{
		placed(skr03.RSIDLiquideMittel, "1000", "100"),
		placed(skr03.RSIDForderungen, "1400", "50"),
		placed(skr03.RSIDSachanlagen, "0410", "200"),
	})

	if len(sections) != 2 {
		t.Fatalf("expected anlage- and umlaufvermoegen, got %d sections", len(sections))
	}
	anlage, umlauf := sections[0], sections[1]
	if !anlage.Total.Equal(dec("200")) {
		t.Fatalf("anlagevermoegen total %s", anlage.Total)
	}
	if !umlauf.Total.Equal(dec("150")) {
		t.Fatalf("umlaufvermoegen total %s", umlauf.Total)
	}
	if umlauf.AccountCount != 2 {
		t.Fatalf("umlaufvermoegen count %d", umlauf.AccountCount)
	}
	if len(umlauf.Accounts) != 0 {
		t.Fatalf("accounts must sit in child sections, found %d at top", len(umlauf.Accounts))
	}
}

func TestBuildSectionsTotalInvariant(t *testing.T) {
	sections := BuildSections(skr03.PassivaTemplates(), []PlacedAccount{
		placed(skr03.RSIDVerbLL, "1610", "80"),
		placed(skr03.RSIDVerbSteuern, "1770", "19"),
		placed(skr03.RSIDVerbindlichkeiten, "1750", "1"),
	})
	var verb *Section
	for i := range sections {
		if sections[i].RSID == skr03.RSIDVerbindlichkeiten {
			verb = &sections[i]
		}
	}
	if verb == nil {
		t.Fatal("verbindlichkeiten section missing")
	}
	own := decimal.Zero
	for _, row := range verb.Accounts {
		own = own.Add(row.Balance)
	}
	children := decimal.Zero
	for _, child := range verb.Children {
		children = children.Add(child.Total)
	}
	if !verb.Total.Equal(own.Add(children)) {
		t.Fatalf("total %s != own %s + children %s", verb.Total, own, children)
	}
	if !verb.Total.Equal(dec("100")) {
		t.Fatalf("expected 100, got %s", verb.Total)
	}
}

func TestBuildSectionsOmitsEmpty(t *testing.T) {
	sections := BuildSections(skr03.PassivaTemplates(), []PlacedAccount{
		placed(skr03.RSIDVerbLL, "1610", "80"),
	})
	if len(sections) != 1 {
		t.Fatalf("expected only verbindlichkeiten, got %d sections", len(sections))
	}
	if sections[0].RSID != skr03.RSIDVerbindlichkeiten {
		t.Fatalf("unexpected section %s", sections[0].RSID)
	}
	if len(sections[0].Children) != 1 {
		t.Fatalf("expected one child, got %d", len(sections[0].Children))
	}
}

func TestBuildSectionsNeverDuplicates(t *testing.T) {
	sections := BuildSections(skr03.AktivaTemplates(), []PlacedAccount{
		placed(skr03.RSIDLiquideMittel, "1200", "100"),
	})
	count := 0
	for _, sec := range sections {
		for _, row := range sec.FlattenAccounts() {
			if row.Code == "1200" {
				count++
			}
		}
	}
	if count != 1 {
		t.Fatalf("account appeared %d times", count)
	}
}
