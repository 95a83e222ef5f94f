package skr03

import (
	"strings"
	"testing"
)

func TestNewMapExpandsRanges(t *testing.T) {
	m, err := NewMap([]TableRow{
		{Codes: "4000-4999", RSID: RSIDSonstigeAufwendungen, Rule: Fixed(RulePnLOnly)},
		{Codes: "1200", RSID: RSIDLiquideMittel, Rule: Fixed(RuleAssetOnly)},
	})
	if err != nil {
		t.Fatal(err)
	}
	if m.Len() != 1001 {
		t.Fatalf("expected 1001 codes, got %d", m.Len())
	}
	c, ok := m.Lookup("4321")
	if !ok || c.RSID != RSIDSonstigeAufwendungen {
		t.Fatalf("lookup 4321: %v %v", c, ok)
	}
	if _, ok := m.Lookup("5000"); ok {
		t.Fatal("5000 must not be mapped")
	}
}

func TestNewMapPreservesLeadingZeros(t *testing.T) {
	m, err := NewMap([]TableRow{{Codes: "0001-0010", RSID: RSIDImmateriell, Rule: Fixed(RuleAssetOnly)}})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := m.Lookup("0005"); !ok {
		t.Fatal("zero padded code missing")
	}
	if _, ok := m.Lookup("5"); ok {
		t.Fatal("unpadded code must not resolve")
	}
}

func TestNewMapRejectsOverlap(t *testing.T) {
	_, err := NewMap([]TableRow{
		{Codes: "1000-1199", RSID: RSIDLiquideMittel, Rule: Fixed(RuleAssetOnly)},
		{Codes: "1150-1250", RSID: RSIDSonstigeVG, Rule: Fixed(RuleAssetOnly)},
	})
	if err == nil {
		t.Fatal("expected overlap error")
	}
	if !strings.Contains(err.Error(), "claimed by both") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNewMapRejectsMalformedSpecs(t *testing.T) {
	for _, spec := range []string{"", "12", "abcd", "1200-999", "1300-1200", "100-20000"} {
		if _, err := NewMap([]TableRow{{Codes: spec, RSID: RSIDLiquideMittel, Rule: Fixed(RuleAssetOnly)}}); err == nil {
			t.Fatalf("spec %q accepted", spec)
		}
	}
}

func TestGeneratedTableLoads(t *testing.T) {
	m, err := NewMap(Table())
	if err != nil {
		t.Fatal(err)
	}
	c, ok := m.Lookup("1200")
	if !ok || c.Rule.Kind != RuleBidirectional {
		t.Fatalf("bank account classification: %+v %v", c, ok)
	}
	c, ok = m.Lookup("8400")
	if !ok || c.RSID != RSIDUmsatzerloese {
		t.Fatalf("revenue classification: %+v %v", c, ok)
	}
	if _, ok := m.Lookup(ClearingAccountCode); ok {
		t.Fatal("clearing account must stay out of the report classification")
	}
}

func TestTemplateForSystemAccount(t *testing.T) {
	m, err := NewMap(Table())
	if err != nil {
		t.Fatal(err)
	}
	tmpl, ok := m.TemplateFor(ClearingAccountCode)
	if !ok {
		t.Fatal("expected template for clearing account")
	}
	if tmpl.Name != "Saldenvorträge, Sachkonten" {
		t.Fatalf("unexpected template name %q", tmpl.Name)
	}
	tmpl, ok = m.TemplateFor("1200")
	if !ok || tmpl.Type != AccountTypeAsset {
		t.Fatalf("bank template: %+v %v", tmpl, ok)
	}
	if _, ok := m.TemplateFor("5555"); ok {
		t.Fatal("unmapped code must have no template")
	}
}
