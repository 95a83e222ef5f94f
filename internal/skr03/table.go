package skr03

// Report section identifiers for the SKR03 balance sheet and GuV layout.
const (
	RSIDAktiva          = "b.aktiva"
	RSIDAnlagevermoegen = "b.aktiva.anlagevermoegen"
	RSIDImmateriell     = "b.aktiva.anlagevermoegen.immaterielle_vermoegensgegenstaende"
	RSIDSachanlagen     = "b.aktiva.anlagevermoegen.sachanlagen"
	RSIDFinanzanlagen   = "b.aktiva.anlagevermoegen.finanzanlagen"
	RSIDUmlaufvermoegen = "b.aktiva.umlaufvermoegen"
	RSIDVorraete        = "b.aktiva.umlaufvermoegen.vorraete"
	RSIDForderungen     = "b.aktiva.umlaufvermoegen.forderungen"
	RSIDSonstigeVG      = "b.aktiva.umlaufvermoegen.sonstige_vermoegensgegenstaende"
	RSIDLiquideMittel   = "b.aktiva.umlaufvermoegen.liquide_mittel"

	RSIDPassiva           = "b.passiva"
	RSIDEigenkapital      = "b.passiva.eigenkapital"
	RSIDKapital           = "b.passiva.eigenkapital.kapital"
	RSIDPrivatkonten      = "b.passiva.eigenkapital.privatkonten"
	RSIDRueckstellungen   = "b.passiva.rueckstellungen"
	RSIDVerbindlichkeiten = "b.passiva.verbindlichkeiten"
	RSIDVerbKredit        = "b.passiva.verbindlichkeiten.kreditinstitute"
	RSIDVerbLL            = "b.passiva.verbindlichkeiten.lieferungen_leistungen"
	RSIDVerbSteuern       = "b.passiva.verbindlichkeiten.steuern"
	RSIDVerbSonstige      = "b.passiva.verbindlichkeiten.sonstige"

	RSIDUmsatzerloese        = "guv.umsatzerloese"
	RSIDSonstigeErtraege     = "guv.sonstige_betriebliche_ertraege"
	RSIDMaterialaufwand      = "guv.materialaufwand"
	RSIDPersonalaufwand      = "guv.personalaufwand"
	RSIDAbschreibungen       = "guv.abschreibungen"
	RSIDSonstigeAufwendungen = "guv.sonstige_betriebliche_aufwendungen"
	RSIDFinanzertraege       = "guv.finanzertraege"
	RSIDFinanzaufwendungen   = "guv.finanzaufwendungen"
	RSIDSteuern              = "guv.steuern"
)

// ClearingAccountCode is the fixed EBK/SBK clearing account every opening and
// closing entry balances against.
const ClearingAccountCode = "9000"

// SystemAccountPrefix marks statistical 9xxx accounts that never appear on
// reports.
const SystemAccountPrefix = "9"

// RetainedEarningsCode receives the annual result during close and carries
// it into the next year's capital.
const RetainedEarningsCode = "0860"

// Table returns the generated SKR03 classification table in compact range
// notation. The ranges are disjoint; NewMap verifies that at load time.
func Table() []TableRow {
	return []TableRow{
		{Codes: "0001-0099", RSID: RSIDImmateriell, Rule: Fixed(RuleAssetOnly)},
		{Codes: "0100-0599", RSID: RSIDSachanlagen, Rule: Fixed(RuleAssetOnly)},
		{Codes: "0600-0699", RSID: RSIDVerbKredit, Rule: Fixed(RuleLiabilityOnly)},
		{Codes: "0700-0799", RSID: RSIDFinanzanlagen, Rule: Fixed(RuleAssetOnly)},
		{Codes: "0800-0949", RSID: RSIDKapital, Rule: Fixed(RuleEquityOnly)},
		{Codes: "0950-0999", RSID: RSIDRueckstellungen, Rule: Fixed(RuleLiabilityOnly)},
		{Codes: "1000-1199", RSID: RSIDLiquideMittel, Rule: Fixed(RuleAssetOnly)},
		{Codes: "1200-1299", RSID: RSIDLiquideMittel, Rule: Bidirectional("bank_bidirectional", RSIDLiquideMittel, RSIDVerbKredit)},
		{Codes: "1300-1399", RSID: RSIDSonstigeVG, Rule: Fixed(RuleAssetOnly)},
		{Codes: "1400-1499", RSID: RSIDForderungen, Rule: Bidirectional("fll_standard", RSIDForderungen, RSIDVerbSonstige)},
		{Codes: "1500-1569", RSID: RSIDSonstigeVG, Rule: Fixed(RuleAssetOnly)},
		{Codes: "1570-1599", RSID: RSIDSonstigeVG, Rule: Bidirectional("tax_standard", RSIDSonstigeVG, RSIDVerbSteuern)},
		{Codes: "1600-1699", RSID: RSIDVerbLL, Rule: Bidirectional("vll_standard", RSIDForderungen, RSIDVerbLL)},
		{Codes: "1700-1769", RSID: RSIDVerbSonstige, Rule: Fixed(RuleLiabilityOnly)},
		{Codes: "1770-1799", RSID: RSIDVerbSteuern, Rule: Bidirectional("tax_standard", RSIDSonstigeVG, RSIDVerbSteuern)},
		{Codes: "1800-1899", RSID: RSIDPrivatkonten, Rule: Fixed(RuleEquityOnly)},
		{Codes: "1900-1999", RSID: RSIDPrivatkonten, Rule: Fixed(RuleEquityOnly)},
		{Codes: "2000-2099", RSID: RSIDSonstigeAufwendungen, Rule: Fixed(RulePnLOnly)},
		{Codes: "2100-2199", RSID: RSIDFinanzaufwendungen, Rule: Fixed(RulePnLOnly)},
		{Codes: "2200-2299", RSID: RSIDSteuern, Rule: Fixed(RulePnLOnly)},
		{Codes: "2300-2599", RSID: RSIDSonstigeAufwendungen, Rule: Fixed(RulePnLOnly)},
		{Codes: "2600-2699", RSID: RSIDFinanzertraege, Rule: Fixed(RulePnLOnly)},
		{Codes: "2700-2799", RSID: RSIDSonstigeErtraege, Rule: Fixed(RulePnLOnly)},
		{Codes: "3000-3999", RSID: RSIDMaterialaufwand, Rule: Fixed(RulePnLOnly)},
		{Codes: "4000-4099", RSID: RSIDSonstigeAufwendungen, Rule: Fixed(RulePnLOnly)},
		{Codes: "4100-4199", RSID: RSIDPersonalaufwand, Rule: Fixed(RulePnLOnly)},
		{Codes: "4200-4799", RSID: RSIDSonstigeAufwendungen, Rule: Fixed(RulePnLOnly)},
		{Codes: "4800-4899", RSID: RSIDAbschreibungen, Rule: Fixed(RulePnLOnly)},
		{Codes: "4900-4999", RSID: RSIDSonstigeAufwendungen, Rule: Fixed(RulePnLOnly)},
		{Codes: "7000-7999", RSID: RSIDVorraete, Rule: Fixed(RuleAssetOnly)},
		{Codes: "8000-8999", RSID: RSIDUmsatzerloese, Rule: Fixed(RulePnLOnly)},
	}
}

// AccountTemplate describes a ledger account that can be provisioned
// automatically when a booking needs it.
type AccountTemplate struct {
	Code string
	Name string
	Type AccountType
}

var systemTemplates = map[string]AccountTemplate{
	"9000": {Code: "9000", Name: "Saldenvorträge, Sachkonten", Type: AccountTypeEquity},
	"9008": {Code: "9008", Name: "Saldenvorträge, Debitoren", Type: AccountTypeEquity},
	"9009": {Code: "9009", Name: "Saldenvorträge, Kreditoren", Type: AccountTypeEquity},
}

// TemplateFor resolves a provisioning template for the given account code,
// consulting the fixed system accounts first and the classification map
// second. Codes with no classification have no template.
func (m *Map) TemplateFor(code string) (AccountTemplate, bool) {
	if t, ok := systemTemplates[code]; ok {
		return t, true
	}
	c, ok := m.Lookup(code)
	if !ok {
		return AccountTemplate{}, false
	}
	return AccountTemplate{Code: code, Name: "SKR03 Konto " + code, Type: accountTypeFor(c)}, true
}

func accountTypeFor(c Classification) AccountType {
	switch c.Rule.Kind {
	case RuleAssetOnly:
		return AccountTypeAsset
	case RuleLiabilityOnly:
		return AccountTypeLiability
	case RuleEquityOnly:
		return AccountTypeEquity
	case RulePnLOnly:
		switch c.RSID {
		case RSIDUmsatzerloese, RSIDSonstigeErtraege, RSIDFinanzertraege:
			return AccountTypeRevenue
		}
		return AccountTypeExpense
	default:
		if SideOf(c.RSID) == SideAktiva {
			return AccountTypeAsset
		}
		return AccountTypeLiability
	}
}
