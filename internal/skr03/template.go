package skr03

// SectionTemplate is one node of the static report layout. Accounts are
// placed at the deepest node whose RSID prefixes their resolved position.
type SectionTemplate struct {
	Key      string
	RSID     string
	Label    string
	Children []SectionTemplate
}

// AktivaTemplates returns the asset side layout of the balance sheet.
func AktivaTemplates() []SectionTemplate {
	return []SectionTemplate{
		{
			Key: "anlagevermoegen", RSID: RSIDAnlagevermoegen, Label: "Anlagevermögen",
			Children: []SectionTemplate{
				{Key: "immaterielle_vermoegensgegenstaende", RSID: RSIDImmateriell, Label: "Immaterielle Vermögensgegenstände"},
				{Key: "sachanlagen", RSID: RSIDSachanlagen, Label: "Sachanlagen"},
				{Key: "finanzanlagen", RSID: RSIDFinanzanlagen, Label: "Finanzanlagen"},
			},
		},
		{
			Key: "umlaufvermoegen", RSID: RSIDUmlaufvermoegen, Label: "Umlaufvermögen",
			Children: []SectionTemplate{
				{Key: "vorraete", RSID: RSIDVorraete, Label: "Vorräte"},
				{Key: "forderungen", RSID: RSIDForderungen, Label: "Forderungen aus Lieferungen und Leistungen"},
				{Key: "sonstige_vermoegensgegenstaende", RSID: RSIDSonstigeVG, Label: "Sonstige Vermögensgegenstände"},
				{Key: "liquide_mittel", RSID: RSIDLiquideMittel, Label: "Kassenbestand und Guthaben bei Kreditinstituten"},
			},
		},
	}
}

// PassivaTemplates returns the liabilities-and-equity side layout.
func PassivaTemplates() []SectionTemplate {
	return []SectionTemplate{
		{
			Key: "eigenkapital", RSID: RSIDEigenkapital, Label: "Eigenkapital",
			Children: []SectionTemplate{
				{Key: "kapital", RSID: RSIDKapital, Label: "Kapital"},
				{Key: "privatkonten", RSID: RSIDPrivatkonten, Label: "Privatkonten"},
			},
		},
		{Key: "rueckstellungen", RSID: RSIDRueckstellungen, Label: "Rückstellungen"},
		{
			Key: "verbindlichkeiten", RSID: RSIDVerbindlichkeiten, Label: "Verbindlichkeiten",
			Children: []SectionTemplate{
				{Key: "kreditinstitute", RSID: RSIDVerbKredit, Label: "Verbindlichkeiten gegenüber Kreditinstituten"},
				{Key: "lieferungen_leistungen", RSID: RSIDVerbLL, Label: "Verbindlichkeiten aus Lieferungen und Leistungen"},
				{Key: "steuern", RSID: RSIDVerbSteuern, Label: "Verbindlichkeiten aus Steuern"},
				{Key: "sonstige", RSID: RSIDVerbSonstige, Label: "Sonstige Verbindlichkeiten"},
			},
		},
	}
}

// GuVSectionDef fixes the ordering and sign convention of a §275 Abs. 2 HGB
// GuV section. Every section is emitted even when empty; the mandated
// ordering is part of the report contract.
type GuVSectionDef struct {
	Key     string
	RSID    string
	Label   string
	Expense bool
}

// GuVSections returns the Gesamtkostenverfahren section order.
func GuVSections() []GuVSectionDef {
	return []GuVSectionDef{
		{Key: "umsatzerloese", RSID: RSIDUmsatzerloese, Label: "Umsatzerlöse"},
		{Key: "sonstige_betriebliche_ertraege", RSID: RSIDSonstigeErtraege, Label: "Sonstige betriebliche Erträge"},
		{Key: "materialaufwand", RSID: RSIDMaterialaufwand, Label: "Materialaufwand", Expense: true},
		{Key: "personalaufwand", RSID: RSIDPersonalaufwand, Label: "Personalaufwand", Expense: true},
		{Key: "abschreibungen", RSID: RSIDAbschreibungen, Label: "Abschreibungen", Expense: true},
		{Key: "sonstige_betriebliche_aufwendungen", RSID: RSIDSonstigeAufwendungen, Label: "Sonstige betriebliche Aufwendungen", Expense: true},
		{Key: "finanzertraege", RSID: RSIDFinanzertraege, Label: "Sonstige Zinsen und ähnliche Erträge"},
		{Key: "finanzaufwendungen", RSID: RSIDFinanzaufwendungen, Label: "Zinsen und ähnliche Aufwendungen", Expense: true},
		{Key: "steuern", RSID: RSIDSteuern, Label: "Steuern vom Einkommen und vom Ertrag", Expense: true},
	}
}
