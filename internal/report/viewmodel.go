package report

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Formatter renders amounts in German locale notation for report views.
type Formatter struct {
	p *message.Printer
}

// NewFormatter constructs a German-locale formatter.
func NewFormatter() *Formatter {
	return &Formatter{p: message.NewPrinter(language.German)}
}

// Amount formats a decimal as a German currency string, e.g. "1.095,79 €".
func (f *Formatter) Amount(d decimal.Decimal) string {
	return f.p.Sprintf("%.2f €", d.InexactFloat64())
}

// SectionView is a render-ready section with formatted totals.
type SectionView struct {
	Key      string        `json:"key"`
	Label    string        `json:"label"`
	Level    int           `json:"level"`
	Accounts []RowView     `json:"accounts"`
	Children []SectionView `json:"children,omitempty"`
	Total    string        `json:"total"`
}

// RowView is a render-ready account line.
type RowView struct {
	Code    string `json:"code"`
	Name    string `json:"name"`
	Balance string `json:"balance"`
}

// BalanceSheetView is the cached/rendered shape of a balance sheet.
type BalanceSheetView struct {
	FiscalYearID int64         `json:"fiscalYearId"`
	Aktiva       []SectionView `json:"aktiva"`
	Passiva      []SectionView `json:"passiva"`
	AktivaTotal  string        `json:"aktivaTotal"`
	PassivaTotal string        `json:"passivaTotal"`
	Balanced     bool          `json:"balanced"`
	ResultLabel  string        `json:"resultLabel,omitempty"`
	NetIncome    string        `json:"netIncome,omitempty"`
}

// NewBalanceSheetView formats a snapshot for rendering.
func NewBalanceSheetView(f *Formatter, snap Snapshot) BalanceSheetView {
	view := BalanceSheetView{
		FiscalYearID: snap.FiscalYearID,
		Aktiva:       formatSections(f, snap.Aktiva.Sections),
		Passiva:      formatSections(f, snap.Passiva.Sections),
		AktivaTotal:  f.Amount(snap.Aktiva.Total),
		PassivaTotal: f.Amount(snap.Passiva.Total),
		Balanced:     snap.Balanced,
	}
	if snap.GuV != nil {
		view.ResultLabel = snap.GuV.ResultLabel
		view.NetIncome = f.Amount(snap.GuV.NetIncome)
	}
	return view
}

func formatSections(f *Formatter, sections []Section) []SectionView {
	out := make([]SectionView, 0, len(sections))
	for _, sec := range sections {
		sv := SectionView{
			Key:      sec.Key,
			Label:    sec.Label,
			Level:    sec.Level,
			Total:    f.Amount(sec.Total),
			Children: formatSections(f, sec.Children),
		}
		for _, row := range sec.Accounts {
			sv.Accounts = append(sv.Accounts, RowView{Code: row.Code, Name: row.Name, Balance: f.Amount(row.Balance)})
		}
		out = append(out, sv)
	}
	return out
}
