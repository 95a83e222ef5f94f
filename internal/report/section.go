package report

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/buchwerk/buchwerk/internal/skr03"
)

// PositionRow is one account line inside a report section. Balance is the
// signed contribution to the section's side: positive rows increase the side
// total, negative rows (an account sitting on the "wrong" side under a fixed
// rule) decrease it. Synthetic marks the injected net income pseudo-account,
// which must never be written back to the ledger.
type PositionRow struct {
	Code         string          `json:"code"`
	Name         string          `json:"name"`
	Balance      decimal.Decimal `json:"balance"`
	DebitBalance bool            `json:"debitBalance"`
	Synthetic    bool            `json:"synthetic,omitempty"`
}

// Section is one node of the hierarchical report tree. Trees are built fresh
// per report run and never mutated afterwards; totals are fixed at
// construction.
type Section struct {
	Key          string          `json:"key"`
	RSID         string          `json:"rsid"`
	Label        string          `json:"label"`
	Level        int             `json:"level"`
	Accounts     []PositionRow   `json:"accounts"`
	Children     []Section       `json:"children,omitempty"`
	Total        decimal.Decimal `json:"total"`
	AccountCount int             `json:"accountCount"`
}

// PlacedAccount pairs a resolved report section id with the account row to
// place there.
type PlacedAccount struct {
	RSID string
	Row  PositionRow
}

// BuildSections partitions the placed accounts into the static section
// templates. Each account lands at the deepest template node whose RSID
// prefixes its resolved position, exactly once. Sections without accounts and
// with a zero total are omitted.
func BuildSections(templates []skr03.SectionTemplate, accounts []PlacedAccount) []Section {
	sections := make([]Section, 0, len(templates))
	for _, tmpl := range templates {
		if sec, ok := buildSection(tmpl, 1, accounts); ok {
			sections = append(sections, sec)
		}
	}
	return sections
}

func buildSection(tmpl skr03.SectionTemplate, level int, accounts []PlacedAccount) (Section, bool) {
	matching := make([]PlacedAccount, 0)
	for _, acc := range accounts {
		if matchesRSID(acc.RSID, tmpl.RSID) {
			matching = append(matching, acc)
		}
	}

	sec := Section{
		Key:   tmpl.Key,
		RSID:  tmpl.RSID,
		Label: tmpl.Label,
		Level: level,
		Total: decimal.Zero,
	}

	claimed := make([]bool, len(matching))
	for _, childTmpl := range tmpl.Children {
		for i, acc := range matching {
			if matchesRSID(acc.RSID, childTmpl.RSID) {
				claimed[i] = true
			}
		}
		child, ok := buildSection(childTmpl, level+1, matching)
		if !ok {
			continue
		}
		sec.Children = append(sec.Children, child)
		sec.Total = sec.Total.Add(child.Total)
		sec.AccountCount += child.AccountCount
	}

	for i, acc := range matching {
		if claimed[i] {
			continue
		}
		sec.Accounts = append(sec.Accounts, acc.Row)
		sec.Total = sec.Total.Add(acc.Row.Balance)
		sec.AccountCount++
	}
	sort.Slice(sec.Accounts, func(i, j int) bool { return sec.Accounts[i].Code < sec.Accounts[j].Code })

	if sec.AccountCount == 0 && sec.Total.IsZero() {
		return Section{}, false
	}
	return sec, true
}

func matchesRSID(rsid, tmplRSID string) bool {
	return rsid == tmplRSID || strings.HasPrefix(rsid, tmplRSID+".")
}

// FlattenAccounts walks the tree and collects every account row in section
// order, own accounts before children.
func (s Section) FlattenAccounts() []PositionRow {
	rows := append([]PositionRow(nil), s.Accounts...)
	for _, child := range s.Children {
		rows = append(rows, child.FlattenAccounts()...)
	}
	return rows
}
