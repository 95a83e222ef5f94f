package skr03

import (
	"fmt"
	"strconv"
	"strings"
)

// TableRow is one compact entry of the generated classification table. Codes
// holds either a single account code ("1200") or an inclusive range
// ("4000-4999") that is expanded at load time.
type TableRow struct {
	Codes string
	RSID  string
	Rule  Rule
}

// Map is the immutable, fully expanded code lookup handed to the calculators.
// It is constructed once at startup and never mutated afterwards.
type Map struct {
	byCode map[string]Classification
}

// NewMap expands every table row and validates that no two rows claim the
// same account code. An overlap is a data-integrity defect in the generated
// table and makes construction fail; callers treat that as fatal.
func NewMap(rows []TableRow) (*Map, error) {
	byCode := make(map[string]Classification)
	for _, row := range rows {
		codes, err := expandCodes(row.Codes)
		if err != nil {
			return nil, err
		}
		for _, code := range codes {
			if prev, ok := byCode[code]; ok {
				return nil, fmt.Errorf("skr03: code %s claimed by both %s and %s", code, prev.RSID, row.RSID)
			}
			byCode[code] = Classification{Code: code, RSID: row.RSID, Rule: row.Rule}
		}
	}
	return &Map{byCode: byCode}, nil
}

// Lookup returns the classification for an account code.
func (m *Map) Lookup(code string) (Classification, bool) {
	c, ok := m.byCode[code]
	return c, ok
}

// Len reports the number of expanded codes.
func (m *Map) Len() int {
	return len(m.byCode)
}

func expandCodes(spec string) ([]string, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, fmt.Errorf("skr03: empty code spec")
	}
	lo, hi, ok := strings.Cut(spec, "-")
	if !ok {
		if err := checkCode(lo); err != nil {
			return nil, err
		}
		return []string{lo}, nil
	}
	if err := checkCode(lo); err != nil {
		return nil, err
	}
	if err := checkCode(hi); err != nil {
		return nil, err
	}
	if len(lo) != len(hi) {
		return nil, fmt.Errorf("skr03: range %q mixes code widths", spec)
	}
	start, _ := strconv.Atoi(lo)
	end, _ := strconv.Atoi(hi)
	if end < start {
		return nil, fmt.Errorf("skr03: range %q runs backwards", spec)
	}
	width := len(lo)
	codes := make([]string, 0, end-start+1)
	for n := start; n <= end; n++ {
		codes = append(codes, fmt.Sprintf("%0*d", width, n))
	}
	return codes, nil
}

func checkCode(code string) error {
	if len(code) < 4 || len(code) > 5 {
		return fmt.Errorf("skr03: code %q must be 4 or 5 digits", code)
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return fmt.Errorf("skr03: code %q must be numeric", code)
		}
	}
	return nil
}
