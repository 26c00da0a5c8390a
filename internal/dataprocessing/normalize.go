package dataprocessing

import (
	"strings"
	"time"

	"sczmerge/pkg/contracts/domain"
)

const (
	compactDateLayout = "02012006"
	// Dates outside the nanosecond timestamp range are treated as missing
	minDateYear = 1677
	maxDateYear = 2262
)

// PadIdentifier strips one trailing ".0" and left-pads with zeros to width.
// A leading sign stays in front of the padding. Longer values are unchanged.
func PadIdentifier(s string, width int) string {
	s = strings.TrimSuffix(s, ".0")
	if len(s) >= width {
		return s
	}

	sign := ""
	if s != "" && (s[0] == '+' || s[0] == '-') {
		sign, s = s[:1], s[1:]
	}
	return sign + strings.Repeat("0", width-len(s)-len(sign)) + s
}

// NormalizeIdentifiers pads the listed columns that exist in t.
// Missing cells stay missing. It returns the columns actually normalized.
func NormalizeIdentifiers(t *domain.Table, columns []string, width int) []string {
	var done []string
	for _, col := range columns {
		ok := t.MapColumn(col, domain.KindText, func(v domain.Value) domain.Value {
			if v.IsMissing() {
				return v
			}
			return domain.Text(PadIdentifier(v.String(), width))
		})
		if ok {
			done = append(done, col)
		}
	}
	return done
}

// ParseCompactDate parses a DDMMYYYY string after trimming whitespace.
// Anything that is not exactly eight digits forming a real calendar date
// within the supported year range is rejected.
func ParseCompactDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if len(s) != len(compactDateLayout) {
		return time.Time{}, false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return time.Time{}, false
		}
	}

	parsed, err := time.Parse(compactDateLayout, s)
	if err != nil {
		return time.Time{}, false
	}
	if parsed.Year() < minDateYear || parsed.Year() > maxDateYear {
		return time.Time{}, false
	}
	return parsed, true
}

// NormalizeDates converts the listed columns of t to dates. Cells that do not
// parse become missing, so after this call every cell is a date or missing.
func NormalizeDates(t *domain.Table, columns []string) []string {
	var done []string
	for _, col := range columns {
		ok := t.MapColumn(col, domain.KindDate, func(v domain.Value) domain.Value {
			switch v.Kind {
			case domain.KindDate:
				return v
			case domain.KindText:
				if parsed, ok := ParseCompactDate(v.Text); ok {
					return domain.Date(parsed)
				}
			}
			return domain.Missing()
		})
		if ok {
			done = append(done, col)
		}
	}
	return done
}

// Normalizer applies the identifier and date rules to individual file tables
type Normalizer struct {
	rules domain.ColumnRules
}

// NewNormalizer creates a normalizer for the given column rules
func NewNormalizer(rules domain.ColumnRules) *Normalizer {
	return &Normalizer{rules: rules}
}

// NormalizeStats reports what a normalization pass touched
type NormalizeStats struct {
	IdentifierColumns int
	DateColumns       int
}

// Normalize pads identifier columns and parses date columns of t in place
func (n *Normalizer) Normalize(t *domain.Table) NormalizeStats {
	ids := NormalizeIdentifiers(t, n.rules.ColumnsWithRule(t, domain.RuleIdentifier), n.rules.IdentifierWidth)
	dates := NormalizeDates(t, n.rules.ColumnsWithRule(t, domain.RuleDate))
	return NormalizeStats{IdentifierColumns: len(ids), DateColumns: len(dates)}
}
