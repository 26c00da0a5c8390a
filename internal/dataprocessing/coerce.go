package dataprocessing

import (
	"math"
	"strconv"
	"strings"

	"sczmerge/pkg/contracts/domain"
)

// ParseNumber converts text to a float. Surrounding whitespace is ignored;
// empty text, NaN and anything strconv cannot parse are rejected. Hexadecimal
// and digit-separator forms are rejected as well.
func ParseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" || strings.ContainsAny(s, "xX_") {
		return 0, false
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

// CoerceResult reports one numeric coercion pass
type CoerceResult struct {
	Columns       []string
	CoercedToNull int // non-missing cells that failed to parse
}

// CoerceNumeric converts the listed columns present in t to numbers in place.
// Unparseable cells become missing and are counted.
func CoerceNumeric(t *domain.Table, columns []string) CoerceResult {
	var result CoerceResult
	for _, col := range columns {
		ok := t.MapColumn(col, domain.KindNumber, func(v domain.Value) domain.Value {
			switch v.Kind {
			case domain.KindNumber:
				return v
			case domain.KindMissing:
				return v
			}

			if f, ok := ParseNumber(v.String()); ok {
				return domain.Number(f)
			}
			result.CoercedToNull++
			return domain.Missing()
		})
		if ok {
			result.Columns = append(result.Columns, col)
		}
	}
	return result
}
