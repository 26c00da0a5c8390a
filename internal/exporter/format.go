package exporter

import (
	"sczmerge/pkg/contracts/domain"
)

// cellFormatter renders one cell of a column as CSV text
type cellFormatter func(domain.Value) string

// columnFormatters picks a renderer per column. Number columns whose cells are
// all present and integral render without a decimal part, every other number
// column renders like a float ("3.0"). Missing cells are always empty.
func columnFormatters(t *domain.Table) []cellFormatter {
	formatters := make([]cellFormatter, t.Width())
	for i := range t.Columns {
		if t.Kinds[i] == domain.KindNumber && integralColumn(t, i) {
			formatters[i] = formatInteger
		} else {
			formatters[i] = formatCell
		}
	}
	return formatters
}

// integralColumn reports whether every cell of column i is a whole number
func integralColumn(t *domain.Table, i int) bool {
	if t.Len() == 0 {
		return false
	}
	for _, row := range t.Rows {
		v := row[i]
		if v.Kind != domain.KindNumber || !domain.IsIntegral(v.Number) {
			return false
		}
	}
	return true
}

func formatCell(v domain.Value) string {
	return v.String()
}

func formatInteger(v domain.Value) string {
	if v.Kind != domain.KindNumber {
		return v.String()
	}
	return domain.FormatInteger(v.Number)
}

// formatRecords renders all rows of t as string records
func formatRecords(t *domain.Table) [][]string {
	formatters := columnFormatters(t)
	records := make([][]string, t.Len())
	for r, row := range t.Rows {
		record := make([]string, len(row))
		for i, v := range row {
			record[i] = formatters[i](v)
		}
		records[r] = record
	}
	return records
}
