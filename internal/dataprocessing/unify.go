package dataprocessing

import (
	"fmt"
	"slices"
	"sort"

	"sczmerge/pkg/contracts/domain"
)

// UnionColumns returns the sorted union of all column names
func UnionColumns(tables []*domain.Table) []string {
	set := make(map[string]struct{})
	for _, t := range tables {
		for _, col := range t.Columns {
			set[col] = struct{}{}
		}
	}

	columns := make([]string, 0, len(set))
	for col := range set {
		columns = append(columns, col)
	}
	sort.Strings(columns)
	return columns
}

// UnifyColumns returns new tables that all have the sorted union of columns.
// Columns a table lacks are filled with missing. Inputs are not modified.
// A column's kind is taken from the first table that declares it.
func UnifyColumns(tables []*domain.Table) ([]*domain.Table, error) {
	columns := UnionColumns(tables)

	kinds := make([]domain.ValueKind, len(columns))
	for i, col := range columns {
		kinds[i] = domain.KindText
		for _, t := range tables {
			if kind, ok := t.KindOf(col); ok {
				kinds[i] = kind
				break
			}
		}
	}

	unified := make([]*domain.Table, len(tables))
	for ti, t := range tables {
		out, err := domain.NewTable(t.Name, columns)
		if err != nil {
			return nil, err
		}
		copy(out.Kinds, kinds)

		// source position for each unified column, -1 when absent
		sources := make([]int, len(columns))
		for i, col := range columns {
			if idx, ok := t.ColumnIndex(col); ok {
				sources[i] = idx
			} else {
				sources[i] = -1
			}
		}

		out.Rows = make([][]domain.Value, 0, t.Len())
		for _, row := range t.Rows {
			newRow := make([]domain.Value, len(columns))
			for i, src := range sources {
				if src < 0 {
					newRow[i] = domain.Missing()
				} else {
					newRow[i] = row[src]
				}
			}
			out.Rows = append(out.Rows, newRow)
		}
		unified[ti] = out
	}

	return unified, nil
}

// Concat stacks the rows of tables, in order, into a new table.
// All tables must share the same column sequence; run UnifyColumns first.
func Concat(name string, tables []*domain.Table) (*domain.Table, error) {
	if len(tables) == 0 {
		return domain.NewTable(name, nil)
	}

	first := tables[0]
	total := 0
	for _, t := range tables {
		if !slices.Equal(t.Columns, first.Columns) {
			return nil, fmt.Errorf("cannot concatenate %s: columns differ from %s", t.Name, first.Name)
		}
		total += t.Len()
	}

	merged, err := domain.NewTable(name, first.Columns)
	if err != nil {
		return nil, err
	}
	copy(merged.Kinds, first.Kinds)

	merged.Rows = make([][]domain.Value, 0, total)
	for _, t := range tables {
		for _, row := range t.Rows {
			merged.Rows = append(merged.Rows, slices.Clone(row))
		}
	}

	return merged, nil
}
