package domain

import (
	"fmt"
)

// ProvenanceColumn names the column recording which input file a row came from
const ProvenanceColumn = "__source_file"

// Table is an in-memory, column-ordered dataset.
// Every row has exactly len(Columns) cells.
type Table struct {
	Name    string
	Columns []string
	Kinds   []ValueKind
	Rows    [][]Value

	index map[string]int
}

// NewTable creates an empty table over the given columns, all declared as text.
// Duplicate column names are rejected.
func NewTable(name string, columns []string) (*Table, error) {
	t := &Table{
		Name:    name,
		Columns: make([]string, len(columns)),
		Kinds:   make([]ValueKind, len(columns)),
		index:   make(map[string]int, len(columns)),
	}
	copy(t.Columns, columns)

	for i, col := range t.Columns {
		if _, exists := t.index[col]; exists {
			return nil, fmt.Errorf("duplicate column %q in table %s", col, name)
		}
		t.index[col] = i
		t.Kinds[i] = KindText
	}

	return t, nil
}

// ColumnIndex returns the position of a column
func (t *Table) ColumnIndex(name string) (int, bool) {
	i, ok := t.index[name]
	return i, ok
}

// HasColumn reports whether the table has the named column
func (t *Table) HasColumn(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Len returns the number of rows
func (t *Table) Len() int {
	return len(t.Rows)
}

// Width returns the number of columns
func (t *Table) Width() int {
	return len(t.Columns)
}

// AppendRow adds a row. The row must match the column count.
func (t *Table) AppendRow(row []Value) error {
	if len(row) != len(t.Columns) {
		return fmt.Errorf("row has %d cells, table %s has %d columns", len(row), t.Name, len(t.Columns))
	}
	t.Rows = append(t.Rows, row)
	return nil
}

// AddColumn appends a new column filled with the given value
func (t *Table) AddColumn(name string, kind ValueKind, fill Value) error {
	if t.HasColumn(name) {
		return fmt.Errorf("column %q already exists in table %s", name, t.Name)
	}

	t.index[name] = len(t.Columns)
	t.Columns = append(t.Columns, name)
	t.Kinds = append(t.Kinds, kind)
	for i := range t.Rows {
		t.Rows[i] = append(t.Rows[i], fill)
	}
	return nil
}

// Column returns a copy of all cells in the named column
func (t *Table) Column(name string) ([]Value, bool) {
	idx, ok := t.index[name]
	if !ok {
		return nil, false
	}

	values := make([]Value, len(t.Rows))
	for i, row := range t.Rows {
		values[i] = row[idx]
	}
	return values, true
}

// MapColumn replaces every cell of a column with fn(cell) and declares its kind
func (t *Table) MapColumn(name string, kind ValueKind, fn func(Value) Value) bool {
	idx, ok := t.index[name]
	if !ok {
		return false
	}

	for _, row := range t.Rows {
		row[idx] = fn(row[idx])
	}
	t.Kinds[idx] = kind
	return true
}

// KindOf returns the declared kind of a column
func (t *Table) KindOf(name string) (ValueKind, bool) {
	idx, ok := t.index[name]
	if !ok {
		return KindMissing, false
	}
	return t.Kinds[idx], true
}
