package domain

import (
	"slices"
	"strings"
)

// ColumnRule is the transform applied to a column during normalization
type ColumnRule string

const (
	RuleText       ColumnRule = "text"
	RuleIdentifier ColumnRule = "identifier" // zero-padded geographic code
	RuleDate       ColumnRule = "date"       // compact DDMMYYYY text
	RuleNumeric    ColumnRule = "numeric"
)

// Default column conventions of the SINASC/SINAN extracts
var (
	DefaultIdentifierColumns = []string{"CODMUNRES", "CODMUNNOT"}
	DefaultNumericColumns    = []string{"PESO", "COMPRIMENT", "PERIMCEFAL", "DIAMCEFAL", "IDADEGES", "ANO_NOT", "ANO_NASC"}
)

const (
	DefaultDatePrefix      = "DT_"
	DefaultIdentifierWidth = 6
)

// ColumnRules is the declarative per-column transform table.
// Lookup precedence is identifier, then date prefix, then numeric, then text.
type ColumnRules struct {
	Identifiers     []string `yaml:"identifiers" envconfig:"IDENTIFIERS"`
	IdentifierWidth int      `yaml:"identifier_width" envconfig:"IDENTIFIER_WIDTH" validate:"min=1"`
	DatePrefix      string   `yaml:"date_prefix" envconfig:"DATE_PREFIX" validate:"required"`
	Numeric         []string `yaml:"numeric" envconfig:"NUMERIC"`
}

// DefaultColumnRules returns the rules used by the reference extracts
func DefaultColumnRules() ColumnRules {
	return ColumnRules{
		Identifiers:     append([]string(nil), DefaultIdentifierColumns...),
		IdentifierWidth: DefaultIdentifierWidth,
		DatePrefix:      DefaultDatePrefix,
		Numeric:         append([]string(nil), DefaultNumericColumns...),
	}
}

// RuleFor resolves the transform for a column name
func (r ColumnRules) RuleFor(column string) ColumnRule {
	if slices.Contains(r.Identifiers, column) {
		return RuleIdentifier
	}
	if r.DatePrefix != "" && strings.HasPrefix(column, r.DatePrefix) {
		return RuleDate
	}
	if slices.Contains(r.Numeric, column) {
		return RuleNumeric
	}
	return RuleText
}

// ColumnsWithRule returns the columns of t governed by rule, in table order
func (r ColumnRules) ColumnsWithRule(t *Table, rule ColumnRule) []string {
	var cols []string
	for _, col := range t.Columns {
		if r.RuleFor(col) == rule {
			cols = append(cols, col)
		}
	}
	return cols
}

