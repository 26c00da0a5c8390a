package domain

import (
	"time"
)

// ValueKind identifies what a cell currently holds
type ValueKind uint8

const (
	KindMissing ValueKind = iota // Absent data, whatever the source encoding was
	KindText
	KindNumber
	KindDate
)

// String returns the kind name used in logs and schema descriptions
func (k ValueKind) String() string {
	switch k {
	case KindMissing:
		return "missing"
	case KindText:
		return "text"
	case KindNumber:
		return "number"
	case KindDate:
		return "date"
	default:
		return "unknown"
	}
}

// DateLayout is the canonical rendering of date cells
const DateLayout = "2006-01-02"

// Value is a single table cell.
// Only the field matching Kind is meaningful.
type Value struct {
	Kind   ValueKind
	Text   string
	Number float64
	Date   time.Time
}

// Missing returns the missing-value marker
func Missing() Value {
	return Value{Kind: KindMissing}
}

// Text wraps a string cell
func Text(s string) Value {
	return Value{Kind: KindText, Text: s}
}

// Number wraps a numeric cell
func Number(f float64) Value {
	return Value{Kind: KindNumber, Number: f}
}

// Date wraps a calendar date, truncated to midnight UTC
func Date(t time.Time) Value {
	y, m, d := t.Date()
	return Value{Kind: KindDate, Date: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// IsMissing reports whether the cell holds no data
func (v Value) IsMissing() bool {
	return v.Kind == KindMissing
}

// String renders the cell as text. Missing renders as the empty string.
func (v Value) String() string {
	switch v.Kind {
	case KindText:
		return v.Text
	case KindNumber:
		return FormatFloat(v.Number)
	case KindDate:
		return v.Date.Format(DateLayout)
	default:
		return ""
	}
}
