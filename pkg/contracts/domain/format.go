package domain

import (
	"math"
	"strconv"
	"strings"
)

// FormatFloat renders a float the way the surveillance tooling downstream expects:
// shortest round-trip digits, integral values keep a ".0" suffix and very large or
// very small magnitudes switch to exponent notation.
func FormatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return ""
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}

	abs := math.Abs(f)
	if abs != 0 && (abs < 1e-4 || abs >= 1e16) {
		return strconv.FormatFloat(f, 'e', -1, 64)
	}

	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsRune(s, '.') {
		s += ".0"
	}
	return s
}

// FormatInteger renders an integral float without a fractional part
func FormatInteger(f float64) string {
	return strconv.FormatFloat(f, 'f', 0, 64)
}

// IsIntegral reports whether f has no fractional part and fits an int64
func IsIntegral(f float64) bool {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return false
	}
	return f == math.Trunc(f) && math.Abs(f) < 1<<63
}
