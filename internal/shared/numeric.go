// Package shared holds small helpers reused across domain packages.
package shared

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Dash variants MOPS emits for empty cells, half-width and full-width.
var nullTokens = map[string]struct{}{
	"":    {},
	"-":   {},
	"—":   {},
	"–":   {},
	"nan": {},
	"N/A": {},
	"不適用": {},
}

// ParseDecimal parses a financial value string into a decimal.
//
// MOPS mixes thousands separators, surrounding whitespace and several dash
// glyphs for missing values; every caller goes through this single function
// so that null handling never diverges. The second return value reports
// whether a value was present and parseable.
func ParseDecimal(s *string) (decimal.Decimal, bool) {
	if s == nil {
		return decimal.Decimal{}, false
	}
	cleaned := strings.TrimSpace(strings.ReplaceAll(*s, ",", ""))
	if _, null := nullTokens[cleaned]; null {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}

// ParseDecimalString is ParseDecimal for callers holding a plain string.
func ParseDecimalString(s string) (decimal.Decimal, bool) {
	return ParseDecimal(&s)
}

// ParseInt64 parses an integer cell, tolerating decimals ("1234.0").
func ParseInt64(s string) (int64, bool) {
	d, ok := ParseDecimalString(s)
	if !ok {
		return 0, false
	}
	return d.IntPart(), true
}

// ParseFloat parses a percentage-style cell, stripping a trailing % sign.
func ParseFloat(s string) (float64, bool) {
	d, ok := ParseDecimalString(strings.TrimSuffix(strings.TrimSpace(s), "%"))
	if !ok {
		return 0, false
	}
	f, _ := d.Float64()
	return f, true
}
