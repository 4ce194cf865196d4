package ledger

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Request bodies arrive loosely typed: numbers as strings, ids as numbers,
// tenure as free text. The helpers below normalise them without ever
// rejecting input; anything unusable falls back to a default.

var tenureDigits = regexp.MustCompile(`\d+`)

// Bounds on accepted numbers. Anything larger or finer is treated as not
// numeric so a short exponent cannot expand into millions of digits.
const (
	maxNumberLen   = 64
	maxExponent    = 18
	maxSignificant = 36
)

// CoerceNumber converts JSON numbers, Go numeric types and numeric strings to
// a decimal. The bool is false when v is absent, not numeric or out of bounds.
func CoerceNumber(v any) (decimal.Decimal, bool) {
	d, ok := coerceNumber(v)
	if !ok || !inBounds(d) {
		return decimal.Zero, false
	}
	return d, true
}

func coerceNumber(v any) (decimal.Decimal, bool) {
	switch n := v.(type) {
	case nil:
		return decimal.Zero, false
	case decimal.Decimal:
		return n, true
	case json.Number:
		return parseDecimal(n.String())
	case string:
		return parseDecimal(n)
	case float64:
		return decimal.NewFromFloat(n), true
	case float32:
		return decimal.NewFromFloat32(n), true
	case int:
		return decimal.NewFromInt(int64(n)), true
	case int64:
		return decimal.NewFromInt(n), true
	case int32:
		return decimal.NewFromInt32(n), true
	}
	return decimal.Zero, false
}

func parseDecimal(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" || len(s) > maxNumberLen {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

func inBounds(d decimal.Decimal) bool {
	exp := d.Exponent()
	return exp <= maxExponent && exp >= -maxExponent && d.NumDigits() <= maxSignificant
}

// CoerceString renders scalars as strings so ids compare by string equality
// whatever type the client sent. nil and composite values become "".
func CoerceString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case json.Number:
		return s.String()
	case bool:
		return strconv.FormatBool(s)
	case float64, float32, int, int32, int64:
		d, _ := CoerceNumber(s)
		return d.String()
	}
	return ""
}

// CoerceInt truncates a numeric value to an int.
func CoerceInt(v any) (int, bool) {
	d, ok := CoerceNumber(v)
	if !ok {
		return 0, false
	}
	return int(d.IntPart()), true
}

// ParseTenureYears resolves the loan tenure. A positive explicit value wins,
// then the first integer in the legacy free-text tenure ("3 years"), then 1.
func ParseTenureYears(explicit any, legacy any) int {
	if years, ok := CoerceInt(explicit); ok && years >= 1 {
		return years
	}
	if text, ok := legacy.(string); ok {
		if token := tenureDigits.FindString(text); token != "" {
			if years, err := strconv.Atoi(token); err == nil && years >= 1 {
				return years
			}
		}
	}
	return 1
}
