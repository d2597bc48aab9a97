// Package core provides money parsing and handling utilities.
//
// This file contains the amount coercion used by the normalizer and the
// rounding rule shared by every aggregate.
package core

import (
	"encoding/json"
	"math"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// MoneyPlaces is the display precision of every monetary figure.
const MoneyPlaces = 2

// ParseAmount converts a decimal string to an exact decimal amount.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators. Signs,
// exponents and thousands separators are rejected, as are zero amounts.
//
// Examples:
//   ParseAmount("12.34") -> 12.34, nil
//   ParseAmount("12,34") -> 12.34, nil
//   ParseAmount("0")     -> 0, ErrInvalidAmount
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.Count(s, ".") > 1 {
		return decimal.Zero, ErrInvalidAmount
	}
	digits := 0
	for _, r := range s {
		switch {
		case unicode.IsDigit(r):
			digits++
		case r == '.':
		default:
			return decimal.Zero, ErrInvalidAmount
		}
	}
	if digits == 0 {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if !d.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// CoerceAmount accepts the shapes an amount arrives in from JSON, forms and
// import files and returns a strictly positive decimal.
func CoerceAmount(v any) (decimal.Decimal, error) {
	var d decimal.Decimal
	switch a := v.(type) {
	case nil:
		return decimal.Zero, ErrInvalidAmount
	case string:
		return ParseAmount(a)
	case json.Number:
		return ParseAmount(a.String())
	case decimal.Decimal:
		d = a
	case float64:
		if math.IsNaN(a) || math.IsInf(a, 0) {
			return decimal.Zero, ErrInvalidAmount
		}
		d = decimal.NewFromFloat(a)
	case float32:
		d = decimal.NewFromFloat32(a)
	case int:
		d = decimal.NewFromInt(int64(a))
	case int64:
		d = decimal.NewFromInt(a)
	case int32:
		d = decimal.NewFromInt32(a)
	default:
		return decimal.Zero, ErrInvalidAmount
	}
	if !d.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// RoundMoney rounds to two places, half away from zero.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyPlaces)
}
