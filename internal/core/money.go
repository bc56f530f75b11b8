// Package core provides money parsing and handling utilities.
//
// This file contains functions for parsing monetary amounts coming from
// snapshot documents or request bodies and converting them to cents.
package core

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// MaxCents bounds a single amount (ten trillion currency units).
const MaxCents int64 = 1_000_000_000_000_000

// ParseDecimalToCents converts a decimal string to cents with half-up rounding.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators. Negative
// values and malformed input return ErrInvalidAmount; zero is accepted.
//
// Examples:
//
//	ParseDecimalToCents("12.34") -> 1234, nil
//	ParseDecimalToCents("12,34") -> 1234, nil
//	ParseDecimalToCents("12.345") -> 1235, nil
func ParseDecimalToCents(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return 0, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	return decimalToCents(d)
}

// ParseAmount converts a document field value into Money.
// Numbers, numeric strings and json.Number are accepted.
func ParseAmount(v any) (Money, error) {
	var d decimal.Decimal
	switch x := v.(type) {
	case nil:
		return Money{}, fmt.Errorf("missing amount: %w", ErrInvalidAmount)
	case float64:
		d = decimal.NewFromFloat(x)
	case float32:
		d = decimal.NewFromFloat32(x)
	case int:
		d = decimal.NewFromInt(int64(x))
	case int64:
		d = decimal.NewFromInt(x)
	case int32:
		d = decimal.NewFromInt(int64(x))
	case json.Number:
		var err error
		if d, err = decimal.NewFromString(x.String()); err != nil {
			return Money{}, ErrInvalidAmount
		}
	case string:
		cents, err := ParseDecimalToCents(x)
		if err != nil {
			return Money{}, err
		}
		return Money{Cents: cents}, nil
	case decimal.Decimal:
		d = x
	case Money:
		return x, x.Validate()
	default:
		return Money{}, fmt.Errorf("unsupported amount type %T: %w", v, ErrInvalidAmount)
	}
	cents, err := decimalToCents(d)
	if err != nil {
		return Money{}, err
	}
	return Money{Cents: cents}, nil
}

func decimalToCents(d decimal.Decimal) (int64, error) {
	if d.IsNegative() {
		return 0, ErrInvalidAmount
	}
	cents := d.Round(2).Shift(2)
	if !cents.IsInteger() || cents.GreaterThan(decimal.NewFromInt(MaxCents)) {
		return 0, ErrInvalidAmount
	}
	return cents.IntPart(), nil
}

// Add returns m+o, saturating at the int64 range.
func (m Money) Add(o Money) Money {
	switch {
	case o.Cents > 0 && m.Cents > math.MaxInt64-o.Cents:
		return Money{Cents: math.MaxInt64}
	case o.Cents < 0 && m.Cents < math.MinInt64-o.Cents:
		return Money{Cents: math.MinInt64}
	}
	return Money{Cents: m.Cents + o.Cents}
}

// Sub returns m-o; the result may be negative.
func (m Money) Sub(o Money) Money {
	return Money{Cents: m.Cents - o.Cents}
}

// Decimal returns the amount in currency units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// String formats the amount with two decimals, e.g. "12.30".
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

// Float returns the amount as a float64 for display and export only.
func (m Money) Float() float64 {
	f, _ := m.Decimal().Float64()
	return f
}

// MarshalJSON encodes money as a JSON number with two decimals.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON accepts a JSON number or numeric string.
func (m *Money) UnmarshalJSON(b []byte) error {
	var raw any
	dec := json.NewDecoder(strings.NewReader(string(b)))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	v, err := ParseAmount(raw)
	if err != nil {
		return err
	}
	*m = v
	return nil
}
