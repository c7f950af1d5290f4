// Package core provides money arithmetic and the savings domain types.
//
// This file contains the Money type, an exact decimal amount backed by
// shopspring/decimal. Every monetary computation in the application goes
// through Money so that month-by-month accumulation never drifts the way
// float64 sums do.
package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount  = errors.New("invalid amount")
	ErrDivisionByZero = errors.New("division by zero")
)

// ParseError reports an input that could not be read as an amount.
type ParseError struct {
	Input string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse amount %q: %v", e.Input, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Precision describes how inexact operations are rounded.
//
// Significant bounds the number of significant digits kept by Div, and
// DisplayPlaces is the number of fractional digits used for display and
// storage. Rounding is always half-up (half away from zero).
type Precision struct {
	Significant   int
	DisplayPlaces int32
}

// DefaultPrecision keeps 28 significant digits and displays 2 places.
var DefaultPrecision = Precision{Significant: 28, DisplayPlaces: 2}

// Money is an exact decimal amount. The zero value is 0.
type Money struct {
	d decimal.Decimal
}

// Zero is the zero amount.
var Zero = Money{}

// NewMoney wraps a decimal value.
func NewMoney(d decimal.Decimal) Money { return Money{d: d} }

// NewMoneyFromInt returns an integral amount.
func NewMoneyFromInt(v int64) Money { return Money{d: decimal.NewFromInt(v)} }

// NewMoneyFromCents returns cents/100.
func NewMoneyFromCents(cents int64) Money { return Money{d: decimal.New(cents, -2)} }

// ParseMoney parses a decimal string such as "1500", "1500.00" or "-12.345".
// Empty and malformed input is rejected with a *ParseError wrapping
// ErrInvalidAmount; the caller decides whether a default applies.
func ParseMoney(s string) (Money, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return Money{}, &ParseError{Input: s, Err: ErrInvalidAmount}
	}
	d, err := decimal.NewFromString(trimmed)
	if err != nil {
		return Money{}, &ParseError{Input: s, Err: fmt.Errorf("%w: %v", ErrInvalidAmount, err)}
	}
	return Money{d: d}, nil
}

// MustParseMoney is like ParseMoney but panics on malformed input.
// Intended for constants and tests.
func MustParseMoney(s string) Money {
	m, err := ParseMoney(s)
	if err != nil {
		panic(err)
	}
	return m
}

// MoneyOrZero is the lenient parser kept for legacy rows and form input:
// empty or malformed values become zero and a warning is logged.
// New code paths should use ParseMoney and handle the error.
func MoneyOrZero(ctx context.Context, s string) Money {
	if strings.TrimSpace(s) == "" {
		return Zero
	}
	m, err := ParseMoney(s)
	if err != nil {
		slog.WarnContext(ctx, "Invalid decimal value, using 0 instead", "value", s, "error", err)
		return Zero
	}
	return m
}

// Decimal exposes the underlying value.
func (m Money) Decimal() decimal.Decimal { return m.d }

func (m Money) Add(o Money) Money { return Money{d: m.d.Add(o.d)} }
func (m Money) Sub(o Money) Money { return Money{d: m.d.Sub(o.d)} }
func (m Money) Mul(o Money) Money { return Money{d: m.d.Mul(o.d)} }

// MulInt multiplies by an integer factor.
func (m Money) MulInt(n int64) Money { return Money{d: m.d.Mul(decimal.NewFromInt(n))} }

// Div divides using DefaultPrecision.
func (m Money) Div(o Money) (Money, error) { return DefaultPrecision.Div(m, o) }

// Div returns a/b rounded half-up to p.Significant significant digits.
func (p Precision) Div(a, b Money) (Money, error) {
	if b.d.IsZero() {
		return Money{}, ErrDivisionByZero
	}
	if a.d.IsZero() {
		return Zero, nil
	}
	sig := p.Significant
	if sig <= 0 {
		sig = DefaultPrecision.Significant
	}
	places := sig - (magnitude(a.d) - magnitude(b.d)) + 1
	if places < 0 {
		places = 0
	}
	q := a.d.DivRound(b.d, int32(places))
	return Money{d: roundSignificant(q, sig)}, nil
}

// Round rounds half-up to p.DisplayPlaces fractional digits.
func (p Precision) Round(m Money) Money { return Money{d: m.d.Round(p.DisplayPlaces)} }

// Format renders m with p.DisplayPlaces fractional digits.
func (p Precision) Format(m Money) string { return m.d.StringFixed(p.DisplayPlaces) }

// magnitude is the number of digits left of the decimal point of the most
// significant digit: d lies in [10^(m-1), 10^m).
func magnitude(d decimal.Decimal) int {
	if d.IsZero() {
		return 0
	}
	a := d.Abs()
	return a.NumDigits() + int(a.Exponent())
}

func roundSignificant(d decimal.Decimal, sig int) decimal.Decimal {
	if d.IsZero() {
		return d
	}
	return d.Round(int32(sig - magnitude(d)))
}

func (m Money) Cmp(o Money) int { return m.d.Cmp(o.d) }
func (m Money) Equal(o Money) bool { return m.d.Equal(o.d) }
func (m Money) GreaterThan(o Money) bool { return m.d.GreaterThan(o.d) }
func (m Money) GreaterThanOrEqual(o Money) bool { return m.d.GreaterThanOrEqual(o.d) }
func (m Money) LessThan(o Money) bool { return m.d.LessThan(o.d) }
func (m Money) LessThanOrEqual(o Money) bool { return m.d.LessThanOrEqual(o.d) }
func (m Money) IsZero() bool { return m.d.IsZero() }
func (m Money) IsPositive() bool { return m.d.IsPositive() }
func (m Money) IsNegative() bool { return m.d.IsNegative() }
func (m Money) IsNonNegative() bool { return !m.d.IsNegative() }
func (m Money) Neg() Money { return Money{d: m.d.Neg()} }
func (m Money) Abs() Money { return Money{d: m.d.Abs()} }

// MinMoney returns the smaller of a and b.
func MinMoney(a, b Money) Money {
	if a.LessThan(b) {
		return a
	}
	return b
}

// MaxMoney returns the larger of a and b.
func MaxMoney(a, b Money) Money {
	if a.GreaterThan(b) {
		return a
	}
	return b
}

// SumMoney adds all amounts.
func SumMoney(ms ...Money) Money {
	total := Zero
	for _, m := range ms {
		total = total.Add(m)
	}
	return total
}

// Float64 returns the nearest float64. Only for ratios and percentages,
// never for further money arithmetic.
func (m Money) Float64() float64 { return m.d.InexactFloat64() }

// StringFixed renders the amount with the display places ("1500.00").
func (m Money) StringFixed() string { return DefaultPrecision.Format(m) }

// String renders the exact value without trailing padding.
func (m Money) String() string { return m.d.String() }

// MarshalJSON encodes the amount as a 2-place string.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.StringFixed())
}

// UnmarshalJSON accepts a quoted decimal string or a bare JSON number.
func (m *Money) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		*m = Zero
		return nil
	}
	s = strings.Trim(s, `"`)
	v, err := ParseMoney(s)
	if err != nil {
		return err
	}
	*m = v
	return nil
}
