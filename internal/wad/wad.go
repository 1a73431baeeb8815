// Package wad provides the fixed-point amount type used for all token
// balances and thresholds. A Wad has 18 fractional digits, matching the
// ledger-native fixed-point convention, and is backed by a big.Int so
// monetary comparisons never suffer floating-point drift.
package wad

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// decimals is the number of fractional digits in a Wad.
const decimals = 18

// unit is 10^18, the scaling factor between whole tokens and wad units.
var unit = new(big.Int).Exp(big.NewInt(10), big.NewInt(decimals), nil)

// Wad is an 18-decimal fixed-point amount. The zero value is usable and
// equals zero. Wads are immutable; arithmetic returns new values.
type Wad struct {
	i *big.Int
}

// Zero is the zero amount.
var Zero = Wad{}

// FromRaw wraps a raw 18-decimal integer value (e.g. a wei balance read from
// the ledger). The input is copied.
func FromRaw(i *big.Int) Wad {
	if i == nil {
		return Wad{}
	}
	return Wad{i: new(big.Int).Set(i)}
}

// FromInt converts a whole number of tokens to a Wad.
func FromInt(n int64) Wad {
	return Wad{i: new(big.Int).Mul(big.NewInt(n), unit)}
}

// Parse converts a decimal string such as "12.5" to a Wad. It fails if the
// string is not a valid decimal number or carries more than 18 fractional
// digits.
func Parse(s string) (Wad, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Wad{}, fmt.Errorf("wad: parse %q: %w", s, err)
	}
	if d.Exponent() < -decimals {
		return Wad{}, fmt.Errorf("wad: %q has more than %d fractional digits", s, decimals)
	}
	scaled := d.Shift(decimals)
	return Wad{i: scaled.BigInt()}, nil
}

// MustParse is Parse that panics on error. Intended for constants and tests.
func MustParse(s string) Wad {
	w, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return w
}

// raw returns the backing integer, substituting a shared zero for the zero
// value. Callers must not mutate the result.
func (w Wad) raw() *big.Int {
	if w.i == nil {
		return big.NewInt(0)
	}
	return w.i
}

// BigInt returns a copy of the raw 18-decimal integer value.
func (w Wad) BigInt() *big.Int {
	return new(big.Int).Set(w.raw())
}

// Add returns w + v.
func (w Wad) Add(v Wad) Wad {
	return Wad{i: new(big.Int).Add(w.raw(), v.raw())}
}

// Sub returns w - v. The result may be negative.
func (w Wad) Sub(v Wad) Wad {
	return Wad{i: new(big.Int).Sub(w.raw(), v.raw())}
}

// Cmp compares w and v, returning -1, 0 or +1.
func (w Wad) Cmp(v Wad) int {
	return w.raw().Cmp(v.raw())
}

// Equal reports whether w and v are numerically equal.
func (w Wad) Equal(v Wad) bool {
	return w.Cmp(v) == 0
}

// LessThan reports w < v.
func (w Wad) LessThan(v Wad) bool {
	return w.Cmp(v) < 0
}

// GreaterThan reports w > v.
func (w Wad) GreaterThan(v Wad) bool {
	return w.Cmp(v) > 0
}

// Min returns the smaller of w and v.
func Min(w, v Wad) Wad {
	if w.Cmp(v) <= 0 {
		return w
	}
	return v
}

// Sign returns -1, 0 or +1 depending on the sign of w.
func (w Wad) Sign() int {
	return w.raw().Sign()
}

// IsZero reports whether w is exactly zero.
func (w Wad) IsZero() bool {
	return w.raw().Sign() == 0
}

// String renders w as a decimal string with trailing zeros trimmed,
// e.g. "12.5" rather than "12.500000000000000000".
func (w Wad) String() string {
	return decimal.NewFromBigInt(w.raw(), -decimals).String()
}
