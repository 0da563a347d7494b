// Package units converts between wei amounts and decimal unit strings ("1.5").
package units

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// Decimals is the number of wei digits in one unit
const Decimals = 18

// Parse converts a decimal unit string into wei. Negative values and values
// finer than one wei are rejected.
func Parse(s string) (*big.Int, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("invalid amount %q: must not be negative", s)
	}
	w := d.Shift(Decimals)
	if !w.IsInteger() {
		return nil, fmt.Errorf("invalid amount %q: more than %d decimals", s, Decimals)
	}
	return w.BigInt(), nil
}

// MustParse is Parse for constants and tests
func MustParse(s string) *big.Int {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

// Format renders a wei amount as a decimal unit string without trailing zeros
func Format(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return decimal.NewFromBigInt(v, -Decimals).String()
}
