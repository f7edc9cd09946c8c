// Package amount converts between human token quantities and raw base units.
//
// Raw amounts are always *big.Int. Nothing in this package goes through
// float64, so values far above 2^53 compare and print exactly.
package amount

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// RawPrefix marks a literal that is already in base units, e.g. "raw:1000".
const RawPrefix = "raw:"

// MaxDecimals is the largest decimals value whose scale factor fits in a uint256.
const MaxDecimals = 77

// 2^256-1 has 78 decimal digits.
const maxUint256Digits = 78

var (
	ErrEmpty      = errors.New("empty amount")
	ErrNegative   = errors.New("amount must not be negative")
	ErrFractional = errors.New("amount has more fractional digits than the token supports")
	ErrOverflow   = errors.New("amount exceeds uint256")
)

// Parse converts s into raw base units.
//
//	"100"      → 100 × 10^decimals
//	"1.5"      → 1.5 × 10^decimals
//	"100e18"   → 100 × 10^18 (scientific literals are taken as raw units)
//	"raw:42"   → 42
func Parse(s string, decimals uint8) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, ErrEmpty
	}
	if decimals > MaxDecimals {
		return nil, fmt.Errorf("decimals %d out of range (max %d)", decimals, MaxDecimals)
	}

	var (
		d   decimal.Decimal
		err error
	)
	switch {
	case strings.HasPrefix(s, RawPrefix):
		d, err = decimal.NewFromString(strings.TrimPrefix(s, RawPrefix))
	case strings.ContainsAny(s, "eE"):
		d, err = decimal.NewFromString(s)
	default:
		d, err = decimal.NewFromString(s)
		if err == nil {
			d = d.Shift(int32(decimals))
		}
	}
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", s, err)
	}

	if d.Sign() < 0 {
		return nil, fmt.Errorf("%q: %w", s, ErrNegative)
	}
	if d.Sign() == 0 {
		return new(big.Int), nil
	}
	// Bound the magnitude from the exponent alone; BigInt and IsInteger
	// would otherwise expand 10^exp.
	digits := int64(len(d.Coefficient().String()))
	exp := int64(d.Exponent())
	if digits+exp > maxUint256Digits {
		return nil, fmt.Errorf("%q: %w", s, ErrOverflow)
	}
	if -exp > digits {
		return nil, fmt.Errorf("%q: %w", s, ErrFractional)
	}
	if !d.IsInteger() {
		return nil, fmt.Errorf("%q: %w", s, ErrFractional)
	}

	raw := d.BigInt()
	if err := CheckUint256(raw); err != nil {
		return nil, fmt.Errorf("%q: %w", s, err)
	}
	return raw, nil
}

// MustParse is Parse for compile-time constants; it panics on error.
func MustParse(s string, decimals uint8) *big.Int {
	v, err := Parse(s, decimals)
	if err != nil {
		panic(err)
	}
	return v
}

// CheckUint256 reports whether raw is representable as a Solidity uint256.
func CheckUint256(raw *big.Int) error {
	if raw == nil {
		return ErrEmpty
	}
	if raw.Sign() < 0 {
		return ErrNegative
	}
	if _, overflow := uint256.FromBig(raw); overflow {
		return ErrOverflow
	}
	return nil
}

// Format renders raw base units as a human amount, trimming trailing zeros.
func Format(raw *big.Int, decimals uint8) string {
	if raw == nil {
		return "<nil>"
	}
	return decimal.NewFromBigInt(raw, -int32(decimals)).String()
}

// Equal is exact integer equality. Two nils are equal; a nil and a value are not.
func Equal(a, b *big.Int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Cmp(b) == 0
}

// Add returns a+b without touching either argument.
func Add(a, b *big.Int) *big.Int { return new(big.Int).Add(a, b) }

// Sub returns a-b without touching either argument.
func Sub(a, b *big.Int) *big.Int { return new(big.Int).Sub(a, b) }
