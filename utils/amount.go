package utils

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// USDCDecimals is the number of implied fractional digits in an atomic amount.
const USDCDecimals = 6

// ValidateAmount checks if an amount string is a valid non-negative decimal
func ValidateAmount(amount string) (*decimal.Decimal, error) {
	if amount == "" {
		return nil, fmt.Errorf("amount cannot be empty")
	}

	dec, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount format: %w", err)
	}

	if dec.IsNegative() {
		return nil, fmt.Errorf("amount cannot be negative")
	}

	return &dec, nil
}

// ParseAmountWithDecimals parses a decimal amount string into atomic units.
// Digits beyond the given precision are truncated, never rounded.
func ParseAmountWithDecimals(amount string, decimals int) (*big.Int, error) {
	dec, err := ValidateAmount(amount)
	if err != nil {
		return nil, err
	}

	multiplier := decimal.NewFromBigInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil), 0)
	return dec.Mul(multiplier).Truncate(0).BigInt(), nil
}

// FormatAmountFromBigInt formats atomic units as a decimal string with exactly `decimals` fractional digits.
func FormatAmountFromBigInt(amount *big.Int, decimals int) string {
	if amount == nil {
		amount = new(big.Int)
	}
	return decimal.NewFromBigInt(amount, -int32(decimals)).StringFixed(int32(decimals))
}

// ParseDecimal converts a human decimal string ("1.50") into atomic units.
// Empty, malformed or negative input yields zero.
func ParseDecimal(s string) *big.Int {
	s = strings.TrimSpace(s)
	if s == "" {
		return new(big.Int)
	}
	v, err := ParseAmountWithDecimals(s, USDCDecimals)
	if err != nil {
		return new(big.Int)
	}
	return v
}

// FormatDecimal is the inverse of ParseDecimal, always emitting six fractional digits.
func FormatDecimal(a *big.Int) string {
	return FormatAmountFromBigInt(a, USDCDecimals)
}

// ParseAtomic parses a wire amount: a base-10, non-negative integer count of atomic units.
func ParseAtomic(s string) (*big.Int, error) {
	if s == "" {
		return nil, fmt.Errorf("value cannot be empty")
	}

	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid atomic amount %q", s)
	}
	if n.Sign() < 0 {
		return nil, fmt.Errorf("atomic amount cannot be negative")
	}
	return n, nil
}
