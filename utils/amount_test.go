package utils

import (
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDecimal(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"1.00", 1_000_000},
		{"1", 1_000_000},
		{"0.01", 10_000},
		{"0.000001", 1},
		{"5", 5_000_000},
		{"12.345678", 12_345_678},
		{"1.0000019", 1_000_001},
		{"0.0000009", 0},
		{"", 0},
		{"  2.5 ", 2_500_000},
		{"abc", 0},
		{"-1.00", 0},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, big.NewInt(tt.want), ParseDecimal(tt.in))
		})
	}
}

func TestParseDecimalTruncates(t *testing.T) {
	assert.Equal(t, ParseDecimal("1.000001"), ParseDecimal("1.0000019"))
	assert.Equal(t, ParseDecimal("0.999999"), ParseDecimal("0.9999999999"))
}

func TestFormatDecimal(t *testing.T) {
	assert.Equal(t, "5.000000", FormatDecimal(big.NewInt(5_000_000)))
	assert.Equal(t, "0.000001", FormatDecimal(big.NewInt(1)))
	assert.Equal(t, "0.000000", FormatDecimal(new(big.Int)))
	assert.Equal(t, "0.000000", FormatDecimal(nil))
	assert.Equal(t, "1234.500000", FormatDecimal(big.NewInt(1_234_500_000)))
}

func TestDecimalRoundTrip(t *testing.T) {
	for _, s := range []string{"0", "1", "1.5", "0.000001", "42.123456", "1000000.01"} {
		t.Run(s, func(t *testing.T) {
			out := FormatDecimal(ParseDecimal(s))
			assert.True(t, decimal.RequireFromString(s).Equal(decimal.RequireFromString(out)), "%s -> %s", s, out)
		})
	}
}

func TestParseAtomic(t *testing.T) {
	n, err := ParseAtomic("1000000")
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1_000_000), n)

	huge, err := ParseAtomic("115792089237316195423570985008687907853269984665640564039457584007913129639935")
	require.NoError(t, err)
	assert.Equal(t, 256, huge.BitLen())

	for _, bad := range []string{"", "1.5", "-1", "0x10", "ten"} {
		_, err := ParseAtomic(bad)
		assert.Error(t, err, bad)
	}
}

func TestValidateAmount(t *testing.T) {
	_, err := ValidateAmount("0.50")
	assert.NoError(t, err)

	for _, bad := range []string{"", "-0.5", "1,00"} {
		_, err := ValidateAmount(bad)
		assert.Error(t, err, bad)
	}
}
