package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestRoundBankersHalfToEven(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"2.125", "2.12"},
		{"2.135", "2.14"},
		{"2.145", "2.14"},
		{"2.124", "2.12"},
		{"2.126", "2.13"},
		{"-2.125", "-2.12"},
	}

	for _, tc := range tests {
		got := Round(d(tc.in), 2)
		assert.True(t, got.Equal(d(tc.want)), "Round(%s) = %s, want %s", tc.in, got, tc.want)
	}
}

func TestPercentDoesNotRound(t *testing.T) {
	got := Percent(d("99.99"), d("20"))
	assert.True(t, got.Equal(d("19.998")), "got %s", got)

	assert.True(t, Round(got, 2).Equal(d("20.00")))
}

func TestClamp(t *testing.T) {
	assert.True(t, Clamp(d("5"), d("0"), d("10")).Equal(d("5")))
	assert.True(t, Clamp(d("-1"), d("0"), d("10")).Equal(d("0")))
	assert.True(t, Clamp(d("11"), d("0"), d("10")).Equal(d("10")))
}

func TestRequirePositive(t *testing.T) {
	require.NoError(t, RequirePositive(d("0.01"), "amount"))
	assert.Error(t, RequirePositive(d("0"), "amount"))
	assert.Error(t, RequirePositive(d("-1"), "amount"))
}

func TestRequireNonNegative(t *testing.T) {
	require.NoError(t, RequireNonNegative(d("0"), "amount"))
	assert.Error(t, RequireNonNegative(d("-0.01"), "amount"))
}
