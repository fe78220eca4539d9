package order

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestCalculateFeesSplitsExactly(t *testing.T) {
	split, err := CalculateFees(d("100"), d("10"), d("2.9"), d("0.30"), 2)
	require.NoError(t, err)

	assert.True(t, split.PlatformFee.Equal(d("10.00")), "platform fee %s", split.PlatformFee)
	assert.True(t, split.GatewayFee.Equal(d("3.20")), "gateway fee %s", split.GatewayFee)
	assert.True(t, split.NetAmount.Equal(d("86.80")), "net %s", split.NetAmount)

	sum := split.PlatformFee.Add(split.GatewayFee).Add(split.NetAmount)
	assert.True(t, sum.Equal(d("100")), "parts must sum back to the amount, got %s", sum)
}

func TestCalculateFeesNetAbsorbsRounding(t *testing.T) {
	split, err := CalculateFees(d("49.99"), d("10"), d("2.9"), d("0.30"), 2)
	require.NoError(t, err)

	sum := split.PlatformFee.Add(split.GatewayFee).Add(split.NetAmount)
	assert.True(t, sum.Equal(d("49.99")), "parts must sum back to the amount, got %s", sum)
}

func TestCalculateFeesZeroAmount(t *testing.T) {
	// Fixed fee on a zero amount would push net negative
	_, err := CalculateFees(d("0"), d("10"), d("2.9"), d("0.30"), 2)
	assert.Error(t, err)

	split, err := CalculateFees(d("0"), d("0"), d("0"), d("0"), 2)
	require.NoError(t, err)
	assert.True(t, split.NetAmount.IsZero())
}

func TestCalculateFeesRejectsNegatives(t *testing.T) {
	_, err := CalculateFees(d("-1"), d("10"), d("2.9"), d("0.30"), 2)
	assert.Error(t, err)

	_, err = CalculateFees(d("100"), d("-10"), d("2.9"), d("0.30"), 2)
	assert.Error(t, err)
}

func TestCalculateFeesExceedingAmount(t *testing.T) {
	_, err := CalculateFees(d("0.10"), d("50"), d("50"), d("0.30"), 2)
	assert.Error(t, err)
}
