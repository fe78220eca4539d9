// Package money holds the shared decimal helpers used by every monetary
// computation in the engine. Amounts are shopspring decimals end to end and
// only cross the API boundary as exact decimal strings.
package money

import (
	"github.com/shopspring/decimal"

	"github.com/mmabdalla/courseworx-sub003/pkg/apperrors"
)

var oneHundred = decimal.NewFromInt(100)

// Round rounds an amount to the given number of decimal places using
// banker's rounding (round half to even).
func Round(amount decimal.Decimal, places int32) decimal.Decimal {
	return amount.RoundBank(places)
}

// Percent returns amount * pct / 100 without rounding. Callers round the
// result to the precision of the currency they are working in.
func Percent(amount, pct decimal.Decimal) decimal.Decimal {
	return amount.Mul(pct).Div(oneHundred)
}

// Clamp constrains amount to the closed interval [min, max].
func Clamp(amount, min, max decimal.Decimal) decimal.Decimal {
	if amount.LessThan(min) {
		return min
	}
	if amount.GreaterThan(max) {
		return max
	}
	return amount
}

// RequirePositive rejects zero and negative amounts before any state is
// touched.
func RequirePositive(amount decimal.Decimal, field string) error {
	if amount.Sign() <= 0 {
		return apperrors.Validation("%s must be positive, got %s", field, amount.String())
	}
	return nil
}

// RequireNonNegative rejects negative amounts.
func RequireNonNegative(amount decimal.Decimal, field string) error {
	if amount.Sign() < 0 {
		return apperrors.Validation("%s must not be negative, got %s", field, amount.String())
	}
	return nil
}
