package order

import (
	"github.com/shopspring/decimal"

	"github.com/mmabdalla/courseworx-sub003/pkg/apperrors"
	"github.com/mmabdalla/courseworx-sub003/pkg/money"
)

// CalculateFees splits a payment amount into platform fee, gateway fee and
// net amount. The two fees are rounded to the currency precision
// independently; the net amount is the exact remainder so the three parts
// always sum back to the original amount with no penny drift.
func CalculateFees(amount, platformFeePct, gatewayFeePct, gatewayFeeFixed decimal.Decimal, places int32) (FeeSplit, error) {
	if err := money.RequireNonNegative(amount, "amount"); err != nil {
		return FeeSplit{}, err
	}
	if platformFeePct.Sign() < 0 || gatewayFeePct.Sign() < 0 || gatewayFeeFixed.Sign() < 0 {
		return FeeSplit{}, apperrors.Validation("fee rates must not be negative")
	}

	platformFee := money.Round(money.Percent(amount, platformFeePct), places)
	gatewayFee := money.Round(money.Percent(amount, gatewayFeePct).Add(gatewayFeeFixed), places)
	netAmount := amount.Sub(platformFee).Sub(gatewayFee)

	if netAmount.Sign() < 0 {
		return FeeSplit{}, apperrors.Validation("fees exceed the payment amount")
	}

	return FeeSplit{
		PlatformFee: platformFee,
		GatewayFee:  gatewayFee,
		NetAmount:   netAmount,
	}, nil
}
