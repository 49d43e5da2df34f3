package escrow

import "github.com/shopspring/decimal"

// Platform commission bounds, in minor units of the transaction currency.
const (
	feeRate    = "0.05"
	feeFloor   = int64(250)
	feeCeiling = int64(5000)
)

// PlatformFee computes the platform's commission on a gross amount in minor
// units. The fee is 5% of the amount, clamped to the floor and ceiling.
// Deterministic and total for any amount.
func PlatformFee(amount int64) int64 {
	fee := decimal.NewFromInt(amount).Mul(decimal.RequireFromString(feeRate)).Round(0).IntPart()
	if fee < feeFloor {
		return feeFloor
	}
	if fee > feeCeiling {
		return feeCeiling
	}
	return fee
}

// SellerAmount returns the net amount due to the payee after the platform
// fee is deducted from the gross amount.
func SellerAmount(amount int64) int64 {
	return amount - PlatformFee(amount)
}
