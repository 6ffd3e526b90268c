package money

import "github.com/shopspring/decimal"

// MinorUnits converts an amount in major currency units to the gateway's
// minor unit (round(amount * 100)). This is the single point where amounts
// are truncated; every gateway-bound value goes through it.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// FromMinorUnits converts a minor-unit amount back into major units.
func FromMinorUnits(cents int64) decimal.Decimal {
	return decimal.NewFromInt(cents).Div(decimal.NewFromInt(100))
}
