package commission

import "github.com/shopspring/decimal"

// Split returns amount*fraction rounded to cents, half away from zero.
func Split(amount, fraction decimal.Decimal) decimal.Decimal {
	return amount.Mul(fraction).Round(2)
}

// MaxDrift bounds the rounding gap after steps independent Split calls:
// half a cent each. Derived pools are rounded too, so a plan's step count
// is its line count plus its pool count.
func MaxDrift(steps int) decimal.Decimal {
	return decimal.New(5, -3).Mul(decimal.NewFromInt(int64(steps)))
}
