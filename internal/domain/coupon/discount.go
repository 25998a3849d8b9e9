package coupon

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// ComputeDiscount calculates the discount the coupon grants on orderAmount.
// The result is never negative, never exceeds orderAmount, and is rounded
// half-up to 2 decimal places.
func ComputeDiscount(c *Coupon, orderAmount decimal.Decimal) (decimal.Decimal, error) {
	var amount decimal.Decimal

	switch c.Kind {
	case DiscountPercentage:
		amount = orderAmount.Mul(c.Value).Div(hundred)
		if c.MaxDiscount.IsPositive() {
			amount = decimal.Min(amount, c.MaxDiscount)
		}
	case DiscountFixed:
		amount = c.Value
	default:
		return decimal.Zero, errors.Errorf("unsupported discount kind: %q", c.Kind)
	}

	// Discount never exceeds the order total, preventing a negative final amount.
	amount = decimal.Min(amount, orderAmount)
	if amount.IsNegative() {
		amount = decimal.Zero
	}

	return amount.Round(2), nil
}
