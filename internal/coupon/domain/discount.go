package domain

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// ComputeDiscount returns the discount a coupon grants on subtotal, clamped to
// [0, subtotal] and rounded half away from zero to two places.
func ComputeDiscount(subtotal decimal.Decimal, coupon AppliedCoupon) decimal.Decimal {
	if !subtotal.IsPositive() {
		return decimal.Zero
	}

	var discount decimal.Decimal
	switch coupon.DiscountType {
	case DiscountTypePercentage:
		discount = subtotal.Mul(coupon.DiscountValue).Div(hundred)
	case DiscountTypeFixed:
		discount = coupon.DiscountValue
	default:
		return decimal.Zero
	}

	discount = discount.Round(2)
	if discount.IsNegative() {
		return decimal.Zero
	}
	if discount.GreaterThan(subtotal) {
		return subtotal
	}
	return discount
}
