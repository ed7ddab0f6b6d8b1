package domain

import (
	"github.com/shopspring/decimal"
	coupondomain "github.com/smallbiznis/storefront/internal/coupon/domain"
)

var hundred = decimal.NewFromInt(100)

// ComputeOrderTotal prices a cart. Shipping is not taxed and the discount
// never exceeds the subtotal, so the grand total is at least the shipping fee.
func ComputeOrderTotal(lines []LineItem, shipping ShippingOption, tax TaxConfig, coupon *coupondomain.AppliedCoupon) (PriceBreakdown, error) {
	subtotal := decimal.Zero
	for _, line := range lines {
		if line.Quantity < 1 {
			return PriceBreakdown{}, ErrInvalidQuantity
		}
		if line.UnitPrice.IsNegative() {
			return PriceBreakdown{}, ErrInvalidUnitPrice
		}
		subtotal = subtotal.Add(line.Total())
	}
	if shipping.Fee.IsNegative() {
		return PriceBreakdown{}, ErrInvalidShippingFee
	}
	if tax.Percentage.IsNegative() || tax.Percentage.GreaterThan(hundred) {
		return PriceBreakdown{}, ErrInvalidTaxPercentage
	}

	discount := decimal.Zero
	if coupon != nil {
		discount = coupondomain.ComputeDiscount(subtotal, *coupon)
	}

	taxableBase := subtotal.Sub(discount)
	taxAmount := decimal.Zero
	if tax.Enabled {
		taxAmount = taxableBase.Mul(tax.Percentage).Div(hundred).Round(2)
	}

	return PriceBreakdown{
		Subtotal:    subtotal,
		Discount:    discount,
		TaxableBase: taxableBase,
		TaxAmount:   taxAmount,
		ShippingFee: shipping.Fee,
		GrandTotal:  subtotal.Add(shipping.Fee).Sub(discount).Add(taxAmount),
	}, nil
}
