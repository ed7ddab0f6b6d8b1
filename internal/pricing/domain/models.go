package domain

import (
	"encoding/json"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// LineItem is one priced line of a cart.
type LineItem struct {
	VariantID snowflake.ID
	SKU       string
	Name      string
	UnitPrice decimal.Decimal
	Quantity  int
}

func (l LineItem) Total() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))).Round(2)
}

type ShippingOption struct {
	Code          string          `json:"code"`
	Courier       string          `json:"courier"`
	Service       string          `json:"service"`
	Fee           decimal.Decimal `json:"fee"`
	EstimatedDays int             `json:"estimated_days"`
}

type TaxConfig struct {
	Enabled    bool
	Percentage decimal.Decimal
	Label      string
}

type PriceBreakdown struct {
	Subtotal    decimal.Decimal
	Discount    decimal.Decimal
	TaxableBase decimal.Decimal
	TaxAmount   decimal.Decimal
	ShippingFee decimal.Decimal
	GrandTotal  decimal.Decimal
}

// MarshalJSON renders every amount with exactly two decimals.
func (b PriceBreakdown) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{
		"subtotal":     b.Subtotal.StringFixed(2),
		"discount":     b.Discount.StringFixed(2),
		"taxable_base": b.TaxableBase.StringFixed(2),
		"tax_amount":   b.TaxAmount.StringFixed(2),
		"shipping_fee": b.ShippingFee.StringFixed(2),
		"grand_total":  b.GrandTotal.StringFixed(2),
	})
}

// Cart is a set of server-priced lines with the resolved shipping and tax terms.
type Cart struct {
	Lines    []LineItem
	Shipping ShippingOption
	Tax      TaxConfig
	Currency string
}

func (c Cart) Subtotal() decimal.Decimal {
	subtotal := decimal.Zero
	for _, line := range c.Lines {
		subtotal = subtotal.Add(line.Total())
	}
	return subtotal
}
