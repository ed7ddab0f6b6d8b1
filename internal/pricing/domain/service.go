package domain

import (
	"context"

	"github.com/shopspring/decimal"
	coupondomain "github.com/smallbiznis/storefront/internal/coupon/domain"
	"gorm.io/gorm"
)

//go:generate mockgen -source=service.go -destination=../mocks/mock_service.go -package=mocks
type Service interface {
	ShippingMethods(ctx context.Context) []ShippingOption
	// BuildCart prices items from the catalog and resolves shipping and tax
	// terms from the store settings.
	BuildCart(ctx context.Context, db *gorm.DB, items []ItemRequest, shippingMethod string) (*Cart, error)
	Quote(ctx context.Context, req QuoteRequest) (*QuoteResponse, error)
}

type ItemRequest struct {
	VariantID string `json:"variant_id"`
	Quantity  int    `json:"quantity"`
}

type QuoteRequest struct {
	Items          []ItemRequest `json:"items"`
	ShippingMethod string        `json:"shipping_method"`
	CouponCode     string        `json:"coupon_code"`
}

type QuoteLine struct {
	VariantID string          `json:"variant_id"`
	SKU       string          `json:"sku"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	LineTotal decimal.Decimal `json:"line_total"`
}

type QuoteResponse struct {
	Currency  string                      `json:"currency"`
	Lines     []QuoteLine                 `json:"lines"`
	Shipping  ShippingOption              `json:"shipping"`
	TaxLabel  string                      `json:"tax_label,omitempty"`
	Coupon    *coupondomain.AppliedCoupon `json:"coupon,omitempty"`
	Breakdown PriceBreakdown              `json:"breakdown"`
}

// QuoteLines converts priced cart lines to their response form.
func QuoteLines(lines []LineItem) []QuoteLine {
	out := make([]QuoteLine, 0, len(lines))
	for _, line := range lines {
		out = append(out, QuoteLine{
			VariantID: line.VariantID.String(),
			SKU:       line.SKU,
			Name:      line.Name,
			UnitPrice: line.UnitPrice,
			Quantity:  line.Quantity,
			LineTotal: line.Total(),
		})
	}
	return out
}
