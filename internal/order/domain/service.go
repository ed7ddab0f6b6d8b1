package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	pricingdomain "github.com/smallbiznis/storefront/internal/pricing/domain"
	"github.com/smallbiznis/storefront/pkg/db/pagination"
	"gorm.io/gorm"
)

type Service interface {
	PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*PlaceOrderResult, error)
	GetOrder(ctx context.Context, id string) (*OrderResponse, error)
	ListOrders(ctx context.Context, req ListOrdersRequest) (*ListOrdersResponse, error)
	UpdateOrderStatus(ctx context.Context, req UpdateStatusRequest) (*OrderResponse, error)
	// ReopenOrder moves a terminal order back into the workflow. Callers
	// must hold the order.reopen permission.
	ReopenOrder(ctx context.Context, req ReopenRequest) (*OrderResponse, error)
	UpdateShipment(ctx context.Context, req UpdateShipmentRequest) (*OrderResponse, error)

	UpsertFulfillment(ctx context.Context, req UpsertFulfillmentRequest) (*FulfillmentResponse, error)
	ListFulfillments(ctx context.Context, orderID string) ([]FulfillmentResponse, error)

	// InvoiceSource loads what an invoice needs, including the order's
	// position among orders placed the same UTC day.
	InvoiceSource(ctx context.Context, id string) (*InvoiceSource, error)
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, order *Order) error
	InsertItems(ctx context.Context, db *gorm.DB, items []OrderItem) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID, forUpdate bool) (*Order, error)
	FindByIdempotencyKey(ctx context.Context, db *gorm.DB, key string) (*Order, error)
	FindItems(ctx context.Context, db *gorm.DB, orderID snowflake.ID) ([]OrderItem, error)
	UpdateStatus(ctx context.Context, db *gorm.DB, order *Order) error
	UpdateShipment(ctx context.Context, db *gorm.DB, order *Order) error
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*Order, error)
	CountSameDayUpTo(ctx context.Context, db *gorm.DB, order *Order) (int64, error)

	InsertFulfillment(ctx context.Context, db *gorm.DB, f *Fulfillment) error
	UpdateFulfillment(ctx context.Context, db *gorm.DB, f *Fulfillment) error
	FindFulfillment(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Fulfillment, error)
	ListFulfillments(ctx context.Context, db *gorm.DB, orderID snowflake.ID) ([]Fulfillment, error)
}

type PlaceOrderRequest struct {
	UserID            *string                     `json:"user_id"`
	Items             []pricingdomain.ItemRequest `json:"items"`
	ShippingMethod    string                      `json:"shipping_method"`
	CouponCode        string                      `json:"coupon_code"`
	ShippingAddressID string                      `json:"shipping_address_id"`
	BillingAddressID  string                      `json:"billing_address_id"`
	ExpectedTotal     *decimal.Decimal            `json:"expected_total"`
	IdempotencyKey    string                      `json:"-"`
}

type PlaceOrderResult struct {
	Order *OrderResponse
	// Replayed is true when an earlier order with the same idempotency key
	// was returned instead of creating a new one.
	Replayed bool
}

type ListOrdersRequest struct {
	pagination.Pagination
	Status string
	UserID string
}

type ListFilter struct {
	Status string
	UserID string
	Page   pagination.Pagination
}

type UpdateStatusRequest struct {
	OrderID string `json:"-"`
	Status  string `json:"status"`
}

type ReopenRequest struct {
	OrderID string `json:"-"`
	Status  string `json:"status"`
	Reason  string `json:"reason"`
}

type UpdateShipmentRequest struct {
	OrderID            string  `json:"-"`
	Courier            *string `json:"courier"`
	TrackingCode       *string `json:"tracking_code"`
	ExternalShipmentID *string `json:"external_shipment_id"`
	ExternalOrderID    *string `json:"external_order_id"`
}

type UpsertFulfillmentRequest struct {
	ID             string  `json:"id"`
	OrderID        string  `json:"-"`
	TrackingNumber *string `json:"tracking_number"`
	Carrier        *string `json:"carrier"`
	Status         string  `json:"status"`
}

type OrderItemResponse struct {
	ID        string          `json:"id"`
	VariantID string          `json:"variant_id"`
	SKU       string          `json:"sku"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	LineTotal decimal.Decimal `json:"line_total"`
}

type OrderResponse struct {
	ID                 string                       `json:"id"`
	UserID             *string                      `json:"user_id,omitempty"`
	Status             Status                       `json:"status"`
	AllowedTransitions []Status                     `json:"allowed_transitions"`
	InventoryState     InventoryState               `json:"inventory_state"`
	Currency           string                       `json:"currency"`
	Breakdown          pricingdomain.PriceBreakdown `json:"breakdown"`
	TotalAmount        string                       `json:"total_amount"`
	CouponCode         *string                      `json:"coupon_code,omitempty"`
	ShippingMethod     string                       `json:"shipping_method"`
	ShippingAddressID  *string                      `json:"shipping_address_id,omitempty"`
	BillingAddressID   *string                      `json:"billing_address_id,omitempty"`
	Courier            *string                      `json:"courier,omitempty"`
	TrackingCode       *string                      `json:"tracking_code,omitempty"`
	ExternalShipmentID *string                      `json:"external_shipment_id,omitempty"`
	ExternalOrderID    *string                      `json:"external_order_id,omitempty"`
	Items              []OrderItemResponse          `json:"items,omitempty"`
	CreatedAt          time.Time                    `json:"created_at"`
	UpdatedAt          time.Time                    `json:"updated_at"`
}

type ListOrdersResponse struct {
	pagination.PageInfo
	Orders []OrderResponse `json:"orders"`
}

type FulfillmentResponse struct {
	ID             string    `json:"id"`
	OrderID        string    `json:"order_id"`
	TrackingNumber *string   `json:"tracking_number,omitempty"`
	Carrier        *string   `json:"carrier,omitempty"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type InvoiceSource struct {
	Order    Order
	Items    []OrderItem
	Sequence int64
}

// Breakdown rebuilds the frozen price breakdown of an order.
func (o *Order) Breakdown() pricingdomain.PriceBreakdown {
	return pricingdomain.PriceBreakdown{
		Subtotal:    o.Subtotal,
		Discount:    o.DiscountAmount,
		TaxableBase: o.Subtotal.Sub(o.DiscountAmount),
		TaxAmount:   o.TaxAmount,
		ShippingFee: o.ShippingFee,
		GrandTotal:  o.TotalAmount,
	}
}
