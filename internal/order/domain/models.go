package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type Order struct {
	ID             snowflake.ID    `gorm:"primaryKey"`
	UserID         *string         `gorm:"column:user_id;type:text;index"`
	Status         Status          `gorm:"type:text;not null;index"`
	InventoryState InventoryState  `gorm:"column:inventory_state;type:text;not null"`
	Currency       string          `gorm:"type:text;not null"`
	Subtotal       decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	DiscountAmount decimal.Decimal `gorm:"column:discount_amount;type:numeric(12,2);not null"`
	TaxAmount      decimal.Decimal `gorm:"column:tax_amount;type:numeric(12,2);not null"`
	TaxRate        decimal.Decimal `gorm:"column:tax_rate;type:numeric(5,2);not null"`
	TaxLabel       *string         `gorm:"column:tax_label;type:text"`
	ShippingFee    decimal.Decimal `gorm:"column:shipping_fee;type:numeric(12,2);not null"`
	TotalAmount    decimal.Decimal `gorm:"column:total_amount;type:numeric(12,2);not null"`
	CouponID       *snowflake.ID   `gorm:"column:coupon_id"`
	CouponCode     *string         `gorm:"column:coupon_code;type:text"`
	ShippingMethod string          `gorm:"column:shipping_method;type:text;not null"`

	ShippingAddressID *snowflake.ID `gorm:"column:shipping_address_id"`
	BillingAddressID  *snowflake.ID `gorm:"column:billing_address_id"`

	Courier            *string `gorm:"type:text"`
	TrackingCode       *string `gorm:"column:tracking_code;type:text"`
	ExternalShipmentID *string `gorm:"column:external_shipment_id;type:text"`
	ExternalOrderID    *string `gorm:"column:external_order_id;type:text"`

	IdempotencyKey *string   `gorm:"column:idempotency_key;type:text;uniqueIndex"`
	CreatedAt      time.Time `gorm:"not null;index"`
	UpdatedAt      time.Time `gorm:"not null"`
}

func (Order) TableName() string { return "orders" }

// OrderItem freezes the variant price at the moment the order was placed.
type OrderItem struct {
	ID        snowflake.ID    `gorm:"primaryKey"`
	OrderID   snowflake.ID    `gorm:"column:order_id;not null;index"`
	VariantID snowflake.ID    `gorm:"column:variant_id;not null"`
	SKU       string          `gorm:"column:sku;type:text;not null"`
	Name      string          `gorm:"type:text;not null"`
	UnitPrice decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null"`
	Quantity  int             `gorm:"not null"`
	LineTotal decimal.Decimal `gorm:"column:line_total;type:numeric(12,2);not null"`
	CreatedAt time.Time       `gorm:"not null"`
}

func (OrderItem) TableName() string { return "order_items" }

type Fulfillment struct {
	ID             snowflake.ID `gorm:"primaryKey"`
	OrderID        snowflake.ID `gorm:"column:order_id;not null;index"`
	TrackingNumber *string      `gorm:"column:tracking_number;type:text"`
	Carrier        *string      `gorm:"type:text"`
	Status         string       `gorm:"type:text;not null;default:pending"`
	CreatedAt      time.Time    `gorm:"not null"`
	UpdatedAt      time.Time    `gorm:"not null"`
}

func (Fulfillment) TableName() string { return "fulfillments" }
