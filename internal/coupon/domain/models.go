package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type DiscountType string

const (
	DiscountTypePercentage DiscountType = "percentage"
	DiscountTypeFixed      DiscountType = "fixed"
)

func (t DiscountType) Valid() bool {
	return t == DiscountTypePercentage || t == DiscountTypeFixed
}

// Coupon is a discount code. Coupons are never hard-deleted; UsedCount only
// grows through Redeem.
type Coupon struct {
	ID             snowflake.ID    `gorm:"primaryKey"`
	Code           string          `gorm:"type:text;not null;uniqueIndex"`
	DiscountType   DiscountType    `gorm:"column:discount_type;type:text;not null"`
	DiscountValue  decimal.Decimal `gorm:"column:discount_value;type:numeric(12,2);not null"`
	MinOrderAmount decimal.Decimal `gorm:"column:min_order_amount;type:numeric(12,2);not null;default:0"`
	StartsAt       time.Time       `gorm:"column:starts_at;not null"`
	ExpiresAt      *time.Time      `gorm:"column:expires_at"`
	MaxUsage       *int            `gorm:"column:max_usage"`
	UsedCount      int             `gorm:"column:used_count;not null;default:0"`
	CreatedAt      time.Time       `gorm:"not null"`
	UpdatedAt      time.Time       `gorm:"not null"`
}

func (Coupon) TableName() string { return "coupons" }

// CouponUsage is one redemption of a coupon by an order.
type CouponUsage struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	CouponID  snowflake.ID `gorm:"column:coupon_id;not null;index"`
	UserID    *string      `gorm:"column:user_id;type:text;index"`
	OrderID   snowflake.ID `gorm:"column:order_id;not null;uniqueIndex"`
	AppliedAt time.Time    `gorm:"column:applied_at;not null"`
}

func (CouponUsage) TableName() string { return "coupon_usages" }

// AppliedCoupon carries the discount parameters of a validated coupon.
type AppliedCoupon struct {
	Code          string          `json:"code"`
	DiscountType  DiscountType    `json:"discount_type"`
	DiscountValue decimal.Decimal `json:"discount_value"`
}

func (c *Coupon) Applied() AppliedCoupon {
	return AppliedCoupon{
		Code:          c.Code,
		DiscountType:  c.DiscountType,
		DiscountValue: c.DiscountValue,
	}
}

// Exhausted reports whether the coupon reached its usage cap.
func (c *Coupon) Exhausted() bool {
	return c.MaxUsage != nil && c.UsedCount >= *c.MaxUsage
}

// Check applies the redemption rules in order: start window, expiry, usage
// cap, then minimum order amount.
func (c *Coupon) Check(now time.Time, subtotal decimal.Decimal) error {
	if now.Before(c.StartsAt) {
		return ErrCouponNotYetActive
	}
	if c.ExpiresAt != nil && now.After(*c.ExpiresAt) {
		return ErrCouponExpired
	}
	if c.Exhausted() {
		return ErrCouponExhausted
	}
	if subtotal.LessThan(c.MinOrderAmount) {
		return &BelowMinimumOrderError{Minimum: c.MinOrderAmount, Subtotal: subtotal}
	}
	return nil
}

// Validate checks the coupon definition itself.
func (c *Coupon) Validate() error {
	if c.Code == "" {
		return ErrInvalidCode
	}
	if !c.DiscountType.Valid() {
		return ErrInvalidDiscountType
	}
	if !c.DiscountValue.IsPositive() {
		return ErrInvalidDiscountValue
	}
	if c.DiscountType == DiscountTypePercentage && c.DiscountValue.GreaterThan(hundred) {
		return ErrInvalidDiscountValue
	}
	if c.MinOrderAmount.IsNegative() {
		return ErrInvalidMinOrderAmount
	}
	if c.ExpiresAt != nil && !c.ExpiresAt.After(c.StartsAt) {
		return ErrInvalidWindow
	}
	if c.MaxUsage != nil && (*c.MaxUsage <= 0 || *c.MaxUsage < c.UsedCount) {
		return ErrInvalidMaxUsage
	}
	return nil
}
