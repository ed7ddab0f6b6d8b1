package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Response, error)
	Update(ctx context.Context, req UpdateRequest) (*Response, error)
	Get(ctx context.Context, id string) (*Response, error)
	List(ctx context.Context, req ListRequest) ([]Response, error)

	// Validate checks code against subtotal without consuming the coupon.
	Validate(ctx context.Context, code string, subtotal decimal.Decimal) (*AppliedCoupon, error)
	// ValidateForRedemption runs the same checks with the coupon row locked
	// inside tx, for callers that redeem in the same transaction.
	ValidateForRedemption(ctx context.Context, tx *gorm.DB, code string, subtotal decimal.Decimal) (*Coupon, error)
	// Redeem consumes one use of the coupon and records the usage row.
	Redeem(ctx context.Context, tx *gorm.DB, couponID snowflake.ID, userID *string, orderID snowflake.ID) error
	ListUsages(ctx context.Context, couponID string) ([]UsageResponse, error)
}

type Repository interface {
	Create(ctx context.Context, db *gorm.DB, coupon *Coupon) error
	Update(ctx context.Context, db *gorm.DB, coupon *Coupon) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID, forUpdate bool) (*Coupon, error)
	FindByCode(ctx context.Context, db *gorm.DB, code string, forUpdate bool) (*Coupon, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]Coupon, error)
	IncrementUsage(ctx context.Context, db *gorm.DB, id snowflake.ID, now time.Time) (int64, error)
	InsertUsage(ctx context.Context, db *gorm.DB, usage *CouponUsage) error
	ListUsages(ctx context.Context, db *gorm.DB, couponID snowflake.ID) ([]CouponUsage, error)
}

type CreateRequest struct {
	Code           string           `json:"code"`
	DiscountType   DiscountType     `json:"discount_type"`
	DiscountValue  decimal.Decimal  `json:"discount_value"`
	MinOrderAmount *decimal.Decimal `json:"min_order_amount,omitempty"`
	StartsAt       *time.Time       `json:"starts_at,omitempty"`
	ExpiresAt      *time.Time       `json:"expires_at,omitempty"`
	MaxUsage       *int             `json:"max_usage,omitempty"`
}

type UpdateRequest struct {
	ID             string           `json:"-"`
	MinOrderAmount *decimal.Decimal `json:"min_order_amount,omitempty"`
	StartsAt       *time.Time       `json:"starts_at,omitempty"`
	ExpiresAt      *time.Time       `json:"expires_at,omitempty"`
	ClearExpiresAt bool             `json:"clear_expires_at,omitempty"`
	MaxUsage       *int             `json:"max_usage,omitempty"`
	ClearMaxUsage  bool             `json:"clear_max_usage,omitempty"`
}

type ListRequest struct {
	CodePrefix string
	Active     *bool
	SortBy     string
	OrderBy    string
}

type ListFilter struct {
	CodePrefix string
	Active     *bool
	Now        time.Time
	SortBy     string
	OrderBy    string
}

type Response struct {
	ID             string          `json:"id"`
	Code           string          `json:"code"`
	DiscountType   DiscountType    `json:"discount_type"`
	DiscountValue  decimal.Decimal `json:"discount_value"`
	MinOrderAmount decimal.Decimal `json:"min_order_amount"`
	StartsAt       time.Time       `json:"starts_at"`
	ExpiresAt      *time.Time      `json:"expires_at,omitempty"`
	MaxUsage       *int            `json:"max_usage,omitempty"`
	UsedCount      int             `json:"used_count"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

type UsageResponse struct {
	ID        string    `json:"id"`
	CouponID  string    `json:"coupon_id"`
	UserID    *string   `json:"user_id,omitempty"`
	OrderID   string    `json:"order_id"`
	AppliedAt time.Time `json:"applied_at"`
}
