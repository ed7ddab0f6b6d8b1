package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrCouponNotFound      = errors.New("coupon_not_found")
	ErrCouponNotYetActive  = errors.New("coupon_not_yet_active")
	ErrCouponExpired       = errors.New("coupon_expired")
	ErrCouponExhausted     = errors.New("coupon_exhausted")
	ErrBelowMinimumOrder   = errors.New("below_minimum_order")
	ErrCouponCodeTaken     = errors.New("coupon_code_taken")
	ErrInvalidID           = errors.New("invalid_id")
	ErrInvalidCode         = errors.New("invalid_code")
	ErrInvalidDiscountType = errors.New("invalid_discount_type")
	// ErrInvalidDiscountValue covers non-positive values and percentages above 100.
	ErrInvalidDiscountValue  = errors.New("invalid_discount_value")
	ErrInvalidMinOrderAmount = errors.New("invalid_min_order_amount")
	ErrInvalidWindow         = errors.New("invalid_window")
	// ErrInvalidMaxUsage covers non-positive caps and caps below the redemptions already made.
	ErrInvalidMaxUsage = errors.New("invalid_max_usage")
	ErrInvalidSubtotal = errors.New("invalid_subtotal")
)

// BelowMinimumOrderError reports how far the subtotal is from the coupon minimum.
type BelowMinimumOrderError struct {
	Minimum  decimal.Decimal
	Subtotal decimal.Decimal
}

func (e *BelowMinimumOrderError) Error() string {
	return fmt.Sprintf("minimum order amount is %s, add %s more to use this coupon",
		e.Minimum.StringFixed(2), e.Shortfall().StringFixed(2))
}

func (e *BelowMinimumOrderError) Shortfall() decimal.Decimal {
	return e.Minimum.Sub(e.Subtotal)
}

func (e *BelowMinimumOrderError) Is(target error) bool {
	return target == ErrBelowMinimumOrder
}

// IsCouponRejection reports whether err is one of the redemption rule failures.
func IsCouponRejection(err error) bool {
	return errors.Is(err, ErrCouponNotFound) ||
		errors.Is(err, ErrCouponNotYetActive) ||
		errors.Is(err, ErrCouponExpired) ||
		errors.Is(err, ErrCouponExhausted) ||
		errors.Is(err, ErrBelowMinimumOrder)
}
