package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func TestComputeDiscount(t *testing.T) {
	cases := []struct {
		name     string
		subtotal string
		coupon   AppliedCoupon
		want     string
	}{
		{"percentage", "200", AppliedCoupon{DiscountType: DiscountTypePercentage, DiscountValue: d("10")}, "20.00"},
		{"percentage rounds half away from zero", "0.05", AppliedCoupon{DiscountType: DiscountTypePercentage, DiscountValue: d("50")}, "0.03"},
		{"fixed", "150", AppliedCoupon{DiscountType: DiscountTypeFixed, DiscountValue: d("25")}, "25.00"},
		{"fixed clamped to subtotal", "50", AppliedCoupon{DiscountType: DiscountTypeFixed, DiscountValue: d("100")}, "50.00"},
		{"hundred percent", "80", AppliedCoupon{DiscountType: DiscountTypePercentage, DiscountValue: d("100")}, "80.00"},
		{"zero subtotal", "0", AppliedCoupon{DiscountType: DiscountTypeFixed, DiscountValue: d("10")}, "0.00"},
		{"unknown type", "100", AppliedCoupon{DiscountType: "bogus", DiscountValue: d("10")}, "0.00"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ComputeDiscount(d(tc.subtotal), tc.coupon)
			assert.Equal(t, tc.want, got.StringFixed(2))
			assert.False(t, got.GreaterThan(d(tc.subtotal)))
			assert.False(t, got.IsNegative())
		})
	}
}

func TestCouponCheckOrder(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	expired := now.Add(-time.Hour)
	maxUsage := 1

	c := &Coupon{
		StartsAt:       now.Add(time.Hour),
		ExpiresAt:      &expired,
		MaxUsage:       &maxUsage,
		UsedCount:      1,
		MinOrderAmount: d("1000"),
	}
	assert.ErrorIs(t, c.Check(now, d("1")), ErrCouponNotYetActive)

	c.StartsAt = now.Add(-2 * time.Hour)
	assert.ErrorIs(t, c.Check(now, d("1")), ErrCouponExpired)

	c.ExpiresAt = nil
	assert.ErrorIs(t, c.Check(now, d("1")), ErrCouponExhausted)

	c.MaxUsage = nil
	err := c.Check(now, d("999"))
	require.ErrorIs(t, err, ErrBelowMinimumOrder)
	var below *BelowMinimumOrderError
	require.True(t, errors.As(err, &below))
	assert.Equal(t, "1.00", below.Shortfall().StringFixed(2))
	assert.Contains(t, below.Error(), "1000.00")

	assert.NoError(t, c.Check(now, d("1000")))
}

func TestCouponCheckBoundaries(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)
	c := &Coupon{StartsAt: start, ExpiresAt: &end}

	assert.NoError(t, c.Check(start, d("10")))
	assert.NoError(t, c.Check(end, d("10")))
	assert.ErrorIs(t, c.Check(end.Add(time.Nanosecond), d("10")), ErrCouponExpired)
	assert.ErrorIs(t, c.Check(start.Add(-time.Nanosecond), d("10")), ErrCouponNotYetActive)
}

func TestCouponValidate(t *testing.T) {
	base := func() *Coupon {
		return &Coupon{Code: "SAVE10", DiscountType: DiscountTypePercentage, DiscountValue: d("10")}
	}
	require.NoError(t, base().Validate())

	c := base()
	c.DiscountValue = d("100.01")
	assert.ErrorIs(t, c.Validate(), ErrInvalidDiscountValue)

	c = base()
	c.DiscountValue = d("0")
	assert.ErrorIs(t, c.Validate(), ErrInvalidDiscountValue)

	c = base()
	c.DiscountType = DiscountTypeFixed
	c.DiscountValue = d("150000")
	assert.NoError(t, c.Validate())

	c = base()
	c.DiscountType = "bogo"
	assert.ErrorIs(t, c.Validate(), ErrInvalidDiscountType)

	c = base()
	zero := 0
	c.MaxUsage = &zero
	assert.ErrorIs(t, c.Validate(), ErrInvalidMaxUsage)

	c = base()
	c.StartsAt = time.Now()
	before := c.StartsAt.Add(-time.Minute)
	c.ExpiresAt = &before
	assert.ErrorIs(t, c.Validate(), ErrInvalidWindow)
}
