package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	auditdomain "github.com/smallbiznis/storefront/internal/audit/domain"
	auditrepo "github.com/smallbiznis/storefront/internal/audit/repository"
	auditservice "github.com/smallbiznis/storefront/internal/audit/service"
	"github.com/smallbiznis/storefront/internal/clock"
	"github.com/smallbiznis/storefront/internal/coupon/domain"
	"github.com/smallbiznis/storefront/internal/coupon/repository"
	"github.com/smallbiznis/storefront/internal/observability/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	db    *gorm.DB
	clock *clock.FakeClock
	node  *snowflake.Node
	svc   domain.Service
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.Coupon{}, &domain.CouponUsage{}, &auditdomain.AuditLog{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	fc := clock.NewFakeClock(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))

	audit := auditservice.NewService(auditservice.Params{DB: db, Log: zap.NewNop(), GenID: node, Repo: auditrepo.Provide()})
	svc := NewService(Params{
		DB:       db,
		Log:      zap.NewNop(),
		GenID:    node,
		Clock:    fc,
		Repo:     repository.NewRepository(),
		AuditSvc: audit,
	})
	return &fixture{db: db, clock: fc, node: node, svc: svc}
}

func money(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func moneyPtr(v string) *decimal.Decimal {
	m := money(v)
	return &m
}

func intPtr(v int) *int { return &v }

func TestCreateNormalizesCodeAndAudits(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	resp, err := f.svc.Create(ctx, domain.CreateRequest{
		Code:          "  save10 ",
		DiscountType:  domain.DiscountTypePercentage,
		DiscountValue: money("10"),
	})
	require.NoError(t, err)
	assert.Equal(t, "SAVE10", resp.Code)
	assert.Equal(t, 0, resp.UsedCount)

	var logs []auditdomain.AuditLog
	require.NoError(t, f.db.Where("entity_type = ? AND entity_id = ?", auditdomain.EntityCoupons, resp.ID).Find(&logs).Error)
	require.Len(t, logs, 1)
	assert.Equal(t, auditdomain.ActionCreate, logs[0].Action)
	assert.Equal(t, "SAVE10", logs[0].NewValue["code"])
}

func TestCreateRejectsDuplicateCode(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, domain.CreateRequest{Code: "WELCOME", DiscountType: domain.DiscountTypeFixed, DiscountValue: money("5")})
	require.NoError(t, err)

	_, err = f.svc.Create(ctx, domain.CreateRequest{Code: "welcome", DiscountType: domain.DiscountTypeFixed, DiscountValue: money("5")})
	assert.ErrorIs(t, err, domain.ErrCouponCodeTaken)
}

func TestCreateRejectsPercentageAboveHundred(t *testing.T) {
	f := setup(t)
	_, err := f.svc.Create(context.Background(), domain.CreateRequest{
		Code:          "TOOMUCH",
		DiscountType:  domain.DiscountTypePercentage,
		DiscountValue: money("150"),
	})
	assert.ErrorIs(t, err, domain.ErrInvalidDiscountValue)
}

func TestValidatePercentageCoupon(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	_, err := f.svc.Create(ctx, domain.CreateRequest{Code: "SAVE10", DiscountType: domain.DiscountTypePercentage, DiscountValue: money("10")})
	require.NoError(t, err)

	applied, err := f.svc.Validate(ctx, "save10", money("200"))
	require.NoError(t, err)
	assert.Equal(t, "SAVE10", applied.Code)
	assert.Equal(t, "20.00", domain.ComputeDiscount(money("200"), *applied).StringFixed(2))

	// validation never consumes a use
	got, err := f.svc.List(ctx, domain.ListRequest{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 0, got[0].UsedCount)
}

func TestValidateMinimumOrderBoundary(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	_, err := f.svc.Create(ctx, domain.CreateRequest{
		Code:           "BIGSPENDER",
		DiscountType:   domain.DiscountTypeFixed,
		DiscountValue:  money("100"),
		MinOrderAmount: moneyPtr("1000"),
	})
	require.NoError(t, err)

	_, err = f.svc.Validate(ctx, "BIGSPENDER", money("999"))
	require.ErrorIs(t, err, domain.ErrBelowMinimumOrder)
	var below *domain.BelowMinimumOrderError
	require.True(t, errors.As(err, &below))
	assert.Equal(t, "1.00", below.Shortfall().StringFixed(2))

	_, err = f.svc.Validate(ctx, "BIGSPENDER", money("1000"))
	assert.NoError(t, err)
}

func TestValidateTimeWindow(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	now := f.clock.Now()
	starts := now.Add(time.Hour)
	expires := now.Add(48 * time.Hour)

	_, err := f.svc.Create(ctx, domain.CreateRequest{
		Code:          "LATER",
		DiscountType:  domain.DiscountTypeFixed,
		DiscountValue: money("5"),
		StartsAt:      &starts,
		ExpiresAt:     &expires,
	})
	require.NoError(t, err)

	_, err = f.svc.Validate(ctx, "LATER", money("10"))
	assert.ErrorIs(t, err, domain.ErrCouponNotYetActive)

	f.clock.Advance(2 * time.Hour)
	_, err = f.svc.Validate(ctx, "LATER", money("10"))
	assert.NoError(t, err)

	f.clock.Set(expires.Add(time.Second))
	_, err = f.svc.Validate(ctx, "LATER", money("10"))
	assert.ErrorIs(t, err, domain.ErrCouponExpired)
}

func TestValidateUnknownCode(t *testing.T) {
	f := setup(t)
	_, err := f.svc.Validate(context.Background(), "NOPE", money("10"))
	assert.ErrorIs(t, err, domain.ErrCouponNotFound)

	_, err = f.svc.Validate(context.Background(), "   ", money("10"))
	assert.ErrorIs(t, err, domain.ErrCouponNotFound)
}

func TestRedeemStopsAtMaxUsage(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	resp, err := f.svc.Create(ctx, domain.CreateRequest{
		Code:          "ONCE",
		DiscountType:  domain.DiscountTypeFixed,
		DiscountValue: money("5"),
		MaxUsage:      intPtr(1),
	})
	require.NoError(t, err)
	couponID, err := snowflake.ParseString(resp.ID)
	require.NoError(t, err)

	user := "user-1"
	require.NoError(t, f.svc.Redeem(ctx, f.db, couponID, &user, f.node.Generate()))

	_, err = f.svc.Validate(ctx, "ONCE", money("10"))
	assert.ErrorIs(t, err, domain.ErrCouponExhausted)

	err = f.svc.Redeem(ctx, f.db, couponID, &user, f.node.Generate())
	assert.ErrorIs(t, err, domain.ErrCouponExhausted)

	usages, err := f.svc.ListUsages(ctx, resp.ID)
	require.NoError(t, err)
	require.Len(t, usages, 1)
	assert.Equal(t, "user-1", *usages[0].UserID)

	got, err := f.svc.Get(ctx, resp.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.UsedCount)
}

func TestUpdateCoupon(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	resp, err := f.svc.Create(ctx, domain.CreateRequest{
		Code:          "SUMMER",
		DiscountType:  domain.DiscountTypeFixed,
		DiscountValue: money("5"),
		MaxUsage:      intPtr(10),
	})
	require.NoError(t, err)

	updated, err := f.svc.Update(ctx, domain.UpdateRequest{
		ID:             resp.ID,
		MinOrderAmount: moneyPtr("50"),
		ClearMaxUsage:  true,
	})
	require.NoError(t, err)
	assert.Equal(t, "50.00", updated.MinOrderAmount.StringFixed(2))
	assert.Nil(t, updated.MaxUsage)

	_, err = f.svc.Update(ctx, domain.UpdateRequest{ID: resp.ID, MaxUsage: intPtr(0)})
	assert.ErrorIs(t, err, domain.ErrInvalidMaxUsage)

	_, err = f.svc.Update(ctx, domain.UpdateRequest{ID: "123"})
	assert.ErrorIs(t, err, domain.ErrCouponNotFound)

	var count int64
	require.NoError(t, f.db.Model(&auditdomain.AuditLog{}).Where("entity_id = ? AND action = ?", resp.ID, auditdomain.ActionUpdate).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestUpdateRejectsMaxUsageBelowRedemptions(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	resp, err := f.svc.Create(ctx, domain.CreateRequest{
		Code:          "FIVEUSES",
		DiscountType:  domain.DiscountTypeFixed,
		DiscountValue: money("5"),
		MaxUsage:      intPtr(5),
	})
	require.NoError(t, err)
	couponID, err := snowflake.ParseString(resp.ID)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		user := fmt.Sprintf("user-%d", i)
		require.NoError(t, f.svc.Redeem(ctx, f.db, couponID, &user, f.node.Generate()))
	}

	_, err = f.svc.Update(ctx, domain.UpdateRequest{ID: resp.ID, MaxUsage: intPtr(1)})
	assert.ErrorIs(t, err, domain.ErrInvalidMaxUsage)

	got, err := f.svc.Get(ctx, resp.ID)
	require.NoError(t, err)
	require.NotNil(t, got.MaxUsage)
	assert.Equal(t, 5, *got.MaxUsage)
	assert.Equal(t, 3, got.UsedCount)

	var count int64
	require.NoError(t, f.db.Model(&auditdomain.AuditLog{}).Where("entity_id = ? AND action = ?", resp.ID, auditdomain.ActionUpdate).Count(&count).Error)
	assert.Zero(t, count)

	// Capping at the current count is allowed and leaves the coupon exhausted.
	updated, err := f.svc.Update(ctx, domain.UpdateRequest{ID: resp.ID, MaxUsage: intPtr(3)})
	require.NoError(t, err)
	assert.Equal(t, 3, *updated.MaxUsage)

	_, err = f.svc.Validate(ctx, "FIVEUSES", money("10"))
	assert.ErrorIs(t, err, domain.ErrCouponExhausted)
}

func TestListActiveFilter(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	past := f.clock.Now().Add(-48 * time.Hour)
	pastEnd := f.clock.Now().Add(-24 * time.Hour)

	_, err := f.svc.Create(ctx, domain.CreateRequest{Code: "LIVE", DiscountType: domain.DiscountTypeFixed, DiscountValue: money("5")})
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, domain.CreateRequest{Code: "OLD", DiscountType: domain.DiscountTypeFixed, DiscountValue: money("5"), StartsAt: &past, ExpiresAt: &pastEnd})
	require.NoError(t, err)

	active := true
	got, err := f.svc.List(ctx, domain.ListRequest{Active: &active})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "LIVE", got[0].Code)

	inactive := false
	got, err = f.svc.List(ctx, domain.ListRequest{Active: &inactive})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "OLD", got[0].Code)
}

func TestCouponValidationMetricSplitsQuoteAndCheckout(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	reader := sdkmetric.NewManualReader()
	m, err := metrics.New(metrics.Config{}, sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)))
	require.NoError(t, err)
	svc := NewService(Params{
		DB:       f.db,
		Log:      zap.NewNop(),
		GenID:    f.node,
		Clock:    f.clock,
		Repo:     repository.NewRepository(),
		AuditSvc: auditservice.NewService(auditservice.Params{DB: f.db, Log: zap.NewNop(), GenID: f.node, Repo: auditrepo.Provide()}),
		Metrics:  m,
	})

	_, err = svc.Create(ctx, domain.CreateRequest{Code: "TWICE", DiscountType: domain.DiscountTypeFixed, DiscountValue: money("5")})
	require.NoError(t, err)

	_, err = svc.Validate(ctx, "TWICE", money("10"))
	require.NoError(t, err)
	require.NoError(t, f.db.Transaction(func(tx *gorm.DB) error {
		_, err := svc.ValidateForRedemption(ctx, tx, "TWICE", money("10"))
		return err
	}))

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	counts := map[string]int64{}
	for _, scope := range rm.ScopeMetrics {
		for _, rec := range scope.Metrics {
			if rec.Name != "storefront_coupon_validations_total" {
				continue
			}
			sum, ok := rec.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			for _, dp := range sum.DataPoints {
				stage, _ := dp.Attributes.Value(attribute.Key("stage"))
				result, _ := dp.Attributes.Value(attribute.Key("result"))
				counts[stage.AsString()+"/"+result.AsString()] += dp.Value
			}
		}
	}
	assert.Equal(t, map[string]int64{"quote/valid": 1, "checkout/valid": 1}, counts)
}
