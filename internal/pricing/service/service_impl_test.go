package service

import (
	"context"
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
	"github.com/smallbiznis/storefront/internal/config"
	coupondomain "github.com/smallbiznis/storefront/internal/coupon/domain"
	couponrepo "github.com/smallbiznis/storefront/internal/coupon/repository"
	couponservice "github.com/smallbiznis/storefront/internal/coupon/service"
	inventorydomain "github.com/smallbiznis/storefront/internal/inventory/domain"
	inventoryrepo "github.com/smallbiznis/storefront/internal/inventory/repository"
	inventoryservice "github.com/smallbiznis/storefront/internal/inventory/service"
	"github.com/smallbiznis/storefront/internal/pricing/domain"
	productdomain "github.com/smallbiznis/storefront/internal/product/domain"
	productrepo "github.com/smallbiznis/storefront/internal/product/repository"
	productservice "github.com/smallbiznis/storefront/internal/product/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	svc     domain.Service
	product productdomain.Service
	coupon  coupondomain.Service
	store   *config.StoreConfigHolder
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&productdomain.Product{},
		&productdomain.ProductVariant{},
		&inventorydomain.InventoryLevel{},
		&inventorydomain.StockLedger{},
		&coupondomain.Coupon{},
		&coupondomain.CouponUsage{},
		&auditdomain.AuditLog{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	fc := clock.NewFakeClock(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	log := zap.NewNop()

	audit := auditservice.NewService(auditservice.Params{DB: db, Log: log, GenID: node, Repo: auditrepo.Provide()})
	inventory := inventoryservice.NewService(inventoryservice.Params{DB: db, Log: log, GenID: node, Clock: fc, Repo: inventoryrepo.NewRepository(), AuditSvc: audit})
	products := productservice.New(productservice.Params{DB: db, Log: log, GenID: node, Clock: fc, Repo: productrepo.Provide(), AuditSvc: audit, InventorySvc: inventory})
	coupons := couponservice.NewService(couponservice.Params{DB: db, Log: log, GenID: node, Clock: fc, Repo: couponrepo.NewRepository(), AuditSvc: audit})

	settings := config.DefaultStoreSettings()
	settings.ShippingOptions = []config.ShippingOption{{Code: "jne-reg", Courier: "JNE", Service: "REG", Fee: "50"}}
	store := config.NewStaticStoreConfigHolder(settings)

	svc := NewService(Params{DB: db, Log: log, Store: store, ProductSvc: products, CouponSvc: coupons})
	return &fixture{svc: svc, product: products, coupon: coupons, store: store}
}

func (f *fixture) variant(t *testing.T, sku, price string) string {
	t.Helper()
	ctx := context.Background()
	p, err := f.product.Create(ctx, productdomain.CreateRequest{Name: "Product " + sku})
	require.NoError(t, err)
	v, err := f.product.CreateVariant(ctx, productdomain.CreateVariantRequest{
		ProductID: p.ID, SKU: sku, Name: sku, Price: decimal.RequireFromString(price), InitialStock: 10,
	})
	require.NoError(t, err)
	return v.ID
}

func TestQuoteUsesCatalogPricesAndCoupon(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	a := f.variant(t, "A", "500")

	_, err := f.coupon.Create(ctx, coupondomain.CreateRequest{Code: "SAVE10", DiscountType: coupondomain.DiscountTypePercentage, DiscountValue: decimal.NewFromInt(10)})
	require.NoError(t, err)

	quote, err := f.svc.Quote(ctx, domain.QuoteRequest{
		Items:          []domain.ItemRequest{{VariantID: a, Quantity: 4}},
		ShippingMethod: "JNE-REG",
		CouponCode:     "save10",
	})
	require.NoError(t, err)

	assert.Equal(t, "IDR", quote.Currency)
	assert.Equal(t, "VAT", quote.TaxLabel)
	require.NotNil(t, quote.Coupon)
	assert.Equal(t, "SAVE10", quote.Coupon.Code)
	require.Len(t, quote.Lines, 1)
	assert.Equal(t, "2000.00", quote.Lines[0].LineTotal.StringFixed(2))
	assert.Equal(t, "2048.00", quote.Breakdown.GrandTotal.StringFixed(2))
}

func TestQuoteRejections(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	a := f.variant(t, "A", "100")

	_, err := f.svc.Quote(ctx, domain.QuoteRequest{ShippingMethod: "jne-reg"})
	assert.ErrorIs(t, err, domain.ErrEmptyCart)

	_, err = f.svc.Quote(ctx, domain.QuoteRequest{Items: []domain.ItemRequest{{VariantID: a, Quantity: 1}}, ShippingMethod: "drone"})
	assert.ErrorIs(t, err, domain.ErrUnknownShipping)

	_, err = f.svc.Quote(ctx, domain.QuoteRequest{Items: []domain.ItemRequest{{VariantID: a, Quantity: 0}}, ShippingMethod: "jne-reg"})
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)

	_, err = f.svc.Quote(ctx, domain.QuoteRequest{Items: []domain.ItemRequest{{VariantID: "999", Quantity: 1}}, ShippingMethod: "jne-reg"})
	assert.ErrorIs(t, err, productdomain.ErrVariantNotFound)

	_, err = f.svc.Quote(ctx, domain.QuoteRequest{Items: []domain.ItemRequest{{VariantID: a, Quantity: 1}}, ShippingMethod: "jne-reg", CouponCode: "nonexistent"})
	assert.ErrorIs(t, err, coupondomain.ErrCouponNotFound)
}

func TestShippingMethodsFollowStoreSettings(t *testing.T) {
	f := setup(t)

	methods := f.svc.ShippingMethods(context.Background())
	require.Len(t, methods, 1)
	assert.Equal(t, "jne-reg", methods[0].Code)
	assert.Equal(t, "50.00", methods[0].Fee.StringFixed(2))
}
