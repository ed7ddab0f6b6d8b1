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
	inventorydomain "github.com/smallbiznis/storefront/internal/inventory/domain"
	inventoryrepo "github.com/smallbiznis/storefront/internal/inventory/repository"
	inventoryservice "github.com/smallbiznis/storefront/internal/inventory/service"
	"github.com/smallbiznis/storefront/internal/product/domain"
	"github.com/smallbiznis/storefront/internal/product/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setup(t *testing.T) (*gorm.DB, domain.Service, inventorydomain.Service) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&domain.Product{},
		&domain.ProductVariant{},
		&inventorydomain.InventoryLevel{},
		&inventorydomain.StockLedger{},
		&auditdomain.AuditLog{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	fc := clock.NewFakeClock(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))

	audit := auditservice.NewService(auditservice.Params{DB: db, Log: zap.NewNop(), GenID: node, Repo: auditrepo.Provide()})
	inventory := inventoryservice.NewService(inventoryservice.Params{
		DB: db, Log: zap.NewNop(), GenID: node, Clock: fc, Repo: inventoryrepo.NewRepository(), AuditSvc: audit,
	})
	svc := New(Params{
		DB:           db,
		Log:          zap.NewNop(),
		GenID:        node,
		Clock:        fc,
		Repo:         repository.Provide(),
		AuditSvc:     audit,
		InventorySvc: inventory,
	})
	return db, svc, inventory
}

func TestCreateProductSlugs(t *testing.T) {
	_, svc, _ := setup(t)
	ctx := context.Background()

	first, err := svc.Create(ctx, domain.CreateRequest{Name: "  Kopi Susu Gula Aren "})
	require.NoError(t, err)
	assert.Equal(t, "Kopi Susu Gula Aren", first.Name)
	assert.Equal(t, "kopi-susu-gula-aren", first.Slug)

	second, err := svc.Create(ctx, domain.CreateRequest{Name: "Kopi Susu Gula Aren"})
	require.NoError(t, err)
	assert.Equal(t, "kopi-susu-gula-aren-2", second.Slug)

	_, err = svc.Create(ctx, domain.CreateRequest{Name: "   "})
	assert.ErrorIs(t, err, domain.ErrInvalidName)
}

func TestCreateVariantSeedsInventory(t *testing.T) {
	_, svc, inventory := setup(t)
	ctx := context.Background()

	product, err := svc.Create(ctx, domain.CreateRequest{Name: "Tumbler"})
	require.NoError(t, err)

	variant, err := svc.CreateVariant(ctx, domain.CreateVariantRequest{
		ProductID:    product.ID,
		SKU:          "tmb-500-blk",
		Name:         "500ml Black",
		Price:        decimal.RequireFromString("125000.00"),
		InitialStock: 7,
	})
	require.NoError(t, err)
	assert.Equal(t, "TMB-500-BLK", variant.SKU)

	level, err := inventory.GetLevel(ctx, variant.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, level.Available)

	got, err := svc.Get(ctx, product.ID)
	require.NoError(t, err)
	require.Len(t, got.Variants, 1)
	assert.Equal(t, "125000.00", got.Variants[0].Price.StringFixed(2))
}

func TestCreateVariantDuplicateSKU(t *testing.T) {
	db, svc, _ := setup(t)
	ctx := context.Background()

	product, err := svc.Create(ctx, domain.CreateRequest{Name: "Tote Bag"})
	require.NoError(t, err)

	req := domain.CreateVariantRequest{ProductID: product.ID, SKU: "TOTE-1", Name: "Canvas", Price: decimal.RequireFromString("50000")}
	_, err = svc.CreateVariant(ctx, req)
	require.NoError(t, err)

	_, err = svc.CreateVariant(ctx, req)
	assert.ErrorIs(t, err, domain.ErrSKUTaken)

	var levels int64
	require.NoError(t, db.Model(&inventorydomain.InventoryLevel{}).Count(&levels).Error)
	assert.EqualValues(t, 1, levels)
}

func TestCreateVariantValidation(t *testing.T) {
	_, svc, _ := setup(t)
	ctx := context.Background()

	product, err := svc.Create(ctx, domain.CreateRequest{Name: "Mug"})
	require.NoError(t, err)

	_, err = svc.CreateVariant(ctx, domain.CreateVariantRequest{ProductID: product.ID, SKU: "M1", Name: "Mug", Price: decimal.RequireFromString("-1")})
	assert.ErrorIs(t, err, domain.ErrInvalidPrice)

	_, err = svc.CreateVariant(ctx, domain.CreateVariantRequest{ProductID: product.ID, SKU: "M1", Name: "Mug", Price: decimal.RequireFromString("1.005")})
	assert.ErrorIs(t, err, domain.ErrInvalidPrice)

	_, err = svc.CreateVariant(ctx, domain.CreateVariantRequest{ProductID: product.ID, SKU: "M1", Name: "Mug", Price: decimal.RequireFromString("1"), InitialStock: -1})
	assert.ErrorIs(t, err, domain.ErrInvalidStock)

	_, err = svc.CreateVariant(ctx, domain.CreateVariantRequest{ProductID: "42", SKU: "M1", Name: "Mug", Price: decimal.RequireFromString("1")})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestResolveVariants(t *testing.T) {
	_, svc, _ := setup(t)
	ctx := context.Background()

	product, err := svc.Create(ctx, domain.CreateRequest{Name: "Socks"})
	require.NoError(t, err)
	variant, err := svc.CreateVariant(ctx, domain.CreateVariantRequest{ProductID: product.ID, SKU: "SOCK", Name: "Pair", Price: decimal.RequireFromString("15000")})
	require.NoError(t, err)

	id, err := snowflake.ParseString(variant.ID)
	require.NoError(t, err)

	found, err := svc.ResolveVariants(ctx, nil, []snowflake.ID{id})
	require.NoError(t, err)
	assert.Equal(t, "SOCK", found[id].SKU)

	_, err = svc.ResolveVariants(ctx, nil, []snowflake.ID{id, 99})
	assert.ErrorIs(t, err, domain.ErrVariantNotFound)
}
