package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	auditdomain "github.com/smallbiznis/storefront/internal/audit/domain"
	auditrepo "github.com/smallbiznis/storefront/internal/audit/repository"
	auditservice "github.com/smallbiznis/storefront/internal/audit/service"
	"github.com/smallbiznis/storefront/internal/clock"
	"github.com/smallbiznis/storefront/internal/inventory/domain"
	"github.com/smallbiznis/storefront/internal/inventory/repository"
	"github.com/smallbiznis/storefront/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	db   *gorm.DB
	node *snowflake.Node
	svc  domain.Service
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.InventoryLevel{}, &domain.StockLedger{}, &auditdomain.AuditLog{}))

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
	return &fixture{db: db, node: node, svc: svc}
}

func (f *fixture) seed(t *testing.T, qty int) snowflake.ID {
	t.Helper()
	id := f.node.Generate()
	require.NoError(t, f.svc.InitLevel(context.Background(), f.db, id, qty))
	return id
}

func (f *fixture) assertBalanced(t *testing.T, id snowflake.ID) *domain.ReconcileResponse {
	t.Helper()
	resp, err := f.svc.Reconcile(context.Background(), id.String())
	require.NoError(t, err)
	assert.True(t, resp.Balanced, "available %d ledger %d", resp.Available, resp.LedgerSum)
	return resp
}

func TestInitLevelWritesOpeningLedger(t *testing.T) {
	f := setup(t)
	id := f.seed(t, 12)

	level, err := f.svc.GetLevel(context.Background(), id.String())
	require.NoError(t, err)
	assert.Equal(t, 12, level.Available)
	assert.Equal(t, 0, level.Reserved)

	resp := f.assertBalanced(t, id)
	assert.EqualValues(t, 12, resp.LedgerSum)

	err = f.svc.InitLevel(context.Background(), f.db, id, 1)
	assert.ErrorIs(t, err, domain.ErrLevelExists)
}

func TestReserveCommitKeepsLedgerBalanced(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	a := f.seed(t, 5)
	b := f.seed(t, 3)
	orderID := f.node.Generate()
	lines := []domain.Line{{VariantID: a, Quantity: 2}, {VariantID: b, Quantity: 1}, {VariantID: a, Quantity: 1}}

	require.NoError(t, f.db.Transaction(func(tx *gorm.DB) error {
		return f.svc.Reserve(ctx, tx, orderID, lines)
	}))

	level, err := f.svc.GetLevel(ctx, a.String())
	require.NoError(t, err)
	assert.Equal(t, 2, level.Available)
	assert.Equal(t, 3, level.Reserved)
	f.assertBalanced(t, a)
	f.assertBalanced(t, b)

	require.NoError(t, f.db.Transaction(func(tx *gorm.DB) error {
		return f.svc.Commit(ctx, tx, orderID, lines)
	}))
	level, err = f.svc.GetLevel(ctx, a.String())
	require.NoError(t, err)
	assert.Equal(t, 2, level.Available)
	assert.Equal(t, 0, level.Reserved)
	f.assertBalanced(t, a)
}

func TestReserveInsufficientRollsBack(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	a := f.seed(t, 5)
	b := f.seed(t, 1)
	orderID := f.node.Generate()

	err := f.db.Transaction(func(tx *gorm.DB) error {
		return f.svc.Reserve(ctx, tx, orderID, []domain.Line{{VariantID: a, Quantity: 2}, {VariantID: b, Quantity: 2}})
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInsufficientStock))
	var stockErr *domain.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, b, stockErr.VariantID)

	level, err := f.svc.GetLevel(ctx, a.String())
	require.NoError(t, err)
	assert.Equal(t, 5, level.Available)
	assert.Equal(t, 0, level.Reserved)
}

func TestReleaseAndRestock(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	a := f.seed(t, 4)
	lines := []domain.Line{{VariantID: a, Quantity: 3}}

	cancelled := f.node.Generate()
	require.NoError(t, f.db.Transaction(func(tx *gorm.DB) error {
		if err := f.svc.Reserve(ctx, tx, cancelled, lines); err != nil {
			return err
		}
		return f.svc.Release(ctx, tx, cancelled, lines)
	}))
	level, err := f.svc.GetLevel(ctx, a.String())
	require.NoError(t, err)
	assert.Equal(t, 4, level.Available)
	assert.Equal(t, 0, level.Reserved)

	returned := f.node.Generate()
	require.NoError(t, f.db.Transaction(func(tx *gorm.DB) error {
		if err := f.svc.Reserve(ctx, tx, returned, lines); err != nil {
			return err
		}
		if err := f.svc.Commit(ctx, tx, returned, lines); err != nil {
			return err
		}
		return f.svc.Restock(ctx, tx, returned, lines)
	}))
	level, err = f.svc.GetLevel(ctx, a.String())
	require.NoError(t, err)
	assert.Equal(t, 4, level.Available)
	f.assertBalanced(t, a)

	err = f.db.Transaction(func(tx *gorm.DB) error {
		return f.svc.Release(ctx, tx, returned, lines)
	})
	assert.ErrorIs(t, err, domain.ErrReservationMissing)
}

func TestAdjustStockAuditsAndLinksLedger(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	a := f.seed(t, 10)

	level, err := f.svc.AdjustStock(ctx, domain.AdjustRequest{VariantID: a.String(), Delta: -2, Reason: domain.ReasonDamage, Note: "crushed box"})
	require.NoError(t, err)
	assert.Equal(t, 8, level.Available)
	f.assertBalanced(t, a)

	var logs []auditdomain.AuditLog
	require.NoError(t, f.db.Where("entity_type = ? AND entity_id = ?", auditdomain.EntityInventory, a.String()).Find(&logs).Error)
	require.Len(t, logs, 1)

	page, err := f.svc.ListLedger(ctx, domain.ListLedgerRequest{VariantID: a.String(), Reason: string(domain.ReasonDamage)})
	require.NoError(t, err)
	require.Len(t, page.Entries, 1)
	require.NotNil(t, page.Entries[0].AuditLogID)
	assert.Equal(t, logs[0].ID.String(), *page.Entries[0].AuditLogID)
	assert.Equal(t, -2, page.Entries[0].ChangeAmount)
}

func TestAdjustStockRejections(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	a := f.seed(t, 1)

	_, err := f.svc.AdjustStock(ctx, domain.AdjustRequest{VariantID: a.String(), Delta: -2, Reason: domain.ReasonManualAdjustment})
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)

	_, err = f.svc.AdjustStock(ctx, domain.AdjustRequest{VariantID: a.String(), Delta: 1, Reason: domain.ReasonSale})
	assert.ErrorIs(t, err, domain.ErrInvalidReason)

	_, err = f.svc.AdjustStock(ctx, domain.AdjustRequest{VariantID: a.String(), Delta: 0, Reason: domain.ReasonRestock})
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)

	_, err = f.svc.AdjustStock(ctx, domain.AdjustRequest{VariantID: f.node.Generate().String(), Delta: 1, Reason: domain.ReasonRestock})
	assert.ErrorIs(t, err, domain.ErrLevelNotFound)

	_, err = f.svc.GetLevel(ctx, "nope")
	assert.ErrorIs(t, err, domain.ErrInvalidID)
}

func TestListLedgerPaginates(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	a := f.seed(t, 1)
	for i := 0; i < 4; i++ {
		_, err := f.svc.AdjustStock(ctx, domain.AdjustRequest{VariantID: a.String(), Delta: 1, Reason: domain.ReasonRestock})
		require.NoError(t, err)
	}

	first, err := f.svc.ListLedger(ctx, domain.ListLedgerRequest{VariantID: a.String(), Pagination: pagination.Pagination{PageSize: 3}})
	require.NoError(t, err)
	require.Len(t, first.Entries, 3)
	assert.True(t, first.HasMore)

	second, err := f.svc.ListLedger(ctx, domain.ListLedgerRequest{VariantID: a.String(), Pagination: pagination.Pagination{PageSize: 3, PageToken: first.NextPageToken}})
	require.NoError(t, err)
	require.Len(t, second.Entries, 2)
	assert.False(t, second.HasMore)
}
