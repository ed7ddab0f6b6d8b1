package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	auditdomain "github.com/smallbiznis/storefront/internal/audit/domain"
	"github.com/smallbiznis/storefront/internal/audit/repository"
	"github.com/smallbiznis/storefront/internal/auditcontext"
	"github.com/smallbiznis/storefront/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupAuditService(t *testing.T) (*gorm.DB, auditdomain.Service) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&auditdomain.AuditLog{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := NewService(Params{DB: db, Log: zap.NewNop(), GenID: node, Repo: repository.Provide()})
	return db, svc
}

func TestRecordUsesContextActorAndRequest(t *testing.T) {
	_, svc := setupAuditService(t)

	ctx := auditcontext.WithActor(context.Background(), "admin-7", "admin")
	ctx = auditcontext.WithRequestID(ctx, "req-1")
	ctx = auditcontext.WithIPAddress(ctx, "10.0.0.1")

	rec, err := svc.Record(ctx, nil, auditdomain.Entry{
		EntityType: auditdomain.EntityOrders,
		EntityID:   "42",
		Action:     auditdomain.ActionUpdate,
		OldValue:   map[string]any{"status": "pending"},
		NewValue:   map[string]any{"status": "paid"},
	})
	require.NoError(t, err)
	require.NotNil(t, rec.AdminID)
	assert.Equal(t, "admin-7", *rec.AdminID)

	resp, err := svc.List(context.Background(), auditdomain.ListAuditLogRequest{EntityID: "42"})
	require.NoError(t, err)
	require.Len(t, resp.AuditLogs, 1)

	got := resp.AuditLogs[0]
	assert.Equal(t, auditdomain.ActionUpdate, got.Action)
	assert.Equal(t, "pending", got.OldValue["status"])
	assert.Equal(t, "paid", got.NewValue["status"])
	assert.Equal(t, "req-1", got.Metadata["request_id"])
	require.NotNil(t, got.IPAddress)
	assert.Equal(t, "10.0.0.1", *got.IPAddress)
}

func TestRecordRejectsInvalidEntries(t *testing.T) {
	_, svc := setupAuditService(t)
	ctx := context.Background()

	_, err := svc.Record(ctx, nil, auditdomain.Entry{EntityType: "orders", EntityID: "1", Action: "archive"})
	assert.ErrorIs(t, err, auditdomain.ErrInvalidAction)

	_, err = svc.Record(ctx, nil, auditdomain.Entry{EntityID: "1", Action: auditdomain.ActionCreate})
	assert.ErrorIs(t, err, auditdomain.ErrInvalidEntityType)

	_, err = svc.Record(ctx, nil, auditdomain.Entry{EntityType: "orders", Action: auditdomain.ActionCreate})
	assert.ErrorIs(t, err, auditdomain.ErrInvalidEntityID)
}

func TestRecordRollsBackWithTransaction(t *testing.T) {
	db, svc := setupAuditService(t)
	ctx := context.Background()

	err := db.Transaction(func(tx *gorm.DB) error {
		if _, err := svc.Record(ctx, tx, auditdomain.Entry{
			EntityType: auditdomain.EntityCoupons,
			EntityID:   "9",
			Action:     auditdomain.ActionCreate,
		}); err != nil {
			return err
		}
		return fmt.Errorf("abort")
	})
	require.Error(t, err)

	var count int64
	require.NoError(t, db.Model(&auditdomain.AuditLog{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestListPaginates(t *testing.T) {
	_, svc := setupAuditService(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := svc.Record(ctx, nil, auditdomain.Entry{
			EntityType: auditdomain.EntityCoupons,
			EntityID:   fmt.Sprintf("%d", i),
			Action:     auditdomain.ActionCreate,
		})
		require.NoError(t, err)
	}

	first, err := svc.List(ctx, auditdomain.ListAuditLogRequest{Pagination: pagination.Pagination{PageSize: 3}})
	require.NoError(t, err)
	assert.Len(t, first.AuditLogs, 3)
	assert.True(t, first.HasMore)
	require.NotEmpty(t, first.NextPageToken)

	second, err := svc.List(ctx, auditdomain.ListAuditLogRequest{Pagination: pagination.Pagination{PageSize: 3, PageToken: first.NextPageToken}})
	require.NoError(t, err)
	assert.Len(t, second.AuditLogs, 2)
	assert.False(t, second.HasMore)

	seen := map[snowflake.ID]bool{}
	for _, l := range append(first.AuditLogs, second.AuditLogs...) {
		assert.False(t, seen[l.ID])
		seen[l.ID] = true
	}
}

func TestListRejectsBadToken(t *testing.T) {
	_, svc := setupAuditService(t)
	_, err := svc.List(context.Background(), auditdomain.ListAuditLogRequest{Pagination: pagination.Pagination{PageToken: "!!"}})
	assert.ErrorIs(t, err, auditdomain.ErrInvalidPageToken)
}
