package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/storefront/internal/address/domain"
	auditdomain "github.com/smallbiznis/storefront/internal/audit/domain"
	auditrepo "github.com/smallbiznis/storefront/internal/audit/repository"
	auditservice "github.com/smallbiznis/storefront/internal/audit/service"
	"github.com/smallbiznis/storefront/internal/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setup(t *testing.T) (*gorm.DB, *clock.FakeClock, domain.Service) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.Address{}, &auditdomain.AuditLog{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	fc := clock.NewFakeClock(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	audit := auditservice.NewService(auditservice.Params{DB: db, Log: zap.NewNop(), GenID: node, Repo: auditrepo.Provide()})

	return db, fc, NewService(Params{DB: db, Log: zap.NewNop(), GenID: node, Clock: fc, AuditSvc: audit})
}

func strPtr(v string) *string { return &v }

func TestCreateAndListAddresses(t *testing.T) {
	db, fc, svc := setup(t)
	ctx := context.Background()

	first, err := svc.Create(ctx, domain.CreateRequest{
		UserID: "user-1", FullName: "Sari Dewi", Line1: "Jl. Merdeka 10", City: "Bandung",
		PostalCode: "40115", Country: "id", Phone: strPtr("+628123456789"), Line2: strPtr("  "),
	})
	require.NoError(t, err)
	assert.Equal(t, "ID", first.Country)
	assert.Nil(t, first.Line2)

	fc.Advance(time.Minute)
	_, err = svc.Create(ctx, domain.CreateRequest{
		UserID: "user-1", FullName: "Sari Dewi", Line1: "Jl. Asia Afrika 1", City: "Bandung",
		PostalCode: "40111", Country: "ID",
	})
	require.NoError(t, err)

	items, err := svc.List(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "Jl. Asia Afrika 1", items[0].Line1)

	var log auditdomain.AuditLog
	require.NoError(t, db.Where("entity_id = ?", first.ID).First(&log).Error)
	assert.NotEqual(t, "+628123456789", log.NewValue["phone"])
}

func TestCreateAddressValidation(t *testing.T) {
	_, _, svc := setup(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, domain.CreateRequest{FullName: "A", Line1: "B", City: "C", PostalCode: "1", Country: "ID"})
	assert.ErrorIs(t, err, domain.ErrInvalidUser)

	_, err = svc.Create(ctx, domain.CreateRequest{UserID: "u", FullName: "A", Line1: "B", City: "C", PostalCode: "1", Country: "IDN"})
	assert.ErrorIs(t, err, domain.ErrInvalidCountry)

	_, err = svc.Get(ctx, "12345")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.List(ctx, " ")
	assert.ErrorIs(t, err, domain.ErrInvalidUser)
}
