package authorization

import (
	"context"
	"fmt"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) Service {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)

	enforcer, err := NewEnforcer(db)
	require.NoError(t, err)
	return NewService(Params{Log: zap.NewNop(), Enforcer: enforcer})
}

func TestAuthorizeRoles(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	cases := []struct {
		role    string
		object  string
		action  string
		allowed bool
	}{
		{RoleStaff, ObjectOrder, ActionOrderView, true},
		{RoleStaff, ObjectOrder, ActionOrderUpdateStatus, true},
		{RoleStaff, ObjectFulfillment, ActionFulfillmentUpsert, true},
		{RoleStaff, ObjectOrder, ActionOrderReopen, false},
		{RoleStaff, ObjectCoupon, ActionCouponCreate, false},
		{RoleStaff, ObjectInventory, ActionInventoryAdjust, false},
		{RoleAdmin, ObjectOrder, ActionOrderReopen, true},
		{RoleAdmin, ObjectOrder, ActionOrderView, true},
		{"ADMIN", ObjectAuditLog, ActionAuditLogView, true},
		{"customer", ObjectOrder, ActionOrderView, false},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("%s %s", tc.role, tc.action), func(t *testing.T) {
			err := svc.Authorize(ctx, "42", tc.role, tc.object, tc.action)
			if tc.allowed {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrForbidden)
			}
		})
	}
}

func TestAuthorizeValidatesInput(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	assert.ErrorIs(t, svc.Authorize(ctx, " ", RoleAdmin, ObjectOrder, ActionOrderView), ErrInvalidActor)
	assert.ErrorIs(t, svc.Authorize(ctx, "42", "", ObjectOrder, ActionOrderView), ErrInvalidRole)
	assert.ErrorIs(t, svc.Authorize(ctx, "42", RoleAdmin, "", ActionOrderView), ErrInvalidObject)
	assert.ErrorIs(t, svc.Authorize(ctx, "42", RoleAdmin, ObjectOrder, ""), ErrInvalidAction)
}

func TestEnforcerSeedIsRepeatable(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)

	_, err = NewEnforcer(db)
	require.NoError(t, err)
	enforcer, err := NewEnforcer(db)
	require.NoError(t, err)

	policies, err := enforcer.GetPolicy()
	require.NoError(t, err)
	assert.Len(t, policies, 15)
}
