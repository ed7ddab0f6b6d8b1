package authorization

import (
	"context"
	_ "embed"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

const (
	RoleAdmin = "admin"
	RoleStaff = "staff"
)

const (
	ObjectCoupon      = "coupon"
	ObjectProduct     = "product"
	ObjectOrder       = "order"
	ObjectFulfillment = "fulfillment"
	ObjectInventory   = "inventory"
	ObjectAuditLog    = "audit_log"
	ObjectInvoice     = "invoice"
)

const (
	ActionCouponView   = "coupon.view"
	ActionCouponCreate = "coupon.create"
	ActionCouponUpdate = "coupon.update"

	ActionProductView   = "product.view"
	ActionProductCreate = "product.create"

	ActionOrderView           = "order.view"
	ActionOrderUpdateStatus   = "order.update_status"
	ActionOrderUpdateShipment = "order.update_shipment"
	// ActionOrderReopen moves an order out of a terminal status.
	ActionOrderReopen = "order.reopen"

	ActionFulfillmentView   = "fulfillment.view"
	ActionFulfillmentUpsert = "fulfillment.upsert"

	ActionInventoryView   = "inventory.view"
	ActionInventoryAdjust = "inventory.adjust"

	ActionAuditLogView = "audit_log.view"

	ActionInvoiceView = "invoice.view"
)

type Params struct {
	fx.In

	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
}

type ServiceImpl struct {
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
}

func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	enforcer.EnableAutoBuildRoleLinks(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	if err := enforcer.BuildRoleLinks(); err != nil {
		return nil, err
	}
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
	}
}

func (s *ServiceImpl) Authorize(ctx context.Context, actorID, role, object, action string) error {
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return ErrInvalidActor
	}
	role = strings.ToLower(strings.TrimSpace(role))
	if role == "" {
		return ErrInvalidRole
	}
	object = strings.TrimSpace(object)
	if object == "" {
		return ErrInvalidObject
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return ErrInvalidAction
	}

	allowed, err := s.enforcer.Enforce(roleSubject(role), object, action)
	if err != nil {
		return err
	}
	if !allowed {
		s.log.Warn("authorization denied",
			zap.String("actor_id", actorID),
			zap.String("role", role),
			zap.String("object", object),
			zap.String("action", action),
		)
		return ErrForbidden
	}
	return nil
}

func roleSubject(role string) string {
	return "role:" + role
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	policies := [][]string{
		// Staff run day to day fulfillment.
		{roleSubject(RoleStaff), ObjectCoupon, ActionCouponView},
		{roleSubject(RoleStaff), ObjectProduct, ActionProductView},
		{roleSubject(RoleStaff), ObjectOrder, ActionOrderView},
		{roleSubject(RoleStaff), ObjectOrder, ActionOrderUpdateStatus},
		{roleSubject(RoleStaff), ObjectOrder, ActionOrderUpdateShipment},
		{roleSubject(RoleStaff), ObjectFulfillment, ActionFulfillmentView},
		{roleSubject(RoleStaff), ObjectFulfillment, ActionFulfillmentUpsert},
		{roleSubject(RoleStaff), ObjectInventory, ActionInventoryView},
		{roleSubject(RoleStaff), ObjectInvoice, ActionInvoiceView},

		{roleSubject(RoleAdmin), ObjectCoupon, ActionCouponCreate},
		{roleSubject(RoleAdmin), ObjectCoupon, ActionCouponUpdate},
		{roleSubject(RoleAdmin), ObjectProduct, ActionProductCreate},
		{roleSubject(RoleAdmin), ObjectOrder, ActionOrderReopen},
		{roleSubject(RoleAdmin), ObjectInventory, ActionInventoryAdjust},
		{roleSubject(RoleAdmin), ObjectAuditLog, ActionAuditLogView},
	}

	for _, policy := range policies {
		if _, err := enforcer.AddPolicy(policy); err != nil {
			return err
		}
	}
	if _, err := enforcer.AddGroupingPolicy(roleSubject(RoleAdmin), roleSubject(RoleStaff)); err != nil {
		return err
	}
	return nil
}
