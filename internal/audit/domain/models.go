package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

func (a Action) Valid() bool {
	switch a {
	case ActionCreate, ActionUpdate, ActionDelete:
		return true
	default:
		return false
	}
}

const (
	EntityOrders          = "orders"
	EntityFulfillments    = "fulfillments"
	EntityCoupons         = "coupons"
	EntityInventory       = "inventory_levels"
	EntityProducts        = "products"
	EntityProductVariants = "product_variants"
	EntityAddresses       = "addresses"
)

// AuditLog is an append-only record of an administrative mutation.
type AuditLog struct {
	ID         snowflake.ID      `gorm:"primaryKey" json:"id"`
	AdminID    *string           `gorm:"column:admin_id;type:text;index" json:"admin_id,omitempty"`
	EntityType string            `gorm:"column:entity_type;type:text;not null;index:idx_audit_logs_entity" json:"entity_type"`
	EntityID   string            `gorm:"column:entity_id;type:text;not null;index:idx_audit_logs_entity" json:"entity_id"`
	Action     Action            `gorm:"type:text;not null" json:"action"`
	OldValue   datatypes.JSONMap `gorm:"column:old_value" json:"old_value,omitempty"`
	NewValue   datatypes.JSONMap `gorm:"column:new_value" json:"new_value,omitempty"`
	Metadata   datatypes.JSONMap `gorm:"column:metadata" json:"metadata,omitempty"`
	IPAddress  *string           `gorm:"column:ip_address;type:text" json:"ip_address,omitempty"`
	UserAgent  *string           `gorm:"column:user_agent;type:text" json:"user_agent,omitempty"`
	CreatedAt  time.Time         `gorm:"not null;index" json:"created_at"`
}

func (AuditLog) TableName() string { return "audit_logs" }

type AuditCursor struct {
	ID        snowflake.ID
	CreatedAt time.Time
}

type ListFilter struct {
	EntityType string
	EntityID   string
	Action     string
	AdminID    string
	StartAt    *time.Time
	EndAt      *time.Time
	Cursor     *AuditCursor
	Limit      int
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, entry *AuditLog) error
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*AuditLog, error)
}
