package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Reason string

const (
	ReasonSale             Reason = "sale"
	ReasonReturn           Reason = "return"
	ReasonManualAdjustment Reason = "manual_adjustment"
	ReasonDamage           Reason = "damage"
	ReasonRestock          Reason = "restock"
)

func (r Reason) Valid() bool {
	switch r {
	case ReasonSale, ReasonReturn, ReasonManualAdjustment, ReasonDamage, ReasonRestock:
		return true
	default:
		return false
	}
}

// AdminAdjustable reports whether the reason may be used for manual adjustments.
// Sales are only written by order placement.
func (r Reason) AdminAdjustable() bool {
	return r.Valid() && r != ReasonSale
}

// InventoryLevel is the stock counter of one variant. Available always equals
// the sum of the variant's ledger entries.
type InventoryLevel struct {
	VariantID snowflake.ID `gorm:"column:variant_id;primaryKey;autoIncrement:false"`
	Available int          `gorm:"not null;default:0"`
	Reserved  int          `gorm:"not null;default:0"`
	UpdatedAt time.Time    `gorm:"not null"`
}

func (InventoryLevel) TableName() string { return "inventory_levels" }

// StockLedger is an append-only movement of available stock.
type StockLedger struct {
	ID           snowflake.ID  `gorm:"primaryKey"`
	VariantID    snowflake.ID  `gorm:"column:variant_id;not null;index"`
	ChangeAmount int           `gorm:"column:change_amount;not null"`
	Reason       Reason        `gorm:"type:text;not null"`
	OrderID      *snowflake.ID `gorm:"column:order_id;index"`
	AuditLogID   *snowflake.ID `gorm:"column:audit_log_id"`
	Note         *string       `gorm:"type:text"`
	CreatedAt    time.Time     `gorm:"not null"`
}

func (StockLedger) TableName() string { return "stock_ledger" }

// Line is a quantity of one variant moved by an order.
type Line struct {
	VariantID snowflake.ID
	Quantity  int
}
