package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/storefront/pkg/db/pagination"
	"gorm.io/gorm"
)

type Service interface {
	// InitLevel creates the stock counter for a new variant inside tx.
	InitLevel(ctx context.Context, tx *gorm.DB, variantID snowflake.ID, initial int) error
	GetLevel(ctx context.Context, variantID string) (*LevelResponse, error)
	AdjustStock(ctx context.Context, req AdjustRequest) (*LevelResponse, error)
	ListLedger(ctx context.Context, req ListLedgerRequest) (*ListLedgerResponse, error)
	Reconcile(ctx context.Context, variantID string) (*ReconcileResponse, error)

	// Reserve moves stock from available to reserved for a new order.
	Reserve(ctx context.Context, tx *gorm.DB, orderID snowflake.ID, lines []Line) error
	// Commit drops the reservation once the goods leave the warehouse.
	Commit(ctx context.Context, tx *gorm.DB, orderID snowflake.ID, lines []Line) error
	// Release returns reserved stock to available when an order is abandoned.
	Release(ctx context.Context, tx *gorm.DB, orderID snowflake.ID, lines []Line) error
	// Restock returns shipped goods to available stock.
	Restock(ctx context.Context, tx *gorm.DB, orderID snowflake.ID, lines []Line) error
}

type Repository interface {
	InsertLevel(ctx context.Context, db *gorm.DB, level *InventoryLevel) error
	FindLevel(ctx context.Context, db *gorm.DB, variantID snowflake.ID) (*InventoryLevel, error)
	Reserve(ctx context.Context, db *gorm.DB, variantID snowflake.ID, qty int, now time.Time) (int64, error)
	Commit(ctx context.Context, db *gorm.DB, variantID snowflake.ID, qty int, now time.Time) (int64, error)
	Release(ctx context.Context, db *gorm.DB, variantID snowflake.ID, qty int, now time.Time) (int64, error)
	AddAvailable(ctx context.Context, db *gorm.DB, variantID snowflake.ID, delta int, now time.Time) (int64, error)
	InsertLedger(ctx context.Context, db *gorm.DB, entry *StockLedger) error
	ListLedger(ctx context.Context, db *gorm.DB, filter LedgerFilter) ([]*StockLedger, error)
	SumLedger(ctx context.Context, db *gorm.DB, variantID snowflake.ID) (int64, error)
}

type AdjustRequest struct {
	VariantID string `json:"-"`
	Delta     int    `json:"delta"`
	Reason    Reason `json:"reason"`
	Note      string `json:"note"`
}

type ListLedgerRequest struct {
	pagination.Pagination
	VariantID string
	Reason    string
}

type LedgerFilter struct {
	VariantID snowflake.ID
	Reason    string
	Page      pagination.Pagination
}

type LevelResponse struct {
	VariantID string    `json:"variant_id"`
	Available int       `json:"available"`
	Reserved  int       `json:"reserved"`
	UpdatedAt time.Time `json:"updated_at"`
}

type LedgerEntryResponse struct {
	ID           string    `json:"id"`
	VariantID    string    `json:"variant_id"`
	ChangeAmount int       `json:"change_amount"`
	Reason       Reason    `json:"reason"`
	OrderID      *string   `json:"order_id,omitempty"`
	AuditLogID   *string   `json:"audit_log_id,omitempty"`
	Note         *string   `json:"note,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

type ListLedgerResponse struct {
	pagination.PageInfo
	Entries []LedgerEntryResponse `json:"entries"`
}

type ReconcileResponse struct {
	VariantID string `json:"variant_id"`
	Available int    `json:"available"`
	Reserved  int    `json:"reserved"`
	LedgerSum int64  `json:"ledger_sum"`
	Balanced  bool   `json:"balanced"`
}
