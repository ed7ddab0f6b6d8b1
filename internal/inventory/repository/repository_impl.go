package repository

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/storefront/internal/inventory/domain"
	"github.com/smallbiznis/storefront/pkg/db/option"
	"gorm.io/gorm"
)

type repo struct{}

func NewRepository() domain.Repository {
	return &repo{}
}

func (r *repo) InsertLevel(ctx context.Context, db *gorm.DB, level *domain.InventoryLevel) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO inventory_levels (variant_id, available, reserved, updated_at)
		 VALUES (?, ?, ?, ?)`,
		level.VariantID,
		level.Available,
		level.Reserved,
		level.UpdatedAt,
	).Error
}

func (r *repo) FindLevel(ctx context.Context, db *gorm.DB, variantID snowflake.ID) (*domain.InventoryLevel, error) {
	var level domain.InventoryLevel
	err := db.WithContext(ctx).Raw(
		`SELECT variant_id, available, reserved, updated_at
		 FROM inventory_levels WHERE variant_id = ?`,
		variantID,
	).Scan(&level).Error
	if err != nil {
		return nil, err
	}
	if level.VariantID == 0 {
		return nil, nil
	}
	return &level, nil
}

// The counter updates below are compare-and-set: a zero rows-affected result
// means the guard failed and nothing changed.

func (r *repo) Reserve(ctx context.Context, db *gorm.DB, variantID snowflake.ID, qty int, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE inventory_levels
		 SET available = available - ?, reserved = reserved + ?, updated_at = ?
		 WHERE variant_id = ? AND available >= ?`,
		qty, qty, now, variantID, qty,
	)
	return res.RowsAffected, res.Error
}

func (r *repo) Commit(ctx context.Context, db *gorm.DB, variantID snowflake.ID, qty int, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE inventory_levels
		 SET reserved = reserved - ?, updated_at = ?
		 WHERE variant_id = ? AND reserved >= ?`,
		qty, now, variantID, qty,
	)
	return res.RowsAffected, res.Error
}

func (r *repo) Release(ctx context.Context, db *gorm.DB, variantID snowflake.ID, qty int, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE inventory_levels
		 SET reserved = reserved - ?, available = available + ?, updated_at = ?
		 WHERE variant_id = ? AND reserved >= ?`,
		qty, qty, now, variantID, qty,
	)
	return res.RowsAffected, res.Error
}

func (r *repo) AddAvailable(ctx context.Context, db *gorm.DB, variantID snowflake.ID, delta int, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE inventory_levels
		 SET available = available + ?, updated_at = ?
		 WHERE variant_id = ? AND available + ? >= 0`,
		delta, now, variantID, delta,
	)
	return res.RowsAffected, res.Error
}

func (r *repo) InsertLedger(ctx context.Context, db *gorm.DB, entry *domain.StockLedger) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO stock_ledger (id, variant_id, change_amount, reason, order_id, audit_log_id, note, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.VariantID,
		entry.ChangeAmount,
		entry.Reason,
		entry.OrderID,
		entry.AuditLogID,
		entry.Note,
		entry.CreatedAt,
	).Error
}

func (r *repo) ListLedger(ctx context.Context, db *gorm.DB, filter domain.LedgerFilter) ([]*domain.StockLedger, error) {
	var entries []*domain.StockLedger
	stmt := db.WithContext(ctx).Model(&domain.StockLedger{}).Where("variant_id = ?", filter.VariantID)
	if reason := strings.TrimSpace(filter.Reason); reason != "" {
		stmt = stmt.Where("reason = ?", reason)
	}
	stmt = option.ApplyPagination(filter.Page).Apply(stmt)
	if err := stmt.Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repo) SumLedger(ctx context.Context, db *gorm.DB, variantID snowflake.ID) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(change_amount), 0) FROM stock_ledger WHERE variant_id = ?`,
		variantID,
	).Scan(&total).Error
	return total, err
}
