package repository

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/storefront/internal/order/domain"
	"github.com/smallbiznis/storefront/pkg/db/option"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func NewRepository() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, order *domain.Order) error {
	return db.WithContext(ctx).Create(order).Error
}

func (r *repo) InsertItems(ctx context.Context, db *gorm.DB, items []domain.OrderItem) error {
	if len(items) == 0 {
		return nil
	}
	return db.WithContext(ctx).Create(&items).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID, forUpdate bool) (*domain.Order, error) {
	var order domain.Order
	stmt := db.WithContext(ctx).Where("id = ?", id)
	if forUpdate {
		stmt = stmt.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	if err := stmt.Limit(1).Find(&order).Error; err != nil {
		return nil, err
	}
	if order.ID == 0 {
		return nil, nil
	}
	return &order, nil
}

func (r *repo) FindByIdempotencyKey(ctx context.Context, db *gorm.DB, key string) (*domain.Order, error) {
	var order domain.Order
	err := db.WithContext(ctx).Where("idempotency_key = ?", key).Limit(1).Find(&order).Error
	if err != nil {
		return nil, err
	}
	if order.ID == 0 {
		return nil, nil
	}
	return &order, nil
}

func (r *repo) FindItems(ctx context.Context, db *gorm.DB, orderID snowflake.ID) ([]domain.OrderItem, error) {
	var items []domain.OrderItem
	err := db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("id asc").
		Find(&items).Error
	return items, err
}

func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, order *domain.Order) error {
	if order == nil {
		return gorm.ErrInvalidData
	}
	return db.WithContext(ctx).Exec(
		`UPDATE orders SET status = ?, inventory_state = ?, updated_at = ? WHERE id = ?`,
		order.Status,
		order.InventoryState,
		order.UpdatedAt,
		order.ID,
	).Error
}

func (r *repo) UpdateShipment(ctx context.Context, db *gorm.DB, order *domain.Order) error {
	if order == nil {
		return gorm.ErrInvalidData
	}
	return db.WithContext(ctx).Exec(
		`UPDATE orders
		 SET courier = ?, tracking_code = ?, external_shipment_id = ?, external_order_id = ?, updated_at = ?
		 WHERE id = ?`,
		order.Courier,
		order.TrackingCode,
		order.ExternalShipmentID,
		order.ExternalOrderID,
		order.UpdatedAt,
		order.ID,
	).Error
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]*domain.Order, error) {
	var orders []*domain.Order
	stmt := db.WithContext(ctx).Model(&domain.Order{})

	if status := strings.TrimSpace(filter.Status); status != "" {
		stmt = stmt.Where("status = ?", status)
	}
	if userID := strings.TrimSpace(filter.UserID); userID != "" {
		stmt = stmt.Where("user_id = ?", userID)
	}
	stmt = option.ApplyPagination(filter.Page).Apply(stmt)

	if err := stmt.Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

// CountSameDayUpTo counts orders created on the order's UTC day with an id
// not greater than the order's, which gives a stable per-day sequence.
func (r *repo) CountSameDayUpTo(ctx context.Context, db *gorm.DB, order *domain.Order) (int64, error) {
	created := order.CreatedAt.UTC()
	dayStart := time.Date(created.Year(), created.Month(), created.Day(), 0, 0, 0, 0, time.UTC)

	var count int64
	err := db.WithContext(ctx).Model(&domain.Order{}).
		Where("created_at >= ? AND created_at < ? AND id <= ?", dayStart, dayStart.Add(24*time.Hour), order.ID).
		Count(&count).Error
	return count, err
}

func (r *repo) InsertFulfillment(ctx context.Context, db *gorm.DB, f *domain.Fulfillment) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO fulfillments (id, order_id, tracking_number, carrier, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		f.ID,
		f.OrderID,
		f.TrackingNumber,
		f.Carrier,
		f.Status,
		f.CreatedAt,
		f.UpdatedAt,
	).Error
}

func (r *repo) UpdateFulfillment(ctx context.Context, db *gorm.DB, f *domain.Fulfillment) error {
	return db.WithContext(ctx).Exec(
		`UPDATE fulfillments SET tracking_number = ?, carrier = ?, status = ?, updated_at = ? WHERE id = ?`,
		f.TrackingNumber,
		f.Carrier,
		f.Status,
		f.UpdatedAt,
		f.ID,
	).Error
}

func (r *repo) FindFulfillment(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Fulfillment, error) {
	var f domain.Fulfillment
	if err := db.WithContext(ctx).Where("id = ?", id).Limit(1).Find(&f).Error; err != nil {
		return nil, err
	}
	if f.ID == 0 {
		return nil, nil
	}
	return &f, nil
}

func (r *repo) ListFulfillments(ctx context.Context, db *gorm.DB, orderID snowflake.ID) ([]domain.Fulfillment, error) {
	var items []domain.Fulfillment
	err := db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at desc").
		Order("id desc").
		Find(&items).Error
	return items, err
}
