package repository

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/storefront/internal/coupon/domain"
	"github.com/smallbiznis/storefront/pkg/db/option"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func NewRepository() domain.Repository {
	return &repo{}
}

func (r *repo) Create(ctx context.Context, db *gorm.DB, coupon *domain.Coupon) error {
	return db.WithContext(ctx).Create(coupon).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, coupon *domain.Coupon) error {
	if coupon == nil {
		return gorm.ErrInvalidData
	}
	return db.WithContext(ctx).Exec(
		`UPDATE coupons
		 SET min_order_amount = ?, starts_at = ?, expires_at = ?, max_usage = ?, updated_at = ?
		 WHERE id = ?`,
		coupon.MinOrderAmount,
		coupon.StartsAt,
		coupon.ExpiresAt,
		coupon.MaxUsage,
		coupon.UpdatedAt,
		coupon.ID,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID, forUpdate bool) (*domain.Coupon, error) {
	var coupon domain.Coupon
	stmt := db.WithContext(ctx).Where("id = ?", id)
	if forUpdate {
		stmt = stmt.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	if err := stmt.Limit(1).Find(&coupon).Error; err != nil {
		return nil, err
	}
	if coupon.ID == 0 {
		return nil, nil
	}
	return &coupon, nil
}

func (r *repo) FindByCode(ctx context.Context, db *gorm.DB, code string, forUpdate bool) (*domain.Coupon, error) {
	var coupon domain.Coupon
	stmt := db.WithContext(ctx).Where("code = ?", code)
	if forUpdate {
		stmt = stmt.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	if err := stmt.Limit(1).Find(&coupon).Error; err != nil {
		return nil, err
	}
	if coupon.ID == 0 {
		return nil, nil
	}
	return &coupon, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]domain.Coupon, error) {
	var items []domain.Coupon
	stmt := db.WithContext(ctx).Model(&domain.Coupon{})

	if prefix := strings.TrimSpace(filter.CodePrefix); prefix != "" {
		stmt = stmt.Where("code LIKE ?", prefix+"%")
	}
	if filter.Active != nil {
		active := "starts_at <= ? AND (expires_at IS NULL OR expires_at >= ?) AND (max_usage IS NULL OR used_count < max_usage)"
		if *filter.Active {
			stmt = stmt.Where(active, filter.Now, filter.Now)
		} else {
			stmt = stmt.Not(active, filter.Now, filter.Now)
		}
	}

	stmt = option.WithSortBy(option.WithQuerySortBy(filter.SortBy, filter.OrderBy, map[string]bool{
		"created_at": true,
		"updated_at": true,
		"code":       true,
		"expires_at": true,
		"used_count": true,
	})).Apply(stmt)

	if err := stmt.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// IncrementUsage bumps used_count only while the cap allows it, so concurrent
// redemptions can never push the counter past max_usage.
func (r *repo) IncrementUsage(ctx context.Context, db *gorm.DB, id snowflake.ID, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE coupons
		 SET used_count = used_count + 1, updated_at = ?
		 WHERE id = ? AND (max_usage IS NULL OR used_count < max_usage)`,
		now,
		id,
	)
	return res.RowsAffected, res.Error
}

func (r *repo) InsertUsage(ctx context.Context, db *gorm.DB, usage *domain.CouponUsage) error {
	return db.WithContext(ctx).Create(usage).Error
}

func (r *repo) ListUsages(ctx context.Context, db *gorm.DB, couponID snowflake.ID) ([]domain.CouponUsage, error) {
	var items []domain.CouponUsage
	err := db.WithContext(ctx).
		Where("coupon_id = ?", couponID).
		Order("applied_at desc").
		Find(&items).Error
	return items, err
}
