package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/storefront/internal/product/domain"
	"github.com/smallbiznis/storefront/pkg/db/option"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Create(ctx context.Context, db *gorm.DB, product *domain.Product) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO products (id, name, slug, description, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		product.ID,
		product.Name,
		product.Slug,
		product.Description,
		product.CreatedAt,
		product.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Product, error) {
	var p domain.Product
	err := db.WithContext(ctx).Raw(
		`SELECT id, name, slug, description, created_at, updated_at
		 FROM products WHERE id = ?`,
		id,
	).Scan(&p).Error
	if err != nil {
		return nil, err
	}
	if p.ID == 0 {
		return nil, nil
	}
	return &p, nil
}

func (r *repo) SlugExists(ctx context.Context, db *gorm.DB, slug string) (bool, error) {
	var count int64
	err := db.WithContext(ctx).Model(&domain.Product{}).Where("slug = ?", slug).Count(&count).Error
	return count > 0, err
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListRequest) ([]domain.Product, error) {
	var items []domain.Product
	stmt := db.WithContext(ctx).Model(&domain.Product{})

	if filter.Name != "" {
		stmt = stmt.Where("name = ?", filter.Name)
	}

	stmt = option.WithSortBy(option.WithQuerySortBy(filter.SortBy, filter.OrderBy, map[string]bool{
		"created_at": true,
		"updated_at": true,
		"name":       true,
	})).Apply(stmt)

	if err := stmt.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) CreateVariant(ctx context.Context, db *gorm.DB, variant *domain.ProductVariant) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO product_variants (id, product_id, sku, name, price, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		variant.ID,
		variant.ProductID,
		variant.SKU,
		variant.Name,
		variant.Price,
		variant.CreatedAt,
	).Error
}

func (r *repo) FindVariantByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.ProductVariant, error) {
	var v domain.ProductVariant
	err := db.WithContext(ctx).Where("id = ?", id).Limit(1).Find(&v).Error
	if err != nil {
		return nil, err
	}
	if v.ID == 0 {
		return nil, nil
	}
	return &v, nil
}

func (r *repo) FindVariantsByIDs(ctx context.Context, db *gorm.DB, ids []snowflake.ID) ([]domain.ProductVariant, error) {
	var items []domain.ProductVariant
	if len(ids) == 0 {
		return items, nil
	}
	err := db.WithContext(ctx).Where("id IN ?", ids).Find(&items).Error
	return items, err
}

func (r *repo) ListVariants(ctx context.Context, db *gorm.DB, productID snowflake.ID) ([]domain.ProductVariant, error) {
	var items []domain.ProductVariant
	err := db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("created_at asc").
		Order("id asc").
		Find(&items).Error
	return items, err
}
