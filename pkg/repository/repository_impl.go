package repository

import (
	"context"
	"errors"

	"github.com/smallbiznis/storefront/pkg/db/option"
	"gorm.io/gorm"
)

// maxFindRows caps unpaginated Find calls.
const maxFindRows = 500

type store[T any] struct {
	db *gorm.DB
}

func ProvideStore[T any](db *gorm.DB) Repository[T] {
	return &store[T]{db: db}
}

func (r *store[T]) WithTrx(tx *gorm.DB) Repository[T] {
	if tx == nil {
		return r
	}
	return &store[T]{db: tx}
}

func (r *store[T]) Find(ctx context.Context, filter *T, opts ...option.QueryOption) ([]*T, error) {
	var result []*T
	if err := r.query(ctx, filter, opts...).Limit(maxFindRows).Find(&result).Error; err != nil {
		return nil, err
	}
	return result, nil
}

func (r *store[T]) FindOne(ctx context.Context, filter *T, opts ...option.QueryOption) (*T, error) {
	var result T
	err := r.query(ctx, filter, opts...).Take(&result).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *store[T]) Create(ctx context.Context, resource *T) error {
	return r.db.WithContext(ctx).Create(resource).Error
}

func (r *store[T]) query(ctx context.Context, filter *T, opts ...option.QueryOption) *gorm.DB {
	db := r.db.WithContext(ctx).Model(new(T))
	if filter != nil {
		db = db.Where(filter)
	}
	for _, opt := range opts {
		db = opt.Apply(db)
	}
	return db
}
