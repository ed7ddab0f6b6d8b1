package repository

import (
	"context"

	"github.com/smallbiznis/storefront/pkg/db/option"
	"gorm.io/gorm"
)

// Repository is a generic GORM store for entities that need no custom
// queries, such as saved addresses. Struct filters match non-zero fields.
type Repository[T any] interface {
	WithTrx(tx *gorm.DB) Repository[T]
	Find(ctx context.Context, filter *T, opts ...option.QueryOption) ([]*T, error)
	// FindOne returns nil, nil when nothing matches.
	FindOne(ctx context.Context, filter *T, opts ...option.QueryOption) (*T, error)
	Create(ctx context.Context, resource *T) error
}
