package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Response, error)
	List(ctx context.Context, req ListRequest) ([]Response, error)
	Get(ctx context.Context, id string) (*Response, error)

	CreateVariant(ctx context.Context, req CreateVariantRequest) (*VariantResponse, error)
	GetVariant(ctx context.Context, id string) (*VariantResponse, error)
	// ResolveVariants loads every requested variant or fails with ErrVariantNotFound.
	ResolveVariants(ctx context.Context, db *gorm.DB, ids []snowflake.ID) (map[snowflake.ID]ProductVariant, error)
}

type Repository interface {
	Create(ctx context.Context, db *gorm.DB, product *Product) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Product, error)
	SlugExists(ctx context.Context, db *gorm.DB, slug string) (bool, error)
	List(ctx context.Context, db *gorm.DB, filter ListRequest) ([]Product, error)

	CreateVariant(ctx context.Context, db *gorm.DB, variant *ProductVariant) error
	FindVariantByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*ProductVariant, error)
	FindVariantsByIDs(ctx context.Context, db *gorm.DB, ids []snowflake.ID) ([]ProductVariant, error)
	ListVariants(ctx context.Context, db *gorm.DB, productID snowflake.ID) ([]ProductVariant, error)
}

type ListRequest struct {
	Name    string
	SortBy  string
	OrderBy string
}

type CreateRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
}

type CreateVariantRequest struct {
	ProductID    string          `json:"-"`
	SKU          string          `json:"sku"`
	Name         string          `json:"name"`
	Price        decimal.Decimal `json:"price"`
	InitialStock int             `json:"initial_stock"`
}

type Response struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Slug        string            `json:"slug"`
	Description *string           `json:"description,omitempty"`
	Variants    []VariantResponse `json:"variants,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

type VariantResponse struct {
	ID        string          `json:"id"`
	ProductID string          `json:"product_id"`
	SKU       string          `json:"sku"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	CreatedAt time.Time       `json:"created_at"`
}

var (
	ErrInvalidName     = errors.New("invalid_name")
	ErrInvalidSKU      = errors.New("invalid_sku")
	ErrInvalidPrice    = errors.New("invalid_price")
	ErrInvalidStock    = errors.New("invalid_initial_stock")
	ErrNotFound        = errors.New("not_found")
	ErrVariantNotFound = errors.New("variant_not_found")
	ErrSKUTaken        = errors.New("sku_taken")
	ErrSlugTaken       = errors.New("slug_taken")
	ErrInvalidID       = errors.New("invalid_id")
)
