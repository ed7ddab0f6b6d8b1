package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type Product struct {
	ID          snowflake.ID `gorm:"primaryKey"`
	Name        string       `gorm:"type:text;not null"`
	Slug        string       `gorm:"type:text;not null;uniqueIndex"`
	Description *string      `gorm:"type:text"`
	CreatedAt   time.Time    `gorm:"not null"`
	UpdatedAt   time.Time    `gorm:"not null"`
}

func (Product) TableName() string { return "products" }

// ProductVariant is the sellable unit. Checkout always prices lines from here.
type ProductVariant struct {
	ID        snowflake.ID    `gorm:"primaryKey"`
	ProductID snowflake.ID    `gorm:"column:product_id;not null;index"`
	SKU       string          `gorm:"column:sku;type:text;not null;uniqueIndex"`
	Name      string          `gorm:"type:text;not null"`
	Price     decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	CreatedAt time.Time       `gorm:"not null"`
}

func (ProductVariant) TableName() string { return "product_variants" }
