package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Address struct {
	ID         snowflake.ID `gorm:"primaryKey"`
	UserID     string       `gorm:"column:user_id;type:text;not null;index"`
	FullName   string       `gorm:"type:text;not null"`
	Line1      string       `gorm:"column:line1;type:text;not null"`
	Line2      *string      `gorm:"column:line2;type:text"`
	City       string       `gorm:"type:text;not null"`
	Region     *string      `gorm:"type:text"`
	PostalCode string       `gorm:"type:text;not null"`
	Country    string       `gorm:"type:char(2);not null"`
	Phone      *string      `gorm:"type:text"`
	CreatedAt  time.Time    `gorm:"not null"`
}

func (Address) TableName() string { return "addresses" }

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Response, error)
	Get(ctx context.Context, id string) (*Response, error)
	List(ctx context.Context, userID string) ([]Response, error)
	// Lookup loads an address for use inside another transaction.
	Lookup(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*Address, error)
}

type CreateRequest struct {
	UserID     string  `json:"user_id"`
	FullName   string  `json:"full_name"`
	Line1      string  `json:"line1"`
	Line2      *string `json:"line2"`
	City       string  `json:"city"`
	Region     *string `json:"region"`
	PostalCode string  `json:"postal_code"`
	Country    string  `json:"country"`
	Phone      *string `json:"phone"`
}

type Response struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	FullName   string    `json:"full_name"`
	Line1      string    `json:"line1"`
	Line2      *string   `json:"line2,omitempty"`
	City       string    `json:"city"`
	Region     *string   `json:"region,omitempty"`
	PostalCode string    `json:"postal_code"`
	Country    string    `json:"country"`
	Phone      *string   `json:"phone,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

var (
	ErrNotFound          = errors.New("address_not_found")
	ErrInvalidID         = errors.New("invalid_id")
	ErrInvalidUser       = errors.New("invalid_user_id")
	ErrInvalidFullName   = errors.New("invalid_full_name")
	ErrInvalidLine1      = errors.New("invalid_line1")
	ErrInvalidCity       = errors.New("invalid_city")
	ErrInvalidPostalCode = errors.New("invalid_postal_code")
	ErrInvalidCountry    = errors.New("invalid_country")
)
