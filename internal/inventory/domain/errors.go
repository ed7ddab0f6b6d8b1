package domain

import (
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrInvalidID          = errors.New("invalid_id")
	ErrInvalidQuantity    = errors.New("invalid_quantity")
	ErrInvalidReason      = errors.New("invalid_reason")
	ErrLevelNotFound      = errors.New("inventory_level_not_found")
	ErrInsufficientStock  = errors.New("insufficient_stock")
	ErrReservationMissing = errors.New("reservation_missing")
	ErrLevelExists        = errors.New("inventory_level_exists")
)

type InsufficientStockError struct {
	VariantID snowflake.ID
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for variant %s (requested %d)", e.VariantID, e.Requested)
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}
