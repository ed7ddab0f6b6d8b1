package domain

import "errors"

var (
	ErrInvalidQuantity      = errors.New("invalid_quantity")
	ErrInvalidUnitPrice     = errors.New("invalid_unit_price")
	ErrInvalidShippingFee   = errors.New("invalid_shipping_fee")
	ErrInvalidTaxPercentage = errors.New("invalid_tax_percentage")
	ErrEmptyCart            = errors.New("empty_cart")
	ErrInvalidItem          = errors.New("invalid_item")
	ErrUnknownShipping      = errors.New("unknown_shipping_method")
)

// IsValidationError reports whether err is a rejected pricing input.
func IsValidationError(err error) bool {
	for _, target := range []error{
		ErrInvalidQuantity,
		ErrInvalidUnitPrice,
		ErrInvalidShippingFee,
		ErrInvalidTaxPercentage,
		ErrEmptyCart,
		ErrInvalidItem,
		ErrUnknownShipping,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
