package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrOrderNotFound            = errors.New("order_not_found")
	ErrFulfillmentNotFound      = errors.New("fulfillment_not_found")
	ErrInvalidID                = errors.New("invalid_id")
	ErrInvalidStatus            = errors.New("invalid_status")
	ErrInvalidFulfillmentStatus = errors.New("invalid_fulfillment_status")
	ErrInvalidTransition        = errors.New("invalid_transition")
	ErrOrderTerminal            = errors.New("order_terminal")
	ErrOrderNotTerminal         = errors.New("order_not_terminal")
	ErrReopenReasonRequired     = errors.New("reopen_reason_required")
	ErrPriceChanged             = errors.New("price_changed")
	ErrCheckoutInProgress       = errors.New("checkout_in_progress")
	ErrInvalidShipment          = errors.New("invalid_shipment")
	ErrInvalidPageToken         = errors.New("invalid_page_token")
)

type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot move order from %s to %s", e.From, e.To)
}

func (e *InvalidTransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

type PriceChangedError struct {
	Expected decimal.Decimal
	Actual   decimal.Decimal
}

func (e *PriceChangedError) Error() string {
	return fmt.Sprintf("order total changed: expected %s, now %s", e.Expected.StringFixed(2), e.Actual.StringFixed(2))
}

func (e *PriceChangedError) Is(target error) bool {
	return target == ErrPriceChanged
}
