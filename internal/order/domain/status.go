package domain

import "strings"

type Status string

const (
	StatusPending          Status = "pending"
	StatusProcessing       Status = "processing"
	StatusPaid             Status = "paid"
	StatusPartiallyShipped Status = "partially_shipped"
	StatusShipped          Status = "shipped"
	StatusDelivered        Status = "delivered"
	StatusCancelled        Status = "cancelled"
	StatusReturned         Status = "returned"
	StatusRefunded         Status = "refunded"
	StatusFailed           Status = "failed"
)

var transitions = map[Status][]Status{
	StatusPending:          {StatusProcessing, StatusPaid, StatusCancelled, StatusFailed},
	StatusProcessing:       {StatusPaid, StatusPartiallyShipped, StatusShipped, StatusCancelled, StatusFailed},
	StatusPaid:             {StatusProcessing, StatusPartiallyShipped, StatusShipped, StatusCancelled, StatusRefunded},
	StatusPartiallyShipped: {StatusShipped, StatusDelivered, StatusReturned, StatusRefunded},
	StatusShipped:          {StatusDelivered, StatusReturned},
	StatusDelivered:        nil,
	StatusCancelled:        nil,
	StatusReturned:         nil,
	StatusRefunded:         nil,
	StatusFailed:           nil,
}

func ParseStatus(raw string) (Status, bool) {
	status := Status(strings.ToLower(strings.TrimSpace(raw)))
	return status, status.Valid()
}

func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

func (s Status) Terminal() bool {
	return s.Valid() && len(transitions[s]) == 0
}

// AllowedTransitions lists the statuses reachable from s in one step.
func (s Status) AllowedTransitions() []Status {
	out := make([]Status, len(transitions[s]))
	copy(out, transitions[s])
	return out
}

func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// InventoryState tracks what happened to the stock an order took.
type InventoryState string

const (
	InventoryReserved  InventoryState = "reserved"
	InventoryCommitted InventoryState = "committed"
	InventoryReleased  InventoryState = "released"
	InventoryReturned  InventoryState = "returned"
)

// NextInventoryState returns the stock movement required when an order in
// state current enters status to. ok is false when nothing moves.
func NextInventoryState(current InventoryState, to Status) (InventoryState, bool) {
	switch current {
	case InventoryReserved:
		switch to {
		case StatusPartiallyShipped, StatusShipped, StatusDelivered:
			return InventoryCommitted, true
		case StatusCancelled, StatusFailed, StatusRefunded:
			return InventoryReleased, true
		}
	case InventoryCommitted:
		if to == StatusReturned {
			return InventoryReturned, true
		}
	}
	return current, false
}

var fulfillmentStatuses = map[string]struct{}{
	"pending":          {},
	"processing":       {},
	"shipped":          {},
	"in_transit":       {},
	"out_for_delivery": {},
	"delivered":        {},
	"returned":         {},
	"cancelled":        {},
	"failed":           {},
}

const DefaultFulfillmentStatus = "pending"

// NormalizeFulfillmentStatus lowercases raw and checks it against the known
// fulfillment statuses. Empty input means pending.
func NormalizeFulfillmentStatus(raw string) (string, bool) {
	status := strings.ToLower(strings.TrimSpace(raw))
	if status == "" {
		return DefaultFulfillmentStatus, true
	}
	_, ok := fulfillmentStatuses[status]
	return status, ok
}
