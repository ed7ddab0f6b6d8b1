package service

import (
	"context"
	"strings"

	auditdomain "github.com/smallbiznis/storefront/internal/audit/domain"
	"github.com/smallbiznis/storefront/internal/order/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func (s *Service) UpdateOrderStatus(ctx context.Context, req domain.UpdateStatusRequest) (*domain.OrderResponse, error) {
	status, ok := domain.ParseStatus(req.Status)
	if !ok {
		return nil, domain.ErrInvalidStatus
	}
	orderID, err := parseID(req.OrderID)
	if err != nil {
		return nil, err
	}

	var (
		order   *domain.Order
		items   []domain.OrderItem
		from    domain.Status
		changed bool
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err = s.repo.FindByID(ctx, tx, orderID, true)
		if err != nil {
			return err
		}
		if order == nil {
			return domain.ErrOrderNotFound
		}
		from = order.Status
		if from == status {
			return nil
		}
		if from.Terminal() {
			return domain.ErrOrderTerminal
		}
		if !domain.CanTransition(from, status) {
			return &domain.InvalidTransitionError{From: from, To: status}
		}

		items, err = s.transition(ctx, tx, order, status, nil)
		changed = err == nil
		return err
	})
	if err != nil {
		return nil, err
	}

	if changed {
		s.metrics.RecordOrderTransition(ctx, string(from), string(status))
		s.log.Info("order status changed",
			zap.String("order_id", order.ID.String()),
			zap.String("from_status", string(from)),
			zap.String("to_status", string(status)),
		)
	}
	if items == nil {
		if items, err = s.repo.FindItems(ctx, s.db, order.ID); err != nil {
			return nil, err
		}
	}
	resp := toOrderResponse(order, items)
	return &resp, nil
}

func (s *Service) ReopenOrder(ctx context.Context, req domain.ReopenRequest) (*domain.OrderResponse, error) {
	status, ok := domain.ParseStatus(req.Status)
	if !ok {
		return nil, domain.ErrInvalidStatus
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return nil, domain.ErrReopenReasonRequired
	}
	orderID, err := parseID(req.OrderID)
	if err != nil {
		return nil, err
	}

	var (
		order *domain.Order
		items []domain.OrderItem
		from  domain.Status
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err = s.repo.FindByID(ctx, tx, orderID, true)
		if err != nil {
			return err
		}
		if order == nil {
			return domain.ErrOrderNotFound
		}
		from = order.Status
		if !from.Terminal() {
			return domain.ErrOrderNotTerminal
		}
		if status.Terminal() {
			return &domain.InvalidTransitionError{From: from, To: status}
		}

		items, err = s.repo.FindItems(ctx, tx, order.ID)
		if err != nil {
			return err
		}

		// Stock that went back on the shelf has to be taken again.
		lines := inventoryLines(items)
		if order.InventoryState == domain.InventoryReleased || order.InventoryState == domain.InventoryReturned {
			if err := s.inventorySvc.Reserve(ctx, tx, order.ID, lines); err != nil {
				return err
			}
			order.InventoryState = domain.InventoryReserved
		}

		_, err = s.transition(ctx, tx, order, status, map[string]any{
			"reopen": true,
			"reason": reason,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordOrderTransition(ctx, string(from), string(status))
	s.log.Info("order reopened",
		zap.String("order_id", order.ID.String()),
		zap.String("from_status", string(from)),
		zap.String("to_status", string(status)),
	)
	resp := toOrderResponse(order, items)
	return &resp, nil
}

// transition writes the new status, moves stock as the status requires and
// records the audit row, all inside tx. order is updated in place.
func (s *Service) transition(ctx context.Context, tx *gorm.DB, order *domain.Order, to domain.Status, metadata map[string]any) ([]domain.OrderItem, error) {
	from := order.Status
	items, err := s.repo.FindItems(ctx, tx, order.ID)
	if err != nil {
		return nil, err
	}

	if next, moved := domain.NextInventoryState(order.InventoryState, to); moved {
		lines := inventoryLines(items)
		switch next {
		case domain.InventoryCommitted:
			err = s.inventorySvc.Commit(ctx, tx, order.ID, lines)
		case domain.InventoryReleased:
			err = s.inventorySvc.Release(ctx, tx, order.ID, lines)
		case domain.InventoryReturned:
			err = s.inventorySvc.Restock(ctx, tx, order.ID, lines)
		}
		if err != nil {
			return nil, err
		}
		order.InventoryState = next
	}

	order.Status = to
	order.UpdatedAt = s.clock.Now()
	if err := s.repo.UpdateStatus(ctx, tx, order); err != nil {
		return nil, err
	}

	if _, err := s.auditSvc.Record(ctx, tx, auditdomain.Entry{
		EntityType: auditdomain.EntityOrders,
		EntityID:   order.ID.String(),
		Action:     auditdomain.ActionUpdate,
		OldValue:   map[string]any{"status": string(from)},
		NewValue:   map[string]any{"status": string(to)},
		Metadata:   metadata,
	}); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Service) UpdateShipment(ctx context.Context, req domain.UpdateShipmentRequest) (*domain.OrderResponse, error) {
	orderID, err := parseID(req.OrderID)
	if err != nil {
		return nil, err
	}
	if req.Courier == nil && req.TrackingCode == nil && req.ExternalShipmentID == nil && req.ExternalOrderID == nil {
		return nil, domain.ErrInvalidShipment
	}

	var order *domain.Order
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err = s.repo.FindByID(ctx, tx, orderID, true)
		if err != nil {
			return err
		}
		if order == nil {
			return domain.ErrOrderNotFound
		}
		before := shipmentSnapshot(order)

		if req.Courier != nil {
			order.Courier = trimmedPtr(req.Courier)
		}
		if req.TrackingCode != nil {
			order.TrackingCode = trimmedPtr(req.TrackingCode)
		}
		if req.ExternalShipmentID != nil {
			order.ExternalShipmentID = trimmedPtr(req.ExternalShipmentID)
		}
		if req.ExternalOrderID != nil {
			order.ExternalOrderID = trimmedPtr(req.ExternalOrderID)
		}
		order.UpdatedAt = s.clock.Now()

		if err := s.repo.UpdateShipment(ctx, tx, order); err != nil {
			return err
		}
		_, err := s.auditSvc.Record(ctx, tx, auditdomain.Entry{
			EntityType: auditdomain.EntityOrders,
			EntityID:   order.ID.String(),
			Action:     auditdomain.ActionUpdate,
			OldValue:   before,
			NewValue:   shipmentSnapshot(order),
			Metadata:   map[string]any{"field": "shipment"},
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	resp := toOrderResponse(order, nil)
	return &resp, nil
}
