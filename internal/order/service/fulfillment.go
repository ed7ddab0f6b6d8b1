package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/storefront/internal/audit/domain"
	"github.com/smallbiznis/storefront/internal/order/domain"
	"gorm.io/gorm"
)

func (s *Service) UpsertFulfillment(ctx context.Context, req domain.UpsertFulfillmentRequest) (*domain.FulfillmentResponse, error) {
	orderID, err := parseID(req.OrderID)
	if err != nil {
		return nil, err
	}
	status, ok := domain.NormalizeFulfillmentStatus(req.Status)
	if !ok {
		return nil, domain.ErrInvalidFulfillmentStatus
	}

	var fulfillmentID snowflake.ID
	if raw := strings.TrimSpace(req.ID); raw != "" {
		fulfillmentID, err = snowflake.ParseString(raw)
		if err != nil || fulfillmentID == 0 {
			return nil, domain.ErrFulfillmentNotFound
		}
	}

	var result *domain.Fulfillment
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := s.repo.FindByID(ctx, tx, orderID, false)
		if err != nil {
			return err
		}
		if order == nil {
			return domain.ErrOrderNotFound
		}

		now := s.clock.Now()
		if fulfillmentID == 0 {
			f := &domain.Fulfillment{
				ID:             s.genID.Generate(),
				OrderID:        orderID,
				TrackingNumber: trimmedPtr(req.TrackingNumber),
				Carrier:        trimmedPtr(req.Carrier),
				Status:         status,
				CreatedAt:      now,
				UpdatedAt:      now,
			}
			if err := s.repo.InsertFulfillment(ctx, tx, f); err != nil {
				return err
			}
			if _, err := s.auditSvc.Record(ctx, tx, auditdomain.Entry{
				EntityType: auditdomain.EntityFulfillments,
				EntityID:   f.ID.String(),
				Action:     auditdomain.ActionCreate,
				NewValue:   fulfillmentSnapshot(f),
			}); err != nil {
				return err
			}
			result = f
			return nil
		}

		f, err := s.repo.FindFulfillment(ctx, tx, fulfillmentID)
		if err != nil {
			return err
		}
		if f == nil || f.OrderID != orderID {
			return domain.ErrFulfillmentNotFound
		}
		before := fulfillmentSnapshot(f)

		if req.TrackingNumber != nil {
			f.TrackingNumber = trimmedPtr(req.TrackingNumber)
		}
		if req.Carrier != nil {
			f.Carrier = trimmedPtr(req.Carrier)
		}
		if strings.TrimSpace(req.Status) != "" {
			f.Status = status
		}
		f.UpdatedAt = now

		if err := s.repo.UpdateFulfillment(ctx, tx, f); err != nil {
			return err
		}
		if _, err := s.auditSvc.Record(ctx, tx, auditdomain.Entry{
			EntityType: auditdomain.EntityFulfillments,
			EntityID:   f.ID.String(),
			Action:     auditdomain.ActionUpdate,
			OldValue:   before,
			NewValue:   fulfillmentSnapshot(f),
		}); err != nil {
			return err
		}
		result = f
		return nil
	})
	if err != nil {
		return nil, err
	}

	resp := toFulfillmentResponse(result)
	return &resp, nil
}

func (s *Service) ListFulfillments(ctx context.Context, orderID string) ([]domain.FulfillmentResponse, error) {
	id, err := parseID(orderID)
	if err != nil {
		return nil, err
	}
	order, err := s.repo.FindByID(ctx, s.db, id, false)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, domain.ErrOrderNotFound
	}

	items, err := s.repo.ListFulfillments(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	resp := make([]domain.FulfillmentResponse, 0, len(items))
	for i := range items {
		resp = append(resp, toFulfillmentResponse(&items[i]))
	}
	return resp, nil
}

func fulfillmentSnapshot(f *domain.Fulfillment) map[string]any {
	out := map[string]any{
		"order_id": f.OrderID.String(),
		"status":   f.Status,
	}
	if f.TrackingNumber != nil {
		out["tracking_number"] = *f.TrackingNumber
	}
	if f.Carrier != nil {
		out["carrier"] = *f.Carrier
	}
	return out
}
