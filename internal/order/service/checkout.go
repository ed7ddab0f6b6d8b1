package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"github.com/bwmarrin/snowflake"
	addressdomain "github.com/smallbiznis/storefront/internal/address/domain"
	auditdomain "github.com/smallbiznis/storefront/internal/audit/domain"
	coupondomain "github.com/smallbiznis/storefront/internal/coupon/domain"
	inventorydomain "github.com/smallbiznis/storefront/internal/inventory/domain"
	"github.com/smallbiznis/storefront/internal/observability/metrics"
	"github.com/smallbiznis/storefront/internal/order/domain"
	pricingdomain "github.com/smallbiznis/storefront/internal/pricing/domain"
	"github.com/smallbiznis/storefront/internal/ratelimit"
	"github.com/smallbiznis/storefront/pkg/db"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const checkoutRetryDelay = 25 * time.Millisecond

type placement struct {
	order    *domain.Order
	items    []domain.OrderItem
	replayed bool
}

func (s *Service) PlaceOrder(ctx context.Context, req domain.PlaceOrderRequest) (*domain.PlaceOrderResult, error) {
	started := time.Now()
	result, err := s.placeOrder(ctx, req)
	s.checkoutMetrics.ObservePlacement(placementResult(result, err), time.Since(started))
	if err != nil {
		return nil, err
	}

	if !result.replayed {
		s.metrics.RecordOrderPlaced(ctx, result.order.ShippingMethod, result.order.CouponID != nil)
		s.log.Info("order placed",
			zap.String("order_id", result.order.ID.String()),
			zap.String("total_amount", result.order.TotalAmount.StringFixed(2)),
			zap.Int("items", len(result.items)),
		)
	}

	resp := toOrderResponse(result.order, result.items)
	return &domain.PlaceOrderResult{Order: &resp, Replayed: result.replayed}, nil
}

func (s *Service) placeOrder(ctx context.Context, req domain.PlaceOrderRequest) (*placement, error) {
	key := strings.TrimSpace(req.IdempotencyKey)
	if key != "" {
		if existing, err := s.replay(ctx, s.db, key); err != nil || existing != nil {
			return existing, err
		}

		if s.guard.Enabled() {
			lockStarted := time.Now()
			release, err := s.guard.LockIdempotencyKey(ctx, key)
			s.checkoutMetrics.ObserveLockWait(time.Since(lockStarted))
			if err != nil {
				if errors.Is(err, ratelimit.ErrLockBusy) {
					return nil, domain.ErrCheckoutInProgress
				}
				return nil, err
			}
			defer func() {
				if err := release(context.WithoutCancel(ctx)); err != nil {
					s.log.Warn("failed to release checkout lock", zap.String("idempotency_key", key), zap.Error(err))
				}
			}()
		}
	}

	var result *placement
	err := retry.Do(
		func() error {
			var err error
			result, err = s.placeOnce(ctx, req, key)
			return err
		},
		retry.Context(ctx),
		retry.Attempts(s.maxAttempts),
		retry.RetryIf(db.IsRetryableTxErr),
		retry.DelayType(retry.BackOffDelay),
		retry.Delay(checkoutRetryDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			s.checkoutMetrics.IncRetry(err)
			s.log.Warn("retrying order placement", zap.Uint("attempt", n+1), zap.Error(err))
		}),
	)
	if err != nil && key != "" && db.IsDuplicateKeyErr(err) {
		// A concurrent request with the same key committed first.
		if existing, lookupErr := s.replay(ctx, s.db, key); lookupErr == nil && existing != nil {
			return existing, nil
		}
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Service) replay(ctx context.Context, tx *gorm.DB, key string) (*placement, error) {
	existing, err := s.repo.FindByIdempotencyKey(ctx, tx, key)
	if err != nil || existing == nil {
		return nil, err
	}
	items, err := s.repo.FindItems(ctx, tx, existing.ID)
	if err != nil {
		return nil, err
	}
	return &placement{order: existing, items: items, replayed: true}, nil
}

func (s *Service) placeOnce(ctx context.Context, req domain.PlaceOrderRequest, key string) (*placement, error) {
	var result *placement
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if key != "" {
			existing, err := s.replay(ctx, tx, key)
			if err != nil {
				return err
			}
			if existing != nil {
				result = existing
				return nil
			}
		}

		cart, err := s.pricingSvc.BuildCart(ctx, tx, req.Items, req.ShippingMethod)
		if err != nil {
			return err
		}

		userID := trimmedPtr(req.UserID)
		shippingAddressID, err := s.resolveAddress(ctx, tx, req.ShippingAddressID, userID)
		if err != nil {
			return err
		}
		billingAddressID, err := s.resolveAddress(ctx, tx, req.BillingAddressID, userID)
		if err != nil {
			return err
		}

		var coupon *coupondomain.Coupon
		var applied *coupondomain.AppliedCoupon
		if strings.TrimSpace(req.CouponCode) != "" {
			coupon, err = s.couponSvc.ValidateForRedemption(ctx, tx, req.CouponCode, cart.Subtotal())
			if err != nil {
				return err
			}
			a := coupon.Applied()
			applied = &a
		}

		breakdown, err := pricingdomain.ComputeOrderTotal(cart.Lines, cart.Shipping, cart.Tax, applied)
		if err != nil {
			return err
		}
		if req.ExpectedTotal != nil && req.ExpectedTotal.StringFixed(2) != breakdown.GrandTotal.StringFixed(2) {
			return &domain.PriceChangedError{Expected: *req.ExpectedTotal, Actual: breakdown.GrandTotal}
		}

		now := s.clock.Now()
		order := &domain.Order{
			ID:                s.genID.Generate(),
			UserID:            userID,
			Status:            domain.StatusPending,
			InventoryState:    domain.InventoryReserved,
			Currency:          cart.Currency,
			Subtotal:          breakdown.Subtotal,
			DiscountAmount:    breakdown.Discount,
			TaxAmount:         breakdown.TaxAmount,
			ShippingFee:       breakdown.ShippingFee,
			TotalAmount:       breakdown.GrandTotal,
			ShippingMethod:    cart.Shipping.Code,
			ShippingAddressID: shippingAddressID,
			BillingAddressID:  billingAddressID,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		if cart.Tax.Enabled {
			order.TaxRate = cart.Tax.Percentage
			if label := strings.TrimSpace(cart.Tax.Label); label != "" {
				order.TaxLabel = &label
			}
		}
		if coupon != nil {
			order.CouponID = &coupon.ID
			order.CouponCode = &coupon.Code
		}
		if key != "" {
			order.IdempotencyKey = &key
		}

		items := make([]domain.OrderItem, 0, len(cart.Lines))
		lines := make([]inventorydomain.Line, 0, len(cart.Lines))
		for _, line := range cart.Lines {
			items = append(items, domain.OrderItem{
				ID:        s.genID.Generate(),
				OrderID:   order.ID,
				VariantID: line.VariantID,
				SKU:       line.SKU,
				Name:      line.Name,
				UnitPrice: line.UnitPrice,
				Quantity:  line.Quantity,
				LineTotal: line.Total(),
				CreatedAt: now,
			})
			lines = append(lines, inventorydomain.Line{VariantID: line.VariantID, Quantity: line.Quantity})
		}

		if err := s.repo.Insert(ctx, tx, order); err != nil {
			return err
		}
		if err := s.repo.InsertItems(ctx, tx, items); err != nil {
			return err
		}
		if err := s.inventorySvc.Reserve(ctx, tx, order.ID, lines); err != nil {
			return err
		}
		if coupon != nil {
			if err := s.couponSvc.Redeem(ctx, tx, coupon.ID, userID, order.ID); err != nil {
				return err
			}
		}

		metadata := map[string]any{"source": "checkout"}
		if key != "" {
			metadata["idempotency_key"] = key
		}
		if _, err := s.auditSvc.Record(ctx, tx, auditdomain.Entry{
			EntityType: auditdomain.EntityOrders,
			EntityID:   order.ID.String(),
			Action:     auditdomain.ActionCreate,
			NewValue:   orderSnapshot(order),
			Metadata:   metadata,
		}); err != nil {
			return err
		}

		result = &placement{order: order, items: items}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// resolveAddress checks that the address exists and, for a known customer,
// belongs to them.
func (s *Service) resolveAddress(ctx context.Context, tx *gorm.DB, raw string, userID *string) (*snowflake.ID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	id, err := snowflake.ParseString(raw)
	if err != nil || id == 0 {
		return nil, addressdomain.ErrInvalidID
	}
	addr, err := s.addressSvc.Lookup(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if userID != nil && addr.UserID != *userID {
		return nil, addressdomain.ErrNotFound
	}
	return &addr.ID, nil
}

func placementResult(result *placement, err error) string {
	switch {
	case err == nil && result != nil && result.replayed:
		return metrics.CheckoutResultReplayed
	case err == nil:
		return metrics.CheckoutResultPlaced
	case errors.Is(err, domain.ErrCheckoutInProgress):
		return metrics.CheckoutResultLockBusy
	case errors.Is(err, domain.ErrPriceChanged),
		errors.Is(err, inventorydomain.ErrInsufficientStock),
		coupondomain.IsCouponRejection(err),
		pricingdomain.IsValidationError(err):
		return metrics.CheckoutResultRejected
	default:
		return metrics.CheckoutResultFailed
	}
}
