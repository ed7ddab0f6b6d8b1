package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	addressdomain "github.com/smallbiznis/storefront/internal/address/domain"
	auditdomain "github.com/smallbiznis/storefront/internal/audit/domain"
	"github.com/smallbiznis/storefront/internal/clock"
	"github.com/smallbiznis/storefront/internal/config"
	coupondomain "github.com/smallbiznis/storefront/internal/coupon/domain"
	inventorydomain "github.com/smallbiznis/storefront/internal/inventory/domain"
	"github.com/smallbiznis/storefront/internal/observability/metrics"
	"github.com/smallbiznis/storefront/internal/order/domain"
	pricingdomain "github.com/smallbiznis/storefront/internal/pricing/domain"
	"github.com/smallbiznis/storefront/internal/ratelimit"
	"github.com/smallbiznis/storefront/pkg/db/option"
	"github.com/smallbiznis/storefront/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB              *gorm.DB
	Log             *zap.Logger
	GenID           *snowflake.Node
	Clock           clock.Clock
	Config          config.Config
	Repo            domain.Repository
	AuditSvc        auditdomain.Service
	PricingSvc      pricingdomain.Service
	CouponSvc       coupondomain.Service
	InventorySvc    inventorydomain.Service
	AddressSvc      addressdomain.Service
	Guard           *ratelimit.CheckoutGuard `optional:"true"`
	Metrics         *metrics.Metrics         `optional:"true"`
	CheckoutMetrics *metrics.CheckoutMetrics `optional:"true"`
}

type Service struct {
	db              *gorm.DB
	log             *zap.Logger
	genID           *snowflake.Node
	clock           clock.Clock
	repo            domain.Repository
	auditSvc        auditdomain.Service
	pricingSvc      pricingdomain.Service
	couponSvc       coupondomain.Service
	inventorySvc    inventorydomain.Service
	addressSvc      addressdomain.Service
	guard           *ratelimit.CheckoutGuard
	metrics         *metrics.Metrics
	checkoutMetrics *metrics.CheckoutMetrics
	maxAttempts     uint
}

func NewService(p Params) domain.Service {
	attempts := p.Config.CheckoutMaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	return &Service{
		db:              p.DB,
		log:             p.Log.Named("order.service"),
		genID:           p.GenID,
		clock:           p.Clock,
		repo:            p.Repo,
		auditSvc:        p.AuditSvc,
		pricingSvc:      p.PricingSvc,
		couponSvc:       p.CouponSvc,
		inventorySvc:    p.InventorySvc,
		addressSvc:      p.AddressSvc,
		guard:           p.Guard,
		metrics:         p.Metrics,
		checkoutMetrics: p.CheckoutMetrics,
		maxAttempts:     uint(attempts),
	}
}

func (s *Service) GetOrder(ctx context.Context, id string) (*domain.OrderResponse, error) {
	orderID, err := parseID(id)
	if err != nil {
		return nil, err
	}
	order, err := s.repo.FindByID(ctx, s.db, orderID, false)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, domain.ErrOrderNotFound
	}
	items, err := s.repo.FindItems(ctx, s.db, orderID)
	if err != nil {
		return nil, err
	}
	resp := toOrderResponse(order, items)
	return &resp, nil
}

func (s *Service) ListOrders(ctx context.Context, req domain.ListOrdersRequest) (*domain.ListOrdersResponse, error) {
	status := strings.TrimSpace(req.Status)
	if status != "" {
		parsed, ok := domain.ParseStatus(status)
		if !ok {
			return nil, domain.ErrInvalidStatus
		}
		status = string(parsed)
	}
	if token := strings.TrimSpace(req.PageToken); token != "" {
		if _, err := pagination.DecodeCursor(token); err != nil {
			return nil, domain.ErrInvalidPageToken
		}
	}

	items, err := s.repo.List(ctx, s.db, domain.ListFilter{
		Status: status,
		UserID: req.UserID,
		Page:   req.Pagination,
	})
	if err != nil {
		return nil, err
	}

	items, pageInfo := pagination.BuildCursorPageInfo(items, option.NormalizePageSize(req.PageSize), func(o *domain.Order) string {
		return pagination.CursorFor(o.ID.String(), o.CreatedAt)
	})

	orders := make([]domain.OrderResponse, 0, len(items))
	for _, item := range items {
		orders = append(orders, toOrderResponse(item, nil))
	}
	return &domain.ListOrdersResponse{PageInfo: *pageInfo, Orders: orders}, nil
}

func (s *Service) InvoiceSource(ctx context.Context, id string) (*domain.InvoiceSource, error) {
	orderID, err := parseID(id)
	if err != nil {
		return nil, err
	}
	order, err := s.repo.FindByID(ctx, s.db, orderID, false)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, domain.ErrOrderNotFound
	}
	items, err := s.repo.FindItems(ctx, s.db, orderID)
	if err != nil {
		return nil, err
	}
	seq, err := s.repo.CountSameDayUpTo(ctx, s.db, order)
	if err != nil {
		return nil, err
	}
	return &domain.InvoiceSource{Order: *order, Items: items, Sequence: seq}, nil
}

func parseID(raw string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}

func trimmedPtr(value *string) *string {
	if value == nil {
		return nil
	}
	v := strings.TrimSpace(*value)
	if v == "" {
		return nil
	}
	return &v
}

func idString(id *snowflake.ID) *string {
	if id == nil {
		return nil
	}
	v := id.String()
	return &v
}

func inventoryLines(items []domain.OrderItem) []inventorydomain.Line {
	lines := make([]inventorydomain.Line, 0, len(items))
	for _, item := range items {
		lines = append(lines, inventorydomain.Line{VariantID: item.VariantID, Quantity: item.Quantity})
	}
	return lines
}

func orderSnapshot(o *domain.Order) map[string]any {
	out := map[string]any{
		"status":          string(o.Status),
		"inventory_state": string(o.InventoryState),
		"subtotal":        o.Subtotal.StringFixed(2),
		"discount_amount": o.DiscountAmount.StringFixed(2),
		"tax_amount":      o.TaxAmount.StringFixed(2),
		"shipping_fee":    o.ShippingFee.StringFixed(2),
		"total_amount":    o.TotalAmount.StringFixed(2),
		"shipping_method": o.ShippingMethod,
	}
	if o.CouponCode != nil {
		out["coupon_code"] = *o.CouponCode
	}
	if o.UserID != nil {
		out["user_id"] = *o.UserID
	}
	return out
}

func shipmentSnapshot(o *domain.Order) map[string]any {
	out := map[string]any{}
	for key, value := range map[string]*string{
		"courier":              o.Courier,
		"tracking_code":        o.TrackingCode,
		"external_shipment_id": o.ExternalShipmentID,
		"external_order_id":    o.ExternalOrderID,
	} {
		if value != nil {
			out[key] = *value
		}
	}
	return out
}

func toOrderResponse(o *domain.Order, items []domain.OrderItem) domain.OrderResponse {
	resp := domain.OrderResponse{
		ID:                 o.ID.String(),
		UserID:             o.UserID,
		Status:             o.Status,
		AllowedTransitions: o.Status.AllowedTransitions(),
		InventoryState:     o.InventoryState,
		Currency:           o.Currency,
		Breakdown:          o.Breakdown(),
		TotalAmount:        o.TotalAmount.StringFixed(2),
		CouponCode:         o.CouponCode,
		ShippingMethod:     o.ShippingMethod,
		ShippingAddressID:  idString(o.ShippingAddressID),
		BillingAddressID:   idString(o.BillingAddressID),
		Courier:            o.Courier,
		TrackingCode:       o.TrackingCode,
		ExternalShipmentID: o.ExternalShipmentID,
		ExternalOrderID:    o.ExternalOrderID,
		CreatedAt:          o.CreatedAt,
		UpdatedAt:          o.UpdatedAt,
	}
	for _, item := range items {
		resp.Items = append(resp.Items, domain.OrderItemResponse{
			ID:        item.ID.String(),
			VariantID: item.VariantID.String(),
			SKU:       item.SKU,
			Name:      item.Name,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
			LineTotal: item.LineTotal,
		})
	}
	return resp
}

func toFulfillmentResponse(f *domain.Fulfillment) domain.FulfillmentResponse {
	return domain.FulfillmentResponse{
		ID:             f.ID.String(),
		OrderID:        f.OrderID.String(),
		TrackingNumber: f.TrackingNumber,
		Carrier:        f.Carrier,
		Status:         f.Status,
		CreatedAt:      f.CreatedAt,
		UpdatedAt:      f.UpdatedAt,
	}
}
