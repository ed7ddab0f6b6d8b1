package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/storefront/internal/config"
	coupondomain "github.com/smallbiznis/storefront/internal/coupon/domain"
	"github.com/smallbiznis/storefront/internal/pricing/domain"
	productdomain "github.com/smallbiznis/storefront/internal/product/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Store      *config.StoreConfigHolder
	ProductSvc productdomain.Service
	CouponSvc  coupondomain.Service
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	store      *config.StoreConfigHolder
	productSvc productdomain.Service
	couponSvc  coupondomain.Service
}

func NewService(p Params) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("pricing.service"),
		store:      p.Store,
		productSvc: p.ProductSvc,
		couponSvc:  p.CouponSvc,
	}
}

func (s *Service) ShippingMethods(ctx context.Context) []domain.ShippingOption {
	settings := s.store.Get()
	out := make([]domain.ShippingOption, 0, len(settings.ShippingOptions))
	for _, opt := range settings.ShippingOptions {
		out = append(out, toShippingOption(opt))
	}
	return out
}

func (s *Service) BuildCart(ctx context.Context, db *gorm.DB, items []domain.ItemRequest, shippingMethod string) (*domain.Cart, error) {
	if len(items) == 0 {
		return nil, domain.ErrEmptyCart
	}
	if db == nil {
		db = s.db
	}

	settings := s.store.Get()
	option, ok := settings.ShippingOption(shippingMethod)
	if !ok {
		return nil, domain.ErrUnknownShipping
	}

	ids := make([]snowflake.ID, 0, len(items))
	for _, item := range items {
		id, err := snowflake.ParseString(strings.TrimSpace(item.VariantID))
		if err != nil || id == 0 {
			return nil, domain.ErrInvalidItem
		}
		if item.Quantity < 1 {
			return nil, domain.ErrInvalidQuantity
		}
		ids = append(ids, id)
	}

	variants, err := s.productSvc.ResolveVariants(ctx, db, ids)
	if err != nil {
		return nil, err
	}

	lines := make([]domain.LineItem, 0, len(items))
	for i, item := range items {
		variant := variants[ids[i]]
		lines = append(lines, domain.LineItem{
			VariantID: variant.ID,
			SKU:       variant.SKU,
			Name:      variant.Name,
			UnitPrice: variant.Price,
			Quantity:  item.Quantity,
		})
	}

	return &domain.Cart{
		Lines:    lines,
		Shipping: toShippingOption(option),
		Tax: domain.TaxConfig{
			Enabled:    settings.Tax.Enabled,
			Percentage: settings.Tax.Rate(),
			Label:      settings.Tax.Label,
		},
		Currency: settings.Currency,
	}, nil
}

func (s *Service) Quote(ctx context.Context, req domain.QuoteRequest) (*domain.QuoteResponse, error) {
	cart, err := s.BuildCart(ctx, s.db, req.Items, req.ShippingMethod)
	if err != nil {
		return nil, err
	}

	var applied *coupondomain.AppliedCoupon
	if strings.TrimSpace(req.CouponCode) != "" {
		applied, err = s.couponSvc.Validate(ctx, req.CouponCode, cart.Subtotal())
		if err != nil {
			return nil, err
		}
	}

	breakdown, err := domain.ComputeOrderTotal(cart.Lines, cart.Shipping, cart.Tax, applied)
	if err != nil {
		return nil, err
	}

	resp := &domain.QuoteResponse{
		Currency:  cart.Currency,
		Lines:     domain.QuoteLines(cart.Lines),
		Shipping:  cart.Shipping,
		Coupon:    applied,
		Breakdown: breakdown,
	}
	if cart.Tax.Enabled {
		resp.TaxLabel = cart.Tax.Label
	}
	return resp, nil
}

func toShippingOption(opt config.ShippingOption) domain.ShippingOption {
	return domain.ShippingOption{
		Code:          opt.Code,
		Courier:       opt.Courier,
		Service:       opt.Service,
		Fee:           opt.FeeAmount(),
		EstimatedDays: opt.EstimatedDays,
	}
}
