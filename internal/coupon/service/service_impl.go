package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	auditdomain "github.com/smallbiznis/storefront/internal/audit/domain"
	"github.com/smallbiznis/storefront/internal/clock"
	"github.com/smallbiznis/storefront/internal/coupon/domain"
	"github.com/smallbiznis/storefront/internal/observability/metrics"
	"github.com/smallbiznis/storefront/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Repo     domain.Repository
	AuditSvc auditdomain.Service
	Metrics  *metrics.Metrics `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	repo     domain.Repository
	auditSvc auditdomain.Service
	metrics  *metrics.Metrics
}

func NewService(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("coupon.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		auditSvc: p.AuditSvc,
		metrics:  p.Metrics,
	}
}

// NormalizeCode trims and uppercases a coupon code for lookup and storage.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (*domain.Response, error) {
	now := s.clock.Now()

	coupon := &domain.Coupon{
		ID:            s.genID.Generate(),
		Code:          NormalizeCode(req.Code),
		DiscountType:  domain.DiscountType(strings.ToLower(strings.TrimSpace(string(req.DiscountType)))),
		DiscountValue: req.DiscountValue,
		StartsAt:      now,
		ExpiresAt:     req.ExpiresAt,
		MaxUsage:      req.MaxUsage,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if req.MinOrderAmount != nil {
		coupon.MinOrderAmount = *req.MinOrderAmount
	}
	if req.StartsAt != nil {
		coupon.StartsAt = req.StartsAt.UTC()
	}
	if coupon.ExpiresAt != nil {
		expires := coupon.ExpiresAt.UTC()
		coupon.ExpiresAt = &expires
	}
	if err := coupon.Validate(); err != nil {
		return nil, err
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Create(ctx, tx, coupon); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return domain.ErrCouponCodeTaken
			}
			return err
		}
		_, err := s.auditSvc.Record(ctx, tx, auditdomain.Entry{
			EntityType: auditdomain.EntityCoupons,
			EntityID:   coupon.ID.String(),
			Action:     auditdomain.ActionCreate,
			NewValue:   snapshot(coupon),
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	resp := toResponse(coupon)
	return &resp, nil
}

func (s *Service) Update(ctx context.Context, req domain.UpdateRequest) (*domain.Response, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(req.ID))
	if err != nil {
		return nil, domain.ErrInvalidID
	}

	var updated *domain.Coupon
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Locked so the cap check sees the committed redemption count.
		coupon, err := s.repo.FindByID(ctx, tx, id, true)
		if err != nil {
			return err
		}
		if coupon == nil {
			return domain.ErrCouponNotFound
		}
		before := snapshot(coupon)

		if req.MinOrderAmount != nil {
			coupon.MinOrderAmount = *req.MinOrderAmount
		}
		if req.StartsAt != nil {
			coupon.StartsAt = req.StartsAt.UTC()
		}
		if req.ClearExpiresAt {
			coupon.ExpiresAt = nil
		} else if req.ExpiresAt != nil {
			expires := req.ExpiresAt.UTC()
			coupon.ExpiresAt = &expires
		}
		if req.ClearMaxUsage {
			coupon.MaxUsage = nil
		} else if req.MaxUsage != nil {
			coupon.MaxUsage = req.MaxUsage
		}
		if err := coupon.Validate(); err != nil {
			return err
		}

		coupon.UpdatedAt = s.clock.Now()
		if err := s.repo.Update(ctx, tx, coupon); err != nil {
			return err
		}
		if _, err := s.auditSvc.Record(ctx, tx, auditdomain.Entry{
			EntityType: auditdomain.EntityCoupons,
			EntityID:   coupon.ID.String(),
			Action:     auditdomain.ActionUpdate,
			OldValue:   before,
			NewValue:   snapshot(coupon),
		}); err != nil {
			return err
		}
		updated = coupon
		return nil
	})
	if err != nil {
		return nil, err
	}

	resp := toResponse(updated)
	return &resp, nil
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Response, error) {
	couponID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil {
		return nil, domain.ErrInvalidID
	}
	coupon, err := s.repo.FindByID(ctx, s.db, couponID, false)
	if err != nil {
		return nil, err
	}
	if coupon == nil {
		return nil, domain.ErrCouponNotFound
	}
	resp := toResponse(coupon)
	return &resp, nil
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) ([]domain.Response, error) {
	items, err := s.repo.List(ctx, s.db, domain.ListFilter{
		CodePrefix: NormalizeCode(req.CodePrefix),
		Active:     req.Active,
		Now:        s.clock.Now(),
		SortBy:     strings.TrimSpace(req.SortBy),
		OrderBy:    strings.TrimSpace(req.OrderBy),
	})
	if err != nil {
		return nil, err
	}

	resp := make([]domain.Response, 0, len(items))
	for i := range items {
		resp = append(resp, toResponse(&items[i]))
	}
	return resp, nil
}

func (s *Service) Validate(ctx context.Context, code string, subtotal decimal.Decimal) (*domain.AppliedCoupon, error) {
	coupon, err := s.check(ctx, s.db, code, subtotal, false)
	if err != nil {
		return nil, err
	}
	applied := coupon.Applied()
	return &applied, nil
}

func (s *Service) ValidateForRedemption(ctx context.Context, tx *gorm.DB, code string, subtotal decimal.Decimal) (*domain.Coupon, error) {
	return s.check(ctx, tx, code, subtotal, true)
}

func (s *Service) check(ctx context.Context, db *gorm.DB, code string, subtotal decimal.Decimal, forUpdate bool) (*domain.Coupon, error) {
	if subtotal.IsNegative() {
		return nil, domain.ErrInvalidSubtotal
	}

	normalized := NormalizeCode(code)
	var coupon *domain.Coupon
	if normalized != "" {
		found, err := s.repo.FindByCode(ctx, db, normalized, forUpdate)
		if err != nil {
			return nil, err
		}
		coupon = found
	}

	var checkErr error
	if coupon == nil {
		checkErr = domain.ErrCouponNotFound
	} else {
		checkErr = coupon.Check(s.clock.Now(), subtotal)
	}

	stage := metrics.CouponStageQuote
	if forUpdate {
		stage = metrics.CouponStageCheckout
	}
	s.metrics.RecordCouponValidation(ctx, stage, validationResult(checkErr))
	if checkErr != nil {
		return nil, checkErr
	}
	return coupon, nil
}

func (s *Service) Redeem(ctx context.Context, tx *gorm.DB, couponID snowflake.ID, userID *string, orderID snowflake.ID) error {
	now := s.clock.Now()
	affected, err := s.repo.IncrementUsage(ctx, tx, couponID, now)
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrCouponExhausted
	}

	usage := &domain.CouponUsage{
		ID:        s.genID.Generate(),
		CouponID:  couponID,
		UserID:    userID,
		OrderID:   orderID,
		AppliedAt: now,
	}
	if err := s.repo.InsertUsage(ctx, tx, usage); err != nil {
		return err
	}

	s.log.Debug("coupon redeemed",
		zap.String("coupon_id", couponID.String()),
		zap.String("order_id", orderID.String()),
	)
	return nil
}

func (s *Service) ListUsages(ctx context.Context, couponID string) ([]domain.UsageResponse, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(couponID))
	if err != nil {
		return nil, domain.ErrInvalidID
	}
	coupon, err := s.repo.FindByID(ctx, s.db, id, false)
	if err != nil {
		return nil, err
	}
	if coupon == nil {
		return nil, domain.ErrCouponNotFound
	}

	items, err := s.repo.ListUsages(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	resp := make([]domain.UsageResponse, 0, len(items))
	for _, item := range items {
		resp = append(resp, domain.UsageResponse{
			ID:        item.ID.String(),
			CouponID:  item.CouponID.String(),
			UserID:    item.UserID,
			OrderID:   item.OrderID.String(),
			AppliedAt: item.AppliedAt,
		})
	}
	return resp, nil
}

func validationResult(err error) string {
	switch {
	case err == nil:
		return "valid"
	case errors.Is(err, domain.ErrCouponNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrCouponNotYetActive):
		return "not_yet_active"
	case errors.Is(err, domain.ErrCouponExpired):
		return "expired"
	case errors.Is(err, domain.ErrCouponExhausted):
		return "exhausted"
	case errors.Is(err, domain.ErrBelowMinimumOrder):
		return "below_minimum"
	default:
		return "error"
	}
}

func snapshot(c *domain.Coupon) map[string]any {
	out := map[string]any{
		"code":             c.Code,
		"discount_type":    string(c.DiscountType),
		"discount_value":   c.DiscountValue.StringFixed(2),
		"min_order_amount": c.MinOrderAmount.StringFixed(2),
		"starts_at":        c.StartsAt,
		"used_count":       c.UsedCount,
	}
	if c.ExpiresAt != nil {
		out["expires_at"] = *c.ExpiresAt
	}
	if c.MaxUsage != nil {
		out["max_usage"] = *c.MaxUsage
	}
	return out
}

func toResponse(c *domain.Coupon) domain.Response {
	return domain.Response{
		ID:             c.ID.String(),
		Code:           c.Code,
		DiscountType:   c.DiscountType,
		DiscountValue:  c.DiscountValue,
		MinOrderAmount: c.MinOrderAmount,
		StartsAt:       c.StartsAt,
		ExpiresAt:      c.ExpiresAt,
		MaxUsage:       c.MaxUsage,
		UsedCount:      c.UsedCount,
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
	}
}
