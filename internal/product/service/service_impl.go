package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	auditdomain "github.com/smallbiznis/storefront/internal/audit/domain"
	"github.com/smallbiznis/storefront/internal/clock"
	inventorydomain "github.com/smallbiznis/storefront/internal/inventory/domain"
	"github.com/smallbiznis/storefront/internal/product/domain"
	"github.com/smallbiznis/storefront/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const maxSlugAttempts = 20

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	GenID        *snowflake.Node
	Clock        clock.Clock
	Repo         domain.Repository
	AuditSvc     auditdomain.Service
	InventorySvc inventorydomain.Service
}

type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	repo         domain.Repository
	genID        *snowflake.Node
	clock        clock.Clock
	auditSvc     auditdomain.Service
	inventorySvc inventorydomain.Service
}

func New(p Params) domain.Service {
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("product.service"),
		repo:         p.Repo,
		genID:        p.GenID,
		clock:        p.Clock,
		auditSvc:     p.AuditSvc,
		inventorySvc: p.InventorySvc,
	}
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) ([]domain.Response, error) {
	filter := domain.ListRequest{
		Name:    strings.TrimSpace(req.Name),
		SortBy:  strings.TrimSpace(req.SortBy),
		OrderBy: strings.TrimSpace(req.OrderBy),
	}

	items, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return nil, err
	}

	resp := make([]domain.Response, 0, len(items))
	for _, item := range items {
		resp = append(resp, toResponse(&item, nil))
	}
	return resp, nil
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (*domain.Response, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}
	base := slug.Make(name)
	if base == "" {
		return nil, domain.ErrInvalidName
	}

	description := strings.TrimSpace(ptrToString(req.Description))
	var descriptionPtr *string
	if description != "" {
		descriptionPtr = &description
	}

	now := s.clock.Now()
	p := &domain.Product{
		ID:          s.genID.Generate(),
		Name:        name,
		Description: descriptionPtr,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		unique, err := s.uniqueSlug(ctx, tx, base)
		if err != nil {
			return err
		}
		p.Slug = unique

		if err := s.repo.Create(ctx, tx, p); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return domain.ErrSlugTaken
			}
			return err
		}
		_, err = s.auditSvc.Record(ctx, tx, auditdomain.Entry{
			EntityType: auditdomain.EntityProducts,
			EntityID:   p.ID.String(),
			Action:     auditdomain.ActionCreate,
			NewValue: map[string]any{
				"name": p.Name,
				"slug": p.Slug,
			},
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	resp := toResponse(p, nil)
	return &resp, nil
}

// uniqueSlug appends a numeric suffix until the slug is free.
func (s *Service) uniqueSlug(ctx context.Context, tx *gorm.DB, base string) (string, error) {
	candidate := base
	for i := 2; i <= maxSlugAttempts+1; i++ {
		exists, err := s.repo.SlugExists(ctx, tx, candidate)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, i)
	}
	return "", domain.ErrSlugTaken
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Response, error) {
	productID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil {
		return nil, domain.ErrInvalidID
	}

	item, err := s.repo.FindByID(ctx, s.db, productID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, domain.ErrNotFound
	}

	variants, err := s.repo.ListVariants(ctx, s.db, productID)
	if err != nil {
		return nil, err
	}

	resp := toResponse(item, variants)
	return &resp, nil
}

func (s *Service) CreateVariant(ctx context.Context, req domain.CreateVariantRequest) (*domain.VariantResponse, error) {
	productID, err := snowflake.ParseString(strings.TrimSpace(req.ProductID))
	if err != nil {
		return nil, domain.ErrInvalidID
	}
	sku := strings.ToUpper(strings.TrimSpace(req.SKU))
	if sku == "" {
		return nil, domain.ErrInvalidSKU
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}
	if req.Price.IsNegative() || !req.Price.Equal(req.Price.Round(2)) {
		return nil, domain.ErrInvalidPrice
	}
	if req.InitialStock < 0 {
		return nil, domain.ErrInvalidStock
	}

	variant := &domain.ProductVariant{
		ID:        s.genID.Generate(),
		ProductID: productID,
		SKU:       sku,
		Name:      name,
		Price:     req.Price,
		CreatedAt: s.clock.Now(),
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		product, err := s.repo.FindByID(ctx, tx, productID)
		if err != nil {
			return err
		}
		if product == nil {
			return domain.ErrNotFound
		}
		if err := s.repo.CreateVariant(ctx, tx, variant); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return domain.ErrSKUTaken
			}
			return err
		}
		if err := s.inventorySvc.InitLevel(ctx, tx, variant.ID, req.InitialStock); err != nil {
			return err
		}
		_, err = s.auditSvc.Record(ctx, tx, auditdomain.Entry{
			EntityType: auditdomain.EntityProductVariants,
			EntityID:   variant.ID.String(),
			Action:     auditdomain.ActionCreate,
			NewValue: map[string]any{
				"product_id":    productID.String(),
				"sku":           variant.SKU,
				"price":         variant.Price.StringFixed(2),
				"initial_stock": req.InitialStock,
			},
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	resp := toVariantResponse(variant)
	return &resp, nil
}

func (s *Service) GetVariant(ctx context.Context, id string) (*domain.VariantResponse, error) {
	variantID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil {
		return nil, domain.ErrInvalidID
	}
	variant, err := s.repo.FindVariantByID(ctx, s.db, variantID)
	if err != nil {
		return nil, err
	}
	if variant == nil {
		return nil, domain.ErrVariantNotFound
	}
	resp := toVariantResponse(variant)
	return &resp, nil
}

func (s *Service) ResolveVariants(ctx context.Context, tx *gorm.DB, ids []snowflake.ID) (map[snowflake.ID]domain.ProductVariant, error) {
	if tx == nil {
		tx = s.db
	}
	items, err := s.repo.FindVariantsByIDs(ctx, tx, ids)
	if err != nil {
		return nil, err
	}
	out := make(map[snowflake.ID]domain.ProductVariant, len(items))
	for _, item := range items {
		out[item.ID] = item
	}
	for _, id := range ids {
		if _, ok := out[id]; !ok {
			return nil, fmt.Errorf("%w: %s", domain.ErrVariantNotFound, id)
		}
	}
	return out, nil
}

func toResponse(p *domain.Product, variants []domain.ProductVariant) domain.Response {
	resp := domain.Response{
		ID:          p.ID.String(),
		Name:        p.Name,
		Slug:        p.Slug,
		Description: p.Description,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
	for i := range variants {
		resp.Variants = append(resp.Variants, toVariantResponse(&variants[i]))
	}
	return resp
}

func toVariantResponse(v *domain.ProductVariant) domain.VariantResponse {
	return domain.VariantResponse{
		ID:        v.ID.String(),
		ProductID: v.ProductID.String(),
		SKU:       v.SKU,
		Name:      v.Name,
		Price:     v.Price,
		CreatedAt: v.CreatedAt,
	}
}

func ptrToString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
