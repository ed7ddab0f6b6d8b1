package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/storefront/internal/address/domain"
	auditdomain "github.com/smallbiznis/storefront/internal/audit/domain"
	"github.com/smallbiznis/storefront/internal/clock"
	"github.com/smallbiznis/storefront/pkg/db/option"
	"github.com/smallbiznis/storefront/pkg/repository"
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
	AuditSvc auditdomain.Service
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	repo     repository.Repository[domain.Address]
	auditSvc auditdomain.Service
}

func NewService(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("address.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     repository.ProvideStore[domain.Address](p.DB),
		auditSvc: p.AuditSvc,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (*domain.Response, error) {
	addr, err := s.build(req)
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.WithTrx(tx).Create(ctx, addr); err != nil {
			return err
		}
		_, err := s.auditSvc.Record(ctx, tx, auditdomain.Entry{
			EntityType: auditdomain.EntityAddresses,
			EntityID:   addr.ID.String(),
			Action:     auditdomain.ActionCreate,
			NewValue:   snapshot(addr),
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	resp := toResponse(addr)
	return &resp, nil
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Response, error) {
	addressID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil {
		return nil, domain.ErrInvalidID
	}
	addr, err := s.Lookup(ctx, s.db, addressID)
	if err != nil {
		return nil, err
	}
	resp := toResponse(addr)
	return &resp, nil
}

func (s *Service) List(ctx context.Context, userID string) ([]domain.Response, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, domain.ErrInvalidUser
	}

	items, err := s.repo.Find(ctx, &domain.Address{UserID: userID}, option.WithSortBy(option.QuerySortBy{}))
	if err != nil {
		return nil, err
	}

	resp := make([]domain.Response, 0, len(items))
	for _, item := range items {
		resp = append(resp, toResponse(item))
	}
	return resp, nil
}

func (s *Service) Lookup(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*domain.Address, error) {
	if id == 0 {
		return nil, domain.ErrInvalidID
	}
	if tx == nil {
		tx = s.db
	}
	addr, err := s.repo.WithTrx(tx).FindOne(ctx, &domain.Address{ID: id})
	if err != nil {
		return nil, err
	}
	if addr == nil {
		return nil, domain.ErrNotFound
	}
	return addr, nil
}

func (s *Service) build(req domain.CreateRequest) (*domain.Address, error) {
	addr := &domain.Address{
		ID:         s.genID.Generate(),
		UserID:     strings.TrimSpace(req.UserID),
		FullName:   strings.TrimSpace(req.FullName),
		Line1:      strings.TrimSpace(req.Line1),
		Line2:      trimmed(req.Line2),
		City:       strings.TrimSpace(req.City),
		Region:     trimmed(req.Region),
		PostalCode: strings.TrimSpace(req.PostalCode),
		Country:    strings.ToUpper(strings.TrimSpace(req.Country)),
		Phone:      trimmed(req.Phone),
		CreatedAt:  s.clock.Now(),
	}

	switch {
	case addr.UserID == "":
		return nil, domain.ErrInvalidUser
	case addr.FullName == "":
		return nil, domain.ErrInvalidFullName
	case addr.Line1 == "":
		return nil, domain.ErrInvalidLine1
	case addr.City == "":
		return nil, domain.ErrInvalidCity
	case addr.PostalCode == "":
		return nil, domain.ErrInvalidPostalCode
	case len(addr.Country) != 2:
		return nil, domain.ErrInvalidCountry
	}
	return addr, nil
}

func trimmed(value *string) *string {
	if value == nil {
		return nil
	}
	v := strings.TrimSpace(*value)
	if v == "" {
		return nil
	}
	return &v
}

func snapshot(a *domain.Address) map[string]any {
	out := map[string]any{
		"user_id":     a.UserID,
		"full_name":   a.FullName,
		"line1":       a.Line1,
		"city":        a.City,
		"postal_code": a.PostalCode,
		"country":     a.Country,
	}
	if a.Phone != nil {
		out["phone"] = *a.Phone
	}
	return out
}

func toResponse(a *domain.Address) domain.Response {
	return domain.Response{
		ID:         a.ID.String(),
		UserID:     a.UserID,
		FullName:   a.FullName,
		Line1:      a.Line1,
		Line2:      a.Line2,
		City:       a.City,
		Region:     a.Region,
		PostalCode: a.PostalCode,
		Country:    a.Country,
		Phone:      a.Phone,
		CreatedAt:  a.CreatedAt,
	}
}
