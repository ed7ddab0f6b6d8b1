package service

import (
	"context"
	"sort"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/storefront/internal/audit/domain"
	"github.com/smallbiznis/storefront/internal/clock"
	"github.com/smallbiznis/storefront/internal/inventory/domain"
	"github.com/smallbiznis/storefront/internal/observability/metrics"
	"github.com/smallbiznis/storefront/pkg/db/option"
	"github.com/smallbiznis/storefront/pkg/db/pagination"
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
		log:      p.Log.Named("inventory.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		auditSvc: p.AuditSvc,
		metrics:  p.Metrics,
	}
}

func (s *Service) InitLevel(ctx context.Context, tx *gorm.DB, variantID snowflake.ID, initial int) error {
	if variantID == 0 {
		return domain.ErrInvalidID
	}
	if initial < 0 {
		return domain.ErrInvalidQuantity
	}

	existing, err := s.repo.FindLevel(ctx, tx, variantID)
	if err != nil {
		return err
	}
	if existing != nil {
		return domain.ErrLevelExists
	}

	now := s.clock.Now()
	if err := s.repo.InsertLevel(ctx, tx, &domain.InventoryLevel{
		VariantID: variantID,
		Available: initial,
		UpdatedAt: now,
	}); err != nil {
		return err
	}
	if initial == 0 {
		return nil
	}

	note := "opening stock"
	return s.repo.InsertLedger(ctx, tx, &domain.StockLedger{
		ID:           s.genID.Generate(),
		VariantID:    variantID,
		ChangeAmount: initial,
		Reason:       domain.ReasonRestock,
		Note:         &note,
		CreatedAt:    now,
	})
}

func (s *Service) GetLevel(ctx context.Context, variantID string) (*domain.LevelResponse, error) {
	id, err := parseID(variantID)
	if err != nil {
		return nil, err
	}
	level, err := s.repo.FindLevel(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if level == nil {
		return nil, domain.ErrLevelNotFound
	}
	resp := toLevelResponse(level)
	return &resp, nil
}

func (s *Service) AdjustStock(ctx context.Context, req domain.AdjustRequest) (*domain.LevelResponse, error) {
	id, err := parseID(req.VariantID)
	if err != nil {
		return nil, err
	}
	if req.Delta == 0 {
		return nil, domain.ErrInvalidQuantity
	}
	reason := domain.Reason(strings.ToLower(strings.TrimSpace(string(req.Reason))))
	if !reason.AdminAdjustable() {
		return nil, domain.ErrInvalidReason
	}

	var updated *domain.InventoryLevel
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		before, err := s.repo.FindLevel(ctx, tx, id)
		if err != nil {
			return err
		}
		if before == nil {
			return domain.ErrLevelNotFound
		}

		now := s.clock.Now()
		affected, err := s.repo.AddAvailable(ctx, tx, id, req.Delta, now)
		if err != nil {
			return err
		}
		if affected == 0 {
			return &domain.InsufficientStockError{VariantID: id, Requested: -req.Delta}
		}

		after, err := s.repo.FindLevel(ctx, tx, id)
		if err != nil {
			return err
		}

		record, err := s.auditSvc.Record(ctx, tx, auditdomain.Entry{
			EntityType: auditdomain.EntityInventory,
			EntityID:   id.String(),
			Action:     auditdomain.ActionUpdate,
			OldValue:   snapshot(before),
			NewValue:   snapshot(after),
			Metadata: map[string]any{
				"delta":  req.Delta,
				"reason": string(reason),
			},
		})
		if err != nil {
			return err
		}

		entry := &domain.StockLedger{
			ID:           s.genID.Generate(),
			VariantID:    id,
			ChangeAmount: req.Delta,
			Reason:       reason,
			AuditLogID:   &record.ID,
			CreatedAt:    now,
		}
		if note := strings.TrimSpace(req.Note); note != "" {
			entry.Note = &note
		}
		if err := s.repo.InsertLedger(ctx, tx, entry); err != nil {
			return err
		}
		updated = after
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordStockAdjustment(ctx, string(reason))
	resp := toLevelResponse(updated)
	return &resp, nil
}

func (s *Service) ListLedger(ctx context.Context, req domain.ListLedgerRequest) (*domain.ListLedgerResponse, error) {
	id, err := parseID(req.VariantID)
	if err != nil {
		return nil, err
	}
	if reason := strings.TrimSpace(req.Reason); reason != "" && !domain.Reason(reason).Valid() {
		return nil, domain.ErrInvalidReason
	}

	items, err := s.repo.ListLedger(ctx, s.db, domain.LedgerFilter{
		VariantID: id,
		Reason:    req.Reason,
		Page:      req.Pagination,
	})
	if err != nil {
		return nil, err
	}

	items, pageInfo := pagination.BuildCursorPageInfo(items, option.NormalizePageSize(req.PageSize), func(item *domain.StockLedger) string {
		return pagination.CursorFor(item.ID.String(), item.CreatedAt)
	})

	entries := make([]domain.LedgerEntryResponse, 0, len(items))
	for _, item := range items {
		entries = append(entries, toLedgerResponse(item))
	}
	return &domain.ListLedgerResponse{PageInfo: *pageInfo, Entries: entries}, nil
}

func (s *Service) Reconcile(ctx context.Context, variantID string) (*domain.ReconcileResponse, error) {
	id, err := parseID(variantID)
	if err != nil {
		return nil, err
	}
	level, err := s.repo.FindLevel(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if level == nil {
		return nil, domain.ErrLevelNotFound
	}
	sum, err := s.repo.SumLedger(ctx, s.db, id)
	if err != nil {
		return nil, err
	}

	resp := &domain.ReconcileResponse{
		VariantID: id.String(),
		Available: level.Available,
		Reserved:  level.Reserved,
		LedgerSum: sum,
		Balanced:  sum == int64(level.Available),
	}
	if !resp.Balanced {
		s.log.Warn("inventory out of balance",
			zap.String("variant_id", id.String()),
			zap.Int("available", level.Available),
			zap.Int64("ledger_sum", sum),
		)
	}
	return resp, nil
}

func (s *Service) Reserve(ctx context.Context, tx *gorm.DB, orderID snowflake.ID, lines []domain.Line) error {
	return s.apply(ctx, tx, orderID, lines, func(line domain.Line) (*domain.StockLedger, error) {
		affected, err := s.repo.Reserve(ctx, tx, line.VariantID, line.Quantity, s.clock.Now())
		if err != nil {
			return nil, err
		}
		if affected == 0 {
			return nil, &domain.InsufficientStockError{VariantID: line.VariantID, Requested: line.Quantity}
		}
		return s.ledgerFor(line.VariantID, orderID, -line.Quantity, domain.ReasonSale), nil
	})
}

func (s *Service) Commit(ctx context.Context, tx *gorm.DB, orderID snowflake.ID, lines []domain.Line) error {
	return s.apply(ctx, tx, orderID, lines, func(line domain.Line) (*domain.StockLedger, error) {
		affected, err := s.repo.Commit(ctx, tx, line.VariantID, line.Quantity, s.clock.Now())
		if err != nil {
			return nil, err
		}
		if affected == 0 {
			return nil, domain.ErrReservationMissing
		}
		return nil, nil
	})
}

func (s *Service) Release(ctx context.Context, tx *gorm.DB, orderID snowflake.ID, lines []domain.Line) error {
	return s.apply(ctx, tx, orderID, lines, func(line domain.Line) (*domain.StockLedger, error) {
		affected, err := s.repo.Release(ctx, tx, line.VariantID, line.Quantity, s.clock.Now())
		if err != nil {
			return nil, err
		}
		if affected == 0 {
			return nil, domain.ErrReservationMissing
		}
		return s.ledgerFor(line.VariantID, orderID, line.Quantity, domain.ReasonRestock), nil
	})
}

func (s *Service) Restock(ctx context.Context, tx *gorm.DB, orderID snowflake.ID, lines []domain.Line) error {
	return s.apply(ctx, tx, orderID, lines, func(line domain.Line) (*domain.StockLedger, error) {
		affected, err := s.repo.AddAvailable(ctx, tx, line.VariantID, line.Quantity, s.clock.Now())
		if err != nil {
			return nil, err
		}
		if affected == 0 {
			return nil, domain.ErrLevelNotFound
		}
		return s.ledgerFor(line.VariantID, orderID, line.Quantity, domain.ReasonReturn), nil
	})
}

// apply merges lines per variant and walks them in id order so concurrent
// orders touching the same variants lock rows in the same sequence.
func (s *Service) apply(ctx context.Context, tx *gorm.DB, orderID snowflake.ID, lines []domain.Line, step func(domain.Line) (*domain.StockLedger, error)) error {
	if tx == nil {
		return gorm.ErrInvalidTransaction
	}
	merged, err := mergeLines(lines)
	if err != nil {
		return err
	}
	for _, line := range merged {
		entry, err := step(line)
		if err != nil {
			return err
		}
		if entry == nil {
			continue
		}
		if err := s.repo.InsertLedger(ctx, tx, entry); err != nil {
			return err
		}
	}
	s.log.Debug("inventory moved for order",
		zap.String("order_id", orderID.String()),
		zap.Int("variants", len(merged)),
	)
	return nil
}

func (s *Service) ledgerFor(variantID, orderID snowflake.ID, change int, reason domain.Reason) *domain.StockLedger {
	return &domain.StockLedger{
		ID:           s.genID.Generate(),
		VariantID:    variantID,
		ChangeAmount: change,
		Reason:       reason,
		OrderID:      &orderID,
		CreatedAt:    s.clock.Now(),
	}
}

func mergeLines(lines []domain.Line) ([]domain.Line, error) {
	totals := make(map[snowflake.ID]int, len(lines))
	for _, line := range lines {
		if line.VariantID == 0 {
			return nil, domain.ErrInvalidID
		}
		if line.Quantity <= 0 {
			return nil, domain.ErrInvalidQuantity
		}
		totals[line.VariantID] += line.Quantity
	}
	merged := make([]domain.Line, 0, len(totals))
	for id, qty := range totals {
		merged = append(merged, domain.Line{VariantID: id, Quantity: qty})
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].VariantID < merged[j].VariantID })
	return merged, nil
}

func parseID(raw string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}

func snapshot(level *domain.InventoryLevel) map[string]any {
	return map[string]any{
		"available": level.Available,
		"reserved":  level.Reserved,
	}
}

func toLevelResponse(level *domain.InventoryLevel) domain.LevelResponse {
	return domain.LevelResponse{
		VariantID: level.VariantID.String(),
		Available: level.Available,
		Reserved:  level.Reserved,
		UpdatedAt: level.UpdatedAt,
	}
}

func toLedgerResponse(item *domain.StockLedger) domain.LedgerEntryResponse {
	resp := domain.LedgerEntryResponse{
		ID:           item.ID.String(),
		VariantID:    item.VariantID.String(),
		ChangeAmount: item.ChangeAmount,
		Reason:       item.Reason,
		Note:         item.Note,
		CreatedAt:    item.CreatedAt,
	}
	if item.OrderID != nil {
		v := item.OrderID.String()
		resp.OrderID = &v
	}
	if item.AuditLogID != nil {
		v := item.AuditLogID.String()
		resp.AuditLogID = &v
	}
	return resp
}
