package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/storefront/internal/audit/domain"
	"github.com/smallbiznis/storefront/internal/audit/masking"
	"github.com/smallbiznis/storefront/internal/auditcontext"
	"github.com/smallbiznis/storefront/pkg/db/option"
	"github.com/smallbiznis/storefront/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  auditdomain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  auditdomain.Repository
}

func NewService(p Params) auditdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("audit.service"),
		genID: p.GenID,
		repo:  p.Repo,
	}
}

func (s *Service) Record(ctx context.Context, tx *gorm.DB, entry auditdomain.Entry) (*auditdomain.AuditLog, error) {
	if !entry.Action.Valid() {
		return nil, auditdomain.ErrInvalidAction
	}
	entityType := strings.TrimSpace(entry.EntityType)
	if entityType == "" {
		return nil, auditdomain.ErrInvalidEntityType
	}
	entityID := strings.TrimSpace(entry.EntityID)
	if entityID == "" {
		return nil, auditdomain.ErrInvalidEntityID
	}
	if tx == nil {
		tx = s.db
	}

	metadata := map[string]any{}
	for key, value := range entry.Metadata {
		if strings.TrimSpace(key) == "" {
			continue
		}
		metadata[key] = value
	}
	if requestID := auditcontext.RequestIDFromContext(ctx); requestID != "" {
		metadata["request_id"] = requestID
	}
	if role := auditcontext.ActorRoleFromContext(ctx); role != "" {
		metadata["actor_role"] = role
	}

	record := auditdomain.AuditLog{
		ID:         s.genID.Generate(),
		AdminID:    resolveAdmin(ctx, entry.AdminID),
		EntityType: entityType,
		EntityID:   entityID,
		Action:     entry.Action,
		OldValue:   toJSONMap(masking.MaskFields(entry.OldValue)),
		NewValue:   toJSONMap(masking.MaskFields(entry.NewValue)),
		Metadata:   toJSONMap(metadata),
		CreatedAt:  time.Now().UTC(),
	}
	if ip := auditcontext.IPAddressFromContext(ctx); ip != "" {
		record.IPAddress = &ip
	}
	if ua := auditcontext.UserAgentFromContext(ctx); ua != "" {
		record.UserAgent = &ua
	}

	if err := s.repo.Insert(ctx, tx, &record); err != nil {
		s.log.Warn("failed to write audit log",
			zap.String("entity_type", entityType),
			zap.String("entity_id", entityID),
			zap.String("action", string(entry.Action)),
			zap.Error(err),
		)
		return nil, err
	}
	return &record, nil
}

func (s *Service) List(ctx context.Context, req auditdomain.ListAuditLogRequest) (auditdomain.ListAuditLogResponse, error) {
	if req.StartAt != nil && req.EndAt != nil && req.StartAt.After(*req.EndAt) {
		return auditdomain.ListAuditLogResponse{}, auditdomain.ErrInvalidTimeRange
	}
	if action := strings.TrimSpace(req.Action); action != "" && !auditdomain.Action(action).Valid() {
		return auditdomain.ListAuditLogResponse{}, auditdomain.ErrInvalidAction
	}

	var cursor *auditdomain.AuditCursor
	if strings.TrimSpace(req.PageToken) != "" {
		decoded, err := pagination.DecodeCursor(req.PageToken)
		if err != nil {
			return auditdomain.ListAuditLogResponse{}, auditdomain.ErrInvalidPageToken
		}
		createdAt, err := time.Parse(time.RFC3339Nano, decoded.CreatedAt)
		if err != nil {
			return auditdomain.ListAuditLogResponse{}, auditdomain.ErrInvalidPageToken
		}
		id, err := snowflake.ParseString(strings.TrimSpace(decoded.ID))
		if err != nil || id == 0 {
			return auditdomain.ListAuditLogResponse{}, auditdomain.ErrInvalidPageToken
		}
		cursor = &auditdomain.AuditCursor{ID: id, CreatedAt: createdAt}
	}

	pageSize := option.NormalizePageSize(req.PageSize)

	items, err := s.repo.List(ctx, s.db, auditdomain.ListFilter{
		EntityType: req.EntityType,
		EntityID:   req.EntityID,
		Action:     req.Action,
		AdminID:    req.AdminID,
		StartAt:    req.StartAt,
		EndAt:      req.EndAt,
		Cursor:     cursor,
		Limit:      pageSize,
	})
	if err != nil {
		return auditdomain.ListAuditLogResponse{}, err
	}

	items, pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(item *auditdomain.AuditLog) string {
		return pagination.CursorFor(item.ID.String(), item.CreatedAt)
	})

	logs := make([]auditdomain.AuditLog, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		logs = append(logs, *item)
	}

	return auditdomain.ListAuditLogResponse{PageInfo: *pageInfo, AuditLogs: logs}, nil
}

func resolveAdmin(ctx context.Context, adminID string) *string {
	adminID = strings.TrimSpace(adminID)
	if adminID == "" {
		adminID = auditcontext.ActorIDFromContext(ctx)
	}
	if adminID == "" {
		return nil
	}
	return &adminID
}

func toJSONMap(values map[string]any) datatypes.JSONMap {
	if len(values) == 0 {
		return nil
	}
	return datatypes.JSONMap(values)
}
