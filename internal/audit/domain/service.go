package domain

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/storefront/pkg/db/pagination"
	"gorm.io/gorm"
)

// Entry describes one mutation to record. AdminID falls back to the actor
// carried by the request context.
type Entry struct {
	AdminID    string
	EntityType string
	EntityID   string
	Action     Action
	OldValue   map[string]any
	NewValue   map[string]any
	Metadata   map[string]any
}

type ListAuditLogRequest struct {
	pagination.Pagination
	EntityType string
	EntityID   string
	Action     string
	AdminID    string
	StartAt    *time.Time
	EndAt      *time.Time
}

type ListAuditLogResponse struct {
	pagination.PageInfo
	AuditLogs []AuditLog `json:"audit_logs"`
}

type Service interface {
	// Record writes the entry using tx so it commits or rolls back with the
	// mutation it describes. A nil tx uses the service connection.
	Record(ctx context.Context, tx *gorm.DB, entry Entry) (*AuditLog, error)
	List(ctx context.Context, req ListAuditLogRequest) (ListAuditLogResponse, error)
}

var (
	ErrInvalidPageToken  = errors.New("invalid_page_token")
	ErrInvalidTimeRange  = errors.New("invalid_time_range")
	ErrInvalidAction     = errors.New("invalid_action")
	ErrInvalidEntityType = errors.New("invalid_entity_type")
	ErrInvalidEntityID   = errors.New("invalid_entity_id")
)
