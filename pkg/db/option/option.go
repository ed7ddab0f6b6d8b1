package option

import (
	"fmt"
	"strings"
	"time"

	"github.com/smallbiznis/storefront/pkg/db/pagination"
	"gorm.io/gorm"
)

// QueryOption mutates a query before execution.
type QueryOption interface {
	Apply(db *gorm.DB) *gorm.DB
}

type QueryOptionFunc func(db *gorm.DB) *gorm.DB

func (f QueryOptionFunc) Apply(db *gorm.DB) *gorm.DB { return f(db) }

type Operator string

const (
	EQ  Operator = "="
	NEQ Operator = "<>"
	GT  Operator = ">"
	GTE Operator = ">="
	LT  Operator = "<"
	LTE Operator = "<="
)

type Condition struct {
	Field    string
	Operator Operator
	Value    any
}

// ApplyOperator adds a single comparison. Unknown operators are ignored.
func ApplyOperator(cond Condition) QueryOption {
	return QueryOptionFunc(func(db *gorm.DB) *gorm.DB {
		switch cond.Operator {
		case EQ, NEQ, GT, GTE, LT, LTE:
		default:
			return db
		}
		field := strings.TrimSpace(cond.Field)
		if field == "" {
			return db
		}
		return db.Where(fmt.Sprintf("%s %s ?", field, cond.Operator), cond.Value)
	})
}

type QuerySortBy struct {
	SortBy  string
	OrderBy string
	Allow   map[string]bool
}

func WithQuerySortBy(sortBy, orderBy string, allow map[string]bool) QuerySortBy {
	return QuerySortBy{SortBy: sortBy, OrderBy: orderBy, Allow: allow}
}

// WithSortBy orders by an allow-listed column, defaulting to created_at desc.
func WithSortBy(q QuerySortBy) QueryOption {
	return QueryOptionFunc(func(db *gorm.DB) *gorm.DB {
		column := strings.ToLower(strings.TrimSpace(q.SortBy))
		if column == "" || !q.Allow[column] {
			column = "created_at"
		}
		direction := "desc"
		if strings.EqualFold(strings.TrimSpace(q.OrderBy), "asc") {
			direction = "asc"
		}
		return db.Order(fmt.Sprintf("%s %s", column, direction)).Order(fmt.Sprintf("id %s", direction))
	})
}

const (
	DefaultPageSize = 50
	MaxPageSize     = 250
)

// NormalizePageSize clamps the requested size into [1, MaxPageSize].
func NormalizePageSize(size int) int {
	switch {
	case size <= 0:
		return DefaultPageSize
	case size > MaxPageSize:
		return MaxPageSize
	default:
		return size
	}
}

// ApplyPagination applies keyset pagination on (created_at, id) descending.
// One extra row is fetched so callers can tell whether more pages exist.
func ApplyPagination(page pagination.Pagination) QueryOption {
	return QueryOptionFunc(func(db *gorm.DB) *gorm.DB {
		size := NormalizePageSize(page.PageSize)
		if token := strings.TrimSpace(page.PageToken); token != "" {
			cursor, err := pagination.DecodeCursor(token)
			if err == nil && cursor.ID != "" {
				if createdAt, perr := time.Parse(time.RFC3339Nano, cursor.CreatedAt); perr == nil {
					db = db.Where("(created_at < ?) OR (created_at = ? AND id < ?)", createdAt, createdAt, cursor.ID)
				}
			}
		}
		return db.Order("created_at desc").Order("id desc").Limit(size + 1)
	})
}
