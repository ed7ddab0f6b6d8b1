package option

import (
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/storefront/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type row struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

func dryRun(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{DryRun: true})
	require.NoError(t, err)
	return db
}

func TestWithSortByFallsBackForUnknownColumn(t *testing.T) {
	db := dryRun(t)
	var rows []row
	stmt := WithSortBy(WithQuerySortBy("password", "asc", map[string]bool{"name": true})).
		Apply(db.Model(&row{})).Find(&rows).Statement

	assert.Contains(t, stmt.SQL.String(), "ORDER BY created_at asc,id asc")
}

func TestWithSortByAllowedColumn(t *testing.T) {
	db := dryRun(t)
	var rows []row
	stmt := WithSortBy(WithQuerySortBy("name", "", map[string]bool{"name": true})).
		Apply(db.Model(&row{})).Find(&rows).Statement

	assert.Contains(t, stmt.SQL.String(), "ORDER BY name desc,id desc")
}

func TestApplyOperatorIgnoresUnknownOperator(t *testing.T) {
	db := dryRun(t)
	var rows []row
	stmt := ApplyOperator(Condition{Field: "name", Operator: "LIKE", Value: "x"}).
		Apply(db.Model(&row{})).Find(&rows).Statement
	assert.NotContains(t, stmt.SQL.String(), "WHERE")

	stmt = ApplyOperator(Condition{Field: "created_at", Operator: GTE, Value: time.Now()}).
		Apply(db.Model(&row{})).Find(&rows).Statement
	assert.Contains(t, stmt.SQL.String(), "created_at >= ?")
}

func TestApplyPaginationUsesCursor(t *testing.T) {
	db := dryRun(t)
	token, err := pagination.EncodeCursor(pagination.Cursor{ID: "42", CreatedAt: time.Now().UTC().Format(time.RFC3339Nano)})
	require.NoError(t, err)

	var rows []row
	stmt := ApplyPagination(pagination.Pagination{PageToken: token, PageSize: 10}).
		Apply(db.Model(&row{})).Find(&rows).Statement

	sql := stmt.SQL.String()
	assert.Contains(t, sql, "id < ?")
	assert.Contains(t, sql, "LIMIT")
	assert.Contains(t, stmt.Vars, 11)
}

func TestNormalizePageSize(t *testing.T) {
	assert.Equal(t, DefaultPageSize, NormalizePageSize(0))
	assert.Equal(t, MaxPageSize, NormalizePageSize(1000))
	assert.Equal(t, 20, NormalizePageSize(20))
}
