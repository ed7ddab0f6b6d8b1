package migration

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	addressdomain "github.com/smallbiznis/storefront/internal/address/domain"
	auditdomain "github.com/smallbiznis/storefront/internal/audit/domain"
	coupondomain "github.com/smallbiznis/storefront/internal/coupon/domain"
	inventorydomain "github.com/smallbiznis/storefront/internal/inventory/domain"
	orderdomain "github.com/smallbiznis/storefront/internal/order/domain"
	productdomain "github.com/smallbiznis/storefront/internal/product/domain"
	"gorm.io/gorm"
)

//go:embed sql/*.sql
var embeddedMigrations embed.FS

const migrationsDir = "sql"

// RunMigrations applies the embedded postgres schema.
func RunMigrations(db *sql.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// Closing the migrator would close the shared *sql.DB.

	return nil
}

// Models lists every table owned by the service, in dependency order.
func Models() []any {
	return []any{
		&productdomain.Product{},
		&productdomain.ProductVariant{},
		&inventorydomain.InventoryLevel{},
		&auditdomain.AuditLog{},
		&coupondomain.Coupon{},
		&addressdomain.Address{},
		&orderdomain.Order{},
		&orderdomain.OrderItem{},
		&coupondomain.CouponUsage{},
		&orderdomain.Fulfillment{},
		&inventorydomain.StockLedger{},
	}
}

// AutoMigrate builds the schema from the gorm models. Used for sqlite and
// mysql where the embedded postgres scripts do not apply.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(Models()...)
}
