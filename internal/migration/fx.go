package migration

import (
	"github.com/smallbiznis/storefront/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
		if !cfg.DBAutoMigrate {
			return nil
		}

		if conn.Dialector.Name() != "postgres" {
			log.Info("applying gorm auto migration", zap.String("dialect", conn.Dialector.Name()))
			return AutoMigrate(conn)
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		log.Info("applying embedded migrations")
		return RunMigrations(sqlDB)
	}),
)
