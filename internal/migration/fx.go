package migration

import (
	"github.com/smallbiznis/appointly/internal/config"
	"github.com/smallbiznis/appointly/internal/seed"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
		if cfg.DBType == "postgres" {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			if err := RunMigrations(sqlDB); err != nil {
				return err
			}
		} else if err := AutoMigrate(conn); err != nil {
			return err
		}

		if cfg.SeedDemoData && !cfg.IsProduction() {
			catalog, err := seed.EnsureDemoCatalog(conn)
			if err != nil {
				return err
			}
			log.Info("demo catalog ready",
				zap.String("tech_profile_id", catalog.TechProfileID.String()),
				zap.String("client_id", catalog.ClientID.String()),
			)
		}
		return nil
	}),
)
