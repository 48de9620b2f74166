package migration

import (
	"github.com/smallbiznis/invoicer/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(Apply),
)

// Apply prepares the schema for the configured database type before any module reads it.
func Apply(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
	log = log.Named("migration")

	switch cfg.DBType {
	case "postgres":
		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		result, err := RunMigrations(sqlDB)
		if err != nil {
			return err
		}
		log.Info("schema ready",
			zap.Uint("version", result.Version),
			zap.Bool("applied", result.Applied),
		)
		return nil
	case "sqlite":
		if err := ApplySQLite(conn); err != nil {
			return err
		}
		log.Info("sqlite schema ready")
		return nil
	default:
		log.Warn("skipping embedded migrations", zap.String("db_type", cfg.DBType))
		return nil
	}
}
