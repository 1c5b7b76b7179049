package app

import (
	"context"

	"github.com/fiffu/versionwatch/config"
	"github.com/fiffu/versionwatch/lib/models"
	"github.com/juju/errors"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func NewDatabase(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Database.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.Database.DSN)
	case "mysql":
		dialector = mysql.Open(cfg.Database.DSN)
	default:
		return nil, errors.NotSupportedf("database driver %q", cfg.Database.Driver)
	}

	gormCfg := &gorm.Config{}
	if cfg.Env == "production" {
		gormCfg.Logger = logger.Default.LogMode(logger.Warn)
	}

	db, err := gorm.Open(dialector, gormCfg)
	if err != nil {
		return nil, errors.Annotate(err, "failed to connect database")
	}
	log.Sugar().Infow("Database started", "driver", cfg.Database.Driver)

	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.Trace(err)
	}
	if cfg.Database.Driver == "sqlite" {
		// Concurrent sqlite transactions fail with SQLITE_BUSY rather than wait.
		sqlDB.SetMaxOpenConns(1)
	}

	log.Info("Starting migrations")
	if err := db.AutoMigrate(models.All()...); err != nil {
		return nil, errors.Annotate(err, "migrating")
	}

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				return sqlDB.Close()
			},
		})
	}
	return db, nil
}
