package migrate

import (
	"context"
	"fmt"

	"github.com/kariteco/storefront-core/pkg/config"
	"github.com/kariteco/storefront-core/pkg/db"
	"github.com/kariteco/storefront-core/pkg/db/models"
	"github.com/kariteco/storefront-core/pkg/logger"
)

// MaybeRunDev executes migrations automatically when the app is running in dev
// mode and the feature flag is enabled. The sqlite driver uses GORM
// auto-migration since the SQL files target postgres.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}

	if cfg.DB.IsSQLite() {
		logg.Info(ctx, "auto-migrating sqlite schema")
		if err := client.DB().WithContext(ctx).AutoMigrate(
			&models.User{},
			&models.Product{},
			&models.Cart{},
			&models.CartItem{},
		); err != nil {
			return fmt.Errorf("sqlite auto-migrate: %w", err)
		}
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}

	ctx = logg.WithField(ctx, "env", cfg.App.Env)
	logg.Info(ctx, "running goose migrations (dev auto-run)")

	if err := Up(ctx, sqlDB); err != nil {
		return fmt.Errorf("running goose up: %w", err)
	}

	logg.Info(ctx, "goose migrations completed")
	return nil
}
