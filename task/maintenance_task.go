package task

import (
	"context"
	"log/slog"
	"time"

	"github.com/icodeforyou/somenergia-go/config"
	"github.com/icodeforyou/somenergia-go/database"
	"github.com/icodeforyou/somenergia-go/hours"
	"github.com/icodeforyou/somenergia-go/store"
)

// NewMaintenanceTask purges old series and, when a database is in use, backs
// it up and trims its log. files and db may be nil.
func NewMaintenanceTask(
	logger *slog.Logger,
	clock hours.Clock,
	files *store.FileStore,
	db *database.Database,
	cnfg *config.AppConfig,
) func() {
	return func() {
		logger.Debug("running maintenance task...")

		ctx, cancel := context.WithTimeout(context.Background(), 1*time.Minute)
		defer cancel()

		_, today := hours.Keys(clock.Now())
		retention := cnfg.Store.GetRetentionDays()

		if files != nil {
			if err := files.Purge(ctx, retention, today); err != nil {
				logger.Error("series file maintenance error", slog.Any("error", err))
			}
		}

		if db != nil {
			if err := db.Backup(ctx); err != nil {
				logger.Error("database backup error", slog.Any("error", err))
			}

			if err := db.PurgeBackups(ctx, cnfg.Database.GetBackupRetentionDays()); err != nil {
				logger.Error("backup maintenance error", slog.Any("error", err))
			}

			if err := db.PurgeLog(ctx, cnfg.Logging.GetDbMaxEntries()); err != nil {
				logger.Error("log maintenance error", slog.Any("error", err))
			}

			if err := db.PurgeSeries(ctx, retention, today); err != nil {
				logger.Error("price_series maintenance error", slog.Any("error", err))
			}
		}

		logger.Info("maintenance task done")
	}
}
