package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/lmittmann/tint"

	"github.com/icodeforyou/somenergia-go/config"
	"github.com/icodeforyou/somenergia-go/database"
	"github.com/icodeforyou/somenergia-go/hours"
	"github.com/icodeforyou/somenergia-go/logging"
	"github.com/icodeforyou/somenergia-go/notify"
	"github.com/icodeforyou/somenergia-go/somenergia"
	"github.com/icodeforyou/somenergia-go/store"
	"github.com/icodeforyou/somenergia-go/task"
	"github.com/icodeforyou/somenergia-go/types"
)

var Version = "?.?.?"

func main() {
	defer func() {
		if err := recover(); err != nil {
			exitWithError(slog.Default(), fmt.Errorf("application panicked: %v", err))
		}
	}()

	configPath := flag.String("config", "", "path to config file")
	schedule := flag.Bool("schedule", false, "keep running and update prices on the configured schedule")
	maintenance := flag.Bool("maintenance", false, "run the maintenance task once and exit")
	date := flag.String("date", "", "write the store of this day (YYYY-MM-DD) instead of today's")
	flag.Parse()

	cnfg, err := config.Load(*configPath)
	if err != nil {
		exitWithError(slog.Default(), fmt.Errorf("failed to load config: %w", err))
	}
	if err := cnfg.Validate(); err != nil {
		exitWithError(slog.Default(), fmt.Errorf("invalid config: %w", err))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	consoleHandler := tint.NewHandler(os.Stdout, &tint.Options{
		Level:      cnfg.Logging.GetConsoleLevel(),
		TimeFormat: time.RFC3339,
	})
	logger := slog.New(consoleHandler)
	slog.SetDefault(logger)
	logger.Debug("somenergia-go is starting...", slog.String("version", Version))

	var db *database.Database
	if cnfg.Database.Enabled() {
		db, err = database.New(ctx, cnfg.Database.Path)
		if err != nil {
			exitWithError(logger, fmt.Errorf("failed to open database: %w", err))
		}
		defer db.Close()

		logger = slog.New(logging.NewMultiHandler(
			consoleHandler,
			logging.NewSQLiteHandler(db, cnfg.Logging.GetDbLevel(), cnfg.Logging.GetDbAttrsFormat())))
		slog.SetDefault(logger)

		// Now we can use the logger to log database operations into the database itself
		db.SetLogger(logger.With("module", "database"))
	}

	clock, err := hours.NewClock(cnfg.Timezone)
	if err != nil {
		exitWithError(logger, err)
	}
	if *date != "" {
		key, err := types.ParseStoreKey(*date)
		if err != nil {
			exitWithError(logger, err)
		}
		if clock, err = hours.FixedClockAt(key, clock.Location()); err != nil {
			exitWithError(logger, err)
		}
	}

	var seriesStore types.SeriesStore
	var files *store.FileStore
	switch strings.ToLower(cnfg.Store.Backend) {
	case config.BackendSQLite:
		seriesStore = database.NewSeriesStore(db)
	default:
		files = store.NewFileStore(cnfg.Store.Dir, cnfg.Store.FilePrefix, clock.Location())
		files.SetLogger(logger.With("module", "store"))
		seriesStore = files
	}

	update := task.NewPriceUpdate(
		logger.With("module", "price_update"),
		clock,
		somenergia.New(cnfg.SomEnergia.BaseURL, cnfg.SomEnergia.Timeout),
		seriesStore,
		cnfg.SomEnergia.Tariff,
		cnfg.SomEnergia.GeoZone)

	if cnfg.Mqtt.Enabled() {
		mq := notify.NewMqtt(
			cnfg.Mqtt.Host,
			cnfg.Mqtt.Port,
			cnfg.Mqtt.Username,
			cnfg.Mqtt.Password,
			cnfg.Mqtt.ClientId,
			cnfg.Mqtt.Topic)
		connCtx, connCancel := context.WithTimeout(ctx, 15*time.Second)
		if err := mq.Connect(connCtx); err != nil {
			logger.Warn("mqtt unavailable, notifications disabled", slog.Any("error", err))
		} else {
			defer mq.Disconnect()
			update.SetNotifier(mq)
		}
		connCancel()
	}

	maintenanceTask := task.NewMaintenanceTask(
		logger.With(slog.String("task", "maintenance")), clock, files, db, cnfg)

	switch {
	case *maintenance:
		maintenanceTask()

	case *schedule:
		tasks := task.NewTasks(update, maintenanceTask, cnfg.Schedule, clock.Location())
		if err := tasks.Run(); err != nil {
			exitWithError(logger, err)
		}
		logger.Info("price updates scheduled", slog.String("runAt", cnfg.Schedule.RunAt), slog.Time("next", tasks.Next()))

		<-ctx.Done()
		logger.Info("application is shutting down...")
		<-tasks.Stop().Done()

	default:
		runCtx, runCancel := context.WithTimeout(ctx, task.RunTimeout)
		id, err := update.Run(runCtx)
		runCancel()
		if err != nil {
			exitWithError(logger, fmt.Errorf("price update failed: %w", err))
		}
		fmt.Printf("File saved: %s\n", id)
	}
}

func exitWithError(logger *slog.Logger, err error) {
	if err != nil {
		logger.Error("application shutting down with error", slog.Any("error", err))
	}
	if syncer, ok := logger.Handler().(interface{ Sync() error }); ok {
		if syncErr := syncer.Sync(); syncErr != nil {
			logger.Error("failed to flush logger", slog.Any("error", syncErr))
		}
	}

	os.Exit(1)
}
