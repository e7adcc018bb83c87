package task

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/icodeforyou/somenergia-go/config"
)

type Tasks struct {
	cron            *cron.Cron
	cnfg            config.AppConfigSchedule
	priceUpdateId   cron.EntryID
	PriceUpdateTask func()
	MaintenanceTask func()
}

func NewTasks(
	update *PriceUpdate,
	maintenance func(),
	cnfg config.AppConfigSchedule,
	loc *time.Location,
) *Tasks {
	logger := slog.Default().With("module", "tasks")
	return &Tasks{
		cron:            cron.New(cron.WithLocation(loc)),
		cnfg:            cnfg,
		PriceUpdateTask: NewPriceUpdateTask(logger.With(slog.String("task", "price_update")), update),
		MaintenanceTask: maintenance,
	}
}

func (t *Tasks) Run() error {
	id, err := t.cron.AddFunc(t.cnfg.RunAt, t.PriceUpdateTask)
	if err != nil {
		return fmt.Errorf("schedule price update %q: %w", t.cnfg.RunAt, err)
	}
	t.priceUpdateId = id
	if t.MaintenanceTask != nil {
		if _, err := t.cron.AddFunc(t.cnfg.MaintenanceAt, t.MaintenanceTask); err != nil {
			return fmt.Errorf("schedule maintenance %q: %w", t.cnfg.MaintenanceAt, err)
		}
	}
	t.cron.Start()
	return nil
}

// Next returns when the price update runs next, zero before Run.
func (t *Tasks) Next() time.Time {
	return t.cron.Entry(t.priceUpdateId).Next
}

func (t *Tasks) Stop() context.Context {
	return t.cron.Stop()
}
