package task

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/icodeforyou/somenergia-go/hours"
	"github.com/icodeforyou/somenergia-go/notify"
	"github.com/icodeforyou/somenergia-go/series"
	"github.com/icodeforyou/somenergia-go/types"
)

const RunTimeout = time.Minute

type Notifier interface {
	Notify(ctx context.Context, msg notify.StoreWritten) error
}

// PriceUpdate merges yesterday's stored series with freshly fetched prices
// and stores the result under today's key.
type PriceUpdate struct {
	logger     *slog.Logger
	clock      hours.Clock
	fetcher    types.PriceFetcher
	store      types.SeriesStore
	normalizer series.Normalizer
	tariff     string
	zone       string
	notifier   Notifier
}

func NewPriceUpdate(
	logger *slog.Logger,
	clock hours.Clock,
	fetcher types.PriceFetcher,
	store types.SeriesStore,
	tariff string,
	zone string,
) *PriceUpdate {
	return &PriceUpdate{
		logger:     logger,
		clock:      clock,
		fetcher:    fetcher,
		store:      store,
		normalizer: series.NewNormalizer(clock.Location()),
		tariff:     tariff,
		zone:       zone,
	}
}

// SetNotifier registers a notifier that is told about every saved store.
func (u *PriceUpdate) SetNotifier(n Notifier) {
	u.notifier = n
}

// Run executes one update and returns the identifier of the written store.
// Nothing is written unless every step before the save succeeded.
func (u *PriceUpdate) Run(ctx context.Context) (string, error) {
	yesterday, today := hours.Keys(u.clock.Now())
	logger := u.logger.With(slog.String("run", uuid.NewString()), slog.String("date", today.Date))
	logger.Debug("running price update...", slog.String("tariff", u.tariff), slog.String("zone", u.zone))

	prior, err := u.store.Load(ctx, yesterday)
	if err != nil {
		return "", fmt.Errorf("load %s: %w", u.store.Identifier(yesterday), err)
	}
	logger.Debug("loaded previous series", slog.String("store", u.store.Identifier(yesterday)), slog.Int("points", len(prior)))

	payload, err := u.fetcher.Fetch(ctx, u.tariff, u.zone)
	if err != nil {
		return "", fmt.Errorf("fetch %s/%s: %w", u.tariff, u.zone, err)
	}

	fetched, err := u.normalizer.Normalize(payload)
	if err != nil {
		return "", fmt.Errorf("normalize: %w", err)
	}
	if p, ok := fetched.First(); ok {
		logger.Debug("fetched prices", slog.Int("points", len(fetched)), slog.Time("first", p.Time))
	} else {
		logger.Warn("fetched payload holds no prices")
	}

	merged := series.InLocation(series.Merge(prior, fetched), u.clock.Location())

	id := u.store.Identifier(today)
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("save %s: %w", id, err)
	}
	if err := u.store.Save(ctx, today, merged); err != nil {
		return "", fmt.Errorf("save %s: %w", id, err)
	}
	logger.Info("price series saved", slog.String("store", id), slog.Int("points", len(merged)))

	if u.notifier != nil {
		if err := u.notifier.Notify(ctx, notify.NewStoreWritten(today, id, merged)); err != nil {
			logger.Warn("failed to notify about saved series", slog.Any("error", err))
		}
	}

	return id, nil
}

// NewPriceUpdateTask wraps an update for the scheduler, errors are logged.
func NewPriceUpdateTask(logger *slog.Logger, update *PriceUpdate) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), RunTimeout)
		defer cancel()

		if _, err := update.Run(ctx); err != nil {
			logger.Error("price update task error", slog.Any("error", err))
			return
		}
		logger.Info("price update task done")
	}
}
