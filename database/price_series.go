package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/icodeforyou/somenergia-go/types"
)

// SaveSeries replaces every row stored for key in a single transaction.
func (d *Database) SaveSeries(ctx context.Context, key types.StoreKey, series types.PriceSeries) error {
	tx, err := d.write.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("start transaction: %w", err)
	}
	defer tx.Rollback() // no-op after commit

	if _, err := tx.ExecContext(ctx, `DELETE FROM price_series WHERE store_key = ?`, key.Date); err != nil {
		return fmt.Errorf("clearing price series %s: %w", key, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO price_series (store_key, ts, time, price) VALUES (?, ?, ?, ?)
		ON CONFLICT(store_key, ts) DO UPDATE SET time = excluded.time, price = excluded.price`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, p := range series {
		var price sql.NullString
		if p.Price.Valid {
			price = sql.NullString{String: p.Price.Decimal.String(), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, key.Date, p.Time.Unix(), p.Time.Format(time.RFC3339), price); err != nil {
			return fmt.Errorf("inserting price point %s: %w", p.Time.Format(time.RFC3339), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit price series %s: %w", key, err)
	}

	d.logger.Debug("saved price series", slog.String("key", key.Date), slog.Int("points", len(series)))
	return nil
}

// LoadSeries returns the rows stored for key ordered by time, an unknown key
// gives an empty series.
func (d *Database) LoadSeries(ctx context.Context, key types.StoreKey) (types.PriceSeries, error) {
	rows, err := d.read.QueryContext(ctx, `
		SELECT time, price
		FROM price_series
		WHERE store_key = ?
		ORDER BY ts ASC`,
		key.Date)
	if err != nil {
		return nil, fmt.Errorf("fetching price series %s: %w", key, err)
	}
	defer rows.Close()

	series := types.PriceSeries{}
	for rows.Next() {
		var ts string
		var price sql.NullString
		if err := rows.Scan(&ts, &price); err != nil {
			return nil, fmt.Errorf("scanning price series row: %w", err)
		}

		var p types.PricePoint
		p.Time, err = time.Parse(time.RFC3339, ts)
		if err != nil {
			return nil, fmt.Errorf("parsing time %q: %w", ts, err)
		}
		if price.Valid {
			dec, err := decimal.NewFromString(price.String)
			if err != nil {
				return nil, fmt.Errorf("parsing price %q: %w", price.String, err)
			}
			p.Price = decimal.NewNullDecimal(dec)
		}
		series = append(series, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading price series rows: %w", err)
	}

	return series, nil
}

// PurgeSeries deletes the series of days older than retentionDays before today.
func (d *Database) PurgeSeries(ctx context.Context, retentionDays int, today types.StoreKey) error {
	if retentionDays < 1 {
		return nil
	}
	before := today.AddDays(-retentionDays)
	d.logger.Debug("purging price series", slog.String("before", before.Date))

	res, err := d.write.ExecContext(ctx, `DELETE FROM price_series WHERE store_key < ?`, before.Date)
	if err != nil {
		return fmt.Errorf("error when purging price_series: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		d.logger.Warn("can't get rows affected by purge", slog.String("table", "price_series"), slog.Any("error", err))
	} else {
		d.logger.Debug(fmt.Sprintf("purged %d rows from price_series", rows))
	}

	return nil
}

// SeriesStore stores price series in the database instead of CSV files.
type SeriesStore struct {
	db *Database
}

func NewSeriesStore(db *Database) SeriesStore {
	return SeriesStore{db: db}
}

func (s SeriesStore) Identifier(key types.StoreKey) string {
	return fmt.Sprintf("sqlite:%s#%s", s.db.path, key.Date)
}

func (s SeriesStore) Load(ctx context.Context, key types.StoreKey) (types.PriceSeries, error) {
	series, err := s.db.LoadSeries(ctx, key)
	if err != nil {
		return nil, &types.StorageError{Key: key, Op: "read", Err: err}
	}
	return series, nil
}

func (s SeriesStore) Save(ctx context.Context, key types.StoreKey, series types.PriceSeries) error {
	if err := s.db.SaveSeries(ctx, key, series); err != nil {
		return &types.StorageError{Key: key, Op: "write", Err: err}
	}
	return nil
}
