package types

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// PricePoint is the price of one hour, Price is in EUR per kWh and may be null.
type PricePoint struct {
	Time  time.Time
	Price decimal.NullDecimal
}

// PriceSeries is ordered ascending by Time once it has been merged.
type PriceSeries []PricePoint

func (s PriceSeries) First() (PricePoint, bool) {
	if len(s) == 0 {
		return PricePoint{}, false
	}
	return s[0], true
}

func (s PriceSeries) Last() (PricePoint, bool) {
	if len(s) == 0 {
		return PricePoint{}, false
	}
	return s[len(s)-1], true
}

// RawPricePayload is the response body of the indexed prices endpoint.
type RawPricePayload struct {
	Data *RawPriceData `json:"data"`
}

type RawPriceData struct {
	FirstDate string        `json:"first_date"`
	Curves    RawPriceCurve `json:"curves"`
}

type RawPriceCurve struct {
	// One price per hour starting at FirstDate, entries can be null.
	PriceEurosKwh []decimal.NullDecimal `json:"price_euros_kwh"`
}

type PriceFetcher interface {
	Fetch(ctx context.Context, tariff, zone string) (RawPricePayload, error)
}

type SeriesStore interface {
	// Load returns an empty series when nothing has been stored for key.
	Load(ctx context.Context, key StoreKey) (PriceSeries, error)
	// Save replaces whatever is stored for key.
	Save(ctx context.Context, key StoreKey, series PriceSeries) error
	Identifier(key StoreKey) string
}
