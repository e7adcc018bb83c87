package series

import (
	"errors"
	"fmt"
	"time"

	"github.com/icodeforyou/somenergia-go/types"
)

// The upstream feed labels each hour by its end, so first_date is one hour
// late.
const feedShift = time.Hour

// Layouts carrying a zone offset, tried in order.
var offsetLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05Z0700",
	"2006-01-02T15:04Z07:00",
}

// Layouts without a zone offset, read in the normalizer's location.
var naiveLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

type Normalizer struct {
	loc *time.Location
}

func NewNormalizer(loc *time.Location) Normalizer {
	if loc == nil {
		loc = time.UTC
	}
	return Normalizer{loc: loc}
}

// Normalize turns a payload into one point per hour, starting one hour before
// first_date. Null prices are kept.
func (n Normalizer) Normalize(payload types.RawPricePayload) (types.PriceSeries, error) {
	if payload.Data == nil {
		return nil, &types.ParseError{Field: "data", Err: errors.New("missing")}
	}
	if payload.Data.FirstDate == "" {
		return nil, &types.ParseError{Field: "data.first_date", Err: errors.New("missing")}
	}
	prices := payload.Data.Curves.PriceEurosKwh
	if prices == nil {
		return nil, &types.ParseError{Field: "data.curves.price_euros_kwh", Err: errors.New("missing")}
	}

	first, err := n.parseTime(payload.Data.FirstDate)
	if err != nil {
		return nil, &types.ParseError{Field: "data.first_date", Err: err}
	}
	first = first.Add(-feedShift)

	result := make(types.PriceSeries, len(prices))
	for i, price := range prices {
		result[i] = types.PricePoint{
			Time:  first.Add(time.Duration(i) * time.Hour),
			Price: price,
		}
	}

	return result, nil
}

func (n Normalizer) parseTime(str string) (time.Time, error) {
	for _, layout := range offsetLayouts {
		if t, err := time.Parse(layout, str); err == nil {
			return t, nil
		}
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, str, n.loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("not an ISO-8601 date-time: %q", str)
}
