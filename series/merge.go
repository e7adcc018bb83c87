package series

import (
	"slices"
	"time"

	"github.com/icodeforyou/somenergia-go/slice"
	"github.com/icodeforyou/somenergia-go/types"
)

// Merge combines a stored series with a freshly fetched one. Points are
// keyed by instant; when both hold the same instant the incoming point wins.
// The result is sorted ascending and holds each instant once.
func Merge(previous, incoming types.PriceSeries) types.PriceSeries {
	byInstant := make(map[int64]types.PricePoint, len(previous)+len(incoming))
	for _, s := range []types.PriceSeries{previous, incoming} {
		for _, p := range s {
			byInstant[p.Time.UnixNano()] = p
		}
	}

	result := make(types.PriceSeries, 0, len(byInstant))
	for _, p := range byInstant {
		result = append(result, p)
	}
	slices.SortFunc(result, func(a, b types.PricePoint) int {
		return a.Time.Compare(b.Time)
	})

	return result
}

// InLocation returns a copy of s with every timestamp expressed in loc.
func InLocation(s types.PriceSeries, loc *time.Location) types.PriceSeries {
	return slice.Map(s, func(p types.PricePoint) types.PricePoint {
		return types.PricePoint{Time: p.Time.In(loc), Price: p.Price}
	})
}
