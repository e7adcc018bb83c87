package series

import (
	"encoding/json"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/icodeforyou/somenergia-go/hours"
	"github.com/icodeforyou/somenergia-go/types"
)

func price(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

var null = decimal.NullDecimal{}

func makeSeries(start time.Time, prices ...decimal.NullDecimal) types.PriceSeries {
	s := make(types.PriceSeries, len(prices))
	for i, p := range prices {
		s[i] = types.PricePoint{Time: start.Add(time.Duration(i) * time.Hour), Price: p}
	}
	return s
}

func assertSeries(t *testing.T, expected, actual types.PriceSeries) {
	t.Helper()
	require.Len(t, actual, len(expected))
	for i := range expected {
		assert.True(t, expected[i].Time.Equal(actual[i].Time),
			"point %d: expected time %s, got %s", i, expected[i].Time, actual[i].Time)
		assert.Equal(t, expected[i].Price.Valid, actual[i].Price.Valid, "point %d: validity", i)
		if expected[i].Price.Valid {
			assert.True(t, expected[i].Price.Decimal.Equal(actual[i].Price.Decimal),
				"point %d: expected price %s, got %s", i, expected[i].Price.Decimal, actual[i].Price.Decimal)
		}
	}
}

func assertStrictlyAscending(t *testing.T, s types.PriceSeries) {
	t.Helper()
	for i := 1; i < len(s); i++ {
		assert.True(t, s[i-1].Time.Before(s[i].Time), "point %d (%s) is not after point %d (%s)", i, s[i].Time, i-1, s[i-1].Time)
	}
}

var start = time.Date(2024, 1, 1, 0, 0, 0, 0, hours.Madrid())

func TestNormalizeShiftsOneHour(t *testing.T) {
	var payload types.RawPricePayload
	require.NoError(t, json.Unmarshal([]byte(`{"data":{"first_date":"2024-01-01T01:00:00+01:00","curves":{"price_euros_kwh":[10,20,30]}}}`), &payload))

	got, err := NewNormalizer(hours.Madrid()).Normalize(payload)
	require.NoError(t, err)

	assertSeries(t, makeSeries(start, price("10"), price("20"), price("30")), got)
	assert.Equal(t, "2024-01-01T00:00:00+01:00", got[0].Time.Format(time.RFC3339))
	assert.Equal(t, "2024-01-01T02:00:00+01:00", got[2].Time.Format(time.RFC3339))
}

func TestNormalizeKeepsNulls(t *testing.T) {
	var payload types.RawPricePayload
	require.NoError(t, json.Unmarshal([]byte(`{"data":{"first_date":"2024-01-01T01:00:00+01:00","curves":{"price_euros_kwh":[0.1,null,0.3]}}}`), &payload))

	got, err := NewNormalizer(hours.Madrid()).Normalize(payload)
	require.NoError(t, err)

	require.Len(t, got, 3)
	assert.False(t, got[1].Price.Valid)
	assert.True(t, got[1].Time.Equal(start.Add(time.Hour)))
}

func TestNormalizeNaiveFirstDate(t *testing.T) {
	payload := types.RawPricePayload{Data: &types.RawPriceData{
		FirstDate: "2024-07-01T01:00:00",
		Curves:    types.RawPriceCurve{PriceEurosKwh: []decimal.NullDecimal{price("0.1")}},
	}}

	got, err := NewNormalizer(hours.Madrid()).Normalize(payload)
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.Equal(t, "2024-07-01T00:00:00+02:00", got[0].Time.Format(time.RFC3339))
}

func TestNormalizeFirstDateLayouts(t *testing.T) {
	tests := []struct {
		name      string
		firstDate string
		expected  time.Time
	}{
		{"rfc3339", "2024-01-01T01:00:00+01:00", start},
		{"fractional seconds", "2024-01-01T01:00:00.000+01:00", start},
		{"utc", "2024-01-01T00:00:00Z", start},
		{"offset without colon", "2024-01-01T01:00:00+0100", start},
		{"space separator", "2024-01-01 01:00:00+01:00", start},
		{"space separator offset without colon", "2024-01-01 01:00:00+0100", start},
		{"date only", "2024-01-01", start.Add(-time.Hour)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := types.RawPricePayload{Data: &types.RawPriceData{
				FirstDate: tt.firstDate,
				Curves:    types.RawPriceCurve{PriceEurosKwh: []decimal.NullDecimal{price("0.1")}},
			}}

			got, err := NewNormalizer(hours.Madrid()).Normalize(payload)
			require.NoError(t, err)
			require.Len(t, got, 1)
			assert.True(t, tt.expected.Equal(got[0].Time), "expected %s, got %s", tt.expected, got[0].Time)
		})
	}
}

func TestNormalizeEmptyPrices(t *testing.T) {
	payload := types.RawPricePayload{Data: &types.RawPriceData{
		FirstDate: "2024-01-01T01:00:00+01:00",
		Curves:    types.RawPriceCurve{PriceEurosKwh: []decimal.NullDecimal{}},
	}}

	got, err := NewNormalizer(hours.Madrid()).Normalize(payload)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestNormalizeErrors(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		field   string
	}{
		{"missing data", `{}`, "data"},
		{"missing first date", `{"data":{"curves":{"price_euros_kwh":[1]}}}`, "data.first_date"},
		{"missing curve", `{"data":{"first_date":"2024-01-01T01:00:00+01:00","curves":{}}}`, "data.curves.price_euros_kwh"},
		{"malformed first date", `{"data":{"first_date":"yesterday","curves":{"price_euros_kwh":[1]}}}`, "data.first_date"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var payload types.RawPricePayload
			require.NoError(t, json.Unmarshal([]byte(tt.payload), &payload))

			_, err := NewNormalizer(hours.Madrid()).Normalize(payload)
			var pe *types.ParseError
			require.True(t, errors.As(err, &pe), "expected ParseError, got %v", err)
			assert.Equal(t, tt.field, pe.Field)
		})
	}
}

func TestMergeIdempotent(t *testing.T) {
	s := makeSeries(start, price("0.1"), null, price("0.3"), price("0.4"))

	assertSeries(t, s, Merge(s, s))
}

func TestMergeLastWriteWins(t *testing.T) {
	previous := makeSeries(start, price("0.1"), price("0.1"), price("0.1"))
	incoming := makeSeries(start.Add(time.Hour), price("0.2"))

	got := Merge(previous, incoming)

	assertSeries(t, makeSeries(start, price("0.1"), price("0.2"), price("0.1")), got)
}

func TestMergeNullOverridesValue(t *testing.T) {
	previous := makeSeries(start, price("0.1"))
	incoming := makeSeries(start, null)

	got := Merge(previous, incoming)

	require.Len(t, got, 1)
	assert.False(t, got[0].Price.Valid, "incoming null must win over the stored value")
}

func TestMergeSameInstantDifferentZone(t *testing.T) {
	previous := makeSeries(start, price("0.1"))
	incoming := makeSeries(start.UTC(), price("0.2"))

	got := Merge(previous, incoming)

	require.Len(t, got, 1)
	assert.Equal(t, "0.2", got[0].Price.Decimal.String())
}

func TestMergeCompletenessAndOrder(t *testing.T) {
	previous := makeSeries(start, price("1"), price("2"), price("3"), price("4"))
	incoming := makeSeries(start.Add(2*time.Hour), price("30"), price("40"), price("50"), price("60"))

	rnd := rand.New(rand.NewSource(42))
	rnd.Shuffle(len(previous), func(i, j int) { previous[i], previous[j] = previous[j], previous[i] })
	rnd.Shuffle(len(incoming), func(i, j int) { incoming[i], incoming[j] = incoming[j], incoming[i] })

	got := Merge(previous, incoming)

	assertStrictlyAscending(t, got)
	assertSeries(t, makeSeries(start, price("1"), price("2"), price("30"), price("40"), price("50"), price("60")), got)
}

func TestMergeEmptyPrevious(t *testing.T) {
	incoming := makeSeries(start, price("3"), price("1"), price("2"))
	incoming[0], incoming[2] = incoming[2], incoming[0]

	got := Merge(types.PriceSeries{}, incoming)

	assertSeries(t, makeSeries(start, price("3"), price("1"), price("2")), got)
}

func TestMergeBothEmpty(t *testing.T) {
	assert.Empty(t, Merge(nil, nil))
}

func TestNormalizeThenMergeAcrossDays(t *testing.T) {
	// Yesterday's store holds 24 hours at 0.10, the fetch republishes 10-12
	// of yesterday at 0.20 and brings today's 24 hours at 0.15.
	yesterday := time.Date(2024, 5, 1, 0, 0, 0, 0, hours.Madrid())
	today := yesterday.AddDate(0, 0, 1)

	prior := make(types.PriceSeries, 24)
	for i := range prior {
		prior[i] = types.PricePoint{Time: yesterday.Add(time.Duration(i) * time.Hour), Price: price("0.10")}
	}

	prices := []decimal.NullDecimal{}
	for i := 10; i <= 12; i++ {
		prices = append(prices, price("0.20"))
	}
	for i := 13; i < 24; i++ {
		prices = append(prices, price("0.10"))
	}
	for i := 0; i < 24; i++ {
		prices = append(prices, price("0.15"))
	}
	payload := types.RawPricePayload{Data: &types.RawPriceData{
		FirstDate: yesterday.Add(11 * time.Hour).Format(time.RFC3339),
		Curves:    types.RawPriceCurve{PriceEurosKwh: prices},
	}}

	fetched, err := NewNormalizer(hours.Madrid()).Normalize(payload)
	require.NoError(t, err)

	got := Merge(prior, fetched)

	require.Len(t, got, 48)
	assertStrictlyAscending(t, got)
	assert.True(t, got[0].Time.Equal(yesterday))
	assert.True(t, got[47].Time.Equal(today.Add(23*time.Hour)))
	for i, p := range got {
		want := "0.1"
		switch {
		case i >= 10 && i <= 12:
			want = "0.2"
		case i >= 24:
			want = "0.15"
		}
		assert.Equal(t, want, p.Price.Decimal.String(), "hour %d", i)
	}
}

func TestInLocation(t *testing.T) {
	s := makeSeries(time.Date(2024, 10, 26, 22, 0, 0, 0, time.UTC), price("1"), price("2"), price("3"))

	got := InLocation(s, hours.Madrid())

	// 2024-10-27 is the fall back day in Madrid, 02:00 is repeated
	assert.Equal(t, "2024-10-27T00:00:00+02:00", got[0].Time.Format(time.RFC3339))
	assert.Equal(t, "2024-10-27T02:00:00+02:00", got[2].Time.Format(time.RFC3339))
	assertSeries(t, s, got)
}
