package types

import (
	"fmt"
	"time"
)

const StoreKeyLayout = "2006-01-02"

// StoreKey identifies the persisted series of one calendar day.
type StoreKey struct {
	Date string
}

func StoreKeyFromTime(t time.Time) StoreKey {
	return StoreKey{Date: t.Format(StoreKeyLayout)}
}

func ParseStoreKey(s string) (StoreKey, error) {
	if _, err := time.Parse(StoreKeyLayout, s); err != nil {
		return StoreKey{}, fmt.Errorf("invalid store key %q: %w", s, err)
	}
	return StoreKey{Date: s}, nil
}

func (k StoreKey) String() string {
	return k.Date
}

// Time returns midnight of the key's date in loc.
func (k StoreKey) Time(loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(StoreKeyLayout, k.Date, loc)
}

func (k StoreKey) AddDays(days int) StoreKey {
	t, err := time.Parse(StoreKeyLayout, k.Date)
	if err != nil {
		return k
	}
	return StoreKeyFromTime(t.AddDate(0, 0, days))
}

func (k StoreKey) Yesterday() StoreKey {
	return k.AddDays(-1)
}

func (k StoreKey) Before(other StoreKey) bool {
	return k.Date < other.Date
}
