package hours

import (
	"fmt"
	"time"

	"github.com/icodeforyou/somenergia-go/types"
)

const DefaultTimezone = "Europe/Madrid"

var madridLoc *time.Location

func init() {
	var err error
	madridLoc, err = time.LoadLocation(DefaultTimezone)
	if err != nil {
		panic(fmt.Sprintf("failed to load Madrid location: %v", err))
	}
}

func Madrid() *time.Location {
	return madridLoc
}

// LoadLocation is time.LoadLocation with the Madrid location as the default
// for an empty name.
func LoadLocation(timezone string) (*time.Location, error) {
	if timezone == "" || timezone == DefaultTimezone {
		return madridLoc, nil
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone %s: %w", timezone, err)
	}
	return loc, nil
}

type Clock interface {
	Now() time.Time
	Location() *time.Location
}

type systemClock struct {
	loc *time.Location
}

func NewClock(timezone string) (Clock, error) {
	loc, err := LoadLocation(timezone)
	if err != nil {
		return nil, err
	}
	return systemClock{loc: loc}, nil
}

func (c systemClock) Now() time.Time {
	return time.Now().In(c.loc)
}

func (c systemClock) Location() *time.Location {
	return c.loc
}

// FixedClock always returns the same instant.
type FixedClock struct {
	T time.Time
}

func (c FixedClock) Now() time.Time {
	return c.T
}

func (c FixedClock) Location() *time.Location {
	return c.T.Location()
}

// FixedClockAt returns a clock stopped at noon of the given day in loc.
func FixedClockAt(key types.StoreKey, loc *time.Location) (FixedClock, error) {
	midnight, err := key.Time(loc)
	if err != nil {
		return FixedClock{}, err
	}
	return FixedClock{T: midnight.Add(12 * time.Hour)}, nil
}

// Keys returns the store keys of the day before now and of now, both by the
// civil calendar of now's location.
func Keys(now time.Time) (yesterday, today types.StoreKey) {
	return types.StoreKeyFromTime(now.AddDate(0, 0, -1)), types.StoreKeyFromTime(now)
}
