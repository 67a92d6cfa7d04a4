// Package clock holds the time source and the day-bucket derivation used by
// quota accounting.
package clock

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// dayKeyLayout is the calendar day format used for quota buckets.
const dayKeyLayout = "2006-01-02"

// Clock is the time source injected into stores, the service and the sweeper.
// Tests pass a *clockwork.FakeClock.
type Clock = clockwork.Clock

// Real returns the wall clock.
func Real() Clock {
	return clockwork.NewRealClock()
}

// DayKey returns the UTC calendar day containing t.
func DayKey(t time.Time) string {
	return t.UTC().Format(dayKeyLayout)
}

// UnixMilli is the wire representation of timestamps.
func UnixMilli(t time.Time) int64 {
	return t.UnixMilli()
}
