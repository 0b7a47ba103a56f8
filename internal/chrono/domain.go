// Package chrono defines the ordered time values the search engines work on.
//
// A Domain supplies the strict order, the bounds and duration arithmetic for one
// time representation. Millis (scalar unix milliseconds) is the default; Interval
// is an extension point for partially ordered time.
package chrono

import (
	"math"
	"time"
)

// Domain is an ordered time representation.
//
// Max means "never computed" and is later than everything else. Safe is the
// sentinel stored in timetables for cancelled or unusable slots; it is later
// than every legitimate time but distinct from Max.
type Domain[T comparable] interface {
	Less(a, b T) bool
	Max() T
	Min() T
	Safe() T
	Add(t T, d time.Duration) T
	Sub(a, b T) time.Duration
}

// Millis is a unix timestamp in milliseconds.
type Millis int64

const (
	MaxMillis Millis = math.MaxInt64
	MinMillis Millis = math.MinInt64
	// SafeMillis is the largest integer a float64 holds exactly.
	SafeMillis Millis = 1<<53 - 1
)

// FromTime converts t to Millis.
func FromTime(t time.Time) Millis {
	return Millis(t.UnixMilli())
}

// Time converts m back to a time.Time in loc.
func (m Millis) Time(loc *time.Location) time.Time {
	return time.UnixMilli(int64(m)).In(loc)
}

// Reachable reports whether m is neither the Max nor the Safe sentinel.
func (m Millis) Reachable() bool {
	return m < SafeMillis
}

// MillisDomain is the scalar Domain over Millis.
type MillisDomain struct{}

func (MillisDomain) Less(a, b Millis) bool { return a < b }
func (MillisDomain) Max() Millis           { return MaxMillis }
func (MillisDomain) Min() Millis           { return MinMillis }
func (MillisDomain) Safe() Millis          { return SafeMillis }

// Add saturates: sentinels stay sentinels and results never pass Safe.
func (MillisDomain) Add(t Millis, d time.Duration) Millis {
	if t >= SafeMillis || t == MinMillis {
		return t
	}
	ms := Millis(d.Milliseconds())
	if ms > 0 && t > SafeMillis-ms {
		return SafeMillis
	}
	return t + ms
}

func (MillisDomain) Sub(a, b Millis) time.Duration {
	return time.Duration(a-b) * time.Millisecond
}
