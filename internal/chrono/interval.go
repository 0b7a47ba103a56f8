package chrono

import "time"

// Interval is a time known only to lie within [Lo, Hi].
type Interval struct {
	Lo Millis
	Hi Millis
}

// At returns the degenerate interval [m, m].
func At(m Millis) Interval {
	return Interval{Lo: m, Hi: m}
}

// IntervalDomain orders intervals strictly only when they do not overlap.
// Two overlapping intervals are neither less nor greater than each other,
// so a label comparison treats them as equal in time.
type IntervalDomain struct{}

func (IntervalDomain) Less(a, b Interval) bool { return a.Hi < b.Lo }
func (IntervalDomain) Max() Interval           { return At(MaxMillis) }
func (IntervalDomain) Min() Interval           { return At(MinMillis) }
func (IntervalDomain) Safe() Interval          { return At(SafeMillis) }

func (IntervalDomain) Add(t Interval, d time.Duration) Interval {
	var m MillisDomain
	return Interval{Lo: m.Add(t.Lo, d), Hi: m.Add(t.Hi, d)}
}

// Sub measures between the lower bounds.
func (IntervalDomain) Sub(a, b Interval) time.Duration {
	return time.Duration(a.Lo-b.Lo) * time.Millisecond
}

// Overlaps reports whether a and b share at least one instant.
func (a Interval) Overlaps(b Interval) bool {
	return a.Lo <= b.Hi && b.Lo <= a.Hi
}
