// Package raptor implements round-based public transit search: RAPTOR for
// earliest arrival and McRAPTOR for Pareto sets over arrival time and extra
// criteria.
//
// Round k holds the best journeys using at most k vehicles. Round 0 only
// walks from the source. Searches read a timetable.Provider that must not
// change during Run, and a search value must not be used from several
// goroutines at once.
package raptor

import (
	"fmt"
	"slices"
	"time"

	"golang.org/x/exp/maps"

	"gtfs-router/internal/chrono"
	"gtfs-router/internal/timetable"
)

type Settings struct {
	// WalkSpeed in meters per second.
	WalkSpeed float64
	// MaxCost drops arrivals later than departure+MaxCost. Zero disables it.
	MaxCost time.Duration
}

// Stats describes the last Run.
type Stats struct {
	Rounds        int
	MarkedStops   int
	RoutesScanned int
	CyclicTraces  int
}

// WalkDuration is the time needed to walk length meters at speed m/s.
func WalkDuration(length, speed float64) time.Duration {
	return time.Duration(length / speed * float64(time.Second))
}

// base is the state shared by both searches. It is reset on every Run.
type base[T comparable] struct {
	tt       timetable.Provider[T]
	domain   chrono.Domain[T]
	safe     T
	settings Settings
	limit    T
	marked   map[timetable.StopID]bool
	stats    Stats
	maxRound int
}

func (b *base[T]) reset(source timetable.StopID, departure T, settings Settings, rounds int) error {
	if rounds < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidRounds, rounds)
	}
	if !(settings.WalkSpeed > 0) {
		return fmt.Errorf("%w: %v", ErrInvalidWalkSpeed, settings.WalkSpeed)
	}
	if _, err := b.tt.Stop(source); err != nil {
		return err
	}
	b.safe = b.tt.SafeMax()
	b.settings = settings
	b.limit = b.domain.Max()
	if settings.MaxCost > 0 {
		b.limit = b.domain.Add(departure, settings.MaxCost)
	}
	b.marked = map[timetable.StopID]bool{source: true}
	b.stats = Stats{}
	b.maxRound = rounds
	return nil
}

func (b *base[T]) Stats() Stats { return b.stats }

func (b *base[T]) walk(from T, length float64) T {
	return b.domain.Add(from, WalkDuration(length, b.settings.WalkSpeed))
}

// usable reports whether t is a real time within the cost limit.
func (b *base[T]) usable(t T) bool {
	return t != b.safe && t != b.domain.Max() && !b.domain.Less(b.limit, t)
}

func (b *base[T]) mark(stop timetable.StopID) {
	if !b.marked[stop] {
		b.marked[stop] = true
		b.stats.MarkedStops++
	}
}

// markedStops returns the marked stops in a stable order.
func (b *base[T]) markedStops() []timetable.StopID {
	stops := maps.Keys(b.marked)
	slices.Sort(stops)
	return stops
}

// earliestTrip returns the first trip before upTo whose departure from stop
// index i is not cancelled and not earlier than minTime, or -1.
func (b *base[T]) earliestTrip(route *timetable.Route[T], i int, minTime T, upTo int) int {
	for t := 0; t < upTo; t++ {
		dep := route.DepartureTime(t, i)
		if dep == b.safe {
			continue
		}
		if !b.domain.Less(dep, minTime) {
			return t
		}
	}
	return -1
}

type queued[T comparable] struct {
	route *timetable.Route[T]
	start int
}

// queueRoutes collects every route serving a marked stop together with the
// earliest marked position on it, then clears the marks.
func (b *base[T]) queueRoutes() ([]queued[T], error) {
	earliest := make(map[timetable.RouteID]queued[T])
	for _, p := range b.markedStops() {
		stop, err := b.tt.Stop(p)
		if err != nil {
			return nil, err
		}
		for _, id := range stop.Routes {
			q, seen := earliest[id]
			if !seen {
				route, err := b.tt.Route(id)
				if err != nil {
					return nil, err
				}
				q = queued[T]{route: route, start: -1}
			}
			idx := q.route.StopIndex(p)
			if idx < 0 {
				return nil, fmt.Errorf("raptor: stop %s lists route %s which does not serve it", p, id)
			}
			if q.start < 0 || idx < q.start {
				q.start = idx
			}
			earliest[id] = q
		}
	}
	clear(b.marked)

	ids := maps.Keys(earliest)
	slices.Sort(ids)
	out := make([]queued[T], 0, len(ids))
	for _, id := range ids {
		out = append(out, earliest[id])
	}
	b.stats.RoutesScanned += len(out)
	return out, nil
}

func (b *base[T]) checkRound(round int) error {
	if round < 0 || round > b.maxRound {
		return fmt.Errorf("%w: %d not in [0, %d]", ErrRoundOutOfRange, round, b.maxRound)
	}
	return nil
}
