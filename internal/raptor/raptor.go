package raptor

import (
	"errors"

	"golang.org/x/exp/maps"

	"gtfs-router/internal/chrono"
	"gtfs-router/internal/timetable"
)

// RAPTOR computes earliest arrivals, keeping one step per stop and round.
type RAPTOR[T comparable] struct {
	base[T]
	schema *Schema[T]
	target timetable.StopID
	rounds []map[timetable.StopID]*Step[T]
}

func NewRAPTOR[T comparable](tt timetable.Provider[T], domain chrono.Domain[T]) *RAPTOR[T] {
	return &RAPTOR[T]{
		base:   base[T]{tt: tt, domain: domain},
		schema: NewSchema(domain),
	}
}

// Run searches from source leaving at departure with at most rounds
// vehicles. A non-empty target enables target pruning; arrivals at other
// stops are then only exact up to the target's arrival.
func (r *RAPTOR[T]) Run(source, target timetable.StopID, departure T, settings Settings, rounds int) error {
	r.rounds = nil
	if err := r.reset(source, departure, settings, rounds); err != nil {
		return err
	}
	if target != "" {
		if _, err := r.tt.Stop(target); err != nil {
			return err
		}
	}
	r.target = target

	start := newStep[T](nil, Leg[T]{Kind: Departure, Departure: departure}, source, r.schema.Initial(departure))
	r.rounds = append(r.rounds, map[timetable.StopID]*Step[T]{source: start})
	if err := r.relaxFootpaths(0); err != nil {
		return err
	}

	for k := 1; k <= rounds && len(r.marked) > 0; k++ {
		r.rounds = append(r.rounds, maps.Clone(r.rounds[k-1]))
		r.stats.Rounds = k
		queue, err := r.queueRoutes()
		if err != nil {
			return err
		}
		for _, q := range queue {
			r.scanRoute(k, q.route, q.start)
		}
		if err := r.relaxFootpaths(k); err != nil {
			return err
		}
	}
	// Rounds after the fixed point equal the last computed one.
	for len(r.rounds) <= rounds {
		r.rounds = append(r.rounds, r.rounds[len(r.rounds)-1])
	}
	return nil
}

// improves reports whether arriving at stop at t beats round k's label there
// and, with a target set, the label at the target.
func (r *RAPTOR[T]) improves(k int, stop timetable.StopID, t T) bool {
	if !r.usable(t) {
		return false
	}
	cur := r.rounds[k]
	if s := cur[stop]; s != nil && !r.domain.Less(t, s.Time()) {
		return false
	}
	if r.target != "" && stop != r.target {
		if s := cur[r.target]; s != nil && !r.domain.Less(t, s.Time()) {
			return false
		}
	}
	return true
}

func (r *RAPTOR[T]) scanRoute(k int, route *timetable.Route[T], start int) {
	prev, cur := r.rounds[k-1], r.rounds[k]
	trip, boardIdx := -1, -1
	var board *Step[T]
	for i := start; i < len(route.Stops); i++ {
		pi := route.Stops[i]
		if trip >= 0 {
			arr := route.ArrivalTime(trip, i)
			if arr != r.safe && r.improves(k, pi, arr) {
				leg := Leg[T]{
					Kind:      Vehicle,
					From:      route.Stops[boardIdx],
					Route:     route.ID,
					Trip:      trip,
					TripID:    route.Trips[trip].ID,
					Departure: route.DepartureTime(trip, boardIdx),
				}
				cur[pi] = newStep(board, leg, pi, r.schema.Extend(board, leg, arr, pi))
				r.mark(pi)
			}
		}
		ps := prev[pi]
		if ps == nil || !r.usable(ps.Time()) {
			continue
		}
		upTo := len(route.Trips)
		if trip >= 0 {
			upTo = trip
		}
		if t := r.earliestTrip(route, i, ps.Time(), upTo); t >= 0 {
			trip, boardIdx, board = t, i, ps
		}
	}
}

// relaxFootpaths walks from every stop marked in round k. Walks only start
// from steps that did not end with a walk.
func (r *RAPTOR[T]) relaxFootpaths(k int) error {
	cur := r.rounds[k]
	type origin struct {
		id   timetable.StopID
		step *Step[T]
	}
	var origins []origin
	for _, p := range r.markedStops() {
		if s := cur[p]; s != nil && s.Kind != Foot {
			origins = append(origins, origin{p, s})
		}
	}
	for _, o := range origins {
		stop, err := r.tt.Stop(o.id)
		if err != nil {
			return err
		}
		for _, tr := range stop.Transfers {
			if tr.To == o.id {
				continue
			}
			arr := r.walk(o.step.Time(), tr.Length)
			if !r.improves(k, tr.To, arr) {
				continue
			}
			leg := Leg[T]{Kind: Foot, From: o.id, Departure: o.step.Time(), Transfer: tr}
			cur[tr.To] = newStep(o.step, leg, tr.To, r.schema.Extend(o.step, leg, arr, tr.To))
			r.mark(tr.To)
		}
	}
	return nil
}

// Arrival is the best time at stop within round, or the domain's Max.
func (r *RAPTOR[T]) Arrival(round int, stop timetable.StopID) (T, error) {
	if err := r.ready(round); err != nil {
		return r.domain.Max(), err
	}
	if s := r.rounds[round][stop]; s != nil {
		return s.Time(), nil
	}
	return r.domain.Max(), nil
}

// TraceBack reconstructs the journey to stop found in round.
func (r *RAPTOR[T]) TraceBack(round int, stop timetable.StopID) (Journey[T], error) {
	if err := r.ready(round); err != nil {
		return nil, err
	}
	return traceBack(r.domain, r.rounds[round][stop], round, r.lookup)
}

// GetBestJourneys returns one entry per round 0..rounds; nil where the stop
// was not reached. Cyclic traces count in Stats and read as nil.
func (r *RAPTOR[T]) GetBestJourneys(stop timetable.StopID) []Journey[T] {
	if r.rounds == nil {
		return nil
	}
	out := make([]Journey[T], len(r.rounds))
	for k := range r.rounds {
		j, err := r.TraceBack(k, stop)
		if errors.Is(err, ErrCyclicJourney) {
			r.stats.CyclicTraces++
		}
		if err == nil {
			out[k] = j
		}
	}
	return out
}

func (r *RAPTOR[T]) ready(round int) error {
	if r.rounds == nil {
		return ErrNotRun
	}
	return r.checkRound(round)
}

func (r *RAPTOR[T]) lookup(round int, stop timetable.StopID) *Step[T] {
	return r.rounds[round][stop]
}
