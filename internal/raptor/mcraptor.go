package raptor

import (
	"errors"

	"gtfs-router/internal/chrono"
	"gtfs-router/internal/pareto"
	"gtfs-router/internal/timetable"
)

type bags[T comparable] map[timetable.StopID]*pareto.Bag[*Step[T]]

func (b bags[T]) at(stop timetable.StopID) *pareto.Bag[*Step[T]] {
	bag := b[stop]
	if bag == nil {
		bag = pareto.New[*Step[T]](2)
		b[stop] = bag
	}
	return bag
}

// candidate is a journey riding a trip during one route scan. label already
// counts the ride; its time is the arrival at the current stop, or the
// departure from the boarding stop until the next stop is reached.
type candidate[T comparable] struct {
	label    *Label[T]
	board    *Step[T]
	boardIdx int
	trip     int
	alight   bool
}

// Compare ranks riders by trip before criteria: trips are ordered by
// departure at every stop, so an earlier trip is never worse from here on.
func (c *candidate[T]) Compare(o *candidate[T]) pareto.Comparison {
	return c.label.compareCriteria(o.label, c.trip < o.trip, o.trip < c.trip)
}

// McRAPTOR keeps a Pareto bag of steps per stop and round.
type McRAPTOR[T comparable] struct {
	base[T]
	schema *Schema[T]
	rounds []bags[T]
	// fresh holds the steps added to a stop in the round being computed.
	fresh map[timetable.StopID][]*Step[T]
}

func NewMcRAPTOR[T comparable](tt timetable.Provider[T], domain chrono.Domain[T], criteria ...Criterion[T]) *McRAPTOR[T] {
	return &McRAPTOR[T]{
		base:   base[T]{tt: tt, domain: domain},
		schema: NewSchema(domain, criteria...),
	}
}

func (m *McRAPTOR[T]) Schema() *Schema[T] { return m.schema }

// Run fills the bags of every stop reachable from source with at most
// rounds vehicles.
func (m *McRAPTOR[T]) Run(source timetable.StopID, departure T, settings Settings, rounds int) error {
	m.rounds = nil
	if err := m.reset(source, departure, settings, rounds); err != nil {
		return err
	}
	start := newStep[T](nil, Leg[T]{Kind: Departure, Departure: departure}, source, m.schema.Initial(departure))
	r0 := bags[T]{}
	r0.at(source).Add(start)
	m.rounds = append(m.rounds, r0)
	m.fresh = map[timetable.StopID][]*Step[T]{source: {start}}
	if err := m.relaxFootpaths(0); err != nil {
		return err
	}

	for k := 1; k <= rounds && len(m.marked) > 0; k++ {
		cur := make(bags[T], len(m.rounds[k-1]))
		for id, bag := range m.rounds[k-1] {
			cur[id] = bag.Clone()
		}
		m.rounds = append(m.rounds, cur)
		m.fresh = make(map[timetable.StopID][]*Step[T])
		m.stats.Rounds = k

		queue, err := m.queueRoutes()
		if err != nil {
			return err
		}
		for _, q := range queue {
			m.scanRoute(k, q.route, q.start)
		}
		if err := m.relaxFootpaths(k); err != nil {
			return err
		}
	}
	for len(m.rounds) <= rounds {
		m.rounds = append(m.rounds, m.rounds[len(m.rounds)-1])
	}
	m.fresh = nil
	return nil
}

func (m *McRAPTOR[T]) vehicleLeg(route *timetable.Route[T], c *candidate[T]) Leg[T] {
	return Leg[T]{
		Kind:      Vehicle,
		From:      route.Stops[c.boardIdx],
		Route:     route.ID,
		Trip:      c.trip,
		TripID:    route.Trips[c.trip].ID,
		Departure: route.DepartureTime(c.trip, c.boardIdx),
	}
}

func (m *McRAPTOR[T]) scanRoute(k int, route *timetable.Route[T], start int) {
	prev, cur := m.rounds[k-1], m.rounds[k]
	riding := pareto.New[*candidate[T]](4)
	for i := start; i < len(route.Stops); i++ {
		pi := route.Stops[i]

		// Ride every candidate on to pi. Cancelled arrivals keep the label
		// and cannot alight here.
		riding.UpdateAll(func(c *candidate[T]) *candidate[T] {
			next := *c
			arr := route.ArrivalTime(c.trip, i)
			if arr == m.safe {
				next.alight = false
				return &next
			}
			next.label = m.schema.Extend(c.board, m.vehicleLeg(route, c), arr, pi)
			next.alight = true
			return &next
		})

		bag := cur.at(pi)
		added := false
		for c := range riding.All() {
			if !c.alight || !m.usable(c.label.Time()) {
				continue
			}
			step := newStep(c.board, m.vehicleLeg(route, c), pi, c.label)
			if bag.AddOnly(step) {
				m.fresh[pi] = append(m.fresh[pi], step)
				added = true
			}
		}
		bag.Prune()
		if added {
			m.mark(pi)
		}

		for ps := range prev[pi].All() {
			if !m.usable(ps.Time()) {
				continue
			}
			t := m.earliestTrip(route, i, ps.Time(), len(route.Trips))
			if t < 0 {
				continue
			}
			c := &candidate[T]{board: ps, boardIdx: i, trip: t}
			c.label = m.schema.Extend(ps, m.vehicleLeg(route, c), route.DepartureTime(t, i), pi)
			riding.AddOnly(c)
		}
		riding.Prune()
	}
}

// relaxFootpaths walks from the steps added in round k, or from the
// departure in round 0. Steps that end with a walk are not extended.
func (m *McRAPTOR[T]) relaxFootpaths(k int) error {
	cur := m.rounds[k]
	for _, o := range m.origins(k) {
		stop, err := m.tt.Stop(o.stop)
		if err != nil {
			return err
		}
		for _, from := range o.steps {
			for _, tr := range stop.Transfers {
				if tr.To == o.stop {
					continue
				}
				arr := m.walk(from.Time(), tr.Length)
				if !m.usable(arr) {
					continue
				}
				leg := Leg[T]{Kind: Foot, From: o.stop, Departure: from.Time(), Transfer: tr}
				step := newStep(from, leg, tr.To, m.schema.Extend(from, leg, arr, tr.To))
				if added, _ := cur.at(tr.To).Add(step); added {
					m.mark(tr.To)
				}
			}
		}
	}
	return nil
}

type walkOrigin[T comparable] struct {
	stop  timetable.StopID
	steps []*Step[T]
}

// origins lists, per marked stop, the steps added in round k that are still
// in its bag. It is taken before any walk is added.
func (m *McRAPTOR[T]) origins(k int) []walkOrigin[T] {
	cur := m.rounds[k]
	var out []walkOrigin[T]
	for _, p := range m.markedStops() {
		fresh := m.fresh[p]
		if len(fresh) == 0 {
			continue
		}
		live := make(map[*Step[T]]bool)
		for st := range cur[p].All() {
			live[st] = true
		}
		o := walkOrigin[T]{stop: p}
		for _, st := range fresh {
			if live[st] && st.Kind != Foot {
				o.steps = append(o.steps, st)
			}
		}
		if len(o.steps) > 0 {
			out = append(out, o)
		}
	}
	return out
}

// Bag returns a snapshot of the steps at stop in round.
func (m *McRAPTOR[T]) Bag(round int, stop timetable.StopID) ([]*Step[T], error) {
	if err := m.ready(round); err != nil {
		return nil, err
	}
	return m.rounds[round][stop].Items(), nil
}

// JourneysAt reconstructs a journey for every step in stop's bag of round.
// Cyclic traces are skipped and counted in Stats.
func (m *McRAPTOR[T]) JourneysAt(round int, stop timetable.StopID) ([]Journey[T], error) {
	steps, err := m.Bag(round, stop)
	if err != nil {
		return nil, err
	}
	var out []Journey[T]
	for _, s := range steps {
		j, err := m.TraceBackFromStep(s, round)
		switch {
		case errors.Is(err, ErrCyclicJourney):
			m.stats.CyclicTraces++
		case err == nil:
			out = append(out, j)
		}
	}
	return out, nil
}

// TraceBackFromStep reconstructs the journey ending in step, found in round.
func (m *McRAPTOR[T]) TraceBackFromStep(step *Step[T], round int) (Journey[T], error) {
	if err := m.ready(round); err != nil {
		return nil, err
	}
	return traceBack(m.domain, step, round, m.lookup)
}

// GetBestJourneys returns the Pareto set of journeys to stop for each round
// 0..rounds. An entry is empty when the stop was not reached in that round.
func (m *McRAPTOR[T]) GetBestJourneys(stop timetable.StopID) [][]Journey[T] {
	if m.rounds == nil {
		return nil
	}
	out := make([][]Journey[T], len(m.rounds))
	for k := range m.rounds {
		out[k], _ = m.JourneysAt(k, stop)
	}
	return out
}

func (m *McRAPTOR[T]) ready(round int) error {
	if m.rounds == nil {
		return ErrNotRun
	}
	return m.checkRound(round)
}

// lookup picks the earliest step at stop in round.
func (m *McRAPTOR[T]) lookup(round int, stop timetable.StopID) *Step[T] {
	var best *Step[T]
	for s := range m.rounds[round][stop].All() {
		if best == nil || m.domain.Less(s.Time(), best.Time()) {
			best = s
		}
	}
	return best
}
