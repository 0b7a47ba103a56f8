// Package timetable is the read-only data the search engines consume: stops
// with their walking transfers, and routes with their ordered trips.
//
// Memory is a map-backed Provider. Overlay layers extra stops, routes and
// transfers over any Provider without touching it. Providers must not change
// while a search runs on them; callers swap whole timetables instead.
package timetable

import (
	"errors"
	"fmt"
	"slices"
	"sort"

	"gtfs-router/internal/chrono"
)

var (
	ErrUnknownStop  = errors.New("timetable: unknown stop")
	ErrUnknownRoute = errors.New("timetable: unknown route")
	ErrDuplicateID  = errors.New("timetable: duplicate id")
	ErrTripShape    = errors.New("timetable: trip does not match route stops")
	ErrTripOrder    = errors.New("timetable: trips not ordered by departure")
)

// Provider is the data contract of the search engines.
type Provider[T any] interface {
	Stop(id StopID) (*Stop, error)
	Route(id RouteID) (*Route[T], error)
	StopIDs() []StopID
	RouteIDs() []RouteID
	// SafeMax is the sentinel marking cancelled slots.
	SafeMax() T
}

type Memory[T comparable] struct {
	domain   chrono.Domain[T]
	stops    map[StopID]*Stop
	routes   map[RouteID]*Route[T]
	stopIDs  []StopID
	routeIDs []RouteID
}

// NewMemory validates the input and builds a Provider. Stop.Routes is derived
// from the routes; any Routes set by the caller are kept in front.
func NewMemory[T comparable](domain chrono.Domain[T], stops []*Stop, routes []*Route[T]) (*Memory[T], error) {
	m := &Memory[T]{
		domain: domain,
		stops:  make(map[StopID]*Stop, len(stops)),
		routes: make(map[RouteID]*Route[T], len(routes)),
	}
	for _, s := range stops {
		if _, ok := m.stops[s.ID]; ok {
			return nil, fmt.Errorf("%w: stop %s", ErrDuplicateID, s.ID)
		}
		c := s.clone()
		sortTransfers(c.Transfers)
		m.stops[s.ID] = c
		m.stopIDs = append(m.stopIDs, s.ID)
	}
	for _, s := range m.stops {
		for _, tr := range s.Transfers {
			if _, ok := m.stops[tr.To]; !ok {
				return nil, fmt.Errorf("%w: %s in transfer from %s", ErrUnknownStop, tr.To, s.ID)
			}
		}
	}
	for _, r := range routes {
		if _, ok := m.routes[r.ID]; ok {
			return nil, fmt.Errorf("%w: route %s", ErrDuplicateID, r.ID)
		}
		if err := validateRoute(domain, r, m.has); err != nil {
			return nil, err
		}
		m.routes[r.ID] = r
		m.routeIDs = append(m.routeIDs, r.ID)
		for _, id := range r.Stops {
			m.stops[id].addRoute(r.ID)
		}
	}
	sort.Slice(m.stopIDs, func(i, j int) bool { return m.stopIDs[i] < m.stopIDs[j] })
	sort.Slice(m.routeIDs, func(i, j int) bool { return m.routeIDs[i] < m.routeIDs[j] })
	return m, nil
}

func (m *Memory[T]) Stop(id StopID) (*Stop, error) {
	s, ok := m.stops[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownStop, id)
	}
	return s, nil
}

func (m *Memory[T]) Route(id RouteID) (*Route[T], error) {
	r, ok := m.routes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRoute, id)
	}
	return r, nil
}

func (m *Memory[T]) has(id StopID) bool {
	_, ok := m.stops[id]
	return ok
}

// StopIDs and RouteIDs return sorted copies.
func (m *Memory[T]) StopIDs() []StopID   { return slices.Clone(m.stopIDs) }
func (m *Memory[T]) RouteIDs() []RouteID { return slices.Clone(m.routeIDs) }
func (m *Memory[T]) SafeMax() T          { return m.domain.Safe() }

// Overlay starts an empty overlay on top of m.
func (m *Memory[T]) Overlay() *Overlay[T] {
	return NewOverlay[T](m, m.domain)
}

// Counts reports the number of stops, routes and trips.
func (m *Memory[T]) Counts() (stops, routes, trips int) {
	for _, r := range m.routes {
		trips += len(r.Trips)
	}
	return len(m.stops), len(m.routes), trips
}

func validateRoute[T comparable](domain chrono.Domain[T], r *Route[T], known func(StopID) bool) error {
	for _, id := range r.Stops {
		if !known(id) {
			return fmt.Errorf("%w: %s on route %s", ErrUnknownStop, id, r.ID)
		}
	}
	for i, trip := range r.Trips {
		if len(trip.Times) != len(r.Stops) {
			return fmt.Errorf("%w: route %s trip %s has %d times for %d stops", ErrTripShape, r.ID, trip.ID, len(trip.Times), len(r.Stops))
		}
		if i > 0 && Overtakes(domain, r.Trips[i-1], trip) {
			return fmt.Errorf("%w: route %s trip %s departs before %s", ErrTripOrder, r.ID, trip.ID, r.Trips[i-1].ID)
		}
	}
	return nil
}

// Overtakes reports whether next departs strictly earlier than prev at some
// stop where neither slot is cancelled.
func Overtakes[T comparable](domain chrono.Domain[T], prev, next Trip[T]) bool {
	safe := domain.Safe()
	for i := range prev.Times {
		a, b := prev.Times[i].Departure, next.Times[i].Departure
		if a == safe || b == safe {
			continue
		}
		if domain.Less(b, a) {
			return true
		}
	}
	return false
}
