package timetable

import (
	"fmt"
	"slices"
)

type (
	StopID  string
	RouteID string
	TripID  string
)

// Transfer is a walking connection to another stop. Length is in meters.
type Transfer struct {
	To     StopID  `yaml:"to"`
	Length float64 `yaml:"length"`
}

// Stop is immutable once handed to a Provider. Routes is an ordered set and
// Transfers is sorted by ascending Length.
type Stop struct {
	ID        StopID
	Name      string
	Lat       float64
	Lon       float64
	Routes    []RouteID
	Transfers []Transfer
}

func (s *Stop) clone() *Stop {
	c := *s
	c.Routes = slices.Clone(s.Routes)
	c.Transfers = slices.Clone(s.Transfers)
	return &c
}

func (s *Stop) addRoute(id RouteID) {
	if !slices.Contains(s.Routes, id) {
		s.Routes = append(s.Routes, id)
	}
}

func (s *Stop) addTransfer(tr Transfer) {
	idx := slices.IndexFunc(s.Transfers, func(t Transfer) bool { return t.To == tr.To })
	if idx >= 0 {
		if s.Transfers[idx].Length <= tr.Length {
			return
		}
		s.Transfers = slices.Delete(s.Transfers, idx, idx+1)
	}
	s.Transfers = append(s.Transfers, tr)
	sortTransfers(s.Transfers)
}

func sortTransfers(trs []Transfer) {
	slices.SortStableFunc(trs, func(a, b Transfer) int {
		switch {
		case a.Length < b.Length:
			return -1
		case a.Length > b.Length:
			return 1
		}
		return 0
	})
}

// StopTime is one trip's arrival and departure at one stop of its route.
type StopTime[T any] struct {
	Arrival   T
	Departure T
}

// Trip holds one StopTime per stop of the owning route. A slot whose time is
// the domain's Safe sentinel is cancelled.
type Trip[T any] struct {
	ID    TripID
	Times []StopTime[T]
}

// Route is a stop sequence with trips ordered by departure at every stop.
type Route[T any] struct {
	ID    RouteID
	Name  string
	Stops []StopID
	Trips []Trip[T]
}

// DepartureTime panics on indexes outside the route.
func (r *Route[T]) DepartureTime(trip, stop int) T {
	r.check(trip, stop)
	return r.Trips[trip].Times[stop].Departure
}

// ArrivalTime panics on indexes outside the route.
func (r *Route[T]) ArrivalTime(trip, stop int) T {
	r.check(trip, stop)
	return r.Trips[trip].Times[stop].Arrival
}

func (r *Route[T]) check(trip, stop int) {
	if trip < 0 || trip >= len(r.Trips) {
		panic(fmt.Sprintf("timetable: route %s has no trip %d (%d trips)", r.ID, trip, len(r.Trips)))
	}
	if stop < 0 || stop >= len(r.Stops) {
		panic(fmt.Sprintf("timetable: route %s has no stop index %d (%d stops)", r.ID, stop, len(r.Stops)))
	}
}

// StopIndex returns the first position of stop in the route or -1.
func (r *Route[T]) StopIndex(stop StopID) int {
	return slices.Index(r.Stops, stop)
}
