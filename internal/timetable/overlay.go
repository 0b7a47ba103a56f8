package timetable

import (
	"fmt"
	"sort"

	"gtfs-router/internal/chrono"
)

// Overlay adds stops, routes and transfers over a base Provider. Base stops
// that gain a route or transfer are shadowed by copies; the base is never
// written. An Overlay is not safe for concurrent mutation.
type Overlay[T comparable] struct {
	base   Provider[T]
	domain chrono.Domain[T]
	stops  map[StopID]*Stop
	routes map[RouteID]*Route[T]
	added  []StopID
	extra  []RouteID
}

func NewOverlay[T comparable](base Provider[T], domain chrono.Domain[T]) *Overlay[T] {
	return &Overlay[T]{
		base:   base,
		domain: domain,
		stops:  make(map[StopID]*Stop),
		routes: make(map[RouteID]*Route[T]),
	}
}

// AddStop registers a new stop. Its transfers may point at base or overlay stops.
func (o *Overlay[T]) AddStop(s Stop) error {
	if o.has(s.ID) {
		return fmt.Errorf("%w: stop %s", ErrDuplicateID, s.ID)
	}
	for _, tr := range s.Transfers {
		if !o.has(tr.To) {
			return fmt.Errorf("%w: %s in transfer from %s", ErrUnknownStop, tr.To, s.ID)
		}
	}
	c := s.clone()
	sortTransfers(c.Transfers)
	o.stops[s.ID] = c
	o.added = append(o.added, s.ID)
	return nil
}

// AddRoute registers a new route over known stops.
func (o *Overlay[T]) AddRoute(r *Route[T]) error {
	if _, err := o.Route(r.ID); err == nil {
		return fmt.Errorf("%w: route %s", ErrDuplicateID, r.ID)
	}
	if err := validateRoute(o.domain, r, o.has); err != nil {
		return err
	}
	for _, id := range r.Stops {
		s, err := o.shadow(id)
		if err != nil {
			return err
		}
		s.addRoute(r.ID)
	}
	o.routes[r.ID] = r
	o.extra = append(o.extra, r.ID)
	return nil
}

// AddTransfer adds a walking link from an existing stop.
func (o *Overlay[T]) AddTransfer(from StopID, tr Transfer) error {
	if !o.has(tr.To) {
		return fmt.Errorf("%w: %s", ErrUnknownStop, tr.To)
	}
	s, err := o.shadow(from)
	if err != nil {
		return err
	}
	s.addTransfer(tr)
	return nil
}

func (o *Overlay[T]) Stop(id StopID) (*Stop, error) {
	if s, ok := o.stops[id]; ok {
		return s, nil
	}
	return o.base.Stop(id)
}

func (o *Overlay[T]) Route(id RouteID) (*Route[T], error) {
	if r, ok := o.routes[id]; ok {
		return r, nil
	}
	return o.base.Route(id)
}

func (o *Overlay[T]) StopIDs() []StopID {
	if len(o.added) == 0 {
		return o.base.StopIDs()
	}
	ids := append(append([]StopID{}, o.base.StopIDs()...), o.added...)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (o *Overlay[T]) RouteIDs() []RouteID {
	if len(o.extra) == 0 {
		return o.base.RouteIDs()
	}
	ids := append(append([]RouteID{}, o.base.RouteIDs()...), o.extra...)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (o *Overlay[T]) SafeMax() T { return o.base.SafeMax() }

func (o *Overlay[T]) has(id StopID) bool {
	_, err := o.Stop(id)
	return err == nil
}

func (o *Overlay[T]) shadow(id StopID) (*Stop, error) {
	if s, ok := o.stops[id]; ok {
		return s, nil
	}
	s, err := o.base.Stop(id)
	if err != nil {
		return nil, err
	}
	c := s.clone()
	o.stops[id] = c
	return c, nil
}
