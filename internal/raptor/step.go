package raptor

import (
	"gtfs-router/internal/chrono"
	"gtfs-router/internal/pareto"
	"gtfs-router/internal/timetable"
)

type StepKind int

const (
	Departure StepKind = iota
	Vehicle
	Foot
)

func (k StepKind) String() string {
	switch k {
	case Vehicle:
		return "vehicle"
	case Foot:
		return "foot"
	default:
		return "departure"
	}
}

// Leg describes how a step was made, without its resulting label.
type Leg[T comparable] struct {
	Kind StepKind
	// From is the boarding stop of a vehicle leg or the start of a walk.
	From timetable.StopID
	// Route, Trip and TripID are set on vehicle legs.
	Route  timetable.RouteID
	Trip   int
	TripID timetable.TripID
	// Departure is when the vehicle left From, or when the walk started.
	Departure T
	// Transfer is set on foot legs.
	Transfer timetable.Transfer
}

// Step is one leg of a journey ending at Stop. Steps are immutable; Prev
// points at the step the leg started from, which belongs to an earlier round
// for vehicle legs and to the same round for foot legs.
type Step[T comparable] struct {
	Leg[T]
	Stop  timetable.StopID
	Label *Label[T]
	Prev  *Step[T]
}

func newStep[T comparable](prev *Step[T], leg Leg[T], stop timetable.StopID, label *Label[T]) *Step[T] {
	return &Step[T]{Leg: leg, Stop: stop, Label: label, Prev: prev}
}

func (s *Step[T]) Time() T { return s.Label.Time() }

func (s *Step[T]) Compare(o *Step[T]) pareto.Comparison {
	return s.Label.Compare(o.Label)
}

func (s *Step[T]) hasVehicle() bool {
	for st := s; st != nil; st = st.Prev {
		if st.Kind == Vehicle {
			return true
		}
	}
	return false
}

// Journey is a step sequence from departure to destination.
type Journey[T comparable] []*Step[T]

func (j Journey[T]) Departure() T { return j[0].Time() }
func (j Journey[T]) Arrival() T   { return j[len(j)-1].Time() }

// Legs drops the initial departure step.
func (j Journey[T]) Legs() []*Step[T] {
	if len(j) == 0 {
		return nil
	}
	return j[1:]
}

func (j Journey[T]) Boardings() int {
	n := 0
	for _, s := range j {
		if s.Kind == Vehicle {
			n++
		}
	}
	return n
}

type traceKey[T comparable] struct {
	time     T
	from, to timetable.StopID
}

// traceBack follows Prev from start, found in the given round, down to the
// departure step. A step without predecessor that carries the Safe sentinel
// is a placeholder; the trace continues from lookup of the same stop one
// round earlier.
func traceBack[T comparable](domain chrono.Domain[T], start *Step[T], round int, lookup func(round int, stop timetable.StopID) *Step[T]) (Journey[T], error) {
	seen := make(map[traceKey[T]]struct{})
	var rev Journey[T]
	for step := start; ; {
		if step == nil || step.Time() == domain.Max() {
			return nil, ErrNoJourney
		}
		if step.Prev == nil && (step.Kind != Departure || step.Time() == domain.Safe()) {
			round--
			if round < 0 {
				return nil, ErrNoJourney
			}
			step = lookup(round, step.Stop)
			continue
		}
		key := traceKey[T]{time: step.Time(), from: step.From, to: step.Stop}
		if _, dup := seen[key]; dup {
			return nil, ErrCyclicJourney
		}
		seen[key] = struct{}{}
		rev = append(rev, step)
		if step.Prev == nil {
			break
		}
		step = step.Prev
	}
	for i, j := 0, len(rev)-1; i < j; i, j = i+1, j-1 {
		rev[i], rev[j] = rev[j], rev[i]
	}
	return rev, nil
}
