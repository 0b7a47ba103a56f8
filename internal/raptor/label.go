package raptor

import (
	"slices"

	"gtfs-router/internal/chrono"
	"gtfs-router/internal/pareto"
	"gtfs-router/internal/timetable"
)

// Schema fixes the time domain and the criteria every label of one search
// carries.
type Schema[T comparable] struct {
	Domain   chrono.Domain[T]
	Criteria []Criterion[T]
}

func NewSchema[T comparable](domain chrono.Domain[T], criteria ...Criterion[T]) *Schema[T] {
	return &Schema[T]{Domain: domain, Criteria: criteria}
}

// Index returns the position of the named criterion or -1.
func (s *Schema[T]) Index(name string) int {
	return slices.IndexFunc(s.Criteria, func(c Criterion[T]) bool { return c.Name() == name })
}

// Initial is the label of a journey that has not left yet.
func (s *Schema[T]) Initial(t T) *Label[T] {
	values := make([]float64, len(s.Criteria))
	for i, c := range s.Criteria {
		values[i] = c.Initial()
	}
	return &Label[T]{schema: s, time: t, values: values}
}

// Extend computes the label of prev's journey extended by leg, arriving at
// stop at the given time.
func (s *Schema[T]) Extend(prev *Step[T], leg Leg[T], arrival T, stop timetable.StopID) *Label[T] {
	values := make([]float64, len(s.Criteria))
	for i, c := range s.Criteria {
		values[i] = c.Update(prev.Label.values[i], prev, leg, s.Domain, arrival, stop)
	}
	return &Label[T]{schema: s, time: arrival, values: values}
}

// Label is an arrival time plus one value per criterion. Labels are never
// modified; the With and Set methods return copies.
type Label[T comparable] struct {
	schema *Schema[T]
	time   T
	values []float64
}

func (l *Label[T]) Time() T { return l.time }

func (l *Label[T]) Value(i int) float64 { return l.values[i] }

func (l *Label[T]) Values() []float64 { return slices.Clone(l.values) }

func (l *Label[T]) WithTime(t T) *Label[T] {
	return &Label[T]{schema: l.schema, time: t, values: l.values}
}

func (l *Label[T]) SetValue(i int, v float64) *Label[T] {
	values := slices.Clone(l.values)
	values[i] = v
	return &Label[T]{schema: l.schema, time: l.time, values: values}
}

// Update returns a label with a new time and criterion values.
func (l *Label[T]) Update(t T, values []float64) *Label[T] {
	return &Label[T]{schema: l.schema, time: t, values: slices.Clone(values)}
}

// Compare is Pareto dominance over time and every criterion. Times that the
// domain orders neither way count as equal.
func (l *Label[T]) Compare(o *Label[T]) pareto.Comparison {
	d := l.schema.Domain
	return l.compareCriteria(o, d.Less(l.time, o.time), d.Less(o.time, l.time))
}

// compareCriteria finishes a comparison whose first dimension already set
// mine (l is better) or theirs (o is better).
func (l *Label[T]) compareCriteria(o *Label[T], mine, theirs bool) pareto.Comparison {
	for i, c := range l.schema.Criteria {
		if mine && theirs {
			return pareto.Incomparable
		}
		switch {
		case c.Better(o.values[i], l.values[i]):
			theirs = true
		case c.Better(l.values[i], o.values[i]):
			mine = true
		}
	}
	switch {
	case mine && theirs:
		return pareto.Incomparable
	case theirs:
		return pareto.Dominated
	case mine:
		return pareto.Dominates
	}
	return pareto.Equal
}
