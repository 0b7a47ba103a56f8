package raptor

import (
	"fmt"
	"strings"

	"gtfs-router/internal/chrono"
	"gtfs-router/internal/timetable"
)

// Criterion is one extra dimension of a label.
//
// Update returns the value for prefix's journey extended by leg; prev is
// prefix's own value. prefix is the full journey so far, reachable through
// its Prev chain.
type Criterion[T comparable] interface {
	Name() string
	Initial() float64
	// Better reports whether a is strictly preferable to b.
	Better(a, b float64) bool
	Update(prev float64, prefix *Step[T], leg Leg[T], domain chrono.Domain[T], arrival T, stop timetable.StopID) float64
}

const (
	NameWalkingDistance = "walking_distance"
	NameBoardings       = "boardings"
	NameTransferBuffer  = "transfer_buffer"
)

// CriteriaNames lists the built-in criteria.
var CriteriaNames = []string{NameWalkingDistance, NameBoardings, NameTransferBuffer}

// CriteriaByName resolves built-in criteria, in the given order.
func CriteriaByName[T comparable](names ...string) ([]Criterion[T], error) {
	out := make([]Criterion[T], 0, len(names))
	for _, n := range names {
		switch strings.ToLower(strings.TrimSpace(n)) {
		case NameWalkingDistance:
			out = append(out, WalkingDistance[T]{})
		case NameBoardings:
			out = append(out, Boardings[T]{})
		case NameTransferBuffer:
			out = append(out, TransferBuffer[T]{})
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnknownCriterion, n)
		}
	}
	return out, nil
}

// WalkingDistance minimizes meters walked.
type WalkingDistance[T comparable] struct{}

func (WalkingDistance[T]) Name() string             { return NameWalkingDistance }
func (WalkingDistance[T]) Initial() float64         { return 0 }
func (WalkingDistance[T]) Better(a, b float64) bool { return a < b }

func (WalkingDistance[T]) Update(prev float64, _ *Step[T], leg Leg[T], _ chrono.Domain[T], _ T, _ timetable.StopID) float64 {
	if leg.Kind == Foot {
		return prev + leg.Transfer.Length
	}
	return prev
}

// Boardings minimizes the number of vehicles taken.
type Boardings[T comparable] struct{}

func (Boardings[T]) Name() string             { return NameBoardings }
func (Boardings[T]) Initial() float64         { return 0 }
func (Boardings[T]) Better(a, b float64) bool { return a < b }

func (Boardings[T]) Update(prev float64, _ *Step[T], leg Leg[T], _ chrono.Domain[T], _ T, _ timetable.StopID) float64 {
	if leg.Kind == Vehicle {
		return prev + 1
	}
	return prev
}

// TransferBuffer maximizes the seconds spent waiting at stops between
// vehicles. Waiting before the first vehicle does not count.
type TransferBuffer[T comparable] struct{}

func (TransferBuffer[T]) Name() string             { return NameTransferBuffer }
func (TransferBuffer[T]) Initial() float64         { return 0 }
func (TransferBuffer[T]) Better(a, b float64) bool { return a > b }

func (TransferBuffer[T]) Update(prev float64, prefix *Step[T], leg Leg[T], domain chrono.Domain[T], _ T, _ timetable.StopID) float64 {
	if leg.Kind != Vehicle || !prefix.hasVehicle() {
		return prev
	}
	slack := domain.Sub(leg.Departure, prefix.Label.Time())
	if slack < 0 {
		return prev
	}
	return prev + slack.Seconds()
}
