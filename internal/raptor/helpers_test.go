package raptor

import (
	"testing"

	"github.com/stretchr/testify/require"

	"gtfs-router/internal/chrono"
	"gtfs-router/internal/timetable"
)

type ms = chrono.Millis

var domain = chrono.MillisDomain{}

func s(n int) ms { return ms(n) * 1000 }

// trip builds a trip from seconds; arrival equals departure. -1 is cancelled.
func trip(id string, secs ...int) timetable.Trip[ms] {
	tr := timetable.Trip[ms]{ID: timetable.TripID(id)}
	for _, v := range secs {
		t := s(v)
		if v < 0 {
			t = chrono.SafeMillis
		}
		tr.Times = append(tr.Times, timetable.StopTime[ms]{Arrival: t, Departure: t})
	}
	return tr
}

func route(id string, stops []timetable.StopID, trips ...timetable.Trip[ms]) *timetable.Route[ms] {
	return &timetable.Route[ms]{ID: timetable.RouteID(id), Stops: stops, Trips: trips}
}

func stops(ids ...timetable.StopID) []*timetable.Stop {
	out := make([]*timetable.Stop, len(ids))
	for i, id := range ids {
		out[i] = &timetable.Stop{ID: id}
	}
	return out
}

func withTransfer(all []*timetable.Stop, from, to timetable.StopID, length float64) []*timetable.Stop {
	for _, st := range all {
		if st.ID == from {
			st.Transfers = append(st.Transfers, timetable.Transfer{To: to, Length: length})
		}
	}
	return all
}

func memory(t *testing.T, st []*timetable.Stop, routes ...*timetable.Route[ms]) *timetable.Memory[ms] {
	t.Helper()
	m, err := timetable.NewMemory[ms](domain, st, routes)
	require.NoError(t, err)
	return m
}

// scenario is one route 1-2-3-4 with trips leaving stop 1 at 0s and 3s, two
// seconds per hop. walk adds a 1 m transfer 3 -> 4.
func scenario(t *testing.T, walk bool) *timetable.Memory[ms] {
	st := stops("1", "2", "3", "4")
	if walk {
		st = withTransfer(st, "3", "4", 1)
	}
	return memory(t, st, route("R", []timetable.StopID{"1", "2", "3", "4"},
		trip("t0", 0, 2, 4, 6),
		trip("t1", 3, 5, 7, 9),
	))
}

// network needs a change at B to reach D fast:
//
//	X: A -> B -> C   x0 0,10,20   x1 30,40,50
//	Y: B -> D        y0 12,30     y1 25,35
//	Z: A -> D        z0 5,60
//	C walks 100 m to E
func network(t *testing.T) *timetable.Memory[ms] {
	st := withTransfer(stops("A", "B", "C", "D", "E"), "C", "E", 100)
	return memory(t, st,
		route("X", []timetable.StopID{"A", "B", "C"}, trip("x0", 0, 10, 20), trip("x1", 30, 40, 50)),
		route("Y", []timetable.StopID{"B", "D"}, trip("y0", 12, 30), trip("y1", 25, 35)),
		route("Z", []timetable.StopID{"A", "D"}, trip("z0", 5, 60)),
	)
}

var walk1 = Settings{WalkSpeed: 1}

func kinds(j Journey[ms]) []StepKind {
	out := make([]StepKind, len(j))
	for i, st := range j {
		out[i] = st.Kind
	}
	return out
}
