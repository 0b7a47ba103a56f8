package timetable

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gtfs-router/internal/chrono"
)

func times(ms ...chrono.Millis) []StopTime[chrono.Millis] {
	out := make([]StopTime[chrono.Millis], len(ms))
	for i, m := range ms {
		out[i] = StopTime[chrono.Millis]{Arrival: m, Departure: m}
	}
	return out
}

func line() (*Route[chrono.Millis], []*Stop) {
	stops := []*Stop{
		{ID: "1", Transfers: []Transfer{{To: "3", Length: 50}, {To: "2", Length: 10}}},
		{ID: "2"},
		{ID: "3"},
	}
	r := &Route[chrono.Millis]{
		ID:    "R",
		Stops: []StopID{"1", "2", "3"},
		Trips: []Trip[chrono.Millis]{
			{ID: "a", Times: times(0, 10, 20)},
			{ID: "b", Times: times(5, 15, 25)},
		},
	}
	return r, stops
}

func TestNewMemory(t *testing.T) {
	r, stops := line()
	m, err := NewMemory[chrono.Millis](chrono.MillisDomain{}, stops, []*Route[chrono.Millis]{r})
	require.NoError(t, err)

	s, err := m.Stop("1")
	require.NoError(t, err)
	assert.Equal(t, []RouteID{"R"}, s.Routes)
	assert.Equal(t, []Transfer{{To: "2", Length: 10}, {To: "3", Length: 50}}, s.Transfers)
	assert.Equal(t, []Transfer{{To: "3", Length: 50}, {To: "2", Length: 10}}, stops[0].Transfers, "input untouched")

	got, err := m.Route("R")
	require.NoError(t, err)
	assert.Equal(t, chrono.Millis(15), got.DepartureTime(1, 1))
	assert.Equal(t, 2, got.StopIndex("3"))
	assert.Equal(t, -1, got.StopIndex("9"))
	assert.Panics(t, func() { got.ArrivalTime(2, 0) })
	assert.Panics(t, func() { got.DepartureTime(0, 3) })

	assert.Equal(t, []StopID{"1", "2", "3"}, m.StopIDs())
	assert.Equal(t, []RouteID{"R"}, m.RouteIDs())
	assert.Equal(t, chrono.SafeMillis, m.SafeMax())

	ids := m.StopIDs()
	ids[0] = "9"
	m.RouteIDs()[0] = "Q"
	assert.Equal(t, []StopID{"1", "2", "3"}, m.StopIDs(), "callers get a copy")
	assert.Equal(t, []RouteID{"R"}, m.RouteIDs())
	_, err = m.Stop("1")
	assert.NoError(t, err)

	ns, nr, nt := m.Counts()
	assert.Equal(t, [3]int{3, 1, 2}, [3]int{ns, nr, nt})

	_, err = m.Stop("9")
	assert.ErrorIs(t, err, ErrUnknownStop)
	_, err = m.Route("X")
	assert.ErrorIs(t, err, ErrUnknownRoute)
}

func TestNewMemoryRejects(t *testing.T) {
	domain := chrono.MillisDomain{}

	_, stops := line()
	_, err := NewMemory[chrono.Millis](domain, append(stops, &Stop{ID: "1"}), nil)
	assert.ErrorIs(t, err, ErrDuplicateID)

	_, err = NewMemory[chrono.Millis](domain, []*Stop{{ID: "1", Transfers: []Transfer{{To: "x"}}}}, nil)
	assert.ErrorIs(t, err, ErrUnknownStop)

	r, stops := line()
	r.Stops = append(r.Stops, "9")
	_, err = NewMemory[chrono.Millis](domain, stops, []*Route[chrono.Millis]{r})
	assert.ErrorIs(t, err, ErrUnknownStop)

	r, stops = line()
	r.Trips[1].Times = r.Trips[1].Times[:2]
	_, err = NewMemory[chrono.Millis](domain, stops, []*Route[chrono.Millis]{r})
	assert.ErrorIs(t, err, ErrTripShape)

	r, stops = line()
	r.Trips[1].Times[2].Departure = 19
	_, err = NewMemory[chrono.Millis](domain, stops, []*Route[chrono.Millis]{r})
	assert.ErrorIs(t, err, ErrTripOrder)

	r, stops = line()
	_, err = NewMemory[chrono.Millis](domain, stops, []*Route[chrono.Millis]{r, r})
	assert.ErrorIs(t, err, ErrDuplicateID)
}

func TestOvertakesIgnoresCancelledSlots(t *testing.T) {
	domain := chrono.MillisDomain{}
	prev := Trip[chrono.Millis]{Times: times(0, 10, 20)}
	next := Trip[chrono.Millis]{Times: times(5, chrono.SafeMillis, 25)}
	assert.False(t, Overtakes[chrono.Millis](domain, prev, next))

	next.Times[2].Departure = 19
	assert.True(t, Overtakes[chrono.Millis](domain, prev, next))
}

func TestOverlay(t *testing.T) {
	r, stops := line()
	m, err := NewMemory[chrono.Millis](chrono.MillisDomain{}, stops, []*Route[chrono.Millis]{r})
	require.NoError(t, err)

	o := m.Overlay()
	require.NoError(t, o.AddStop(Stop{ID: "origin", Transfers: []Transfer{{To: "2", Length: 30}, {To: "1", Length: 5}}}))
	assert.ErrorIs(t, o.AddStop(Stop{ID: "1"}), ErrDuplicateID)
	assert.ErrorIs(t, o.AddStop(Stop{ID: "x", Transfers: []Transfer{{To: "nowhere"}}}), ErrUnknownStop)

	require.NoError(t, o.AddTransfer("3", Transfer{To: "origin", Length: 7}))
	assert.ErrorIs(t, o.AddTransfer("3", Transfer{To: "nowhere"}), ErrUnknownStop)

	shuttle := &Route[chrono.Millis]{
		ID:    "S",
		Stops: []StopID{"origin", "3"},
		Trips: []Trip[chrono.Millis]{{ID: "s1", Times: times(1, 2)}},
	}
	require.NoError(t, o.AddRoute(shuttle))
	assert.ErrorIs(t, o.AddRoute(shuttle), ErrDuplicateID)

	origin, err := o.Stop("origin")
	require.NoError(t, err)
	assert.Equal(t, StopID("1"), origin.Transfers[0].To)
	assert.Equal(t, []RouteID{"S"}, origin.Routes)

	three, err := o.Stop("3")
	require.NoError(t, err)
	assert.Equal(t, []RouteID{"R", "S"}, three.Routes)
	assert.Equal(t, []Transfer{{To: "origin", Length: 7}}, three.Transfers)

	assert.Equal(t, []StopID{"1", "2", "3", "origin"}, o.StopIDs())
	assert.Equal(t, []RouteID{"R", "S"}, o.RouteIDs())

	base, err := m.Stop("3")
	require.NoError(t, err)
	assert.Equal(t, []RouteID{"R"}, base.Routes, "base stop not mutated")
	assert.Empty(t, base.Transfers)
	assert.Equal(t, []StopID{"1", "2", "3"}, m.StopIDs())
	_, err = m.Stop("origin")
	assert.ErrorIs(t, err, ErrUnknownStop)

	empty := m.Overlay()
	empty.StopIDs()[0] = "x"
	empty.RouteIDs()[0] = "x"
	assert.Equal(t, []StopID{"1", "2", "3"}, m.StopIDs())
	assert.Equal(t, []RouteID{"R"}, m.RouteIDs())
}

func TestAddTransferKeepsShorter(t *testing.T) {
	s := &Stop{ID: "a"}
	s.addTransfer(Transfer{To: "b", Length: 20})
	s.addTransfer(Transfer{To: "c", Length: 5})
	s.addTransfer(Transfer{To: "b", Length: 30})
	assert.Equal(t, []Transfer{{To: "c", Length: 5}, {To: "b", Length: 20}}, s.Transfers)
	s.addTransfer(Transfer{To: "b", Length: 1})
	assert.Equal(t, []Transfer{{To: "b", Length: 1}, {To: "c", Length: 5}}, s.Transfers)
}
