package timetable

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gtfs-router/internal/chrono"
	"gtfs-router/internal/gtfs"
)

var serviceDay = time.Date(2024, 3, 4, 15, 0, 0, 0, time.UTC) // a Monday

func at(h, m int) chrono.Millis {
	return chrono.FromTime(time.Date(2024, 3, 4, h, m, 0, 0, time.UTC))
}

func sampleFeed() *gtfs.Feed {
	start, _ := gtfs.ParseDate("20240101")
	end, _ := gtfs.ParseDate("20241231")
	st := func(trip string, seq int, stop string, hhmm string) gtfs.StopTime {
		sec, _ := gtfs.ParseDaySeconds(hhmm)
		return gtfs.StopTime{TripID: trip, StopSequence: seq, StopID: stop, ArrivalSec: sec, DepartureSec: sec}
	}
	return &gtfs.Feed{
		Stops: []gtfs.Stop{
			{StopID: "A", Name: "Alpha", Lat: 40.0000, Lon: -3.0},
			{StopID: "B", Name: "Beta", Lat: 40.0010, Lon: -3.0},
			{StopID: "C", Name: "Gamma", Lat: 40.0100, Lon: -3.0},
		},
		Routes: []gtfs.Route{{RouteID: "L1", ShortName: "1"}},
		Trips: []gtfs.Trip{
			{TripID: "slow", RouteID: "L1", ServiceID: "WK"},
			{TripID: "fast", RouteID: "L1", ServiceID: "WK"},
			{TripID: "late", RouteID: "L1", ServiceID: "WK"},
			{TripID: "sunday", RouteID: "L1", ServiceID: "SU"},
		},
		StopTimes: []gtfs.StopTime{
			st("slow", 2, "C", "08:30:00"),
			st("slow", 1, "A", "08:00:00"),
			st("fast", 1, "A", "08:05:00"),
			st("fast", 2, "C", "08:15:00"),
			st("late", 1, "A", "09:00:00"),
			st("late", 2, "C", "25:10:00"),
			st("sunday", 1, "A", "08:00:00"),
			st("sunday", 2, "C", "08:10:00"),
		},
		Transfers: []gtfs.Transfer{
			{FromStopID: "A", ToStopID: "B", Type: gtfs.TransferMinTime, MinTransferTime: 300},
			{FromStopID: "B", ToStopID: "A", Type: gtfs.TransferRecommended},
			{FromStopID: "A", ToStopID: "C", Type: gtfs.TransferForbidden},
			{FromStopID: "A", ToStopID: "Z"},
		},
		Calendars: []gtfs.Calendar{
			{ServiceID: "WK", Weekdays: [7]bool{false, true, true, true, true, true, false}, StartDate: start, EndDate: end},
			{ServiceID: "SU", Weekdays: [7]bool{true}, StartDate: start, EndDate: end},
		},
	}
}

func TestFromFeed(t *testing.T) {
	m, err := FromFeed(sampleFeed(), serviceDay, BuildOptions{})
	require.NoError(t, err)

	assert.Equal(t, []RouteID{"L1:0", "L1:1"}, m.RouteIDs(), "fast overtakes slow")
	r0, err := m.Route("L1:0")
	require.NoError(t, err)
	r1, err := m.Route("L1:1")
	require.NoError(t, err)
	assert.Equal(t, "1", r0.Name)
	assert.Equal(t, []StopID{"A", "C"}, r0.Stops)

	ids := func(r *Route[chrono.Millis]) []TripID {
		var out []TripID
		for _, tr := range r.Trips {
			out = append(out, tr.ID)
		}
		return out
	}
	assert.Equal(t, []TripID{"slow", "late"}, ids(r0))
	assert.Equal(t, []TripID{"fast"}, ids(r1))
	assert.Equal(t, at(8, 30), r0.ArrivalTime(0, 1))
	assert.Equal(t, at(25, 10), r0.ArrivalTime(1, 1), "times past midnight stay on the service day")

	a, err := m.Stop("A")
	require.NoError(t, err)
	require.Len(t, a.Transfers, 1)
	assert.Equal(t, StopID("B"), a.Transfers[0].To)
	assert.InDelta(t, 300*ReferenceWalkSpeed, a.Transfers[0].Length, 1e-9)

	b, err := m.Stop("B")
	require.NoError(t, err)
	require.Len(t, b.Transfers, 1)
	assert.InDelta(t, 111.2, b.Transfers[0].Length, 0.5)
}

func TestFromFeedCrowFly(t *testing.T) {
	feed := sampleFeed()
	feed.Transfers = nil
	m, err := FromFeed(feed, serviceDay, BuildOptions{MaxTransferDistance: 500})
	require.NoError(t, err)

	a, _ := m.Stop("A")
	b, _ := m.Stop("B")
	c, _ := m.Stop("C")
	require.Len(t, a.Transfers, 1)
	assert.Equal(t, StopID("B"), a.Transfers[0].To)
	require.Len(t, b.Transfers, 1)
	assert.Equal(t, StopID("A"), b.Transfers[0].To)
	assert.Empty(t, c.Transfers, "C is over a kilometre away")
}

func TestFromFeedServiceDay(t *testing.T) {
	sunday := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	m, err := FromFeed(sampleFeed(), sunday, BuildOptions{})
	require.NoError(t, err)
	_, routes, trips := m.Counts()
	assert.Equal(t, 1, routes)
	assert.Equal(t, 1, trips)
}

func TestFromFeedLocation(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*3600)
	m, err := FromFeed(sampleFeed(), serviceDay, BuildOptions{Location: loc})
	require.NoError(t, err)
	r, err := m.Route("L1:0")
	require.NoError(t, err)
	assert.Equal(t, at(6, 0), r.DepartureTime(0, 0))
}

func TestFromFeedMissingTimes(t *testing.T) {
	feed := sampleFeed()
	feed.StopTimes[0].ArrivalSec = -1 // slow at C keeps its departure
	feed.StopTimes[1].DepartureSec = -1
	feed.StopTimes[1].ArrivalSec = -1
	m, err := FromFeed(feed, serviceDay, BuildOptions{})
	require.NoError(t, err)
	var slow *Trip[chrono.Millis]
	for _, id := range m.RouteIDs() {
		r, _ := m.Route(id)
		for i := range r.Trips {
			if r.Trips[i].ID == "slow" {
				slow = &r.Trips[i]
			}
		}
	}
	require.NotNil(t, slow)
	assert.Equal(t, chrono.SafeMillis, slow.Times[0].Departure)
	assert.Equal(t, at(8, 30), slow.Times[1].Arrival)
}

const network = `
stops:
  - {id: A, name: Alpha, transfers: [{to: B, length: 120}]}
  - {id: B, name: Beta}
  - {id: C}
routes:
  - id: R1
    name: one
    stops: [A, B, C]
    trips:
      - {id: T1, times: ["08:00:00", "08:04:00/08:05:00", "-"]}
      - {id: T2, times: ["08:30:00", "08:35:00", "08:40:00"]}
`

func TestLoadYAML(t *testing.T) {
	m, err := LoadYAML(strings.NewReader(network), serviceDay, BuildOptions{})
	require.NoError(t, err)

	r, err := m.Route("R1")
	require.NoError(t, err)
	assert.Equal(t, "one", r.Name)
	assert.Equal(t, at(8, 4), r.ArrivalTime(0, 1))
	assert.Equal(t, at(8, 5), r.DepartureTime(0, 1))
	assert.Equal(t, chrono.SafeMillis, r.ArrivalTime(0, 2))
	assert.Equal(t, chrono.SafeMillis, r.DepartureTime(0, 2))

	a, err := m.Stop("A")
	require.NoError(t, err)
	assert.Equal(t, []Transfer{{To: "B", Length: 120}}, a.Transfers)
	assert.Equal(t, []RouteID{"R1"}, a.Routes)
}

func TestLoadYAMLErrors(t *testing.T) {
	cases := map[string]string{
		"bad time":       "stops: [{id: A}, {id: B}]\nroutes: [{id: R, stops: [A, B], trips: [{id: T, times: [\"8am\", \"09:00:00\"]}]}]",
		"dep before arr": "stops: [{id: A}, {id: B}]\nroutes: [{id: R, stops: [A, B], trips: [{id: T, times: [\"08:00:00\", \"09:00:00/08:00:00\"]}]}]",
		"unknown field":  "stops: [{id: A, colour: red}]",
		"shape":          "stops: [{id: A}, {id: B}]\nroutes: [{id: R, stops: [A, B], trips: [{id: T, times: [\"08:00:00\"]}]}]",
	}
	for name, doc := range cases {
		_, err := LoadYAML(strings.NewReader(doc), serviceDay, BuildOptions{})
		assert.Error(t, err, name)
	}
}

func TestHaversine(t *testing.T) {
	assert.InDelta(t, 0, Haversine(40, -3, 40, -3), 1e-9)
	assert.InDelta(t, 111195, Haversine(0, 0, 1, 0), 1)
}
