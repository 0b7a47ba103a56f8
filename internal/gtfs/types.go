// Package gtfs holds the static GTFS rows the router builds timetables from,
// whether they come from a feed zip or from a Postgres import.
package gtfs

import "time"

type Stop struct {
	StopID string
	Name   string
	Lat    float64
	Lon    float64
}

type Route struct {
	RouteID   string
	ShortName string
	Type      int
}

type Trip struct {
	TripID    string
	RouteID   string
	ServiceID string
	Headsign  string
}

type StopTime struct {
	TripID       string
	StopSequence int
	ArrivalSec   int // seconds since midnight (can exceed 24h), -1 if missing
	DepartureSec int // seconds since midnight (can exceed 24h), -1 if missing
	StopID       string
}

// Transfer types from transfers.txt.
const (
	TransferRecommended = 0
	TransferTimed       = 1
	TransferMinTime     = 2
	TransferForbidden   = 3
)

type Transfer struct {
	FromStopID      string
	ToStopID        string
	Type            int
	MinTransferTime int // seconds
}

type Calendar struct {
	ServiceID string
	Weekdays  [7]bool // indexed by time.Weekday, 0=Sunday
	StartDate time.Time
	EndDate   time.Time
}

// Exception types from calendar_dates.txt.
const (
	ServiceAdded   = 1
	ServiceRemoved = 2
)

type CalendarDate struct {
	ServiceID     string
	Date          time.Time
	ExceptionType int
}

// Feed is a set of static GTFS rows. When ServiceIDs is non-nil the feed was
// already restricted to one service day and the calendars are ignored.
type Feed struct {
	Stops         []Stop
	Routes        []Route
	Trips         []Trip
	StopTimes     []StopTime
	Transfers     []Transfer
	Calendars     []Calendar
	CalendarDates []CalendarDate
	ServiceIDs    []string
}

// ActiveServices returns the service ids running on day.
func (f *Feed) ActiveServices(day time.Time) map[string]bool {
	active := make(map[string]bool)
	if f.ServiceIDs != nil {
		for _, id := range f.ServiceIDs {
			active[id] = true
		}
		return active
	}
	date := truncateDay(day)
	for _, c := range f.Calendars {
		if date.Before(c.StartDate) || date.After(c.EndDate) {
			continue
		}
		if c.Weekdays[date.Weekday()] {
			active[c.ServiceID] = true
		}
	}
	for _, cd := range f.CalendarDates {
		if !truncateDay(cd.Date).Equal(date) {
			continue
		}
		switch cd.ExceptionType {
		case ServiceAdded:
			active[cd.ServiceID] = true
		case ServiceRemoved:
			delete(active, cd.ServiceID)
		}
	}
	return active
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
