package timetable

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"gtfs-router/internal/chrono"
	"gtfs-router/internal/gtfs"
)

// ReferenceWalkSpeed turns a min_transfer_time into a walking length, in m/s.
const ReferenceWalkSpeed = 1.4

type BuildOptions struct {
	// Location is the feed's local time zone. Defaults to UTC.
	Location *time.Location
	// MaxTransferDistance adds crow-fly transfers up to this many meters.
	MaxTransferDistance float64
}

func (o BuildOptions) location() *time.Location {
	if o.Location == nil {
		return time.UTC
	}
	return o.Location
}

// ServiceMidnight is local midnight of day's service date.
func ServiceMidnight(day time.Time, loc *time.Location) time.Time {
	y, m, d := day.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

func dayOffset(base time.Time, sec int) chrono.Millis {
	return chrono.FromTime(base.Add(time.Duration(sec) * time.Second))
}

type pattern struct {
	route  string
	stops  []StopID
	trips  []Trip[chrono.Millis]
	starts []chrono.Millis
}

// FromFeed builds the timetable of one service day. Trips of a GTFS route
// that share a stop sequence form one search route; a trip that would
// overtake another is moved to a sibling route so trips stay ordered by
// departure at every stop.
func FromFeed(feed *gtfs.Feed, day time.Time, opts BuildOptions) (*Memory[chrono.Millis], error) {
	loc := opts.location()
	base := ServiceMidnight(day, loc)
	domain := chrono.MillisDomain{}

	stops := make([]*Stop, 0, len(feed.Stops))
	byID := make(map[StopID]*Stop, len(feed.Stops))
	for _, s := range feed.Stops {
		id := StopID(s.StopID)
		if _, dup := byID[id]; dup {
			return nil, fmt.Errorf("%w: stop %s", ErrDuplicateID, id)
		}
		st := &Stop{ID: id, Name: s.Name, Lat: s.Lat, Lon: s.Lon}
		stops = append(stops, st)
		byID[id] = st
	}

	active := feed.ActiveServices(day)
	tripRoute := make(map[string]string)
	for _, t := range feed.Trips {
		if active[t.ServiceID] {
			tripRoute[t.TripID] = t.RouteID
		}
	}
	times := make(map[string][]gtfs.StopTime)
	for _, st := range feed.StopTimes {
		if _, ok := tripRoute[st.TripID]; ok {
			times[st.TripID] = append(times[st.TripID], st)
		}
	}

	patterns := make(map[string]*pattern)
	for tripID, sts := range times {
		if len(sts) < 2 {
			continue
		}
		sort.Slice(sts, func(i, j int) bool { return sts[i].StopSequence < sts[j].StopSequence })
		routeID := tripRoute[tripID]
		ids := make([]StopID, len(sts))
		trip := Trip[chrono.Millis]{ID: TripID(tripID), Times: make([]StopTime[chrono.Millis], len(sts))}
		for i, st := range sts {
			ids[i] = StopID(st.StopID)
			trip.Times[i] = slotTimes(domain, base, st.ArrivalSec, st.DepartureSec)
		}
		key := routeID + "|" + joinStops(ids)
		p, ok := patterns[key]
		if !ok {
			p = &pattern{route: routeID, stops: ids}
			patterns[key] = p
		}
		p.trips = append(p.trips, trip)
		p.starts = append(p.starts, firstDeparture(domain, trip))
	}

	names := make(map[string]string, len(feed.Routes))
	for _, r := range feed.Routes {
		names[r.RouteID] = r.ShortName
	}

	keys := make([]string, 0, len(patterns))
	for k := range patterns {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var routes []*Route[chrono.Millis]
	seq := make(map[string]int)
	for _, k := range keys {
		p := patterns[k]
		for _, trips := range splitOvertaking(domain, p) {
			n := seq[p.route]
			seq[p.route]++
			routes = append(routes, &Route[chrono.Millis]{
				ID:    RouteID(fmt.Sprintf("%s:%d", p.route, n)),
				Name:  names[p.route],
				Stops: p.stops,
				Trips: trips,
			})
		}
	}

	for _, tr := range feed.Transfers {
		if tr.Type == gtfs.TransferForbidden || tr.FromStopID == tr.ToStopID {
			continue
		}
		from, to := byID[StopID(tr.FromStopID)], byID[StopID(tr.ToStopID)]
		if from == nil || to == nil {
			continue
		}
		length := Haversine(from.Lat, from.Lon, to.Lat, to.Lon)
		if tr.Type == gtfs.TransferMinTime {
			length = max(length, float64(tr.MinTransferTime)*ReferenceWalkSpeed)
		}
		from.addTransfer(Transfer{To: to.ID, Length: length})
	}
	CrowFlyTransfers(stops, opts.MaxTransferDistance)

	return NewMemory[chrono.Millis](domain, stops, routes)
}

// slotTimes fills a missing arrival or departure from the other one; a slot
// with neither is cancelled.
func slotTimes(domain chrono.MillisDomain, base time.Time, arr, dep int) StopTime[chrono.Millis] {
	switch {
	case arr < 0 && dep < 0:
		return StopTime[chrono.Millis]{Arrival: domain.Safe(), Departure: domain.Safe()}
	case arr < 0:
		arr = dep
	case dep < 0:
		dep = arr
	}
	return StopTime[chrono.Millis]{Arrival: dayOffset(base, arr), Departure: dayOffset(base, dep)}
}

func firstDeparture(domain chrono.MillisDomain, trip Trip[chrono.Millis]) chrono.Millis {
	for _, st := range trip.Times {
		if st.Departure != domain.Safe() {
			return st.Departure
		}
	}
	return domain.Safe()
}

func joinStops(ids []StopID) string {
	var b strings.Builder
	for i, id := range ids {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(string(id))
	}
	return b.String()
}

// splitOvertaking sorts the trips of a pattern by first departure and deals
// them onto the fewest routes it can find greedily.
func splitOvertaking(domain chrono.MillisDomain, p *pattern) [][]Trip[chrono.Millis] {
	order := make([]int, len(p.trips))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		ia, ib := order[a], order[b]
		if p.starts[ia] != p.starts[ib] {
			return p.starts[ia] < p.starts[ib]
		}
		return p.trips[ia].ID < p.trips[ib].ID
	})

	var out [][]Trip[chrono.Millis]
	for _, i := range order {
		trip := p.trips[i]
		placed := false
		for j := range out {
			last := out[j][len(out[j])-1]
			if !Overtakes[chrono.Millis](domain, last, trip) {
				out[j] = append(out[j], trip)
				placed = true
				break
			}
		}
		if !placed {
			out = append(out, []Trip[chrono.Millis]{trip})
		}
	}
	return out
}
