package timetable

import (
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"gtfs-router/internal/chrono"
	"gtfs-router/internal/gtfs"
)

type yamlNetwork struct {
	Stops  []yamlStop  `yaml:"stops"`
	Routes []yamlRoute `yaml:"routes"`
}

type yamlStop struct {
	ID        StopID     `yaml:"id"`
	Name      string     `yaml:"name"`
	Lat       float64    `yaml:"lat"`
	Lon       float64    `yaml:"lon"`
	Transfers []Transfer `yaml:"transfers"`
}

type yamlRoute struct {
	ID    RouteID    `yaml:"id"`
	Name  string     `yaml:"name"`
	Stops []StopID   `yaml:"stops"`
	Trips []yamlTrip `yaml:"trips"`
}

type yamlTrip struct {
	ID    TripID   `yaml:"id"`
	Times []string `yaml:"times"`
}

// LoadYAML reads a hand-written network. Each trip time is "HH:MM:SS" (arrival
// equals departure), "HH:MM:SS/HH:MM:SS" (arrival/departure) or "-" for a
// cancelled slot, counted from local midnight of day.
//
//	stops:
//	  - {id: A, name: Alpha, transfers: [{to: B, length: 120}]}
//	  - {id: B}
//	routes:
//	  - id: R1
//	    stops: [A, B]
//	    trips:
//	      - {id: T1, times: ["08:00:00", "08:04:00/08:05:00"]}
func LoadYAML(r io.Reader, day time.Time, opts BuildOptions) (*Memory[chrono.Millis], error) {
	var doc yamlNetwork
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("timetable: decode yaml: %w", err)
	}
	base := ServiceMidnight(day, opts.location())
	domain := chrono.MillisDomain{}

	stops := make([]*Stop, 0, len(doc.Stops))
	for _, s := range doc.Stops {
		stops = append(stops, &Stop{ID: s.ID, Name: s.Name, Lat: s.Lat, Lon: s.Lon, Transfers: s.Transfers})
	}
	CrowFlyTransfers(stops, opts.MaxTransferDistance)

	routes := make([]*Route[chrono.Millis], 0, len(doc.Routes))
	for _, yr := range doc.Routes {
		r := &Route[chrono.Millis]{ID: yr.ID, Name: yr.Name, Stops: yr.Stops}
		for _, yt := range yr.Trips {
			trip := Trip[chrono.Millis]{ID: yt.ID, Times: make([]StopTime[chrono.Millis], len(yt.Times))}
			for i, raw := range yt.Times {
				st, err := parseSlot(domain, base, raw)
				if err != nil {
					return nil, fmt.Errorf("timetable: route %s trip %s: %w", yr.ID, yt.ID, err)
				}
				trip.Times[i] = st
			}
			r.Trips = append(r.Trips, trip)
		}
		routes = append(routes, r)
	}
	return NewMemory[chrono.Millis](domain, stops, routes)
}

func parseSlot(domain chrono.MillisDomain, base time.Time, raw string) (StopTime[chrono.Millis], error) {
	raw = strings.TrimSpace(raw)
	if raw == "-" {
		return StopTime[chrono.Millis]{Arrival: domain.Safe(), Departure: domain.Safe()}, nil
	}
	arrS, depS, split := strings.Cut(raw, "/")
	if !split {
		depS = arrS
	}
	arr, err := gtfs.ParseDaySeconds(arrS)
	if err != nil {
		return StopTime[chrono.Millis]{}, err
	}
	dep, err := gtfs.ParseDaySeconds(depS)
	if err != nil {
		return StopTime[chrono.Millis]{}, err
	}
	if arr < 0 || dep < 0 {
		return StopTime[chrono.Millis]{}, fmt.Errorf("empty time %q", raw)
	}
	if dep < arr {
		return StopTime[chrono.Millis]{}, fmt.Errorf("departure before arrival in %q", raw)
	}
	return StopTime[chrono.Millis]{Arrival: dayOffset(base, arr), Departure: dayOffset(base, dep)}, nil
}
