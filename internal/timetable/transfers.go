package timetable

import (
	"math"

	"github.com/kyroy/kdtree"
	"github.com/kyroy/kdtree/kdrange"
)

const earthRadius = 6371000.0

// Haversine is the great-circle distance in meters.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	toRad := func(d float64) float64 { return d * math.Pi / 180 }
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadius * c
}

type stopPoint struct {
	stop *Stop
}

func (p stopPoint) Dimensions() int { return 2 }

func (p stopPoint) Dimension(i int) float64 {
	switch i {
	case 0:
		return p.stop.Lat
	case 1:
		return p.stop.Lon
	default:
		panic("invalid dimension")
	}
}

// CrowFlyTransfers links every pair of distinct stops closer than maxDist
// meters, in both directions, keeping existing shorter transfers. Stops at
// 0,0 are treated as unlocated and skipped.
func CrowFlyTransfers(stops []*Stop, maxDist float64) int {
	if maxDist <= 0 || len(stops) < 2 {
		return 0
	}
	points := make([]kdtree.Point, 0, len(stops))
	for _, s := range stops {
		if s.Lat == 0 && s.Lon == 0 {
			continue
		}
		points = append(points, stopPoint{stop: s})
	}
	if len(points) < 2 {
		return 0
	}
	tree := kdtree.New(points)

	added := 0
	dLat := maxDist / earthRadius * 180 / math.Pi
	for _, p := range points {
		s := p.(stopPoint).stop
		cos := math.Cos(s.Lat * math.Pi / 180)
		dLon := 180.0
		if cos > 1e-9 {
			dLon = math.Min(180, dLat/cos)
		}
		box := kdrange.New(s.Lat-dLat, s.Lat+dLat, s.Lon-dLon, s.Lon+dLon)
		for _, q := range tree.RangeSearch(box) {
			o := q.(stopPoint).stop
			if o.ID == s.ID {
				continue
			}
			d := Haversine(s.Lat, s.Lon, o.Lat, o.Lon)
			if d > maxDist {
				continue
			}
			before := len(s.Transfers)
			s.addTransfer(Transfer{To: o.ID, Length: d})
			if len(s.Transfers) > before {
				added++
			}
		}
	}
	return added
}
