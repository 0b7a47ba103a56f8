package router

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"gtfs-router/internal/chrono"
	"gtfs-router/internal/raptor"
	"gtfs-router/internal/timetable"
)

// OriginID names the virtual stop queries with access points start from.
const OriginID timetable.StopID = "@origin"

var (
	ErrBadQuery      = errors.New("router: bad query")
	ErrTooManyRounds = errors.New("router: too many rounds")
)

// Access is a stop reachable on foot from the traveler's position.
type Access struct {
	Stop   timetable.StopID
	Length float64
}

type Query struct {
	// From may be empty when Access is set.
	From      timetable.StopID
	To        timetable.StopID
	Departure time.Time
	// Rounds is the maximum number of vehicles; 0 means the configured maximum.
	Rounds    int
	WalkSpeed float64
	MaxCost   time.Duration
	// Criteria names built-in criteria; none runs plain RAPTOR.
	Criteria []string
	Access   []Access
}

type Leg struct {
	Kind      string
	From      timetable.StopID
	To        timetable.StopID
	Route     timetable.RouteID
	Trip      timetable.TripID
	Departure time.Time
	Arrival   time.Time
	// Length is set on walks, in meters.
	Length float64
}

type Journey struct {
	// Round is the first round the journey was found in, so its number of
	// vehicles is at most Round.
	Round     int
	Departure time.Time
	Arrival   time.Time
	Legs      []Leg
	Criteria  map[string]float64
}

type Result struct {
	Journeys []Journey
	Stats    raptor.Stats
}

// Query runs a search on the current timetable. Results are cached until
// the next timetable swap.
func (m *Manager) Query(ctx context.Context, q Query) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	q, err := m.normalize(q)
	if err != nil {
		return nil, err
	}
	criteria, err := raptor.CriteriaByName[chrono.Millis](q.Criteria...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadQuery, err)
	}
	q.Criteria = make([]string, len(criteria))
	for i, c := range criteria {
		q.Criteria[i] = c.Name()
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.tt == nil {
		return nil, ErrNoTimetable
	}

	key := cacheKey(q)
	if m.cache != nil {
		if v, err := m.cache.Get(key); err == nil {
			if m.metrics != nil {
				m.metrics.CacheHits.Inc()
			}
			return v.(*Result), nil
		}
		if m.metrics != nil {
			m.metrics.CacheMisses.Inc()
		}
	}

	start := time.Now()
	engine := "raptor"
	if len(criteria) > 0 {
		engine = "mcraptor"
	}
	res, err := m.search(q, criteria)
	if m.metrics != nil {
		m.metrics.Searches.WithLabelValues(engine).Inc()
		m.metrics.SearchDuration.WithLabelValues(engine).Observe(time.Since(start).Seconds())
		if err != nil {
			m.metrics.SearchErrors.Inc()
		} else {
			m.metrics.SearchRounds.Observe(float64(res.Stats.Rounds))
			m.metrics.RoutesScanned.Add(float64(res.Stats.RoutesScanned))
			m.metrics.CyclicTraces.Add(float64(res.Stats.CyclicTraces))
		}
	}
	if err != nil {
		return nil, err
	}
	if m.cache != nil {
		_ = m.cache.Set(key, res)
	}
	return res, nil
}

func (m *Manager) normalize(q Query) (Query, error) {
	if q.To == "" {
		return q, fmt.Errorf("%w: missing destination", ErrBadQuery)
	}
	if q.From == "" && len(q.Access) == 0 {
		return q, fmt.Errorf("%w: missing origin", ErrBadQuery)
	}
	if q.Departure.IsZero() {
		return q, fmt.Errorf("%w: missing departure", ErrBadQuery)
	}
	if q.Rounds == 0 {
		q.Rounds = m.opts.MaxRounds
	}
	if q.Rounds < 0 || q.Rounds > m.opts.MaxRounds {
		return q, fmt.Errorf("%w: %d > %d", ErrTooManyRounds, q.Rounds, m.opts.MaxRounds)
	}
	if q.WalkSpeed == 0 {
		q.WalkSpeed = m.opts.WalkSpeed
	}
	for _, a := range q.Access {
		if a.Length < 0 {
			return q, fmt.Errorf("%w: negative access length to %s", ErrBadQuery, a.Stop)
		}
	}
	return q, nil
}

// provider returns the timetable to search and the source stop. Access
// points hang off a virtual origin in an overlay.
func (m *Manager) provider(q Query) (timetable.Provider[chrono.Millis], timetable.StopID, error) {
	if len(q.Access) == 0 {
		return m.tt, q.From, nil
	}
	o := m.tt.Overlay()
	origin := timetable.Stop{ID: OriginID, Name: "origin"}
	if q.From != "" {
		origin.Transfers = append(origin.Transfers, timetable.Transfer{To: q.From})
	}
	for _, a := range q.Access {
		origin.Transfers = append(origin.Transfers, timetable.Transfer{To: a.Stop, Length: a.Length})
	}
	if err := o.AddStop(origin); err != nil {
		return nil, "", err
	}
	return o, OriginID, nil
}

func (m *Manager) search(q Query, criteria []raptor.Criterion[chrono.Millis]) (*Result, error) {
	tt, source, err := m.provider(q)
	if err != nil {
		return nil, err
	}
	if _, err := tt.Stop(q.To); err != nil {
		return nil, err
	}
	domain := chrono.MillisDomain{}
	departure := chrono.FromTime(q.Departure)
	settings := raptor.Settings{WalkSpeed: q.WalkSpeed, MaxCost: q.MaxCost}
	res := &Result{}

	if len(criteria) == 0 {
		r := raptor.NewRAPTOR[chrono.Millis](tt, domain)
		if err := r.Run(source, q.To, departure, settings, q.Rounds); err != nil {
			return nil, err
		}
		best := chrono.MaxMillis
		for k, j := range r.GetBestJourneys(q.To) {
			if j == nil || !domain.Less(j.Arrival(), best) {
				continue
			}
			best = j.Arrival()
			res.Journeys = append(res.Journeys, m.render(k, j, nil))
		}
		res.Stats = r.Stats()
		return res, nil
	}

	mc := raptor.NewMcRAPTOR[chrono.Millis](tt, domain, criteria...)
	if err := mc.Run(source, departure, settings, q.Rounds); err != nil {
		return nil, err
	}
	seen := make(map[*raptor.Step[chrono.Millis]]bool)
	for k, journeys := range mc.GetBestJourneys(q.To) {
		for _, j := range journeys {
			last := j[len(j)-1]
			if seen[last] {
				continue
			}
			seen[last] = true
			res.Journeys = append(res.Journeys, m.render(k, j, mc.Schema()))
		}
	}
	slices.SortStableFunc(res.Journeys, func(a, b Journey) int {
		return a.Arrival.Compare(b.Arrival)
	})
	res.Stats = mc.Stats()
	return res, nil
}

func (m *Manager) render(round int, j raptor.Journey[chrono.Millis], schema *raptor.Schema[chrono.Millis]) Journey {
	loc := m.opts.Location
	out := Journey{
		Round:     round,
		Departure: j.Departure().Time(loc),
		Arrival:   j.Arrival().Time(loc),
	}
	for _, st := range j.Legs() {
		leg := Leg{
			Kind:      st.Kind.String(),
			From:      st.From,
			To:        st.Stop,
			Departure: st.Departure.Time(loc),
			Arrival:   st.Time().Time(loc),
		}
		switch st.Kind {
		case raptor.Vehicle:
			leg.Route = st.Route
			leg.Trip = st.TripID
		case raptor.Foot:
			leg.Length = st.Transfer.Length
		}
		out.Legs = append(out.Legs, leg)
	}
	if schema != nil && len(schema.Criteria) > 0 {
		last := j[len(j)-1].Label
		out.Criteria = make(map[string]float64, len(schema.Criteria))
		for i, c := range schema.Criteria {
			out.Criteria[c.Name()] = last.Value(i)
		}
	}
	return out
}

func cacheKey(q Query) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s|%s|%d|%d|%g|%d|%s", q.From, q.To, q.Departure.UnixMilli(), q.Rounds, q.WalkSpeed, q.MaxCost, strings.Join(q.Criteria, ","))
	for _, a := range q.Access {
		fmt.Fprintf(&sb, "|%s:%g", a.Stop, a.Length)
	}
	return sb.String()
}
