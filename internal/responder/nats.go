// Package responder answers journey requests received over NATS.
package responder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/nats-io/nats.go"
	"golang.org/x/exp/slog"

	"gtfs-router/internal/router"
	"gtfs-router/internal/timetable"
)

// Querier runs journey queries; *router.Manager implements it.
type Querier interface {
	Query(ctx context.Context, q router.Query) (*router.Result, error)
}

type Metrics interface {
	NATSRequestInc()
	NATSReplyErrInc()
	NATSSetConnected(connected bool)
}

type Responder struct {
	nc      *nats.Conn
	sub     *nats.Subscription
	q       Querier
	metrics Metrics
	timeout time.Duration
}

// New connects to url and serves requests on subject within queue group.
func New(url, subject, queue string, q Querier, m Metrics) (*Responder, error) {
	nc, err := nats.Connect(url,
		nats.Name("gtfs-router"),
		nats.DisconnectHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			slog.Warn("nats disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(true)
			}
			slog.Info("nats reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			slog.Info("nats closed")
		}),
	)
	if err != nil {
		return nil, err
	}
	if m != nil {
		m.NATSSetConnected(true)
	}
	r := &Responder{nc: nc, q: q, metrics: m, timeout: 10 * time.Second}
	r.sub, err = nc.QueueSubscribe(subject, queue, r.onMsg)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("subscribe %s: %w", subject, err)
	}
	slog.Info("serving journey requests", "subject", subject, "queue", queue)
	return r, nil
}

func (r *Responder) Close() {
	if r.nc != nil {
		r.nc.Drain()
		r.nc.Close()
	}
}

func (r *Responder) onMsg(msg *nats.Msg) {
	if r.metrics != nil {
		r.metrics.NATSRequestInc()
	}
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	reply := handle(ctx, r.q, msg.Data)
	if msg.Reply == "" {
		return
	}
	if err := msg.Respond(reply); err != nil {
		if r.metrics != nil {
			r.metrics.NATSReplyErrInc()
		}
		slog.Error("nats reply", "subject", msg.Subject, "err", err)
	}
}

var validate = validator.New()

type AccessPoint struct {
	Stop   string  `json:"stop" validate:"required"`
	Length float64 `json:"length" validate:"gte=0"`
}

type QueryRequest struct {
	From       string        `json:"from" validate:"required_without=Access"`
	To         string        `json:"to" validate:"required"`
	Departure  string        `json:"departure" validate:"required"` // RFC3339
	Rounds     int           `json:"rounds" validate:"gte=0"`
	WalkSpeed  float64       `json:"walkSpeed" validate:"gte=0"`
	MaxCostSec int           `json:"maxCostSec" validate:"gte=0"`
	Criteria   []string      `json:"criteria" validate:"dive,required"`
	Access     []AccessPoint `json:"access" validate:"dive"`
}

type LegJSON struct {
	Kind      string    `json:"kind"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Route     string    `json:"route,omitempty"`
	Trip      string    `json:"trip,omitempty"`
	Departure time.Time `json:"departure"`
	Arrival   time.Time `json:"arrival"`
	Length    float64   `json:"length,omitempty"`
}

type JourneyJSON struct {
	Round     int                `json:"round"`
	Departure time.Time          `json:"departure"`
	Arrival   time.Time          `json:"arrival"`
	Legs      []LegJSON          `json:"legs"`
	Criteria  map[string]float64 `json:"criteria,omitempty"`
}

type StatsJSON struct {
	Rounds        int `json:"rounds"`
	MarkedStops   int `json:"markedStops"`
	RoutesScanned int `json:"routesScanned"`
}

type QueryResponse struct {
	Journeys []JourneyJSON `json:"journeys"`
	Stats    *StatsJSON    `json:"stats,omitempty"`
	Error    string        `json:"error,omitempty"`
}

func (req QueryRequest) query() (router.Query, error) {
	dep, err := time.Parse(time.RFC3339, req.Departure)
	if err != nil {
		return router.Query{}, fmt.Errorf("departure: %w", err)
	}
	q := router.Query{
		From:      timetable.StopID(req.From),
		To:        timetable.StopID(req.To),
		Departure: dep,
		Rounds:    req.Rounds,
		WalkSpeed: req.WalkSpeed,
		MaxCost:   time.Duration(req.MaxCostSec) * time.Second,
		Criteria:  req.Criteria,
	}
	for _, a := range req.Access {
		q.Access = append(q.Access, router.Access{Stop: timetable.StopID(a.Stop), Length: a.Length})
	}
	return q, nil
}

// handle decodes one request and always returns a JSON reply.
func handle(ctx context.Context, q Querier, data []byte) []byte {
	resp := respond(ctx, q, data)
	b, err := json.Marshal(resp)
	if err != nil {
		b, _ = json.Marshal(QueryResponse{Error: err.Error()})
	}
	return b
}

func respond(ctx context.Context, q Querier, data []byte) QueryResponse {
	var req QueryRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return QueryResponse{Error: "invalid request: " + err.Error()}
	}
	if err := validate.Struct(req); err != nil {
		return QueryResponse{Error: "invalid request: " + err.Error()}
	}
	rq, err := req.query()
	if err != nil {
		return QueryResponse{Error: "invalid request: " + err.Error()}
	}
	res, err := q.Query(ctx, rq)
	if err != nil {
		if !errors.Is(err, router.ErrBadQuery) && !errors.Is(err, router.ErrTooManyRounds) {
			slog.Warn("query failed", "from", req.From, "to", req.To, "err", err)
		}
		return QueryResponse{Error: err.Error()}
	}
	out := QueryResponse{
		Journeys: make([]JourneyJSON, 0, len(res.Journeys)),
		Stats: &StatsJSON{
			Rounds:        res.Stats.Rounds,
			MarkedStops:   res.Stats.MarkedStops,
			RoutesScanned: res.Stats.RoutesScanned,
		},
	}
	for _, j := range res.Journeys {
		jj := JourneyJSON{Round: j.Round, Departure: j.Departure, Arrival: j.Arrival, Criteria: j.Criteria}
		for _, l := range j.Legs {
			jj.Legs = append(jj.Legs, LegJSON{
				Kind:      l.Kind,
				From:      string(l.From),
				To:        string(l.To),
				Route:     string(l.Route),
				Trip:      string(l.Trip),
				Departure: l.Departure,
				Arrival:   l.Arrival,
				Length:    l.Length,
			})
		}
		out.Journeys = append(out.Journeys, jj)
	}
	return out
}
