package responder

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gtfs-router/internal/raptor"
	"gtfs-router/internal/router"
)

type fakeQuerier struct {
	got router.Query
	res *router.Result
	err error
}

func (f *fakeQuerier) Query(_ context.Context, q router.Query) (*router.Result, error) {
	f.got = q
	return f.res, f.err
}

func decode(t *testing.T, b []byte) QueryResponse {
	t.Helper()
	var resp QueryResponse
	require.NoError(t, json.Unmarshal(b, &resp))
	return resp
}

func TestHandleQuery(t *testing.T) {
	dep := time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC)
	fq := &fakeQuerier{res: &router.Result{
		Journeys: []router.Journey{{
			Round:     1,
			Departure: dep,
			Arrival:   dep.Add(10 * time.Minute),
			Legs: []router.Leg{
				{Kind: "foot", From: router.OriginID, To: "A", Departure: dep, Arrival: dep.Add(time.Minute), Length: 80},
				{Kind: "vehicle", From: "A", To: "B", Route: "X", Trip: "x0", Departure: dep.Add(2 * time.Minute), Arrival: dep.Add(10 * time.Minute)},
			},
			Criteria: map[string]float64{raptor.NameWalkingDistance: 80},
		}},
		Stats: raptor.Stats{Rounds: 2, MarkedStops: 5, RoutesScanned: 3},
	}}

	req := `{"to":"B","departure":"2024-03-04T08:00:00Z","rounds":2,"walkSpeed":1.2,"maxCostSec":3600,
		"criteria":["walking_distance"],"access":[{"stop":"A","length":80}]}`
	resp := decode(t, handle(context.Background(), fq, []byte(req)))

	assert.Empty(t, resp.Error)
	assert.Equal(t, router.Query{
		To:        "B",
		Departure: dep,
		Rounds:    2,
		WalkSpeed: 1.2,
		MaxCost:   time.Hour,
		Criteria:  []string{"walking_distance"},
		Access:    []router.Access{{Stop: "A", Length: 80}},
	}, fq.got)

	require.Len(t, resp.Journeys, 1)
	j := resp.Journeys[0]
	assert.Equal(t, 1, j.Round)
	assert.True(t, dep.Add(10*time.Minute).Equal(j.Arrival))
	require.Len(t, j.Legs, 2)
	assert.Equal(t, "@origin", j.Legs[0].From)
	assert.Equal(t, 80.0, j.Legs[0].Length)
	assert.Equal(t, "x0", j.Legs[1].Trip)
	assert.Equal(t, map[string]float64{"walking_distance": 80}, j.Criteria)
	assert.Equal(t, &StatsJSON{Rounds: 2, MarkedStops: 5, RoutesScanned: 3}, resp.Stats)
}

func TestHandleEmptyResult(t *testing.T) {
	fq := &fakeQuerier{res: &router.Result{}}
	b := handle(context.Background(), fq, []byte(`{"from":"A","to":"B","departure":"2024-03-04T08:00:00+01:00"}`))
	assert.JSONEq(t, `{"journeys":[],"stats":{"rounds":0,"markedStops":0,"routesScanned":0}}`, string(b))
}

func TestHandleInvalidRequests(t *testing.T) {
	cases := map[string]string{
		"not json":        `{`,
		"no destination":  `{"from":"A","departure":"2024-03-04T08:00:00Z"}`,
		"no origin":       `{"to":"B","departure":"2024-03-04T08:00:00Z"}`,
		"bad departure":   `{"from":"A","to":"B","departure":"08:00"}`,
		"negative rounds": `{"from":"A","to":"B","departure":"2024-03-04T08:00:00Z","rounds":-1}`,
		"empty criterion": `{"from":"A","to":"B","departure":"2024-03-04T08:00:00Z","criteria":[""]}`,
		"access stop":     `{"to":"B","departure":"2024-03-04T08:00:00Z","access":[{"length":5}]}`,
		"negative access": `{"to":"B","departure":"2024-03-04T08:00:00Z","access":[{"stop":"A","length":-5}]}`,
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			fq := &fakeQuerier{res: &router.Result{}}
			resp := decode(t, handle(context.Background(), fq, []byte(req)))
			assert.Contains(t, resp.Error, "invalid request")
			assert.Empty(t, fq.got.To, "querier must not run")
		})
	}
}

func TestHandleQueryError(t *testing.T) {
	fq := &fakeQuerier{err: fmt.Errorf("%w: 9 > 5", router.ErrTooManyRounds)}
	resp := decode(t, handle(context.Background(), fq, []byte(`{"from":"A","to":"B","departure":"2024-03-04T08:00:00Z","rounds":9}`)))
	assert.Equal(t, "router: too many rounds: 9 > 5", resp.Error)
	assert.Empty(t, resp.Journeys)
	assert.Nil(t, resp.Stats)
}
