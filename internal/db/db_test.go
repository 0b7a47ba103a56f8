package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gtfs-router/internal/gtfs"
)

func TestDaySeconds(t *testing.T) {
	tests := map[string]int{
		"08:05:10":        8*3600 + 5*60 + 10,
		"25:10:00":        25*3600 + 10*60,
		"1 day 01:10:00":  25*3600 + 10*60,
		"2 days 00:00:30": 2*86400 + 30,
		"":                -1,
	}
	for in, want := range tests {
		got, err := daySeconds(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := daySeconds("x day 01:00:00")
	assert.Error(t, err)
	_, err = daySeconds("8h")
	assert.Error(t, err)
}

func TestTransferType(t *testing.T) {
	assert.Equal(t, gtfs.TransferRecommended, transferType("0"))
	assert.Equal(t, gtfs.TransferRecommended, transferType(""))
	assert.Equal(t, gtfs.TransferTimed, transferType("timed"))
	assert.Equal(t, gtfs.TransferMinTime, transferType("2"))
	assert.Equal(t, gtfs.TransferForbidden, transferType("not_possible"))
}

func TestStopsQuery(t *testing.T) {
	q, err := stopsQuery(map[string]bool{"stop_lat": true, "stop_lon": true, "stop_loc": true})
	require.NoError(t, err)
	assert.Contains(t, q, "stop_lat")

	q, err = stopsQuery(map[string]bool{"stop_loc": true})
	require.NoError(t, err)
	assert.Contains(t, q, "ST_Y(stop_loc::geometry)")

	_, err = stopsQuery(map[string]bool{"stop_lat": true})
	assert.Error(t, err)
}

func TestWithDBName(t *testing.T) {
	got, err := WithDBName("postgres://u:p@db:5432/postgres?sslmode=disable", "gtfs_madrid_2024")
	require.NoError(t, err)
	assert.Equal(t, "postgres://u:p@db:5432/gtfs_madrid_2024?sslmode=disable", got)

	got, err = WithDBName("db/postgres", "/other")
	require.NoError(t, err)
	assert.Equal(t, "postgres://db/other", got)

	_, err = WithDBName("", "x")
	assert.Error(t, err)
	_, err = WithDBName("postgres://db/postgres", " ")
	assert.Error(t, err)
	_, err = WithDBName("mysql://db/x", "y")
	assert.ErrorContains(t, err, "unsupported DSN scheme")
}

func TestLatestImportNeedsCity(t *testing.T) {
	_, err := LatestImport(context.Background(), nil, "  ")
	assert.ErrorContains(t, err, "city is required")

	_, _, err = ResolveCity(context.Background(), "", "madrid")
	assert.ErrorContains(t, err, "invalid base DSN")
}

func TestCalendarFlags(t *testing.T) {
	for _, s := range []string{"1", "t", "TRUE", " available "} {
		assert.True(t, serviceRuns(s), s)
	}
	for _, s := range []string{"0", "f", "not_available", ""} {
		assert.False(t, serviceRuns(s), s)
	}
	assert.Equal(t, gtfs.ServiceAdded, exceptionType("added"))
	assert.Equal(t, gtfs.ServiceRemoved, exceptionType("2"))
	assert.Zero(t, exceptionType("?"))
}
