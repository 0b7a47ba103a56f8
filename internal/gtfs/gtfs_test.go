package gtfs

import (
	"archive/zip"
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDaySeconds(t *testing.T) {
	cases := map[string]int{
		"":         -1,
		"00:00:00": 0,
		"08:15:30": 8*3600 + 15*60 + 30,
		"25:01:00": 25*3600 + 60,
		"7:05":     7*3600 + 5*60,
	}
	for in, want := range cases {
		got, err := ParseDaySeconds(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	for _, bad := range []string{"noon", "10:61:00", "1:2:3:4", "-1:00:00"} {
		_, err := ParseDaySeconds(bad)
		assert.Error(t, err, bad)
	}
	assert.Equal(t, "25:01:00", FormatDaySeconds(25*3600+60))
	assert.Equal(t, "", FormatDaySeconds(-1))
}

func TestActiveServices(t *testing.T) {
	start, _ := ParseDate("20240101")
	end, _ := ParseDate("20241231")
	feed := &Feed{
		Calendars: []Calendar{
			{ServiceID: "weekday", Weekdays: [7]bool{false, true, true, true, true, true, false}, StartDate: start, EndDate: end},
			{ServiceID: "sunday", Weekdays: [7]bool{true}, StartDate: start, EndDate: end},
		},
		CalendarDates: []CalendarDate{
			{ServiceID: "weekday", Date: time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), ExceptionType: ServiceRemoved},
			{ServiceID: "special", Date: time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), ExceptionType: ServiceAdded},
		},
	}

	monday := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, map[string]bool{"weekday": true}, feed.ActiveServices(monday))

	tuesday := time.Date(2024, 3, 5, 23, 0, 0, 0, time.UTC)
	assert.Equal(t, map[string]bool{"special": true}, feed.ActiveServices(tuesday))

	outside := time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC)
	assert.Empty(t, feed.ActiveServices(outside))

	feed.ServiceIDs = []string{"only"}
	assert.Equal(t, map[string]bool{"only": true}, feed.ActiveServices(monday))
}

func TestReadZip(t *testing.T) {
	files := map[string]string{
		"stops.txt": "\uFEFFstop_id,stop_name,stop_lat,stop_lon\n" +
			"A,Alpha,40.0,-3.0\n" +
			"B,Beta,40.01,-3.0\n",
		"routes.txt":     "route_id,route_short_name,route_long_name,route_type\nR1,,Long name,3\n",
		"trips.txt":      "route_id,service_id,trip_id,trip_headsign\nR1,S,T1,Beta\n",
		"stop_times.txt": "trip_id,arrival_time,departure_time,stop_id,stop_sequence\nT1,08:00:00,08:00:00,A,1\nT1,08:05:00,,B,2\n",
		"transfers.txt":  "from_stop_id,to_stop_id,transfer_type,min_transfer_time\nA,B,2,120\n",
		"calendar.txt": "service_id,monday,tuesday,wednesday,thursday,friday,saturday,sunday,start_date,end_date\n" +
			"S,1,1,1,1,1,0,0,20240101,20241231\n",
		"calendar_dates.txt": "service_id,date,exception_type\nS,20240106,1\n",
		"shapes.txt":         "ignored\n",
	}
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())

	feed, err := ReadZip(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)

	require.Len(t, feed.Stops, 2)
	assert.Equal(t, Stop{StopID: "A", Name: "Alpha", Lat: 40.0, Lon: -3.0}, feed.Stops[0])
	assert.Equal(t, []Route{{RouteID: "R1", ShortName: "Long name", Type: 3}}, feed.Routes)
	assert.Equal(t, []Trip{{TripID: "T1", RouteID: "R1", ServiceID: "S", Headsign: "Beta"}}, feed.Trips)
	require.Len(t, feed.StopTimes, 2)
	assert.Equal(t, 8*3600+5*60, feed.StopTimes[1].ArrivalSec)
	assert.Equal(t, -1, feed.StopTimes[1].DepartureSec)
	assert.Equal(t, []Transfer{{FromStopID: "A", ToStopID: "B", Type: TransferMinTime, MinTransferTime: 120}}, feed.Transfers)
	require.Len(t, feed.Calendars, 1)
	assert.True(t, feed.Calendars[0].Weekdays[time.Monday])
	assert.False(t, feed.Calendars[0].Weekdays[time.Sunday])

	saturday := time.Date(2024, 1, 6, 12, 0, 0, 0, time.UTC)
	assert.True(t, feed.ActiveServices(saturday)["S"])
}

func TestReadZipBadTime(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("stop_times.txt")
	require.NoError(t, err)
	_, err = w.Write([]byte("trip_id,arrival_time,departure_time,stop_id,stop_sequence\nT1,8h,08:00:00,A,1\n"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	_, err = ReadZip(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stop_times.txt")
}
