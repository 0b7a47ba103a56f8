package gtfs

import (
	"archive/zip"
	"encoding/csv"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"
)

// LoadZip reads a static GTFS feed from a zip file on disk.
func LoadZip(filename string) (*Feed, error) {
	zr, err := zip.OpenReader(filename)
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return loadFiles(zr.File)
}

// ReadZip reads a static GTFS feed from an in-memory or seekable archive.
func ReadZip(r io.ReaderAt, size int64) (*Feed, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, err
	}
	return loadFiles(zr.File)
}

func loadFiles(files []*zip.File) (*Feed, error) {
	feed := &Feed{}
	for _, f := range files {
		name := strings.ToLower(path.Base(f.Name))
		switch name {
		case "stops.txt", "routes.txt", "trips.txt", "stop_times.txt",
			"transfers.txt", "calendar.txt", "calendar_dates.txt":
			if err := consumeCSV(feed, name, f); err != nil {
				return nil, fmt.Errorf("gtfs: %s: %w", name, err)
			}
		}
	}
	return feed, nil
}

type table struct {
	head []string
	rows [][]string
}

func (t table) idx(col string) int {
	for i, h := range t.head {
		if strings.EqualFold(strings.TrimSpace(strings.TrimPrefix(h, "\uFEFF")), col) {
			return i
		}
	}
	return -1
}

func field(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func consumeCSV(feed *Feed, name string, f *zip.File) error {
	r, err := f.Open()
	if err != nil {
		return err
	}
	defer r.Close()
	csvr := csv.NewReader(r)
	csvr.FieldsPerRecord = -1
	rec, err := csvr.ReadAll()
	if err != nil {
		return err
	}
	if len(rec) == 0 {
		return nil
	}
	t := table{head: rec[0], rows: rec[1:]}
	switch name {
	case "stops.txt":
		return readStops(feed, t)
	case "routes.txt":
		return readRoutes(feed, t)
	case "trips.txt":
		return readTrips(feed, t)
	case "stop_times.txt":
		return readStopTimes(feed, t)
	case "transfers.txt":
		return readTransfers(feed, t)
	case "calendar.txt":
		return readCalendar(feed, t)
	case "calendar_dates.txt":
		return readCalendarDates(feed, t)
	}
	return nil
}

func readStops(feed *Feed, t table) error {
	id, nm, lat, lon := t.idx("stop_id"), t.idx("stop_name"), t.idx("stop_lat"), t.idx("stop_lon")
	if id < 0 {
		return fmt.Errorf("missing stop_id column")
	}
	for n, row := range t.rows {
		s := Stop{StopID: field(row, id), Name: field(row, nm)}
		var err error
		if v := field(row, lat); v != "" {
			if s.Lat, err = strconv.ParseFloat(v, 64); err != nil {
				return fmt.Errorf("row %d: stop_lat: %w", n+2, err)
			}
		}
		if v := field(row, lon); v != "" {
			if s.Lon, err = strconv.ParseFloat(v, 64); err != nil {
				return fmt.Errorf("row %d: stop_lon: %w", n+2, err)
			}
		}
		feed.Stops = append(feed.Stops, s)
	}
	return nil
}

func readRoutes(feed *Feed, t table) error {
	id, sn, ln, typ := t.idx("route_id"), t.idx("route_short_name"), t.idx("route_long_name"), t.idx("route_type")
	if id < 0 {
		return fmt.Errorf("missing route_id column")
	}
	for _, row := range t.rows {
		r := Route{RouteID: field(row, id), ShortName: field(row, sn)}
		if r.ShortName == "" {
			r.ShortName = field(row, ln)
		}
		if v, err := strconv.Atoi(field(row, typ)); err == nil {
			r.Type = v
		}
		feed.Routes = append(feed.Routes, r)
	}
	return nil
}

func readTrips(feed *Feed, t table) error {
	tid, rid, sid, hs := t.idx("trip_id"), t.idx("route_id"), t.idx("service_id"), t.idx("trip_headsign")
	if tid < 0 || rid < 0 {
		return fmt.Errorf("missing trip_id or route_id column")
	}
	for _, row := range t.rows {
		feed.Trips = append(feed.Trips, Trip{
			TripID:    field(row, tid),
			RouteID:   field(row, rid),
			ServiceID: field(row, sid),
			Headsign:  field(row, hs),
		})
	}
	return nil
}

func readStopTimes(feed *Feed, t table) error {
	tid, seq, arr, dep, sid := t.idx("trip_id"), t.idx("stop_sequence"), t.idx("arrival_time"), t.idx("departure_time"), t.idx("stop_id")
	if tid < 0 || seq < 0 || sid < 0 {
		return fmt.Errorf("missing trip_id, stop_sequence or stop_id column")
	}
	for n, row := range t.rows {
		st := StopTime{TripID: field(row, tid), StopID: field(row, sid)}
		var err error
		if st.StopSequence, err = strconv.Atoi(field(row, seq)); err != nil {
			return fmt.Errorf("row %d: stop_sequence: %w", n+2, err)
		}
		if st.ArrivalSec, err = ParseDaySeconds(field(row, arr)); err != nil {
			return fmt.Errorf("row %d: %w", n+2, err)
		}
		if st.DepartureSec, err = ParseDaySeconds(field(row, dep)); err != nil {
			return fmt.Errorf("row %d: %w", n+2, err)
		}
		feed.StopTimes = append(feed.StopTimes, st)
	}
	return nil
}

func readTransfers(feed *Feed, t table) error {
	from, to, typ, mt := t.idx("from_stop_id"), t.idx("to_stop_id"), t.idx("transfer_type"), t.idx("min_transfer_time")
	if from < 0 || to < 0 {
		return fmt.Errorf("missing from_stop_id or to_stop_id column")
	}
	for _, row := range t.rows {
		tr := Transfer{FromStopID: field(row, from), ToStopID: field(row, to)}
		if v, err := strconv.Atoi(field(row, typ)); err == nil {
			tr.Type = v
		}
		if v, err := strconv.Atoi(field(row, mt)); err == nil {
			tr.MinTransferTime = v
		}
		feed.Transfers = append(feed.Transfers, tr)
	}
	return nil
}

var weekdayCols = [7]string{"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday"}

func readCalendar(feed *Feed, t table) error {
	sid, start, end := t.idx("service_id"), t.idx("start_date"), t.idx("end_date")
	if sid < 0 || start < 0 || end < 0 {
		return fmt.Errorf("missing service_id, start_date or end_date column")
	}
	var days [7]int
	for i, col := range weekdayCols {
		days[i] = t.idx(col)
	}
	for n, row := range t.rows {
		c := Calendar{ServiceID: field(row, sid)}
		var err error
		if c.StartDate, err = ParseDate(field(row, start)); err != nil {
			return fmt.Errorf("row %d: %w", n+2, err)
		}
		if c.EndDate, err = ParseDate(field(row, end)); err != nil {
			return fmt.Errorf("row %d: %w", n+2, err)
		}
		for i, col := range days {
			c.Weekdays[i] = field(row, col) == "1"
		}
		feed.Calendars = append(feed.Calendars, c)
	}
	return nil
}

func readCalendarDates(feed *Feed, t table) error {
	sid, date, exc := t.idx("service_id"), t.idx("date"), t.idx("exception_type")
	if sid < 0 || date < 0 || exc < 0 {
		return fmt.Errorf("missing service_id, date or exception_type column")
	}
	for n, row := range t.rows {
		cd := CalendarDate{ServiceID: field(row, sid)}
		var err error
		if cd.Date, err = ParseDate(field(row, date)); err != nil {
			return fmt.Errorf("row %d: %w", n+2, err)
		}
		if cd.ExceptionType, err = strconv.Atoi(field(row, exc)); err != nil {
			return fmt.Errorf("row %d: exception_type: %w", n+2, err)
		}
		feed.CalendarDates = append(feed.CalendarDates, cd)
	}
	return nil
}
