package db

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"gtfs-router/internal/gtfs"

	_ "github.com/jackc/pgx/v5/stdlib"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slog"
)

func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

func Ping(ctx context.Context, db *sql.DB) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return db.PingContext(ctx)
}

// LoadFeed reads the rows of every trip running on day from a
// postgis-gtfs-importer database. The returned feed carries the resolved
// service ids.
func LoadFeed(ctx context.Context, db *sql.DB, day time.Time) (*gtfs.Feed, error) {
	feed := &gtfs.Feed{}
	var err error
	if feed.Calendars, err = fetchCalendars(ctx, db); err != nil {
		return nil, err
	}
	if feed.CalendarDates, err = fetchCalendarDates(ctx, db, day); err != nil {
		return nil, err
	}
	services := maps.Keys(feed.ActiveServices(day))
	sort.Strings(services)
	feed.ServiceIDs = services

	if feed.Stops, err = fetchStops(ctx, db); err != nil {
		return nil, err
	}
	if feed.Routes, err = fetchRoutes(ctx, db); err != nil {
		return nil, err
	}
	if len(services) == 0 {
		slog.Warn("no active services", "day", day.Format("2006-01-02"))
		return feed, nil
	}
	if feed.Trips, err = fetchTrips(ctx, db, services); err != nil {
		return nil, err
	}
	if feed.StopTimes, err = fetchStopTimes(ctx, db, services); err != nil {
		return nil, err
	}
	if feed.Transfers, err = fetchTransfers(ctx, db); err != nil {
		return nil, err
	}
	slog.Debug("feed loaded from database",
		"services", len(services), "stops", len(feed.Stops), "trips", len(feed.Trips),
		"stop_times", len(feed.StopTimes), "transfers", len(feed.Transfers))
	return feed, nil
}

// queryRows runs q and converts every row with scan.
func queryRows[T any](ctx context.Context, db *sql.DB, what, q string, scan func(*sql.Rows) (T, error), args ...any) ([]T, error) {
	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", what, err)
	}
	defer rows.Close()
	var out []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", what, err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// The importer stores weekday flags and exception types either as integers
// or as enum labels, so both are read as text.
var weekdayColumns = [7]string{"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday"}

func fetchCalendars(ctx context.Context, db *sql.DB) ([]gtfs.Calendar, error) {
	cols := make([]string, len(weekdayColumns))
	for i, c := range weekdayColumns {
		cols[i] = fmt.Sprintf("COALESCE(%s::text, '0')", c)
	}
	q := `SELECT service_id, start_date, end_date, ` + strings.Join(cols, ", ") + ` FROM calendar`
	return queryRows(ctx, db, "calendar", q, func(rows *sql.Rows) (gtfs.Calendar, error) {
		var (
			c    gtfs.Calendar
			days [7]string
		)
		dest := []any{&c.ServiceID, &c.StartDate, &c.EndDate}
		for i := range days {
			dest = append(dest, &days[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return c, err
		}
		for i, d := range days {
			c.Weekdays[i] = serviceRuns(d)
		}
		return c, nil
	})
}

// fetchCalendarDates only reads the exceptions of day.
func fetchCalendarDates(ctx context.Context, db *sql.DB, day time.Time) ([]gtfs.CalendarDate, error) {
	q := `SELECT service_id, date, COALESCE(exception_type::text, '') FROM calendar_dates WHERE date = $1::date`
	return queryRows(ctx, db, "calendar_dates", q, func(rows *sql.Rows) (gtfs.CalendarDate, error) {
		var (
			cd  gtfs.CalendarDate
			typ string
		)
		if err := rows.Scan(&cd.ServiceID, &cd.Date, &typ); err != nil {
			return cd, err
		}
		cd.ExceptionType = exceptionType(typ)
		return cd, nil
	}, day.Format("2006-01-02"))
}

func serviceRuns(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "t", "true", "available":
		return true
	}
	return false
}

func exceptionType(s string) int {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "added":
		return gtfs.ServiceAdded
	case "2", "removed":
		return gtfs.ServiceRemoved
	}
	return 0
}

// stopsQuery prefers stop_lat/stop_lon and falls back to the PostGIS stop_loc
// geography.
func stopsQuery(cols map[string]bool) (string, error) {
	switch {
	case cols["stop_lat"] && cols["stop_lon"]:
		return `SELECT stop_id, COALESCE(stop_name, ''), COALESCE(stop_lat, 0), COALESCE(stop_lon, 0) FROM stops`, nil
	case cols["stop_loc"]:
		return `SELECT stop_id, COALESCE(stop_name, ''),
       COALESCE(ST_Y(stop_loc::geometry), 0),
       COALESCE(ST_X(stop_loc::geometry), 0)
FROM stops`, nil
	}
	return "", fmt.Errorf("stops table has neither stop_lat/stop_lon nor stop_loc")
}

func fetchStops(ctx context.Context, db *sql.DB) ([]gtfs.Stop, error) {
	cols, err := hasColumns(ctx, db, "public", "stops", "stop_lat", "stop_lon", "stop_loc")
	if err != nil {
		return nil, fmt.Errorf("stops columns: %w", err)
	}
	q, err := stopsQuery(cols)
	if err != nil {
		return nil, err
	}
	return queryRows(ctx, db, "stops", q, func(rows *sql.Rows) (gtfs.Stop, error) {
		var s gtfs.Stop
		err := rows.Scan(&s.StopID, &s.Name, &s.Lat, &s.Lon)
		return s, err
	})
}

func fetchRoutes(ctx context.Context, db *sql.DB) ([]gtfs.Route, error) {
	q := `SELECT route_id, COALESCE(route_short_name, ''), COALESCE(route_type::text, '') FROM routes`
	return queryRows(ctx, db, "routes", q, func(rows *sql.Rows) (gtfs.Route, error) {
		var (
			r   gtfs.Route
			typ string
		)
		if err := rows.Scan(&r.RouteID, &r.ShortName, &typ); err != nil {
			return r, err
		}
		// route_type is an enum label in some importer versions
		r.Type, _ = strconv.Atoi(typ)
		return r, nil
	})
}

func fetchTrips(ctx context.Context, db *sql.DB, services []string) ([]gtfs.Trip, error) {
	q := `SELECT trip_id, route_id, service_id, COALESCE(trip_headsign, '') FROM trips WHERE service_id = ANY($1)`
	return queryRows(ctx, db, "trips", q, func(rows *sql.Rows) (gtfs.Trip, error) {
		var t gtfs.Trip
		err := rows.Scan(&t.TripID, &t.RouteID, &t.ServiceID, &t.Headsign)
		return t, err
	}, services)
}

func fetchStopTimes(ctx context.Context, db *sql.DB, services []string) ([]gtfs.StopTime, error) {
	// arrival_time and departure_time are text or interval depending on the importer
	q := `SELECT st.trip_id, st.stop_sequence, st.stop_id,
       COALESCE(st.arrival_time::text, ''),
       COALESCE(st.departure_time::text, '')
FROM stop_times st
JOIN trips t ON t.trip_id = st.trip_id
WHERE t.service_id = ANY($1)`
	return queryRows(ctx, db, "stop_times", q, func(rows *sql.Rows) (gtfs.StopTime, error) {
		var (
			st       gtfs.StopTime
			arr, dep string
			err      error
		)
		if err = rows.Scan(&st.TripID, &st.StopSequence, &st.StopID, &arr, &dep); err != nil {
			return st, err
		}
		if st.ArrivalSec, err = daySeconds(arr); err != nil {
			return st, fmt.Errorf("trip %s seq %d: %w", st.TripID, st.StopSequence, err)
		}
		if st.DepartureSec, err = daySeconds(dep); err != nil {
			return st, fmt.Errorf("trip %s seq %d: %w", st.TripID, st.StopSequence, err)
		}
		return st, nil
	}, services)
}

// fetchTransfers returns nil when the import has no transfers table.
func fetchTransfers(ctx context.Context, db *sql.DB) ([]gtfs.Transfer, error) {
	cols, err := hasColumns(ctx, db, "public", "transfers", "from_stop_id", "to_stop_id")
	if err != nil {
		return nil, fmt.Errorf("transfers columns: %w", err)
	}
	if !cols["from_stop_id"] || !cols["to_stop_id"] {
		return nil, nil
	}
	q := `SELECT from_stop_id, to_stop_id,
       COALESCE(transfer_type::text, '0'),
       COALESCE(min_transfer_time, 0)
FROM transfers
WHERE from_stop_id IS NOT NULL AND to_stop_id IS NOT NULL`
	return queryRows(ctx, db, "transfers", q, func(rows *sql.Rows) (gtfs.Transfer, error) {
		var (
			t   gtfs.Transfer
			typ string
		)
		if err := rows.Scan(&t.FromStopID, &t.ToStopID, &typ, &t.MinTransferTime); err != nil {
			return t, err
		}
		t.Type = transferType(typ)
		return t, nil
	})
}

// transferType accepts numeric codes and the importer's enum labels.
func transferType(s string) int {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "timed":
		return gtfs.TransferTimed
	case "2", "minimum_time":
		return gtfs.TransferMinTime
	case "3", "not_possible", "forbidden":
		return gtfs.TransferForbidden
	default:
		return gtfs.TransferRecommended
	}
}

// daySeconds parses a stop time rendered as text. Postgres may render long
// intervals with a day part ("1 day 01:10:00").
func daySeconds(s string) (int, error) {
	s = strings.TrimSpace(s)
	days := 0
	if i := strings.Index(s, " day"); i > 0 {
		n, err := strconv.Atoi(s[:i])
		if err != nil {
			return 0, fmt.Errorf("gtfs: invalid time %q", s)
		}
		days = n
		rest := strings.TrimSpace(s[i+len(" day"):])
		s = strings.TrimSpace(strings.TrimPrefix(rest, "s"))
	}
	sec, err := gtfs.ParseDaySeconds(s)
	if err != nil || sec < 0 {
		return sec, err
	}
	return days*86400 + sec, nil
}

// hasColumns reports which of cols exist on schema.table.
func hasColumns(ctx context.Context, db *sql.DB, schema, table string, cols ...string) (map[string]bool, error) {
	res := make(map[string]bool, len(cols))
	for _, c := range cols {
		res[c] = false
	}
	if len(cols) == 0 {
		return res, nil
	}
	q := `SELECT column_name FROM information_schema.columns
WHERE table_schema = $1 AND table_name = $2 AND column_name = ANY($3)`
	found, err := queryRows(ctx, db, "columns", q, func(rows *sql.Rows) (string, error) {
		var name string
		err := rows.Scan(&name)
		return name, err
	}, schema, table, cols)
	if err != nil {
		return nil, err
	}
	for _, name := range found {
		res[name] = true
	}
	return res, nil
}
