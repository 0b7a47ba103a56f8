package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"gtfs-router/internal/gtfs"
	"gtfs-router/internal/logging"
	"gtfs-router/internal/router"
	"gtfs-router/internal/timetable"
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Run one journey query over a timetable file",
	Example: `  router query --timetable net.yaml --from A --to B --departure 08:00:00 --rounds 3
  router query --timetable feed.zip --date 2024-03-04 --from S1 --to S9 --criteria walking_distance,boardings`,
	RunE: func(cmd *cobra.Command, args []string) error {
		f := cmd.Flags()
		path, _ := f.GetString("timetable")
		from, _ := f.GetString("from")
		to, _ := f.GetString("to")
		depS, _ := f.GetString("departure")
		dateS, _ := f.GetString("date")
		tz, _ := f.GetString("tz")
		rounds, _ := f.GetInt("rounds")
		criteria, _ := f.GetStringSlice("criteria")
		walkSpeed, _ := f.GetFloat64("walk-speed")
		maxDist, _ := f.GetFloat64("max-transfer-distance")
		maxCost, _ := f.GetDuration("max-cost")
		asJSON, _ := f.GetBool("json")
		level, _ := f.GetString("log-level")

		logging.Setup(level, os.Stderr)

		loc := time.Local
		if tz != "" {
			var err error
			if loc, err = time.LoadLocation(tz); err != nil {
				return fmt.Errorf("invalid --tz: %w", err)
			}
		}
		day := time.Now().In(loc)
		if dateS != "" {
			d, err := time.ParseInLocation("2006-01-02", dateS, loc)
			if err != nil {
				return fmt.Errorf("invalid --date: %w", err)
			}
			day = d
		}
		sec, err := gtfs.ParseDaySeconds(depS)
		if err != nil || sec < 0 {
			return fmt.Errorf("invalid --departure %q", depS)
		}
		departure := timetable.ServiceMidnight(day, loc).Add(time.Duration(sec) * time.Second)

		build := timetable.BuildOptions{Location: loc, MaxTransferDistance: maxDist}
		mgr := router.NewManager(fileLoader(path, build), router.Options{
			Location:  loc,
			WalkSpeed: walkSpeed,
			MaxRounds: max(rounds, 1),
		}, nil)
		if err := mgr.Load(cmd.Context(), day); err != nil {
			return err
		}
		res, err := mgr.Query(cmd.Context(), router.Query{
			From:      timetable.StopID(from),
			To:        timetable.StopID(to),
			Departure: departure,
			Rounds:    rounds,
			MaxCost:   maxCost,
			Criteria:  criteria,
		})
		if err != nil {
			return err
		}
		if asJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		}
		printJourneys(cmd.OutOrStdout(), res, loc)
		return nil
	},
}

func printJourneys(w io.Writer, res *router.Result, loc *time.Location) {
	if len(res.Journeys) == 0 {
		fmt.Fprintln(w, "no journey found")
		return
	}
	clock := func(t time.Time) string { return t.In(loc).Format("15:04:05") }
	for i, j := range res.Journeys {
		fmt.Fprintf(w, "journey %d: %s -> %s (%s, round %d)", i+1, clock(j.Departure), clock(j.Arrival), j.Arrival.Sub(j.Departure), j.Round)
		if len(j.Criteria) > 0 {
			parts := make([]string, 0, len(j.Criteria))
			for name, v := range j.Criteria {
				parts = append(parts, fmt.Sprintf("%s=%g", name, v))
			}
			fmt.Fprintf(w, " [%s]", strings.Join(sortedStrings(parts), " "))
		}
		fmt.Fprintln(w)
		for _, l := range j.Legs {
			switch l.Kind {
			case "vehicle":
				fmt.Fprintf(w, "  %s %s  ride %s (%s) to %s, arrive %s\n", clock(l.Departure), l.From, l.Route, l.Trip, l.To, clock(l.Arrival))
			default:
				fmt.Fprintf(w, "  %s %s  walk %.0f m to %s, arrive %s\n", clock(l.Departure), l.From, l.Length, l.To, clock(l.Arrival))
			}
		}
	}
	fmt.Fprintf(w, "rounds=%d marked=%d routes_scanned=%d\n", res.Stats.Rounds, res.Stats.MarkedStops, res.Stats.RoutesScanned)
}

func init() {
	rootCmd.AddCommand(queryCmd)
	f := queryCmd.Flags()
	f.StringP("timetable", "t", "", "timetable file: GTFS .zip or YAML network")
	f.StringP("from", "f", "", "origin stop id")
	f.StringP("to", "d", "", "destination stop id")
	f.String("departure", "08:00:00", "departure time HH:MM[:SS] on the service day")
	f.String("date", "", "service day YYYY-MM-DD (default today)")
	f.String("tz", "", "time zone of the timetable (default local)")
	f.IntP("rounds", "r", 5, "maximum number of vehicles")
	f.StringSliceP("criteria", "c", nil, "extra criteria: "+strings.Join(criteriaNames(), ", "))
	f.Float64("walk-speed", timetable.ReferenceWalkSpeed, "walk speed in m/s")
	f.Float64("max-transfer-distance", 0, "add crow-fly transfers up to this many meters")
	f.Duration("max-cost", 0, "drop arrivals later than departure plus this")
	f.Bool("json", false, "print the result as JSON")
	f.String("log-level", "warn", "debug, info, warn or error")
	queryCmd.MarkFlagRequired("timetable")
	queryCmd.MarkFlagRequired("from")
	queryCmd.MarkFlagRequired("to")
}
