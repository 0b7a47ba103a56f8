package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "router",
	Short: "Pareto-optimal public transit journey planner",
	Long: `router answers journey queries over a GTFS timetable with RAPTOR, or
McRAPTOR when extra criteria are requested. It serves requests over NATS or
runs one-off queries from the command line.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
