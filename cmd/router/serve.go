package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/exp/slog"

	"gtfs-router/internal/config"
	"gtfs-router/internal/logging"
	"gtfs-router/internal/metrics"
	"gtfs-router/internal/responder"
	"gtfs-router/internal/router"
	"gtfs-router/internal/timetable"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Answer journey requests over NATS",
	Long: `serve loads today's timetable from GTFS_PATH or the Postgres import of CITY,
reloads it every TIMETABLE_REFRESH_INTERVAL_SEC and replies to JSON journey
requests on NATS_SUBJECT. Configuration comes from .env and the environment.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Load configuration from .env and environment
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("config error: %w", err)
		}
		logging.Setup(cfg.LogLevel, os.Stderr)

		// Root context with cancellation on SIGINT/SIGTERM
		ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()
		return serve(ctx, cfg)
	},
}

func serve(ctx context.Context, cfg *config.Config) error {
	// Metrics setup
	var mcol *metrics.Collector
	if cfg.MetricsAddr != "" {
		mcol = metrics.NewCollector(cfg.WalkSpeed, cfg.MaxRounds, cfg.RefreshInterval)
		srv := mcol.Serve(cfg.MetricsAddr)
		defer func() {
			// Shutdown with timeout
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	build := timetable.BuildOptions{Location: cfg.Location, MaxTransferDistance: cfg.MaxTransferDistance}
	var load router.Loader
	if cfg.GTFSPath != "" {
		load = fileLoader(cfg.GTFSPath, build)
	} else {
		src := &cityDB{baseDSN: cfg.DatabaseURL, city: cfg.City, opts: build, metrics: mcol}
		defer src.Close()
		load = src.load
	}

	mgr := router.NewManager(load, router.Options{
		Location:        cfg.Location,
		RefreshInterval: cfg.RefreshInterval,
		WalkSpeed:       cfg.WalkSpeed,
		MaxRounds:       cfg.MaxRounds,
		CacheSize:       cfg.QueryCacheSize,
	}, mcol)
	if err := mgr.Refresh(ctx); err != nil {
		return fmt.Errorf("initial timetable load: %w", err)
	}
	mgr.StartRefresher(ctx)
	defer mgr.Stop()

	resp, err := responder.New(cfg.NATSURL, cfg.NATSSubject, cfg.NATSQueue, mgr, wrapResponderMetrics(mcol))
	if err != nil {
		return fmt.Errorf("nats error: %w", err)
	}
	defer resp.Close()

	// Block until context cancelled
	<-ctx.Done()
	slog.Info("shutting down")
	return nil
}

// wrapResponderMetrics adapts our Collector to the responder.Metrics interface.
func wrapResponderMetrics(c *metrics.Collector) responder.Metrics {
	if c == nil {
		return nil
	}
	return &respMetrics{c: c}
}

type respMetrics struct{ c *metrics.Collector }

func (r *respMetrics) NATSRequestInc()  { r.c.NATSRequests.Inc() }
func (r *respMetrics) NATSReplyErrInc() { r.c.NATSReplyErrs.Inc() }
func (r *respMetrics) NATSSetConnected(b bool) {
	if b {
		r.c.NATSConnected.Set(1)
	} else {
		r.c.NATSConnected.Set(0)
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
