package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/exp/slog"
)

type Collector struct {
	reg *prometheus.Registry

	Searches       *prometheus.CounterVec // engine label: raptor|mcraptor
	SearchErrors   prometheus.Counter
	SearchDuration *prometheus.HistogramVec
	SearchRounds   prometheus.Histogram
	RoutesScanned  prometheus.Counter
	CyclicTraces   prometheus.Counter
	CacheHits      prometheus.Counter
	CacheMisses    prometheus.Counter

	TimetableStops    prometheus.Gauge
	TimetableRoutes   prometheus.Gauge
	TimetableTrips    prometheus.Gauge
	Refreshes         *prometheus.CounterVec // result label: ok|error
	RefreshDuration   prometheus.Histogram
	TimetableLoadedAt prometheus.Gauge

	NATSRequests  prometheus.Counter
	NATSReplyErrs prometheus.Counter
	NATSConnected prometheus.Gauge

	DBSwitches *prometheus.CounterVec // reason label: update|ping_failure

	WalkSpeed       prometheus.Gauge
	MaxRounds       prometheus.Gauge
	RefreshInterval prometheus.Gauge // seconds
}

func NewCollector(walkSpeed float64, maxRounds int, refreshInterval time.Duration) *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		Searches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "router_searches_total",
			Help: "Searches run, by engine.",
		}, []string{"engine"}),
		SearchErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "router_search_errors_total",
			Help: "Searches that failed.",
		}),
		SearchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "router_search_duration_seconds",
			Help:    "Duration of a search including journey reconstruction.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 15),
		}, []string{"engine"}),
		SearchRounds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "router_search_rounds",
			Help:    "Rounds computed before the search reached a fixed point.",
			Buckets: prometheus.LinearBuckets(0, 1, 17),
		}),
		RoutesScanned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "router_routes_scanned_total",
			Help: "Route scans over all searches.",
		}),
		CyclicTraces: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "router_cyclic_traces_total",
			Help: "Journey reconstructions that hit a predecessor loop.",
		}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "router_query_cache_hits_total",
			Help: "Queries answered from the cache.",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "router_query_cache_misses_total",
			Help: "Queries that ran a search.",
		}),
		TimetableStops: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "router_timetable_stops",
			Help: "Stops in the current timetable.",
		}),
		TimetableRoutes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "router_timetable_routes",
			Help: "Routes in the current timetable.",
		}),
		TimetableTrips: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "router_timetable_trips",
			Help: "Trips in the current timetable.",
		}),
		Refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "router_timetable_refreshes_total",
			Help: "Timetable reloads, by result.",
		}, []string{"result"}),
		RefreshDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "router_timetable_refresh_duration_seconds",
			Help:    "Duration of a timetable reload.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 15),
		}),
		TimetableLoadedAt: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "router_timetable_loaded_timestamp_seconds",
			Help: "Unix time of the last successful timetable load.",
		}),
		NATSRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "router_nats_requests_total",
			Help: "Journey requests received over NATS.",
		}),
		NATSReplyErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "router_nats_reply_errors_total",
			Help: "Replies that could not be sent.",
		}),
		NATSConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "router_nats_connected",
			Help: "1 if NATS connection is established, 0 otherwise.",
		}),
		DBSwitches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "router_db_switches_total",
			Help: "Number of database switches.",
		}, []string{"reason"}),
		WalkSpeed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "router_walk_speed_mps",
			Help: "Default walk speed in meters per second.",
		}),
		MaxRounds: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "router_max_rounds",
			Help: "Upper bound on rounds per query.",
		}),
		RefreshInterval: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "router_refresh_interval_seconds",
			Help: "Timetable refresh interval in seconds.",
		}),
	}

	reg.MustRegister(
		c.Searches, c.SearchErrors, c.SearchDuration, c.SearchRounds,
		c.RoutesScanned, c.CyclicTraces, c.CacheHits, c.CacheMisses,
		c.TimetableStops, c.TimetableRoutes, c.TimetableTrips,
		c.Refreshes, c.RefreshDuration, c.TimetableLoadedAt,
		c.NATSRequests, c.NATSReplyErrs, c.NATSConnected, c.DBSwitches,
		c.WalkSpeed, c.MaxRounds, c.RefreshInterval,
	)

	c.WalkSpeed.Set(walkSpeed)
	c.MaxRounds.Set(float64(maxRounds))
	c.RefreshInterval.Set(refreshInterval.Seconds())

	return c
}

// ObserveTimetable records the size of a freshly loaded timetable.
func (c *Collector) ObserveTimetable(stops, routes, trips int, loadedAt time.Time) {
	c.TimetableStops.Set(float64(stops))
	c.TimetableRoutes.Set(float64(routes))
	c.TimetableTrips.Set(float64(trips))
	c.TimetableLoadedAt.Set(float64(loadedAt.Unix()))
}

func (c *Collector) Handler() http.Handler { return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}) }

// Serve starts an HTTP server exposing /metrics on the given address.
func (c *Collector) Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server error", "err", err)
		}
	}()
	slog.Info("metrics listening", "addr", addr)
	return srv
}
