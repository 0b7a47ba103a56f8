// Package router owns the live timetable and answers journey queries on it.
package router

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bluele/gcache"
	"golang.org/x/exp/slog"

	"gtfs-router/internal/chrono"
	mmetrics "gtfs-router/internal/metrics"
	"gtfs-router/internal/timetable"
)

// ErrNoTimetable is returned by queries before the first successful load.
var ErrNoTimetable = errors.New("router: no timetable loaded")

// Loader builds the timetable of the service day containing day.
type Loader func(ctx context.Context, day time.Time) (*timetable.Memory[chrono.Millis], error)

type Options struct {
	Location        *time.Location
	RefreshInterval time.Duration
	// WalkSpeed and MaxRounds apply to queries that leave them unset.
	WalkSpeed float64
	MaxRounds int
	// CacheSize is the number of cached query results; 0 disables the cache.
	CacheSize int
}

// Manager swaps timetables under a write lock while queries hold read locks.
type Manager struct {
	load    Loader
	opts    Options
	metrics *mmetrics.Collector
	now     func() time.Time

	mu    sync.RWMutex
	tt    *timetable.Memory[chrono.Millis]
	day   time.Time
	cache gcache.Cache

	refreshCancel context.CancelFunc
	refreshWG     sync.WaitGroup
}

func NewManager(load Loader, opts Options, metrics *mmetrics.Collector) *Manager {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.WalkSpeed <= 0 {
		opts.WalkSpeed = timetable.ReferenceWalkSpeed
	}
	if opts.MaxRounds <= 0 {
		opts.MaxRounds = 5
	}
	m := &Manager{load: load, opts: opts, metrics: metrics, now: time.Now}
	if opts.CacheSize > 0 {
		m.cache = gcache.New(opts.CacheSize).LRU().Build()
	}
	return m
}

// Refresh loads the timetable of today's service day and swaps it in. The
// previous timetable stays in use when loading fails.
func (m *Manager) Refresh(ctx context.Context) error {
	return m.Load(ctx, m.now())
}

// Load swaps in the timetable of the service day containing day.
func (m *Manager) Load(ctx context.Context, day time.Time) error {
	start := time.Now()
	day = timetable.ServiceMidnight(day, m.opts.Location)
	tt, err := m.load(ctx, day)
	if err != nil {
		if m.metrics != nil {
			m.metrics.Refreshes.WithLabelValues("error").Inc()
		}
		return err
	}
	stops, routes, trips := tt.Counts()

	m.mu.Lock()
	m.tt = tt
	m.day = day
	if m.cache != nil {
		m.cache.Purge()
	}
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.Refreshes.WithLabelValues("ok").Inc()
		m.metrics.RefreshDuration.Observe(time.Since(start).Seconds())
		m.metrics.ObserveTimetable(stops, routes, trips, start)
	}
	slog.Info("timetable loaded", "day", day.Format("2006-01-02"), "stops", stops, "routes", routes, "trips", trips)
	return nil
}

// Timetable returns the current timetable and its service day.
func (m *Manager) Timetable() (*timetable.Memory[chrono.Millis], time.Time) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tt, m.day
}

// StartRefresher reloads the timetable every RefreshInterval until Stop.
func (m *Manager) StartRefresher(parent context.Context) {
	if m.opts.RefreshInterval <= 0 {
		return
	}
	ctx, cancel := context.WithCancel(parent)
	m.refreshCancel = cancel
	m.refreshWG.Add(1)
	go func() {
		defer m.refreshWG.Done()
		ticker := time.NewTicker(m.opts.RefreshInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := m.Refresh(ctx); err != nil {
					slog.Error("refresh timetable", "err", err)
				}
			}
		}
	}()
}

func (m *Manager) Stop() {
	if m.refreshCancel != nil {
		m.refreshCancel()
	}
	m.refreshWG.Wait()
}
