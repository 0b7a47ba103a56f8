package main

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/exp/slog"

	"gtfs-router/internal/chrono"
	"gtfs-router/internal/db"
	"gtfs-router/internal/gtfs"
	"gtfs-router/internal/metrics"
	"gtfs-router/internal/router"
	"gtfs-router/internal/timetable"
)

// fileLoader reads a GTFS zip, or a YAML network for any other extension.
func fileLoader(path string, opts timetable.BuildOptions) router.Loader {
	return func(_ context.Context, day time.Time) (*timetable.Memory[chrono.Millis], error) {
		if strings.EqualFold(filepath.Ext(path), ".zip") {
			feed, err := gtfs.LoadZip(path)
			if err != nil {
				return nil, err
			}
			return timetable.FromFeed(feed, day, opts)
		}
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return timetable.LoadYAML(f, day, opts)
	}
}

// cityDB follows the newest import of a city. Every load pings the current
// database and re-resolves the latest import, switching when either says so.
type cityDB struct {
	baseDSN string
	city    string
	opts    timetable.BuildOptions
	metrics *metrics.Collector

	mu   sync.Mutex
	conn *sql.DB
	name string
}

func (c *cityDB) load(ctx context.Context, day time.Time) (*timetable.Memory[chrono.Millis], error) {
	conn, err := c.current(ctx)
	if err != nil {
		return nil, err
	}
	feed, err := db.LoadFeed(ctx, conn, day)
	if err != nil {
		return nil, err
	}
	return timetable.FromFeed(feed, day, c.opts)
}

func (c *cityDB) current(ctx context.Context) (*sql.DB, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	reason := ""
	if c.conn == nil {
		reason = "start"
	} else if err := db.Ping(ctx, c.conn); err != nil {
		slog.Warn("db ping failed, re-resolving", "err", err)
		reason = "ping_failure"
	}

	target, dsn := c.name, c.baseDSN
	if c.city != "" {
		resolved, imp, err := db.ResolveCity(ctx, c.baseDSN, c.city)
		if err != nil {
			if c.conn != nil && reason == "" {
				slog.Error("resolve latest import", "city", c.city, "err", err)
				return c.conn, nil
			}
			return nil, err
		}
		if imp.DBName != c.name && reason == "" {
			reason = "update"
		}
		target, dsn = imp.DBName, resolved
	}
	if reason == "" {
		return c.conn, nil
	}

	conn, err := db.Open(dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(ctx, conn); err != nil {
		conn.Close()
		return nil, err
	}
	if c.conn != nil {
		c.conn.Close()
		if c.metrics != nil {
			c.metrics.DBSwitches.WithLabelValues(reason).Inc()
		}
	}
	slog.Info("using database", "name", target, "city", c.city, "reason", reason)
	c.conn, c.name = conn, target
	return conn, nil
}

func (c *cityDB) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		c.conn.Close()
	}
}
