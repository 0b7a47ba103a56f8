package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL string
	City        string
	// GTFSPath loads the timetable from a zip instead of Postgres.
	GTFSPath string

	NATSURL     string `validate:"required"`
	NATSSubject string `validate:"required"`
	NATSQueue   string
	MetricsAddr string

	Location        *time.Location `validate:"required"`
	RefreshInterval time.Duration  `validate:"gte=0"`

	WalkSpeed           float64 `validate:"gt=0"`
	MaxRounds           int     `validate:"min=1,max=16"`
	MaxTransferDistance float64 `validate:"gte=0"`
	QueryCacheSize      int     `validate:"gte=0"`
	LogLevel            string  `validate:"oneof=debug info warn error"`
}

func Load() (*Config, error) {
	// Load .env into environment (ignore if missing)
	_ = godotenv.Load()

	cfg := &Config{}
	var err error

	cfg.GTFSPath = strings.TrimSpace(os.Getenv("GTFS_PATH"))
	cfg.City = firstNonEmpty(os.Getenv("CITY"), os.Getenv("CITY_NAME"))

	// Database URL (cluster DSN): prefer DATABASE_URL / PG_DSN, else build from PG* vars
	if cfg.GTFSPath == "" {
		if cfg.DatabaseURL, err = databaseURL(cfg.City); err != nil {
			return nil, err
		}
	}

	cfg.NATSURL = getenvDefault("NATS_URL", "nats://127.0.0.1:4222")
	cfg.NATSSubject = getenvDefault("NATS_SUBJECT", "router.journeys")
	cfg.NATSQueue = getenvDefault("NATS_QUEUE", "router")

	// Metrics listen address (e.g., ":9102"). Empty disables the metrics server.
	cfg.MetricsAddr = os.Getenv("METRICS_ADDR")

	sec, err := intEnv("TIMETABLE_REFRESH_INTERVAL_SEC", 1800)
	if err != nil {
		return nil, err
	}
	cfg.RefreshInterval = time.Duration(sec) * time.Second

	if cfg.WalkSpeed, err = floatEnv("WALK_SPEED", 1.4); err != nil {
		return nil, err
	}
	if cfg.MaxRounds, err = intEnv("MAX_ROUNDS", 5); err != nil {
		return nil, err
	}
	if cfg.MaxTransferDistance, err = floatEnv("MAX_TRANSFER_DISTANCE", 0); err != nil {
		return nil, err
	}
	if cfg.QueryCacheSize, err = intEnv("QUERY_CACHE_SIZE", 256); err != nil {
		return nil, err
	}
	cfg.LogLevel = strings.ToLower(getenvDefault("LOG_LEVEL", "info"))

	// Time zone
	tzName := getenvDefault("TZ", "")
	if tzName == "" {
		cfg.Location = time.Local
	} else {
		loc, err := time.LoadLocation(tzName)
		if err != nil {
			return nil, fmt.Errorf("invalid TZ: %v", err)
		}
		cfg.Location = loc
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func databaseURL(city string) (string, error) {
	if dsn := firstNonEmpty(os.Getenv("DATABASE_URL"), os.Getenv("PG_DSN")); dsn != "" {
		return dsn, nil
	}
	host := getenvDefault("PGHOST", "127.0.0.1")
	port := getenvDefault("PGPORT", "5432")
	user := getenvDefault("PGUSER", "postgres")
	pass := os.Getenv("PGPASSWORD")
	db := os.Getenv("PGDATABASE")
	// If CITY is provided, default base DB to 'postgres' when PGDATABASE is not set.
	if db == "" && city != "" {
		db = "postgres"
	}
	if db == "" {
		return "", errors.New("PGDATABASE, DATABASE_URL or GTFS_PATH must be set (set PGDATABASE=postgres when using CITY)")
	}
	sslmode := getenvDefault("PGSSLMODE", "disable")
	if pass != "" {
		return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", urlEscape(user), urlEscape(pass), host, port, db, sslmode), nil
	}
	return fmt.Sprintf("postgres://%s@%s:%s/%s?sslmode=%s", urlEscape(user), host, port, db, sslmode), nil
}

func intEnv(k string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", k, v)
	}
	return n, nil
}

func floatEnv(k string, def float64) (float64, error) {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", k, v)
	}
	return f, nil
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func urlEscape(s string) string {
	// Minimal escape for DSN user/pass with special chars
	r := strings.NewReplacer("@", "%40", ":", "%3A", "/", "%2F", "?", "%3F", "#", "%23")
	return r.Replace(s)
}
