package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

var ErrNoImport = errors.New("db: no import found")

// Import is one row of public.latest_successful_imports.
type Import struct {
	DBName     string
	ImportedAt time.Time
}

// LatestImport returns the newest import whose database name contains city.
// meta must be connected to the cluster's 'postgres' database.
func LatestImport(ctx context.Context, meta *sql.DB, city string) (Import, error) {
	city = strings.TrimSpace(city)
	if city == "" {
		return Import{}, fmt.Errorf("city is required")
	}
	q := `
SELECT db_name, imported_at
FROM public.latest_successful_imports
WHERE db_name ILIKE '%' || $1 || '%'
ORDER BY imported_at DESC
LIMIT 1`
	var (
		name sql.NullString
		at   sql.NullTime
	)
	if err := meta.QueryRowContext(ctx, q, city).Scan(&name, &at); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Import{}, fmt.Errorf("%w for city like %q", ErrNoImport, city)
		}
		return Import{}, err
	}
	if !name.Valid || name.String == "" {
		return Import{}, fmt.Errorf("%w: empty db_name for city like %q", ErrNoImport, city)
	}
	return Import{DBName: name.String, ImportedAt: at.Time}, nil
}

// ResolveCity looks up the newest import of city through the cluster behind
// baseDSN and returns the DSN of that import's database.
func ResolveCity(ctx context.Context, baseDSN, city string) (string, Import, error) {
	rootDSN, err := WithDBName(baseDSN, "postgres")
	if err != nil {
		return "", Import{}, fmt.Errorf("invalid base DSN: %w", err)
	}
	meta, err := Open(rootDSN)
	if err != nil {
		return "", Import{}, err
	}
	defer meta.Close()
	if err := Ping(ctx, meta); err != nil {
		return "", Import{}, err
	}
	imp, err := LatestImport(ctx, meta, city)
	if err != nil {
		return "", Import{}, err
	}
	dsn, err := WithDBName(baseDSN, imp.DBName)
	if err != nil {
		return "", Import{}, err
	}
	return dsn, imp, nil
}

// WithDBName swaps the database of a postgres:// DSN. A DSN without a
// scheme is taken as postgres://.
func WithDBName(dsn, database string) (string, error) {
	database = strings.TrimPrefix(strings.TrimSpace(database), "/")
	switch {
	case dsn == "":
		return "", fmt.Errorf("empty DSN")
	case database == "":
		return "", fmt.Errorf("empty database name")
	}
	if !strings.Contains(dsn, "://") {
		dsn = "postgres://" + dsn
	}
	u, err := url.Parse(dsn)
	if err != nil {
		return "", err
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return "", fmt.Errorf("unsupported DSN scheme %q", u.Scheme)
	}
	u.Path = "/" + database
	return u.String(), nil
}
