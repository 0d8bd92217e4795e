package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/joho/godotenv"
)

type Config struct {
	InputPath    string
	BoundaryPath string
	OutputDir    string
	OutputFile   string
	CSVDelimiter rune
	Location     *time.Location

	StationPlaceTypes  []string
	UniversityStations []string

	GeoWorkers         int // 0 picks from the CPU count
	GeoParallelMinCPUs int

	DatabaseURL   string // empty disables the Postgres sink
	TripsDatabase string // overrides the database named in DatabaseURL
	SQLitePath    string // empty disables the SQLite sink

	NATSURL           string // empty disables the NATS sink
	NATSSubjectPrefix string
	LogNATSSubjects   bool

	MetricsAddr string
}

func Load() (*Config, error) {
	// Load .env into environment (ignore if missing)
	_ = godotenv.Load()

	cfg := &Config{
		InputPath:         os.Getenv("INPUT_PATH"),
		BoundaryPath:      os.Getenv("BOUNDARY_PATH"),
		OutputDir:         getenvDefault("OUTPUT_DIR", "output"),
		OutputFile:        getenvDefault("OUTPUT_FILE", "trips.csv"),
		TripsDatabase:     os.Getenv("TRIPS_DATABASE"),
		SQLitePath:        os.Getenv("SQLITE_PATH"),
		NATSURL:           os.Getenv("NATS_URL"),
		NATSSubjectPrefix: getenvDefault("NATS_SUBJECT_PREFIX", "nextbike.trips"),
		LogNATSSubjects:   parseBool(os.Getenv("LOG_NATS_SUBJECTS")),
		// Metrics listen address (e.g., ":9102"). Empty disables the metrics server.
		MetricsAddr: os.Getenv("METRICS_ADDR"),
	}

	delim, err := parseDelimiter(getenvDefault("CSV_DELIMITER", ","))
	if err != nil {
		return nil, err
	}
	cfg.CSVDelimiter = delim

	// Time zone of timestamps without offset
	if tzName := os.Getenv("TZ"); tzName == "" {
		cfg.Location = time.UTC
	} else {
		loc, err := time.LoadLocation(tzName)
		if err != nil {
			return nil, fmt.Errorf("invalid TZ: %v", err)
		}
		cfg.Location = loc
	}

	cfg.StationPlaceTypes = splitList(getenvDefault("STATION_PLACE_TYPES", "0"))
	if len(cfg.StationPlaceTypes) == 0 {
		return nil, fmt.Errorf("STATION_PLACE_TYPES must name at least one code")
	}
	cfg.UniversityStations = splitList(os.Getenv("UNIVERSITY_STATIONS"))

	if cfg.GeoWorkers, err = nonNegativeInt("GEO_WORKERS", 0); err != nil {
		return nil, err
	}
	if cfg.GeoParallelMinCPUs, err = nonNegativeInt("GEO_PARALLEL_MIN_CPUS", 8); err != nil {
		return nil, err
	}

	// Database URL: prefer DATABASE_URL / PG_DSN, else build from PG* vars when
	// PGDATABASE is set.
	dsn := firstNonEmpty(
		os.Getenv("DATABASE_URL"),
		os.Getenv("PG_DSN"),
	)
	if dsn == "" {
		if db := os.Getenv("PGDATABASE"); db != "" {
			host := getenvDefault("PGHOST", "127.0.0.1")
			port := getenvDefault("PGPORT", "5432")
			user := getenvDefault("PGUSER", "postgres")
			pass := os.Getenv("PGPASSWORD")
			sslmode := getenvDefault("PGSSLMODE", "disable")
			if pass != "" {
				dsn = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", urlEscape(user), urlEscape(pass), host, port, db, sslmode)
			} else {
				dsn = fmt.Sprintf("postgres://%s@%s:%s/%s?sslmode=%s", urlEscape(user), host, port, db, sslmode)
			}
		}
	}
	cfg.DatabaseURL = dsn

	return cfg, nil
}

func parseDelimiter(v string) (rune, error) {
	switch strings.ToLower(v) {
	case `\t`, "tab":
		return '\t', nil
	}
	r, size := utf8.DecodeRuneInString(v)
	if size == 0 || size != len(v) || r == '\n' || r == '\r' || r == '"' || r == utf8.RuneError {
		return 0, fmt.Errorf("invalid CSV_DELIMITER: %q", v)
	}
	return r, nil
}

func nonNegativeInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return n, nil
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "t", "yes", "y", "on":
		return true
	}
	return false
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
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
