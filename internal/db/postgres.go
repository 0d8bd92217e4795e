package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"bikeshare-trips/internal/bike"
	"bikeshare-trips/internal/geo"
)

// Querier is satisfied by *pgxpool.Pool and by pgxmock pools.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

var (
	newPoolFn  = pgxpool.New
	pingPoolFn = func(ctx context.Context, p *pgxpool.Pool) error { return p.Ping(ctx) }
)

// OpenPostgres connects a pool to dsn. A non-empty database replaces the
// database named in dsn.
func OpenPostgres(ctx context.Context, dsn, database string) (*pgxpool.Pool, error) {
	if database != "" {
		var err error
		if dsn, err = WithDBName(dsn, database); err != nil {
			return nil, fmt.Errorf("compose DSN: %w", err)
		}
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	pool, err := newPoolFn(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := pingPoolFn(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS bike_trips (
	run_id              TEXT NOT NULL,
	bike_number         TEXT NOT NULL,
	start_time          TIMESTAMPTZ NOT NULL,
	end_time            TIMESTAMPTZ NOT NULL,
	duration_seconds    BIGINT NOT NULL,
	weekend             BOOLEAN NOT NULL,
	is_station          BOOLEAN NOT NULL,
	start_lng           DOUBLE PRECISION NOT NULL,
	start_lat           DOUBLE PRECISION NOT NULL,
	start_position_name TEXT NOT NULL,
	end_lng             DOUBLE PRECISION NOT NULL,
	end_lat             DOUBLE PRECISION NOT NULL,
	end_position_name   TEXT NOT NULL,
	distance_m          DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (run_id, bike_number, start_time)
)`

var tripColumns = []string{
	"run_id", "bike_number", "start_time", "end_time", "duration_seconds", "weekend", "is_station",
	"start_lng", "start_lat", "start_position_name", "end_lng", "end_lat", "end_position_name", "distance_m",
}

// PostgresStore writes trip tables to the bike_trips table.
type PostgresStore struct {
	db Querier
}

func NewPostgresStore(db Querier) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Name() string { return "postgres" }

func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("create bike_trips: %w", err)
	}
	return nil
}

// WriteTrips copies all trips of a run into bike_trips in a single
// transaction.
func (s *PostgresStore) WriteTrips(ctx context.Context, runID string, trips []bike.Trip) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	n, err := tx.CopyFrom(ctx, pgx.Identifier{"bike_trips"}, tripColumns, pgx.CopyFromRows(tripRows(runID, trips)))
	if err != nil {
		_ = tx.Rollback(ctx)
		return fmt.Errorf("copy trips: %w", err)
	}
	if n != int64(len(trips)) {
		_ = tx.Rollback(ctx)
		return fmt.Errorf("copy trips: wrote %d of %d rows", n, len(trips))
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// CountTrips returns the number of stored trips of a run.
func (s *PostgresStore) CountTrips(ctx context.Context, runID string) (int, error) {
	var n int64
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM bike_trips WHERE run_id = $1`, runID).Scan(&n); err != nil {
		return 0, err
	}
	return int(n), nil
}

func tripRows(runID string, trips []bike.Trip) [][]any {
	rows := make([][]any, len(trips))
	for i, t := range trips {
		rows[i] = tripArgs(runID, t)
	}
	return rows
}

// tripArgs returns the values of one trip in tripColumns order.
func tripArgs(runID string, t bike.Trip) []any {
	return []any{
		runID, t.BikeID, t.StartTime, t.EndTime, int64(t.Duration / time.Second), t.Weekend, t.IsStation,
		t.Start.Lng, t.Start.Lat, t.Start.PlaceName, t.End.Lng, t.End.Lat, t.End.PlaceName,
		geo.DistanceMeters(t.Start, t.End),
	}
}
