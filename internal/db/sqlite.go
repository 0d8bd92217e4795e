package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"bikeshare-trips/internal/bike"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS bike_trips (
	run_id              TEXT NOT NULL,
	bike_number         TEXT NOT NULL,
	start_time          TEXT NOT NULL,
	end_time            TEXT NOT NULL,
	duration_seconds    INTEGER NOT NULL,
	weekend             INTEGER NOT NULL,
	is_station          INTEGER NOT NULL,
	start_lng           REAL NOT NULL,
	start_lat           REAL NOT NULL,
	start_position_name TEXT NOT NULL,
	end_lng             REAL NOT NULL,
	end_lat             REAL NOT NULL,
	end_position_name   TEXT NOT NULL,
	distance_m          REAL NOT NULL,
	PRIMARY KEY (run_id, bike_number, start_time)
)`

const sqliteInsert = `INSERT INTO bike_trips (
	run_id, bike_number, start_time, end_time, duration_seconds, weekend, is_station,
	start_lng, start_lat, start_position_name, end_lng, end_lat, end_position_name, distance_m
) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`

// SQLiteStore keeps trip tables in a local SQLite file. Timestamps are stored
// as RFC 3339 text in UTC.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path and ensures the
// bike_trips table exists.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// single writer; also keeps ":memory:" on one connection
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(30 * time.Minute)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create bike_trips: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) Name() string { return "sqlite" }

// WriteTrips inserts all trips of a run in a single transaction.
func (s *SQLiteStore) WriteTrips(ctx context.Context, runID string, trips []bike.Trip) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, sqliteInsert)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, t := range trips {
		args := tripArgs(runID, t)
		args[2] = t.StartTime.UTC().Format(time.RFC3339Nano)
		args[3] = t.EndTime.UTC().Format(time.RFC3339Nano)
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert trip %d (bike %s): %w", i, t.BikeID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Trips reads back the trips of a run ordered by bike and start time. Place
// types are not stored and come back empty.
func (s *SQLiteStore) Trips(ctx context.Context, runID string) ([]bike.Trip, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT bike_number, start_time, end_time, duration_seconds, weekend, is_station,
       start_lng, start_lat, start_position_name, end_lng, end_lat, end_position_name
FROM bike_trips
WHERE run_id = ?
ORDER BY bike_number, start_time`, runID)
	if err != nil {
		return nil, fmt.Errorf("query trips: %w", err)
	}
	defer rows.Close()

	var trips []bike.Trip
	for rows.Next() {
		var (
			t          bike.Trip
			start, end string
			secs       int64
		)
		if err := rows.Scan(&t.BikeID, &start, &end, &secs, &t.Weekend, &t.IsStation,
			&t.Start.Lng, &t.Start.Lat, &t.Start.PlaceName, &t.End.Lng, &t.End.Lat, &t.End.PlaceName); err != nil {
			return nil, err
		}
		if t.StartTime, err = time.Parse(time.RFC3339Nano, start); err != nil {
			return nil, fmt.Errorf("start_time: %w", err)
		}
		if t.EndTime, err = time.Parse(time.RFC3339Nano, end); err != nil {
			return nil, fmt.Errorf("end_time: %w", err)
		}
		t.Duration = time.Duration(secs) * time.Second
		trips = append(trips, t)
	}
	return trips, rows.Err()
}

// CountTrips returns the number of stored trips of a run.
func (s *SQLiteStore) CountTrips(ctx context.Context, runID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM bike_trips WHERE run_id = ?`, runID).Scan(&n)
	return n, err
}
