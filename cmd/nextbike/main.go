package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"bikeshare-trips/internal/bike"
	"bikeshare-trips/internal/config"
	"bikeshare-trips/internal/csvio"
	"bikeshare-trips/internal/db"
	"bikeshare-trips/internal/features"
	"bikeshare-trips/internal/geo"
	"bikeshare-trips/internal/metrics"
	"bikeshare-trips/internal/pipeline"
	"bikeshare-trips/internal/publisher"
)

const usage = `usage: nextbike <command> [flags]

commands:
  transform   rebuild trips from raw scan events
  features    derive model feature tables from a trips file`

func main() {
	if len(os.Args) < 2 {
		log.Fatal(usage)
	}

	// Load configuration from .env and environment
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	// Root context with cancellation on SIGINT/SIGTERM
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	switch cmd, args := os.Args[1], os.Args[2:]; cmd {
	case "transform":
		err = runTransform(ctx, cfg, args)
	case "features":
		err = runFeatures(cfg, args)
	default:
		log.Fatalf("unknown command %q\n%s", cmd, usage)
	}
	if err != nil {
		log.Fatalf("%s error: %v", os.Args[1], err)
	}
}

func runTransform(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("transform", flag.ContinueOnError)
	input := fs.String("input", cfg.InputPath, "raw scan event CSV")
	boundary := fs.String("boundary", cfg.BoundaryPath, "GeoJSON boundary; empty disables the filter")
	output := fs.String("output", cfg.OutputFile, "trip CSV name inside OUTPUT_DIR; empty skips it")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *input == "" {
		return fmt.Errorf("no input: set INPUT_PATH or -input")
	}

	workers := cfg.GeoWorkers
	if workers == 0 {
		workers = geo.Workers(runtime.NumCPU(), cfg.GeoParallelMinCPUs)
	}

	// Metrics setup
	mcol := metrics.NewCollector(workers)
	if cfg.MetricsAddr != "" {
		srv := mcol.Serve(cfg.MetricsAddr)
		defer func() {
			// Shutdown with timeout
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	var sinks []pipeline.Sink
	if cfg.DatabaseURL != "" {
		pool, err := db.OpenPostgres(ctx, cfg.DatabaseURL, cfg.TripsDatabase)
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		defer pool.Close()
		store := db.NewPostgresStore(pool)
		if err := store.EnsureSchema(ctx); err != nil {
			return err
		}
		sinks = append(sinks, store)
	}
	if cfg.SQLitePath != "" {
		store, err := db.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return fmt.Errorf("sqlite: %w", err)
		}
		defer store.Close()
		sinks = append(sinks, store)
	}
	if cfg.NATSURL != "" {
		pub, err := publisher.NewNATSPublisher(cfg.NATSURL, cfg.NATSSubjectPrefix, cfg.LogNATSSubjects, wrapPublisherMetrics(mcol))
		if err != nil {
			return fmt.Errorf("nats: %w", err)
		}
		defer pub.Close()
		sinks = append(sinks, pub)
	}

	runner := pipeline.NewRunner(pipeline.RunnerConfig{
		InputPath:    *input,
		BoundaryPath: *boundary,
		CSV:          csvio.Options{Comma: cfg.CSVDelimiter, Location: cfg.Location},
		OutputDir:    cfg.OutputDir,
		OutputFile:   *output,
		Stations:     bike.NewStationCodes(cfg.StationPlaceTypes...),
		GeoWorkers:   workers,
	}, mcol, sinks...)

	rep, err := runner.Run(ctx)
	if rep != nil {
		log.Printf("run %s: read=%d remaining=%d trips=%d output=%q",
			rep.RunID, rep.Clean.Read, rep.Clean.Remaining, len(rep.Trips), rep.OutputPath)
	}
	return err
}

func runFeatures(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("features", flag.ContinueOnError)
	tripsPath := fs.String("trips", filepath.Join(cfg.OutputDir, cfg.OutputFile), "trip CSV written by transform")
	outDir := fs.String("out", cfg.OutputDir, "directory for feature tables")
	if err := fs.Parse(args); err != nil {
		return err
	}

	opts := csvio.Options{Comma: cfg.CSVDelimiter, Location: cfg.Location}
	trips, err := csvio.ReadTripsFile(*tripsPath, opts)
	if err != nil {
		return err
	}

	university := cfg.UniversityStations
	if len(university) == 0 {
		university = features.MannheimUniversityStations
	}
	places := features.NewPlaces(university...)

	if err := writeFile(*outDir, "duration_features.csv", func(w io.Writer) error {
		return features.WriteDurationCSV(w, features.BuildDurationRows(trips))
	}); err != nil {
		return err
	}
	if err := writeFile(*outDir, "direction_features.csv", func(w io.Writer) error {
		return features.WriteDirectionCSV(w, features.BuildDirectionRows(trips, places))
	}); err != nil {
		return err
	}

	s := features.Summarize(trips)
	log.Printf("features: %d trips, duration mean=%.0fs sd=%.0fs median=%.0fs p95=%.0fs",
		s.Count, s.Mean, s.StdDev, s.Median, s.P95)
	return nil
}

func writeFile(dir, name string, write func(io.Writer) error) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("%s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	log.Printf("wrote %s", path)
	return nil
}

// wrapPublisherMetrics adapts our Collector to the PublisherMetrics interface.
func wrapPublisherMetrics(c *metrics.Collector) publisher.PublisherMetrics {
	if c == nil {
		return nil
	}
	return &pubMetrics{c: c}
}

type pubMetrics struct{ c *metrics.Collector }

func (p *pubMetrics) NATSPublishedInc()              { p.c.NATSPublished.Inc() }
func (p *pubMetrics) NATSPublishErrInc()             { p.c.NATSPublishErrs.Inc() }
func (p *pubMetrics) PublishObserve(d time.Duration) { p.c.PublishDuration.Observe(d.Seconds()) }
func (p *pubMetrics) NATSSetConnected(b bool) {
	if b {
		p.c.NATSConnected.Set(1)
	} else {
		p.c.NATSConnected.Set(0)
	}
}
