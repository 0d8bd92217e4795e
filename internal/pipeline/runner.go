package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"bikeshare-trips/internal/bike"
	"bikeshare-trips/internal/csvio"
	"bikeshare-trips/internal/features"
	"bikeshare-trips/internal/geo"
	mmetrics "bikeshare-trips/internal/metrics"
	"bikeshare-trips/internal/monitoring"
)

// Sink receives the trip table of a finished run.
type Sink interface {
	Name() string
	WriteTrips(ctx context.Context, runID string, trips []bike.Trip) error
}

type RunnerConfig struct {
	InputPath    string
	BoundaryPath string // empty disables the boundary filter
	CSV          csvio.Options

	OutputDir  string
	OutputFile string // empty skips the CSV output

	Stations   bike.StationCodes
	GeoWorkers int
}

type SinkResult struct {
	Name     string
	Trips    int
	Duration time.Duration
	Err      error
}

type Report struct {
	RunID      string
	Clean      CleanStats
	Trips      []bike.Trip
	OutputPath string
	Summary    features.Summary
	Sinks      []SinkResult
}

type Runner struct {
	cfg     RunnerConfig
	sinks   []Sink
	metrics *mmetrics.Collector
}

// NewRunner returns a Runner. metrics may be nil.
func NewRunner(cfg RunnerConfig, metrics *mmetrics.Collector, sinks ...Sink) *Runner {
	return &Runner{cfg: cfg, sinks: sinks, metrics: metrics}
}

// Run executes one batch. Sink failures do not abort the run; they are
// reported per sink and joined into the returned error alongside the report.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	rep, err := r.run(ctx)
	if r.metrics != nil {
		result := "success"
		if err != nil {
			result = "failure"
		}
		r.metrics.Runs.WithLabelValues(result).Inc()
	}
	return rep, err
}

func (r *Runner) run(ctx context.Context) (*Report, error) {
	rep := &Report{RunID: uuid.NewString()}
	monitoring.Logf("run %s: reading %s", rep.RunID, r.cfg.InputPath)

	var opts []Option
	if r.cfg.BoundaryPath != "" {
		b, err := geo.LoadBoundary(r.cfg.BoundaryPath)
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithBoundary(b))
	}
	opts = append(opts, WithGeoWorkers(r.cfg.GeoWorkers))
	pre := NewPreprocessor(opts...)

	if err := r.stage("load", func() error { return pre.LoadFile(r.cfg.InputPath, r.cfg.CSV) }); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := r.stage("clean", func() (err error) {
		rep.Clean, err = pre.Clean()
		return err
	}); err != nil {
		return nil, err
	}
	r.recordClean(rep.Clean)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var tr *Transformer
	if err := r.stage("transform", func() (err error) {
		tr, err = NewTransformer(pre, r.cfg.Stations)
		if err != nil {
			r.validationFailed("preprocess")
			return err
		}
		if err := tr.Transform(true); err != nil {
			r.validationFailed("transform")
			return err
		}
		rep.Trips, err = tr.Trips()
		return err
	}); err != nil {
		return nil, err
	}
	if r.metrics != nil {
		r.metrics.TripsAssembled.Add(float64(len(rep.Trips)))
	}
	rep.Summary = features.Summarize(rep.Trips)

	if r.cfg.OutputFile != "" {
		if err := r.stage("write", func() (err error) {
			rep.OutputPath, err = csvio.WriteTripsFile(r.cfg.OutputDir, r.cfg.OutputFile, rep.Trips, r.cfg.CSV)
			return err
		}); err != nil {
			return nil, err
		}
		monitoring.Logf("run %s: wrote %d trips to %s", rep.RunID, len(rep.Trips), rep.OutputPath)
	}

	rep.Sinks = r.deliver(ctx, rep.RunID, rep.Trips)
	var errs []error
	for _, s := range rep.Sinks {
		if s.Err != nil {
			errs = append(errs, fmt.Errorf("sink %s: %w", s.Name, s.Err))
		}
	}

	monitoring.Logf("run %s: %d trips, mean duration %.0fs, median %.0fs",
		rep.RunID, rep.Summary.Count, rep.Summary.Mean, rep.Summary.Median)
	return rep, errors.Join(errs...)
}

// deliver writes trips to every sink concurrently, one goroutine per sink.
// Results keep the order of r.sinks.
func (r *Runner) deliver(ctx context.Context, runID string, trips []bike.Trip) []SinkResult {
	if len(r.sinks) == 0 {
		return nil
	}
	results := make([]SinkResult, len(r.sinks))
	var wg sync.WaitGroup
	for i, s := range r.sinks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			start := time.Now()
			err := s.WriteTrips(ctx, runID, trips)
			res := SinkResult{Name: s.Name(), Duration: time.Since(start), Err: err}
			if err == nil {
				res.Trips = len(trips)
			}
			results[i] = res
		}()
	}
	wg.Wait()

	for _, res := range results {
		if res.Err != nil {
			monitoring.Logf("run %s: sink %s error: %v", runID, res.Name, res.Err)
		} else {
			monitoring.Logf("run %s: sink %s wrote %d trips in %s", runID, res.Name, res.Trips, res.Duration)
		}
		if r.metrics == nil {
			continue
		}
		r.metrics.SinkDuration.WithLabelValues(res.Name).Observe(res.Duration.Seconds())
		if res.Err != nil {
			r.metrics.SinkErrors.WithLabelValues(res.Name).Inc()
		} else {
			r.metrics.SinkWrites.WithLabelValues(res.Name).Add(float64(res.Trips))
		}
	}
	return results
}

func (r *Runner) stage(name string, fn func() error) error {
	start := time.Now()
	err := fn()
	if r.metrics != nil {
		r.metrics.ObserveStage(name, time.Since(start))
	}
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

func (r *Runner) recordClean(s CleanStats) {
	if r.metrics == nil {
		return
	}
	r.metrics.EventsRead.Add(float64(s.Read))
	r.metrics.EventsDropped.WithLabelValues("marker").Add(float64(s.Markers))
	r.metrics.EventsDropped.WithLabelValues("duplicate").Add(float64(s.Duplicates))
	r.metrics.EventsDropped.WithLabelValues("outside_boundary").Add(float64(s.OutsideBoundary))
	r.metrics.EventsDropped.WithLabelValues("repair").Add(float64(s.Repair.Removed))
}

func (r *Runner) validationFailed(stage string) {
	if r.metrics != nil {
		r.metrics.ValidationFailures.WithLabelValues(stage).Inc()
	}
}
