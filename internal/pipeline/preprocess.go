package pipeline

import (
	"fmt"

	"bikeshare-trips/internal/bike"
	"bikeshare-trips/internal/csvio"
	"bikeshare-trips/internal/geo"
	"bikeshare-trips/internal/monitoring"
)

// CleanStats summarises one Clean pass.
type CleanStats struct {
	Read            int
	Markers         int // FIRST/LAST rows discarded
	Duplicates      int // repeated (bike, time) rows discarded
	OutsideBoundary int
	Repair          RepairStats
	Remaining       int
}

// Preprocessor owns the event table from loading through repair. Its table is
// uninitialized until Load succeeds.
type Preprocessor struct {
	boundary   *geo.Boundary
	geoWorkers int

	events table[bike.Event]
	stats  CleanStats
}

type Option func(*Preprocessor)

// WithBoundary restricts events to those inside b.
func WithBoundary(b *geo.Boundary) Option {
	return func(p *Preprocessor) { p.boundary = b }
}

// WithGeoWorkers sets the number of partitions used by the boundary filter.
func WithGeoWorkers(n int) Option {
	return func(p *Preprocessor) { p.geoWorkers = n }
}

func NewPreprocessor(opts ...Option) *Preprocessor {
	p := &Preprocessor{geoWorkers: 1}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Load replaces the table with events.
func (p *Preprocessor) Load(events []bike.Event) {
	p.events = readyTable(events)
	p.stats = CleanStats{Read: len(events), Remaining: len(events)}
}

// LoadFile reads the event table from a delimited file.
func (p *Preprocessor) LoadFile(path string, opts csvio.Options) error {
	events, err := csvio.ReadEventsFile(path, opts)
	if err != nil {
		return err
	}
	p.Load(events)
	monitoring.Logf("loaded %d events from %s", len(events), path)
	return nil
}

// Events returns the current table.
func (p *Preprocessor) Events() ([]bike.Event, error) { return p.events.get() }

// Stats returns the counters of the last Clean.
func (p *Preprocessor) Stats() CleanStats { return p.stats }

// Clean drops lifecycle markers and (bike, time) duplicates, applies the
// boundary filter when one is configured and repairs the start/end sequence.
func (p *Preprocessor) Clean() (CleanStats, error) {
	events, err := p.events.get()
	if err != nil {
		return CleanStats{}, err
	}
	stats := CleanStats{Read: len(events)}

	events, stats.Markers = dropMarkers(events)
	events, stats.Duplicates = dropDuplicates(events)
	if p.boundary != nil {
		before := len(events)
		events = geo.ParallelFilter(events, p.boundary, p.geoWorkers)
		stats.OutsideBoundary = before - len(events)
	}
	events, stats.Repair = Repair(events)
	stats.Remaining = len(events)

	p.events = readyTable(events)
	p.stats = stats
	monitoring.Logf("cleaned events: read=%d markers=%d duplicates=%d outside=%d repaired=%d remaining=%d",
		stats.Read, stats.Markers, stats.Duplicates, stats.OutsideBoundary, stats.Repair.Removed, stats.Remaining)
	return stats, nil
}

// Validate checks that the table alternates START/END with each END belonging
// to the bike of the START before it and not preceding it in time.
func (p *Preprocessor) Validate() error {
	events, err := p.events.get()
	if err != nil {
		return err
	}
	for i, e := range events {
		want := bike.KindStart
		if i%2 == 1 {
			want = bike.KindEnd
		}
		if e.Kind != want {
			return &ValidationError{Index: i, Row: e.Row, BikeID: e.BikeID,
				Reason: fmt.Sprintf("expected %s, got %s", want, e.Kind)}
		}
		if i%2 == 0 {
			continue
		}
		start := events[i-1]
		if start.BikeID != e.BikeID {
			return &ValidationError{Index: i, Row: e.Row, BikeID: e.BikeID,
				Reason: fmt.Sprintf("end follows a start of bike %s", start.BikeID)}
		}
		if e.Time.Before(start.Time) {
			return &ValidationError{Index: i, Row: e.Row, BikeID: e.BikeID,
				Reason: "end precedes its start"}
		}
	}
	if n := len(events); n%2 == 1 {
		last := events[n-1]
		return &ValidationError{Index: n - 1, Row: last.Row, BikeID: last.BikeID,
			Reason: "start without end"}
	}
	return nil
}

func dropMarkers(events []bike.Event) ([]bike.Event, int) {
	out := make([]bike.Event, 0, len(events))
	for _, e := range events {
		if !e.Kind.IsMarker() {
			out = append(out, e)
		}
	}
	return out, len(events) - len(out)
}

type eventKey struct {
	bike string
	ts   int64
}

// dropDuplicates keeps the first occurrence of each (bike, time) pair.
func dropDuplicates(events []bike.Event) ([]bike.Event, int) {
	seen := make(map[eventKey]struct{}, len(events))
	out := make([]bike.Event, 0, len(events))
	for _, e := range events {
		k := eventKey{bike: e.BikeID, ts: e.Time.UnixNano()}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, e)
	}
	return out, len(events) - len(out)
}
