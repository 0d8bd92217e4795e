package pipeline

import (
	"fmt"

	"bikeshare-trips/internal/bike"
	"bikeshare-trips/internal/monitoring"
)

// Transformer turns a validated event table into trips.
type Transformer struct {
	pre      *Preprocessor
	stations bike.StationCodes

	trips table[bike.Trip]
}

// NewTransformer validates pre and returns a Transformer reading from it.
func NewTransformer(pre *Preprocessor, stations bike.StationCodes) (*Transformer, error) {
	if err := pre.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPreprocessorInvalid, err)
	}
	if stations == nil {
		stations = bike.DefaultStationCodes()
	}
	return &Transformer{pre: pre, stations: stations}, nil
}

// Transform pairs the i-th START with the i-th END of the table. The
// preprocessor is validated again first since its table may have been
// reloaded after NewTransformer.
func (t *Transformer) Transform(validate bool) error {
	t.trips = table[bike.Trip]{}
	events, err := t.pre.Events()
	if err != nil {
		return err
	}
	if len(events)%2 != 0 {
		return fmt.Errorf("%w: %d events", ErrOddEventCount, len(events))
	}
	if err := t.pre.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrPreprocessorInvalid, err)
	}

	var starts, ends []bike.Event
	for _, e := range events {
		switch e.Kind {
		case bike.KindStart:
			starts = append(starts, e)
		case bike.KindEnd:
			ends = append(ends, e)
		}
	}

	n := min(len(starts), len(ends))
	trips := make([]bike.Trip, 0, n)
	for i := 0; i < n; i++ {
		s, e := starts[i], ends[i]
		trips = append(trips, bike.Trip{
			BikeID:    s.BikeID,
			StartTime: s.Time,
			EndTime:   e.Time,
			Duration:  e.Time.Sub(s.Time),
			Start:     s.Position,
			End:       e.Position,
			Weekend:   bike.IsWeekend(s.Time),
			IsStation: t.stations.IsStation(s.Position) && t.stations.IsStation(e.Position),
		})
	}
	t.trips = readyTable(trips)
	monitoring.Logf("transformed %d events into %d trips", len(events), len(trips))

	if validate {
		return t.Validate()
	}
	return nil
}

// Validate checks that Transform produced exactly one trip per event pair.
func (t *Transformer) Validate() error {
	trips, err := t.trips.get()
	if err != nil {
		return err
	}
	events, err := t.pre.Events()
	if err != nil {
		return err
	}
	if 2*len(trips) != len(events) {
		return &StructuralMismatchError{Trips: len(trips), Events: len(events)}
	}
	return nil
}

// Trips returns the transformed table.
func (t *Transformer) Trips() ([]bike.Trip, error) { return t.trips.get() }
