package pipeline

import (
	"slices"

	"bikeshare-trips/internal/bike"
)

// RepairStats counts what Repair removed.
type RepairStats struct {
	CrossBike     int // START/END pairs spanning two bikes
	RepeatedStart int
	RepeatedEnd   int
	Removed       int // distinct rows dropped
}

type keyedEvent struct {
	key bike.BikeKey
	bike.Event
}

// compareEvents orders events by bike, then time.
func compareEvents(a, b keyedEvent) int {
	if c := a.key.Compare(b.key); c != 0 {
		return c
	}
	return a.Time.Compare(b.Time)
}

// SortEvents returns a copy of events stably sorted by (bike, time). Each
// bike ID is parsed once.
func SortEvents(events []bike.Event) []bike.Event {
	keyed := make([]keyedEvent, len(events))
	for i, e := range events {
		keyed[i] = keyedEvent{key: bike.KeyOf(e.BikeID), Event: e}
	}
	slices.SortStableFunc(keyed, compareEvents)

	sorted := make([]bike.Event, len(keyed))
	for i, k := range keyed {
		sorted[i] = k.Event
	}
	return sorted
}

// Repair sorts events by (bike, time) and removes rows that break the
// START/END alternation, using two adjacency rules over the whole sorted
// table (bike boundaries included):
//
//   - START followed by END of a different bike: both rows are dropped.
//   - Two STARTs in a row: the earlier one is dropped.
//   - Two ENDs in a row: the later one is dropped.
//
// Indices are marked against the sorted snapshot and removed in one pass.
// Repair does not verify its result; runs of three or more same-kind events
// and lone unmatched events can survive and are left to Preprocessor.Validate.
// Input must already be free of FIRST/LAST markers and (bike, time) duplicates.
func Repair(events []bike.Event) ([]bike.Event, RepairStats) {
	sorted := SortEvents(events)
	drop := make([]bool, len(sorted))
	var stats RepairStats

	for i := 0; i+1 < len(sorted); i++ {
		cur, next := sorted[i], sorted[i+1]
		switch {
		case cur.Kind == bike.KindStart && next.Kind == bike.KindEnd && cur.BikeID != next.BikeID:
			drop[i], drop[i+1] = true, true
			stats.CrossBike++
		case cur.Kind == next.Kind && cur.Kind == bike.KindStart:
			// keep the most recent start, it is closer to its end
			drop[i] = true
			stats.RepeatedStart++
		case cur.Kind == next.Kind && cur.Kind == bike.KindEnd:
			// keep the earliest end, it is closer to its start
			drop[i+1] = true
			stats.RepeatedEnd++
		}
	}

	out := make([]bike.Event, 0, len(sorted))
	for i, e := range sorted {
		if drop[i] {
			stats.Removed++
			continue
		}
		out = append(out, e)
	}
	return out, stats
}
