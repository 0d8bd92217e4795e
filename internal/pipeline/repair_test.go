package pipeline

import (
	"math/rand/v2"
	"strconv"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"bikeshare-trips/internal/bike"
)

func TestSortEventsByBikeThenTime(t *testing.T) {
	in := []bike.Event{
		ev("10", bike.KindStart, "9h"),
		ev("9", bike.KindEnd, "8h"),
		ev("9", bike.KindStart, "7h"),
	}
	got := SortEvents(in)
	assert.Equal(t, []string{"9:start", "9:end", "10:start"}, kinds(got))
	assert.Equal(t, "10", in[0].BikeID, "input is not reordered")
}

func TestSortEventsMixedBikeIDs(t *testing.T) {
	in := []bike.Event{
		ev("B7", bike.KindStart, "9h"),
		ev("100", bike.KindStart, "9h"),
		ev("20", bike.KindEnd, "9h30m"),
		ev("20", bike.KindStart, "9h"),
		ev("A3", bike.KindStart, "8h"),
	}
	assert.Equal(t, []string{"20:start", "20:end", "100:start", "A3:start", "B7:start"}, kinds(SortEvents(in)))
}

func TestRepair(t *testing.T) {
	tests := []struct {
		name  string
		in    []bike.Event
		want  []string
		stats RepairStats
	}{
		{
			name: "clean pairs untouched",
			in: []bike.Event{
				ev("1", bike.KindStart, "9h"), ev("1", bike.KindEnd, "9h10m"),
				ev("2", bike.KindStart, "9h"), ev("2", bike.KindEnd, "9h30m"),
			},
			want: []string{"1:start", "1:end", "2:start", "2:end"},
		},
		{
			name: "start followed by end of another bike",
			in: []bike.Event{
				ev("1", bike.KindStart, "9h"), ev("1", bike.KindEnd, "9h10m"),
				ev("1", bike.KindStart, "10h"),
				ev("2", bike.KindEnd, "7h"),
				ev("2", bike.KindStart, "11h"), ev("2", bike.KindEnd, "11h20m"),
			},
			want:  []string{"1:start", "1:end", "2:start", "2:end"},
			stats: RepairStats{CrossBike: 1, Removed: 2},
		},
		{
			name: "repeated start keeps the later one",
			in: []bike.Event{
				ev("1", bike.KindStart, "9h"),
				ev("1", bike.KindStart, "9h5m"),
				ev("1", bike.KindEnd, "9h10m"),
			},
			want:  []string{"1:start", "1:end"},
			stats: RepairStats{RepeatedStart: 1, Removed: 1},
		},
		{
			name: "repeated end keeps the earlier one",
			in: []bike.Event{
				ev("1", bike.KindStart, "9h"),
				ev("1", bike.KindEnd, "9h10m"),
				ev("1", bike.KindEnd, "9h20m"),
			},
			want:  []string{"1:start", "1:end"},
			stats: RepairStats{RepeatedEnd: 1, Removed: 1},
		},
		{
			name: "empty",
			in:   nil,
			want: []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, stats := Repair(tt.in)
			if diff := cmp.Diff(tt.want, kinds(got)); diff != "" {
				t.Fatalf("Repair() mismatch (-want +got):\n%s", diff)
			}
			assert.Equal(t, tt.stats, stats)
		})
	}
}

func TestRepairKeepsRightTimestamps(t *testing.T) {
	got, _ := Repair([]bike.Event{
		ev("1", bike.KindStart, "9h"),
		ev("1", bike.KindStart, "9h5m"),
		ev("1", bike.KindEnd, "9h10m"),
		ev("1", bike.KindEnd, "9h20m"),
	})
	if assert.Len(t, got, 2) {
		assert.Equal(t, at("9h5m"), got[0].Time)
		assert.Equal(t, at("9h10m"), got[1].Time)
	}
}

func TestRepairIsIdempotentOnRepairedInput(t *testing.T) {
	in := []bike.Event{
		ev("1", bike.KindStart, "9h"), ev("1", bike.KindStart, "9h1m"),
		ev("1", bike.KindEnd, "9h10m"), ev("1", bike.KindEnd, "9h11m"),
		ev("2", bike.KindEnd, "8h"), ev("2", bike.KindStart, "12h"),
		ev("2", bike.KindEnd, "12h15m"),
	}
	once, _ := Repair(in)
	twice, stats := Repair(once)
	if diff := cmp.Diff(once, twice); diff != "" {
		t.Fatalf("second Repair changed the table (-once +twice):\n%s", diff)
	}
	assert.Zero(t, stats.Removed)
}

// randomEvents builds up to four bikes with arbitrary START/END runs. Times
// are strictly increasing per bike so the input is duplicate-free.
func randomEvents(r *rand.Rand) []bike.Event {
	var events []bike.Event
	for b := range 1 + r.IntN(4) {
		id := strconv.Itoa(b + 1)
		ts := day.Add(time.Duration(r.IntN(60)) * time.Minute)
		for range r.IntN(9) {
			kind := bike.KindStart
			if r.IntN(2) == 0 {
				kind = bike.KindEnd
			}
			events = append(events, bike.Event{BikeID: id, Kind: kind, Time: ts, Position: inside})
			ts = ts.Add(time.Duration(1+r.IntN(30)) * time.Minute)
		}
	}
	r.Shuffle(len(events), func(i, j int) { events[i], events[j] = events[j], events[i] })
	return events
}

func TestRepairIsIdempotent(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	for i := range 5000 {
		in := randomEvents(r)
		once, _ := Repair(in)
		twice, stats := Repair(once)
		if diff := cmp.Diff(once, twice); diff != "" {
			t.Fatalf("case %d %v: second Repair changed the table (-once +twice):\n%s", i, kinds(SortEvents(in)), diff)
		}
		if stats.Removed != 0 {
			t.Fatalf("case %d %v: second Repair removed %d rows", i, kinds(SortEvents(in)), stats.Removed)
		}
	}
}

func TestRepairIsIdempotentOnLongRuns(t *testing.T) {
	tests := map[string][]bike.Event{
		"three starts": {
			ev("1", bike.KindStart, "9h"), ev("1", bike.KindStart, "9h1m"), ev("1", bike.KindStart, "9h2m"),
			ev("1", bike.KindEnd, "9h10m"),
		},
		"four ends": {
			ev("1", bike.KindStart, "9h"), ev("1", bike.KindEnd, "9h1m"), ev("1", bike.KindEnd, "9h2m"),
			ev("1", bike.KindEnd, "9h3m"), ev("1", bike.KindEnd, "9h4m"),
		},
		"runs across bikes": {
			ev("1", bike.KindStart, "9h"), ev("1", bike.KindStart, "9h1m"),
			ev("2", bike.KindEnd, "8h"), ev("2", bike.KindEnd, "8h1m"), ev("2", bike.KindStart, "8h2m"),
			ev("3", bike.KindEnd, "7h"),
		},
	}
	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			once, _ := Repair(in)
			twice, _ := Repair(once)
			if diff := cmp.Diff(once, twice); diff != "" {
				t.Fatalf("second Repair changed the table (-once +twice):\n%s", diff)
			}
		})
	}
}
