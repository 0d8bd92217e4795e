package geo

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bikeshare-trips/internal/bike"
)

func testEvents(n int) []bike.Event {
	base := time.Date(2019, 6, 1, 8, 0, 0, 0, time.UTC)
	events := make([]bike.Event, n)
	for i := range events {
		lng := 8.45
		if i%3 == 0 {
			lng = 8.75 // outside
		}
		events[i] = bike.Event{
			BikeID:   fmt.Sprintf("%d", 1000+i%7),
			Time:     base.Add(time.Duration(i) * time.Minute),
			Kind:     bike.KindStart,
			Position: bike.Position{Lng: lng, Lat: 49.48},
			Row:      i + 1,
		}
	}
	return events
}

func TestFilterKeepsOrderAndDropsOutside(t *testing.T) {
	b, err := NewBoundary(mannheimRing)
	require.NoError(t, err)

	events := testEvents(9)
	got := Filter(events, b)
	require.Len(t, got, 6)
	for i := 1; i < len(got); i++ {
		assert.Less(t, got[i-1].Row, got[i].Row)
	}
	for _, e := range got {
		assert.NotZero(t, (e.Row-1)%3, "row %d is outside the boundary", e.Row)
	}
}

func TestParallelFilterMatchesSequential(t *testing.T) {
	b, err := NewBoundary(mannheimRing)
	require.NoError(t, err)

	events := testEvents(1003)
	want := Filter(events, b)
	for _, workers := range []int{0, 1, 2, 7, 16} {
		got := ParallelFilter(events, b, workers)
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("workers=%d mismatch (-want +got):\n%s", workers, diff)
		}
	}
}

func TestParallelFilterFewerRowsThanWorkers(t *testing.T) {
	b, err := NewBoundary(mannheimRing)
	require.NoError(t, err)
	events := testEvents(3)
	assert.Equal(t, Filter(events, b), ParallelFilter(events, b, 8))
	assert.Empty(t, ParallelFilter(nil, b, 8))
}

func TestPartitions(t *testing.T) {
	assert.Equal(t, [][2]int{{0, 4}, {4, 7}, {7, 10}}, partitions(10, 3))
	assert.Equal(t, [][2]int{{0, 2}, {2, 4}}, partitions(4, 2))
}

func TestWorkers(t *testing.T) {
	assert.Equal(t, 1, Workers(4, 8))
	assert.Equal(t, 8, Workers(8, 8))
	assert.Equal(t, 16, Workers(16, 8))
	assert.Equal(t, 1, Workers(0, 0))
	assert.Equal(t, 2, Workers(2, 0))
}
