package bike

import (
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTripKind(t *testing.T) {
	tests := []struct {
		in   string
		want TripKind
	}{
		{"start", KindStart},
		{"END", KindEnd},
		{" first ", KindFirst},
		{"Last", KindLast},
	}
	for _, tt := range tests {
		got, err := ParseTripKind(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
		assert.Equal(t, tt.want.String(), got.String())
	}

	_, err := ParseTripKind("return")
	assert.Error(t, err)
}

func TestTripKindIsMarker(t *testing.T) {
	assert.True(t, KindFirst.IsMarker())
	assert.True(t, KindLast.IsMarker())
	assert.False(t, KindStart.IsMarker())
	assert.False(t, KindEnd.IsMarker())
}

func TestCompareBikeIDs(t *testing.T) {
	assert.Equal(t, -1, CompareBikeIDs("9", "10"), "numeric ids compare by value")
	assert.Equal(t, 1, CompareBikeIDs("10", "9"))
	assert.Equal(t, 0, CompareBikeIDs("42", "42"))
	assert.Equal(t, -1, CompareBikeIDs("99999", "A1"), "numeric ids sort first")
	assert.Equal(t, 1, CompareBikeIDs("B", "100"))
	assert.Equal(t, -1, CompareBikeIDs("A", "B"))
}

func TestStationCodes(t *testing.T) {
	codes := NewStationCodes("0", " 12 ", "")
	assert.Len(t, codes, 2)
	assert.True(t, codes.IsStation(Position{PlaceType: "0"}))
	assert.True(t, codes.IsStation(Position{PlaceType: "12"}))
	assert.False(t, codes.IsStation(Position{PlaceType: "3"}))
	assert.True(t, DefaultStationCodes().IsStation(Position{PlaceType: "0"}))
}

func TestIsWeekend(t *testing.T) {
	sat := time.Date(2019, 6, 1, 10, 0, 0, 0, time.UTC)
	mon := time.Date(2019, 6, 3, 10, 0, 0, 0, time.UTC)
	assert.True(t, IsWeekend(sat))
	assert.True(t, IsWeekend(sat.AddDate(0, 0, 1)))
	assert.False(t, IsWeekend(mon))
}

func TestBikeKey(t *testing.T) {
	ids := []string{"B2", "10", "007", "9", "A1", "7"}
	keys := make([]BikeKey, len(ids))
	for i, id := range ids {
		keys[i] = KeyOf(id)
	}
	slices.SortStableFunc(keys, BikeKey.Compare)

	got := make([]string, len(keys))
	for i, k := range keys {
		got[i] = k.ID
	}
	assert.Equal(t, []string{"007", "7", "9", "10", "A1", "B2"}, got)

	for _, a := range ids {
		for _, b := range ids {
			assert.Equal(t, CompareBikeIDs(a, b), KeyOf(a).Compare(KeyOf(b)), "%s vs %s", a, b)
		}
	}
}
