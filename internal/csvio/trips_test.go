package csvio

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bikeshare-trips/internal/bike"
)

func sampleTrips() []bike.Trip {
	start := time.Date(2019, 6, 1, 8, 15, 0, 0, time.UTC)
	return []bike.Trip{
		{
			BikeID:    "10123",
			StartTime: start,
			EndTime:   start.Add(16*time.Minute + 30*time.Second),
			Duration:  16*time.Minute + 30*time.Second,
			Start:     bike.Position{Lng: 8.4689, Lat: 49.4875, PlaceName: "Paradeplatz"},
			End:       bike.Position{Lng: 8.4697, Lat: 49.4794, PlaceName: "Hauptbahnhof, Ost"},
			Weekend:   true,
			IsStation: true,
		},
	}
}

func TestWriteTrips(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTrips(&buf, sampleTrips(), Options{}))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, strings.Join(tripHeader, ","), lines[0])
	assert.Equal(t, `10123,2019-06-01 08:15:00,2019-06-01 08:31:30,990,true,true,8.4689,49.4875,Paradeplatz,8.4697,49.4794,"Hauptbahnhof, Ost"`, lines[1])
}

func TestWriteReadTripsFile(t *testing.T) {
	dir := t.TempDir()
	path, err := WriteTripsFile(dir, "../../escape/mannheim_transformed.csv", sampleTrips(), Options{})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "mannheim_transformed.csv"), path)

	got, err := ReadTripsFile(path, Options{})
	require.NoError(t, err)
	if diff := cmp.Diff(sampleTrips(), got); diff != "" {
		t.Fatalf("trips mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteTripsFileInvalidName(t *testing.T) {
	_, err := WriteTripsFile(t.TempDir(), "", nil, Options{})
	assert.Error(t, err)
}

func TestReadTripsErrors(t *testing.T) {
	_, err := ReadTrips(strings.NewReader("bike_number,start_time\n"), Options{})
	assert.ErrorIs(t, err, ErrMissingColumn)

	in := strings.Join(tripHeader, ",") + "\n1,2019-06-01 08:15:00,2019-06-01 08:31:30,abc,true,true,8.4,49.4,a,8.4,49.4,b\n"
	_, err = ReadTrips(strings.NewReader(in), Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duration")

	_, err = ReadTripsFile(filepath.Join(t.TempDir(), "missing.csv"), Options{})
	assert.ErrorIs(t, err, os.ErrNotExist)
}
