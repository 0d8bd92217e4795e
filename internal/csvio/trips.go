package csvio

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"bikeshare-trips/internal/bike"
)

const timeLayout = "2006-01-02 15:04:05"

var tripHeader = []string{
	"bike_number",
	"start_time",
	"end_time",
	"duration",
	"weekend",
	"is_station",
	"start_lng",
	"start_lat",
	"start_position_name",
	"end_lng",
	"end_lat",
	"end_position_name",
}

// WriteTripsFile writes trips to name inside dir. Only the base name of name
// is used so output always lands in dir. It returns the written path.
func WriteTripsFile(dir, name string, trips []bike.Trip, opts Options) (string, error) {
	base := filepath.Base(filepath.Clean("/" + name))
	if base == "/" || base == "." {
		return "", fmt.Errorf("invalid output file name %q", name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(dir, base)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create output: %w", err)
	}
	if err := WriteTrips(f, trips, opts); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close output: %w", err)
	}
	return path, nil
}

// WriteTrips writes the trip table with a header row. Durations are whole
// seconds.
func WriteTrips(w io.Writer, trips []bike.Trip, opts Options) error {
	cw := csv.NewWriter(w)
	cw.Comma = opts.comma()
	if err := cw.Write(tripHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	rec := make([]string, len(tripHeader))
	for _, t := range trips {
		rec[0] = t.BikeID
		rec[1] = t.StartTime.Format(timeLayout)
		rec[2] = t.EndTime.Format(timeLayout)
		rec[3] = strconv.FormatInt(int64(t.Duration/time.Second), 10)
		rec[4] = strconv.FormatBool(t.Weekend)
		rec[5] = strconv.FormatBool(t.IsStation)
		rec[6] = formatCoord(t.Start.Lng)
		rec[7] = formatCoord(t.Start.Lat)
		rec[8] = t.Start.PlaceName
		rec[9] = formatCoord(t.End.Lng)
		rec[10] = formatCoord(t.End.Lat)
		rec[11] = t.End.PlaceName
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write trip %s@%s: %w", t.BikeID, rec[1], err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatCoord(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

// ReadTripsFile opens path and reads it with ReadTrips.
func ReadTripsFile(path string, opts Options) ([]bike.Trip, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open trips: %w", err)
	}
	defer f.Close()
	trips, err := ReadTrips(f, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return trips, nil
}

// ReadTrips reads a table produced by WriteTrips.
func ReadTrips(r io.Reader, opts Options) ([]bike.Trip, error) {
	cr := csv.NewReader(r)
	cr.Comma = opts.comma()
	header, err := cr.Read()
	if err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("%w: empty input", ErrMissingColumn)
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	idx, err := columnIndex(header, tripHeader...)
	if err != nil {
		return nil, err
	}
	loc := opts.location()

	var trips []bike.Trip
	for row := 1; ; row++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", row, err)
		}
		p := &tripParser{rec: rec, idx: idx, loc: loc}
		t := bike.Trip{
			BikeID:    strings.TrimSpace(rec[idx[0]]),
			StartTime: p.parseTime(1),
			EndTime:   p.parseTime(2),
			Duration:  time.Duration(p.parseInt(3)) * time.Second,
			Weekend:   p.parseBool(4),
			IsStation: p.parseBool(5),
			Start:     bike.Position{Lng: p.parseFloat(6), Lat: p.parseFloat(7), PlaceName: rec[idx[8]]},
			End:       bike.Position{Lng: p.parseFloat(9), Lat: p.parseFloat(10), PlaceName: rec[idx[11]]},
		}
		if p.err != nil {
			return nil, fmt.Errorf("row %d: %w", row, p.err)
		}
		trips = append(trips, t)
	}
	return trips, nil
}

// tripParser keeps the first conversion error of a record.
type tripParser struct {
	rec []string
	idx []int
	loc *time.Location
	err error
}

func (p *tripParser) field(i int) string { return strings.TrimSpace(p.rec[p.idx[i]]) }

func (p *tripParser) fail(i int, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("column %s: %w", tripHeader[i], err)
	}
}

func (p *tripParser) parseTime(i int) time.Time {
	t, err := ParseTime(p.field(i), p.loc)
	if err != nil {
		p.fail(i, err)
	}
	return t
}

func (p *tripParser) parseInt(i int) int64 {
	v, err := strconv.ParseInt(p.field(i), 10, 64)
	if err != nil {
		p.fail(i, err)
	}
	return v
}

func (p *tripParser) parseFloat(i int) float64 {
	v, err := strconv.ParseFloat(p.field(i), 64)
	if err != nil {
		p.fail(i, err)
	}
	return v
}

func (p *tripParser) parseBool(i int) bool {
	v, err := strconv.ParseBool(p.field(i))
	if err != nil {
		p.fail(i, err)
	}
	return v
}
