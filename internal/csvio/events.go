package csvio

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"bikeshare-trips/internal/bike"
)

var ErrMissingColumn = errors.New("missing required column")

// Schema names the event columns of the raw export.
type Schema struct {
	Bike      string
	Time      string
	Kind      string
	Lng       string
	Lat       string
	PlaceName string
	PlaceType string
}

// DefaultSchema matches the nextbike station log export.
var DefaultSchema = Schema{
	Bike:      "b_number",
	Time:      "datetime",
	Kind:      "trip",
	Lng:       "p_lng",
	Lat:       "p_lat",
	PlaceName: "p_name",
	PlaceType: "p_place_type",
}

type Options struct {
	Schema   Schema
	Comma    rune           // 0 means ','
	Location *time.Location // nil means UTC; used for timestamps without offset
}

func (o Options) comma() rune {
	if o.Comma == 0 {
		return ','
	}
	return o.Comma
}

func (o Options) location() *time.Location {
	if o.Location == nil {
		return time.UTC
	}
	return o.Location
}

func (o Options) schema() Schema {
	if o.Schema == (Schema{}) {
		return DefaultSchema
	}
	return o.Schema
}

// ReadEventsFile opens path and reads it with ReadEvents.
func ReadEventsFile(path string, opts Options) ([]bike.Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open events: %w", err)
	}
	defer f.Close()
	events, err := ReadEvents(f, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return events, nil
}

// ReadEvents parses a delimited event table with a header row. Unknown
// columns (including a leading index column) are ignored.
func ReadEvents(r io.Reader, opts Options) ([]bike.Event, error) {
	cr := csv.NewReader(r)
	cr.Comma = opts.comma()
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("%w: empty input", ErrMissingColumn)
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	s := opts.schema()
	cols, err := columnIndex(header, s.Bike, s.Time, s.Kind, s.Lng, s.Lat, s.PlaceName, s.PlaceType)
	if err != nil {
		return nil, err
	}
	iBike, iTime, iKind, iLng, iLat, iName, iType := cols[0], cols[1], cols[2], cols[3], cols[4], cols[5], cols[6]
	loc := opts.location()

	var events []bike.Event
	for row := 1; ; row++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", row, err)
		}
		line, _ := cr.FieldPos(0)

		ts, err := ParseTime(rec[iTime], loc)
		if err != nil {
			return nil, fmt.Errorf("line %d: column %s: %w", line, s.Time, err)
		}
		kind, err := bike.ParseTripKind(rec[iKind])
		if err != nil {
			return nil, fmt.Errorf("line %d: column %s: %w", line, s.Kind, err)
		}
		lng, err := strconv.ParseFloat(strings.TrimSpace(rec[iLng]), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: column %s: %w", line, s.Lng, err)
		}
		lat, err := strconv.ParseFloat(strings.TrimSpace(rec[iLat]), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: column %s: %w", line, s.Lat, err)
		}
		id := strings.TrimSpace(rec[iBike])
		if id == "" {
			return nil, fmt.Errorf("line %d: column %s: empty bike id", line, s.Bike)
		}

		events = append(events, bike.Event{
			BikeID: id,
			Time:   ts,
			Kind:   kind,
			Position: bike.Position{
				Lng:       lng,
				Lat:       lat,
				PlaceName: rec[iName],
				PlaceType: strings.TrimSpace(rec[iType]),
			},
			Row: row,
		})
	}
	return events, nil
}

var timeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	time.RFC3339Nano,
}

// ParseTime accepts the timestamp layouts found in station log exports.
// Layouts without an offset are interpreted in loc.
func ParseTime(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparsable timestamp %q", s)
}

func columnIndex(header []string, names ...string) ([]int, error) {
	pos := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if _, dup := pos[h]; !dup {
			pos[h] = i
		}
	}
	out := make([]int, len(names))
	var missing []string
	for i, n := range names {
		idx, ok := pos[n]
		if !ok {
			missing = append(missing, n)
			continue
		}
		out[i] = idx
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(missing, ", "))
	}
	return out, nil
}
