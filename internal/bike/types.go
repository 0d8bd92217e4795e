package bike

import (
	"cmp"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TripKind is the scan type reported by a station or a free-floating bike.
type TripKind int

const (
	KindUnknown TripKind = iota
	KindStart
	KindEnd
	KindFirst // fleet lifecycle marker, not a trip
	KindLast  // fleet lifecycle marker, not a trip
)

func (k TripKind) String() string {
	switch k {
	case KindStart:
		return "start"
	case KindEnd:
		return "end"
	case KindFirst:
		return "first"
	case KindLast:
		return "last"
	default:
		return "unknown"
	}
}

// IsMarker reports whether k is a FIRST/LAST lifecycle marker.
func (k TripKind) IsMarker() bool { return k == KindFirst || k == KindLast }

// ParseTripKind parses the trip column of the raw export (case-insensitive).
func ParseTripKind(s string) (TripKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "start":
		return KindStart, nil
	case "end":
		return KindEnd, nil
	case "first":
		return KindFirst, nil
	case "last":
		return KindLast, nil
	}
	return KindUnknown, fmt.Errorf("unknown trip kind %q", s)
}

type Position struct {
	Lng       float64
	Lat       float64
	PlaceName string
	PlaceType string // raw place type code; see StationCodes
}

// SameCoordinates reports whether p and o share the exact same coordinates.
func (p Position) SameCoordinates(o Position) bool {
	return p.Lng == o.Lng && p.Lat == o.Lat
}

type Event struct {
	BikeID   string
	Time     time.Time
	Kind     TripKind
	Position Position
	Row      int // 1-based data row in the source file, 0 if unknown
}

type Trip struct {
	BikeID    string
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
	Start     Position
	End       Position
	Weekend   bool
	IsStation bool
}

// StationCodes is the set of place type codes that denote a docking station.
type StationCodes map[string]struct{}

// DefaultStationCodes treats place type "0" as a station.
func DefaultStationCodes() StationCodes { return NewStationCodes("0") }

func NewStationCodes(codes ...string) StationCodes {
	s := make(StationCodes, len(codes))
	for _, c := range codes {
		c = strings.TrimSpace(c)
		if c != "" {
			s[c] = struct{}{}
		}
	}
	return s
}

func (s StationCodes) IsStation(p Position) bool {
	_, ok := s[strings.TrimSpace(p.PlaceType)]
	return ok
}

// IsWeekend reports whether t falls on a Saturday or Sunday.
func IsWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// BikeKey is a bike identifier with its numeric value parsed once, for
// repeated comparisons while sorting.
type BikeKey struct {
	ID      string
	n       int64
	numeric bool
}

func KeyOf(id string) BikeKey {
	n, err := strconv.ParseInt(id, 10, 64)
	return BikeKey{ID: id, n: n, numeric: err == nil}
}

// Compare orders keys numerically when both IDs are base-10 integers and
// lexicographically otherwise. Numeric IDs sort first.
func (k BikeKey) Compare(o BikeKey) int {
	switch {
	case k.numeric && o.numeric:
		if c := cmp.Compare(k.n, o.n); c != 0 {
			return c
		}
		return strings.Compare(k.ID, o.ID) // "007" vs "7"
	case k.numeric:
		return -1
	case o.numeric:
		return 1
	}
	return strings.Compare(k.ID, o.ID)
}

// CompareBikeIDs compares two identifiers with BikeKey ordering.
func CompareBikeIDs(a, b string) int { return KeyOf(a).Compare(KeyOf(b)) }
