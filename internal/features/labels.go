package features

import (
	"strings"
	"time"

	"bikeshare-trips/internal/bike"
)

// FalseBookingMaxDuration is the longest trip that can still be a false
// booking when it starts and ends at the same spot.
const FalseBookingMaxDuration = 180 * time.Second

// FalseBooking reports whether a trip looks like an aborted rental.
func FalseBooking(t bike.Trip) bool {
	return t.Duration <= FalseBookingMaxDuration && t.Start.SameCoordinates(t.End)
}

type Direction string

const (
	ToUniversity   Direction = "to_university"
	FromUniversity Direction = "from_university"
	NotUniversity  Direction = "not_university"
	FalseTrip      Direction = "false"
)

// Places is a set of place names.
type Places map[string]struct{}

func NewPlaces(names ...string) Places {
	p := make(Places, len(names))
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			p[n] = struct{}{}
		}
	}
	return p
}

func (p Places) Has(name string) bool {
	_, ok := p[strings.TrimSpace(name)]
	return ok
}

// MannheimUniversityStations lists the stations serving the Mannheim campuses.
var MannheimUniversityStations = []string{
	"DHBW Mannheim - Campus Coblitzallee",
	"A5 - Universität West",
	"L1 - Schloss",
	"DHBW Mannheim - Campus Käfertalerstr.",
	"Universität Schloss",
	"Universität Mensa",
	"Universitätsklinik Mannheim - CampusRad",
	"Hochschule Mannheim",
}

// DirectionOf labels a trip. A false booking wins over everything, and an end
// at a university station wins over a start at one.
func DirectionOf(t bike.Trip, university Places) Direction {
	switch {
	case FalseBooking(t):
		return FalseTrip
	case university.Has(t.End.PlaceName):
		return FromUniversity
	case university.Has(t.Start.PlaceName):
		return ToUniversity
	}
	return NotUniversity
}
