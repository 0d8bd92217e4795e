package geo

import (
	"github.com/golang/geo/s2"

	"bikeshare-trips/internal/bike"
)

const EarthRadiusMeters = 6371000.0

// DistanceMeters returns the great-circle distance between two positions.
func DistanceMeters(a, b bike.Position) float64 {
	p1 := s2.LatLngFromDegrees(a.Lat, a.Lng)
	p2 := s2.LatLngFromDegrees(b.Lat, b.Lng)
	return p1.Distance(p2).Radians() * EarthRadiusMeters
}
