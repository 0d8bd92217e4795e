package geo

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/golang/geo/s2"

	"bikeshare-trips/internal/bike"
)

var ErrNoPolygon = errors.New("geojson contains no polygon")

// Boundary is a single closed region on the sphere. Containment follows the
// S2 semi-open model: a point on a shared edge belongs to exactly one of the
// two polygons sharing it.
type Boundary struct {
	loop *s2.Loop
}

// NewBoundary builds a boundary from an outer ring of [lng, lat] pairs. The
// ring may be open or closed and in either orientation.
func NewBoundary(ring [][2]float64) (*Boundary, error) {
	if n := len(ring); n > 1 && ring[0] == ring[n-1] {
		ring = ring[:n-1]
	}
	if len(ring) < 3 {
		return nil, fmt.Errorf("boundary ring needs at least 3 vertices, got %d", len(ring))
	}
	pts := make([]s2.Point, 0, len(ring))
	for _, c := range ring {
		pts = append(pts, s2.PointFromLatLng(s2.LatLngFromDegrees(c[1], c[0])))
	}
	loop := s2.LoopFromPoints(pts)
	// GeoJSON producers disagree on winding; take the smaller of the two regions.
	loop.Normalize()
	if err := loop.Validate(); err != nil {
		return nil, fmt.Errorf("invalid boundary ring: %w", err)
	}
	// Build the shape index now so concurrent ContainsPoint calls only read it.
	loop.ContainsPoint(loop.Vertex(0))
	return &Boundary{loop: loop}, nil
}

// Contains reports whether p lies inside the boundary.
func (b *Boundary) Contains(p bike.Position) bool {
	return b.loop.ContainsPoint(s2.PointFromLatLng(s2.LatLngFromDegrees(p.Lat, p.Lng)))
}

// NumVertices returns the vertex count of the boundary ring.
func (b *Boundary) NumVertices() int { return b.loop.NumVertices() }

type geoJSONObject struct {
	Type        string          `json:"type"`
	Features    []geoJSONObject `json:"features"`
	Geometry    *geoJSONObject  `json:"geometry"`
	Coordinates json.RawMessage `json:"coordinates"`
}

// LoadBoundary reads a GeoJSON file and returns the outer ring of its first
// polygon (FeatureCollection, Feature, Polygon and MultiPolygon are accepted).
func LoadBoundary(path string) (*Boundary, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read boundary: %w", err)
	}
	return ParseBoundary(b)
}

func ParseBoundary(data []byte) (*Boundary, error) {
	var obj geoJSONObject
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, fmt.Errorf("decode geojson: %w", err)
	}
	ring, err := firstRing(&obj)
	if err != nil {
		return nil, err
	}
	return NewBoundary(ring)
}

func firstRing(obj *geoJSONObject) ([][2]float64, error) {
	switch obj.Type {
	case "FeatureCollection":
		for i := range obj.Features {
			ring, err := firstRing(&obj.Features[i])
			if errors.Is(err, ErrNoPolygon) {
				continue
			}
			return ring, err
		}
		return nil, ErrNoPolygon
	case "Feature":
		if obj.Geometry == nil {
			return nil, ErrNoPolygon
		}
		return firstRing(obj.Geometry)
	case "Polygon":
		var rings [][][]float64
		if err := json.Unmarshal(obj.Coordinates, &rings); err != nil {
			return nil, fmt.Errorf("decode polygon coordinates: %w", err)
		}
		return outerRing(rings)
	case "MultiPolygon":
		var polys [][][][]float64
		if err := json.Unmarshal(obj.Coordinates, &polys); err != nil {
			return nil, fmt.Errorf("decode multipolygon coordinates: %w", err)
		}
		if len(polys) == 0 {
			return nil, ErrNoPolygon
		}
		return outerRing(polys[0])
	}
	return nil, ErrNoPolygon
}

func outerRing(rings [][][]float64) ([][2]float64, error) {
	if len(rings) == 0 {
		return nil, ErrNoPolygon
	}
	out := make([][2]float64, 0, len(rings[0]))
	for _, pos := range rings[0] {
		if len(pos) < 2 {
			return nil, fmt.Errorf("position needs lng and lat, got %v", pos)
		}
		out = append(out, [2]float64{pos[0], pos[1]})
	}
	return out, nil
}
