package geo

import (
	"math"

	"github.com/paulmach/orb"
)

const (
	EarthRadiusM = 6371000.0

	// Epsilon is the coordinate tolerance, in degrees, used when deduplicating points.
	Epsilon = 1e-6
)

type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func (p Point) Valid() bool {
	return !math.IsNaN(p.Lat) && !math.IsNaN(p.Lng) &&
		p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

// Equal reports whether a and b match within Epsilon on both axes.
func Equal(a, b Point) bool {
	return math.Abs(a.Lat-b.Lat) <= Epsilon && math.Abs(a.Lng-b.Lng) <= Epsilon
}

// EqualPaths compares two point sequences with Equal.
func EqualPaths(a, b []Point) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

// HaversineMeters is the great-circle distance between two coordinates.
func HaversineMeters(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLng := toRad(lng2 - lng1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return EarthRadiusM * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

func HaversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	return HaversineMeters(lat1, lng1, lat2, lng2) / 1000
}

// Distance is HaversineMeters for two points.
func Distance(a, b Point) float64 {
	return HaversineMeters(a.Lat, a.Lng, b.Lat, b.Lng)
}

// PathLength sums the great-circle distance between consecutive points.
func PathLength(path []Point) float64 {
	total := 0.0
	for i := 1; i < len(path); i++ {
		total += Distance(path[i-1], path[i])
	}
	return total
}

// Nearest returns the index in path, searching from start on, of the vertex
// closest to p. It returns -1 when start is past the end.
func Nearest(path []Point, p Point, start int) int {
	best := -1
	bestDist := math.Inf(1)
	for i := start; i < len(path); i++ {
		if d := Distance(path[i], p); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

func ToOrb(p Point) orb.Point {
	return orb.Point{p.Lng, p.Lat}
}

func FromOrb(p orb.Point) Point {
	return Point{Lat: p.Lat(), Lng: p.Lon()}
}

func ToLineString(path []Point) orb.LineString {
	ls := make(orb.LineString, 0, len(path))
	for _, p := range path {
		ls = append(ls, ToOrb(p))
	}
	return ls
}

func FromLineString(ls orb.LineString) []Point {
	path := make([]Point, 0, len(ls))
	for _, p := range ls {
		path = append(path, FromOrb(p))
	}
	return path
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
