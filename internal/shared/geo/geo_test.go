package geo

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
)

func TestHaversineKm(t *testing.T) {
	// Vilnius cathedral to Trakai castle, roughly 25 km
	d := HaversineKm(54.6858, 25.2877, 54.6522, 24.9336)
	if d < 20 || d > 30 {
		t.Fatalf("unexpected distance: %v", d)
	}
}

func TestHaversineSymmetricAndZero(t *testing.T) {
	pairs := [][4]float64{
		{54.6872, 25.2797, 54.6900, 25.2900},
		{-33.86, 151.21, 51.5, -0.12},
		{0, 179.9, 0, -179.9},
		{89.9, 0, -89.9, 180},
	}
	for _, p := range pairs {
		ab := HaversineMeters(p[0], p[1], p[2], p[3])
		ba := HaversineMeters(p[2], p[3], p[0], p[1])
		if math.Abs(ab-ba) > 1e-6 {
			t.Fatalf("distance not symmetric: %v vs %v", ab, ba)
		}
		if d := HaversineMeters(p[0], p[1], p[0], p[1]); d != 0 {
			t.Fatalf("expected zero distance, got %v", d)
		}
	}
}

func TestEqualWithinEpsilon(t *testing.T) {
	a := Point{Lat: 54.1, Lng: 25.1}
	if !Equal(a, Point{Lat: 54.1 + Epsilon/2, Lng: 25.1 - Epsilon/2}) {
		t.Fatalf("expected points within epsilon to be equal")
	}
	if Equal(a, Point{Lat: 54.1 + 10*Epsilon, Lng: 25.1}) {
		t.Fatalf("expected distinct points")
	}
	if !EqualPaths([]Point{a, a}, []Point{a, a}) || EqualPaths([]Point{a}, []Point{a, a}) {
		t.Fatalf("unexpected path equality")
	}
}

func TestValid(t *testing.T) {
	if !(Point{Lat: 54, Lng: 25}).Valid() {
		t.Fatalf("expected valid point")
	}
	for _, p := range []Point{{Lat: 91}, {Lng: -181}, {Lat: math.NaN()}} {
		if p.Valid() {
			t.Fatalf("expected invalid point %+v", p)
		}
	}
}

func TestPathLengthAndNearest(t *testing.T) {
	path := []Point{{Lat: 0, Lng: 0}, {Lat: 0, Lng: 0.01}, {Lat: 0, Lng: 0.02}}
	want := Distance(path[0], path[2])
	if got := PathLength(path); math.Abs(got-want) > 0.5 {
		t.Fatalf("path length %v, want %v", got, want)
	}
	if PathLength(path[:1]) != 0 {
		t.Fatalf("single point path should have zero length")
	}
	if i := Nearest(path, Point{Lat: 0.0001, Lng: 0.011}, 0); i != 1 {
		t.Fatalf("nearest index %d", i)
	}
	if i := Nearest(path, Point{Lat: 0, Lng: 0}, 2); i != 2 {
		t.Fatalf("nearest from start index %d", i)
	}
	if i := Nearest(path, Point{}, 3); i != -1 {
		t.Fatalf("expected -1 past end")
	}
}

func TestOrbConversions(t *testing.T) {
	p := Point{Lat: 54.5, Lng: 25.5}
	op := ToOrb(p)
	if op != (orb.Point{25.5, 54.5}) {
		t.Fatalf("orb point should be lng,lat: %v", op)
	}
	if FromOrb(op) != p {
		t.Fatalf("round trip mismatch")
	}
	ls := ToLineString([]Point{p, {Lat: 1, Lng: 2}})
	if len(ls) != 2 || ls[1] != (orb.Point{2, 1}) {
		t.Fatalf("unexpected line string %v", ls)
	}
	if back := FromLineString(ls); back[1] != (Point{Lat: 1, Lng: 2}) {
		t.Fatalf("unexpected path %v", back)
	}
}
