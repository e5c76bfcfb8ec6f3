package routing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"backend-taputapu/internal/shared/geo"
)

var (
	ErrRouteUnavailable = errors.New("route unavailable")
	ErrUnknownMode      = errors.New("unknown travel mode")
)

type Mode string

const (
	Walking Mode = "walking"
	Cycling Mode = "cycling"
	Driving Mode = "driving"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case Walking, "foot", "walk":
		return Walking, nil
	case Cycling, "bike", "bicycle":
		return Cycling, nil
	case Driving, "car", "drive":
		return Driving, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

// AssumedSpeedKmh is the speed used for direct-line estimates.
func (m Mode) AssumedSpeedKmh() float64 {
	switch m {
	case Cycling:
		return 20
	case Driving:
		return 50
	default:
		return 5
	}
}

// orsProfile maps a mode to an OpenRouteService profile name.
func (m Mode) orsProfile() string {
	switch m {
	case Cycling:
		return "cycling-regular"
	case Driving:
		return "driving-car"
	default:
		return "foot-hiking"
	}
}

// Request asks for routes from Points[0] through every following point.
type Request struct {
	Mode   Mode        `json:"mode"`
	Points []geo.Point `json:"points"`
}

func (r Request) Validate() error {
	if len(r.Points) < 2 {
		return errors.New("a route needs an origin and at least one stop")
	}
	for i, p := range r.Points {
		if !p.Valid() {
			return fmt.Errorf("point %d out of range", i)
		}
	}
	return nil
}

// Stops is the number of legs the request produces.
func (r Request) Stops() int {
	return len(r.Points) - 1
}

type Candidate struct {
	Index           int         `json:"index"`
	DistanceMeters  float64     `json:"distance_m"`
	DurationSeconds float64     `json:"duration_s"`
	Geometry        []geo.Point `json:"geometry"`
	LegBoundaries   []int       `json:"leg_boundaries"`
	Fallback        bool        `json:"fallback,omitempty"`
}

// Destination is the last vertex of the geometry.
func (c Candidate) Destination() (geo.Point, bool) {
	if len(c.Geometry) == 0 {
		return geo.Point{}, false
	}
	return c.Geometry[len(c.Geometry)-1], true
}

// Leg returns the geometry slice of leg i, boundaries inclusive.
func (c Candidate) Leg(i int) ([]geo.Point, bool) {
	if i < 0 || i+1 >= len(c.LegBoundaries) {
		return nil, false
	}
	from, to := c.LegBoundaries[i], c.LegBoundaries[i+1]
	if from < 0 || to >= len(c.Geometry) || from > to {
		return nil, false
	}
	return c.Geometry[from : to+1], true
}

// Provider computes route candidates. Implementations must be safe for
// concurrent use.
type Provider interface {
	Route(ctx context.Context, req Request) ([]Candidate, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, req Request) ([]Candidate, error)

func (f ProviderFunc) Route(ctx context.Context, req Request) ([]Candidate, error) {
	return f(ctx, req)
}

// ValidLegs reports whether boundaries start at 0, end at the last geometry
// index, are strictly increasing and mark exactly one leg per stop.
func ValidLegs(boundaries []int, geometryLen, stops int) bool {
	if len(boundaries) != stops+1 || geometryLen < 2 {
		return false
	}
	if boundaries[0] != 0 || boundaries[len(boundaries)-1] != geometryLen-1 {
		return false
	}
	for i := 1; i < len(boundaries); i++ {
		if boundaries[i] <= boundaries[i-1] {
			return false
		}
	}
	return true
}

// LegsFromWaypoints locates each snapped waypoint on the geometry. The first
// and last boundary are pinned to the ends; intermediate ones take the nearest
// vertex while leaving room for the remaining legs.
func LegsFromWaypoints(geometry []geo.Point, waypoints []geo.Point) ([]int, bool) {
	stops := len(waypoints) - 1
	n := len(geometry)
	if stops < 1 || n < stops+1 {
		return nil, false
	}
	boundaries := make([]int, stops+1)
	boundaries[stops] = n - 1
	for i := 1; i < stops; i++ {
		lo := boundaries[i-1] + 1
		hi := n - 1 - (stops - i)
		if lo > hi {
			return nil, false
		}
		boundaries[i] = geo.Nearest(geometry[:hi+1], waypoints[i], lo)
	}
	return boundaries, true
}

// NormalizeLegs drops candidates whose leg boundaries are inconsistent with
// the request and renumbers the rest. It fails when nothing survives.
func NormalizeLegs(req Request, candidates []Candidate) ([]Candidate, error) {
	out := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if !ValidLegs(c.LegBoundaries, len(c.Geometry), req.Stops()) {
			continue
		}
		c.Index = len(out)
		out = append(out, c)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no candidate with consistent legs", ErrRouteUnavailable)
	}
	return out, nil
}
