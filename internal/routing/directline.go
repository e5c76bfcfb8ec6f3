package routing

import "backend-taputapu/internal/shared/geo"

// DirectLine builds the fallback candidate: straight segments from the origin
// through every stop, timed at the mode's assumed speed.
func DirectLine(req Request) (Candidate, bool) {
	if len(req.Points) < 2 {
		return Candidate{}, false
	}
	geometry := append([]geo.Point(nil), req.Points...)
	legs := make([]int, len(geometry))
	for i := range legs {
		legs[i] = i
	}
	distance := geo.PathLength(geometry)
	speedMps := req.Mode.AssumedSpeedKmh() / 3.6
	return Candidate{
		DistanceMeters:  distance,
		DurationSeconds: distance / speedMps,
		Geometry:        geometry,
		LegBoundaries:   legs,
		Fallback:        true,
	}, true
}
