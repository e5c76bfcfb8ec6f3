package navigation

import (
	"fmt"
	"math"

	"backend-taputapu/internal/location"
	"backend-taputapu/internal/routing"
	"backend-taputapu/internal/shared/geo"
)

type TravelMode = routing.Mode

const (
	// AssumedWalkingSpeed is used for time remaining when the device reports
	// no speed.
	AssumedWalkingSpeed = 1.4
	// PaceThreshold is the slowest speed, in m/s, with a defined pace.
	PaceThreshold = 0.3
	NoPace        = "--:--"
)

// CaloriesPerKm is the energy estimate per recorded kilometre.
func CaloriesPerKm(m TravelMode) float64 {
	switch m {
	case routing.Walking:
		return 65
	case routing.Cycling:
		return 45
	default:
		return 0
	}
}

// Calories estimates energy burned over meters in the given mode.
func Calories(meters float64, mode TravelMode) int {
	return int(math.Round(meters / 1000 * CaloriesPerKm(mode)))
}

type TripStats struct {
	SpeedKmh                int     `json:"speed_kmh"`
	DistanceRemainingMeters float64 `json:"distance_remaining_m"`
	TimeRemainingSeconds    float64 `json:"time_remaining_s"`
	Pace                    string  `json:"pace_min_per_km"`
	CaloriesKcal            int     `json:"calories_kcal"`
}

// Compute derives live metrics from a fix. Distance remaining is the
// straight line to destination, not the distance left along the route.
func Compute(fix location.Fix, destination geo.Point, recordedMeters float64, mode TravelMode) TripStats {
	speed := fix.SpeedMps()
	remaining := geo.Distance(fix.Point, destination)

	timeRemaining := remaining / AssumedWalkingSpeed
	if speed > 0 {
		timeRemaining = remaining / speed
	}

	return TripStats{
		SpeedKmh:                int(math.Round(speed * 3.6)),
		DistanceRemainingMeters: remaining,
		TimeRemainingSeconds:    timeRemaining,
		Pace:                    FormatPace(speed),
		CaloriesKcal:            Calories(recordedMeters, mode),
	}
}

// FormatPace renders minutes per kilometre as M:SS, or NoPace at or below
// PaceThreshold.
func FormatPace(speedMps float64) string {
	if math.IsNaN(speedMps) || speedMps <= PaceThreshold {
		return NoPace
	}
	minPerKm := 1000 / (speedMps * 60)
	mins := math.Floor(minPerKm)
	secs := math.Round((minPerKm - mins) * 60)
	if secs >= 60 {
		mins++
		secs -= 60
	}
	return fmt.Sprintf("%d:%02d", int(mins), int(secs))
}
