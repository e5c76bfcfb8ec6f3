package trip

import (
	"errors"
	"time"

	"backend-taputapu/internal/routing"
	"backend-taputapu/internal/shared/geo"
)

var (
	ErrNotFound  = errors.New("trip not found")
	ErrTooShort  = errors.New("trip path needs at least two points")
	ErrNoDevice  = errors.New("device id required")
	ErrBadCoords = errors.New("trip path has invalid coordinates")
)

// Trip is a finished recording saved by a device.
type Trip struct {
	ID              string       `json:"id"`
	DeviceID        string       `json:"device_id"`
	Name            string       `json:"name"`
	Mode            routing.Mode `json:"mode"`
	RecordedAt      time.Time    `json:"recorded_at"`
	DistanceMeters  float64      `json:"distance_m"`
	DurationSeconds float64      `json:"duration_s"`
	Pace            string       `json:"pace_min_per_km"`
	Calories        int          `json:"calories_kcal"`
	Path            []geo.Point  `json:"path"`
	CreatedAt       time.Time    `json:"created_at"`
}

// Summary is a trip without its path, used for listings.
type Summary struct {
	ID              string       `json:"id"`
	Name            string       `json:"name"`
	Mode            routing.Mode `json:"mode"`
	RecordedAt      time.Time    `json:"recorded_at"`
	DistanceMeters  float64      `json:"distance_m"`
	DurationSeconds float64      `json:"duration_s"`
	Calories        int          `json:"calories_kcal"`
}

func (t Trip) validate() error {
	if t.DeviceID == "" {
		return ErrNoDevice
	}
	if len(t.Path) < 2 {
		return ErrTooShort
	}
	for _, p := range t.Path {
		if !p.Valid() {
			return ErrBadCoords
		}
	}
	return nil
}
