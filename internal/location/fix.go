package location

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"backend-taputapu/internal/shared/geo"
)

var (
	ErrPermissionDenied = errors.New("location permission denied")
	ErrTimeout          = errors.New("location request timed out")
	ErrUnavailable      = errors.New("location unavailable")
)

// Fix is a single position sample reported by the device.
type Fix struct {
	Point          geo.Point `json:"point"`
	AccuracyMeters float64   `json:"accuracy_m"`
	Speed          *float64  `json:"speed_mps,omitempty"`
	Heading        *float64  `json:"heading_deg,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// SpeedMps returns the reported speed, or 0 when unknown or negative.
func (f Fix) SpeedMps() float64 {
	if f.Speed == nil || *f.Speed < 0 {
		return 0
	}
	return *f.Speed
}

func (f Fix) Validate() error {
	if !f.Point.Valid() {
		return fmt.Errorf("invalid coordinates %.6f,%.6f", f.Point.Lat, f.Point.Lng)
	}
	if f.AccuracyMeters < 0 {
		return errors.New("accuracy must not be negative")
	}
	return nil
}

// ParseError maps a geolocation error code (1 permission denied, 2 position
// unavailable, 3 timeout) or its name to one of the package sentinels.
func ParseError(code int, name string) error {
	switch code {
	case 1:
		return ErrPermissionDenied
	case 2:
		return ErrUnavailable
	case 3:
		return ErrTimeout
	}
	switch strings.ToLower(strings.ReplaceAll(strings.TrimSpace(name), "_", "")) {
	case "permissiondenied", "denied":
		return ErrPermissionDenied
	case "timeout", "locationtimeout":
		return ErrTimeout
	default:
		return ErrUnavailable
	}
}

// Classify reduces any watcher error to one of the package sentinels.
func Classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrPermissionDenied):
		return ErrPermissionDenied
	case errors.Is(err, ErrTimeout):
		return ErrTimeout
	default:
		return ErrUnavailable
	}
}
