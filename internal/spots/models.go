package spots

import (
	"errors"
	"time"

	"backend-taputapu/internal/shared/geo"
)

type Type string

const (
	Nature  Type = "nature"
	Camping Type = "camping"
	Hiking  Type = "hiking"
)

func (t Type) Valid() bool {
	switch t {
	case Nature, Camping, Hiking:
		return true
	}
	return false
}

var (
	ErrNotFound    = errors.New("spot not found")
	ErrInvalidSpot = errors.New("spot needs a name, a valid type and coordinates")
)

// Spot is a point of interest shown near the user.
type Spot struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Type        Type      `json:"type"`
	Lat         float64   `json:"lat"`
	Lng         float64   `json:"lng"`
	DistanceM   *float64  `json:"distance_m,omitempty"`
	CreatedBy   string    `json:"created_by,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func (s Spot) Point() geo.Point {
	return geo.Point{Lat: s.Lat, Lng: s.Lng}
}

func (s Spot) validate() error {
	if s.Name == "" || !s.Type.Valid() || !s.Point().Valid() {
		return ErrInvalidSpot
	}
	return nil
}
