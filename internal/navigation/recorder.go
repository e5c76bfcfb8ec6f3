package navigation

import (
	"time"

	"backend-taputapu/internal/location"
	"backend-taputapu/internal/shared/geo"
)

// MinRecordStepMeters filters GPS jitter out of recorded paths.
const MinRecordStepMeters = 3.0

// Recording is a finished track, ready to be saved as a trip.
type Recording struct {
	Mode            TravelMode  `json:"mode"`
	StartedAt       time.Time   `json:"started_at"`
	EndedAt         time.Time   `json:"ended_at"`
	DistanceMeters  float64     `json:"distance_m"`
	DurationSeconds float64     `json:"duration_s"`
	Pace            string      `json:"pace_min_per_km"`
	CaloriesKcal    int         `json:"calories_kcal"`
	Path            []geo.Point `json:"path"`
}

type RecordingStatus struct {
	Active         bool      `json:"active"`
	StartedAt      time.Time `json:"started_at,omitempty"`
	DistanceMeters float64   `json:"distance_m"`
	Points         int       `json:"points"`
}

// Recorder accumulates a path while active. It is owned by a Session and
// not safe for concurrent use on its own.
type Recorder struct {
	active    bool
	startedAt time.Time
	path      []geo.Point
	distance  float64
}

func (r *Recorder) Start(at time.Time) {
	r.active = true
	r.startedAt = at
	r.path = nil
	r.distance = 0
}

func (r *Recorder) Active() bool { return r.active }

func (r *Recorder) Distance() float64 { return r.distance }

// Add appends the fix unless it is within MinRecordStepMeters of the last
// recorded point. It reports whether the point was kept.
func (r *Recorder) Add(f location.Fix) bool {
	if !r.active {
		return false
	}
	if n := len(r.path); n > 0 {
		step := geo.Distance(r.path[n-1], f.Point)
		if step < MinRecordStepMeters {
			return false
		}
		r.distance += step
	}
	r.path = append(r.path, f.Point)
	return true
}

func (r *Recorder) Status() RecordingStatus {
	return RecordingStatus{
		Active:         r.active,
		StartedAt:      r.startedAt,
		DistanceMeters: r.distance,
		Points:         len(r.path),
	}
}

// Stop ends the recording and summarises it.
func (r *Recorder) Stop(at time.Time, mode TravelMode) (Recording, bool) {
	rec, ok := r.Summary(at, mode)
	r.active = false
	return rec, ok
}

// Summary describes the active recording up to at.
func (r *Recorder) Summary(at time.Time, mode TravelMode) (Recording, bool) {
	if !r.active {
		return Recording{}, false
	}

	duration := at.Sub(r.startedAt).Seconds()
	pace := NoPace
	if duration > 0 {
		pace = FormatPace(r.distance / duration)
	}
	rec := Recording{
		Mode:            mode,
		StartedAt:       r.startedAt,
		EndedAt:         at,
		DistanceMeters:  r.distance,
		DurationSeconds: duration,
		Pace:            pace,
		CaloriesKcal:    Calories(r.distance, mode),
		Path:            append([]geo.Point(nil), r.path...),
	}
	return rec, true
}
