package trails

import "errors"

const MaxResults = 6

var (
	ErrEmptyQuery    = errors.New("search query is empty")
	ErrNotConfigured = errors.New("trail search is not configured")
	ErrNoTrails      = errors.New("no trails found")
	ErrBadResponse   = errors.New("unreadable trail search response")
)

// Trail is one suggestion returned by the trail search.
type Trail struct {
	Name          string `json:"name"`
	Description   string `json:"description"`
	Difficulty    string `json:"difficulty"`
	Length        string `json:"length"`
	ElevationGain string `json:"elevation_gain,omitempty"`
	BestSeason    string `json:"best_season,omitempty"`
}
