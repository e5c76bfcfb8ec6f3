package routing

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"backend-taputapu/internal/logging"
	"backend-taputapu/internal/shared/geo"
)

// Public OSRM mirrors. The foot and bike mirrors serve their own profile
// behind the generic "driving" path segment.
const (
	DefaultOSRMFootURL = "https://routing.openstreetmap.de/routed-foot"
	DefaultOSRMBikeURL = "https://routing.openstreetmap.de/routed-bike"
	DefaultOSRMCarURL  = "https://router.project-osrm.org"
)

type OSRMClient struct {
	baseURLs   map[Mode]string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewOSRMClient(footURL, bikeURL, carURL string, timeout time.Duration, logger *slog.Logger) *OSRMClient {
	if logger == nil {
		logger = logging.Discard()
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &OSRMClient{
		baseURLs: map[Mode]string{
			Walking: strings.TrimRight(footURL, "/"),
			Cycling: strings.TrimRight(bikeURL, "/"),
			Driving: strings.TrimRight(carURL, "/"),
		},
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With("component", "osrm_client"),
	}
}

type osrmResponse struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Routes    []osrmRoute    `json:"routes"`
	Waypoints []osrmWaypoint `json:"waypoints"`
}

type osrmRoute struct {
	Distance float64 `json:"distance"`
	Duration float64 `json:"duration"`
	Geometry struct {
		Coordinates [][2]float64 `json:"coordinates"`
	} `json:"geometry"`
}

type osrmWaypoint struct {
	Location [2]float64 `json:"location"`
}

func (c *OSRMClient) Route(ctx context.Context, req Request) ([]Candidate, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRouteUnavailable, err)
	}
	base, ok := c.baseURLs[req.Mode]
	if !ok || base == "" {
		return nil, fmt.Errorf("%w: no OSRM server for mode %q", ErrRouteUnavailable, req.Mode)
	}

	coords := make([]string, len(req.Points))
	for i, p := range req.Points {
		coords[i] = strconv.FormatFloat(p.Lng, 'f', 6, 64) + "," + strconv.FormatFloat(p.Lat, 'f', 6, 64)
	}
	params := url.Values{}
	params.Set("alternatives", "true")
	params.Set("overview", "full")
	params.Set("geometries", "geojson")
	reqURL := fmt.Sprintf("%s/route/v1/driving/%s?%s", base, strings.Join(coords, ";"), params.Encode())

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: executing request: %v", ErrRouteUnavailable, err)
	}
	defer resp.Body.Close()

	var body osrmResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: decoding response (status %d): %v", ErrRouteUnavailable, resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK || body.Code != "Ok" {
		msg := body.Message
		if msg == "" {
			msg = body.Code
		}
		return nil, fmt.Errorf("%w: osrm status %d: %s", ErrRouteUnavailable, resp.StatusCode, msg)
	}

	snapped := make([]geo.Point, len(body.Waypoints))
	for i, w := range body.Waypoints {
		snapped[i] = geo.Point{Lat: w.Location[1], Lng: w.Location[0]}
	}
	if len(snapped) != len(req.Points) {
		snapped = req.Points
	}

	candidates := make([]Candidate, 0, len(body.Routes))
	for _, r := range body.Routes {
		geometry := make([]geo.Point, len(r.Geometry.Coordinates))
		for i, xy := range r.Geometry.Coordinates {
			geometry[i] = geo.Point{Lat: xy[1], Lng: xy[0]}
		}
		legs, ok := LegsFromWaypoints(geometry, snapped)
		if !ok {
			c.logger.Debug("skipping route with unlocatable legs", "vertices", len(geometry))
			continue
		}
		candidates = append(candidates, Candidate{
			DistanceMeters:  r.Distance,
			DurationSeconds: r.Duration,
			Geometry:        geometry,
			LegBoundaries:   legs,
		})
	}

	c.logger.Debug("osrm route",
		"mode", req.Mode,
		"stops", req.Stops(),
		"candidates", len(candidates),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return NormalizeLegs(req, candidates)
}
