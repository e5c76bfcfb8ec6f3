package routing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"backend-taputapu/internal/logging"
	"backend-taputapu/internal/shared/geo"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

const DefaultORSBaseURL = "https://api.openrouteservice.org"

type ORSClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewORSClient(baseURL, apiKey string, timeout time.Duration, logger *slog.Logger) *ORSClient {
	if logger == nil {
		logger = logging.Discard()
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if baseURL == "" {
		baseURL = DefaultORSBaseURL
	}
	return &ORSClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With("component", "ors_client"),
	}
}

type orsRequest struct {
	Coordinates       [][2]float64       `json:"coordinates"`
	AlternativeRoutes *orsAlternativeOpt `json:"alternative_routes,omitempty"`
}

type orsAlternativeOpt struct {
	TargetCount  int     `json:"target_count"`
	ShareFactor  float64 `json:"share_factor"`
	WeightFactor float64 `json:"weight_factor"`
}

func (c *ORSClient) Route(ctx context.Context, req Request) ([]Candidate, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRouteUnavailable, err)
	}

	payload := orsRequest{Coordinates: make([][2]float64, len(req.Points))}
	for i, p := range req.Points {
		payload.Coordinates[i] = [2]float64{p.Lng, p.Lat}
	}
	// alternatives are only offered for plain A to B requests
	if len(req.Points) == 2 {
		payload.AlternativeRoutes = &orsAlternativeOpt{TargetCount: 3, ShareFactor: 0.6, WeightFactor: 1.4}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	reqURL := fmt.Sprintf("%s/v2/directions/%s/geojson", c.baseURL, req.Mode.orsProfile())
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json, application/geo+json")
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", c.apiKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: executing request: %v", ErrRouteUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", ErrRouteUnavailable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: ors status %d: %s", ErrRouteUnavailable, resp.StatusCode, orsErrorMessage(raw))
	}

	fc, err := geojson.UnmarshalFeatureCollection(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: decoding geojson: %v", ErrRouteUnavailable, err)
	}

	candidates := make([]Candidate, 0, len(fc.Features))
	for _, f := range fc.Features {
		line, ok := f.Geometry.(orb.LineString)
		if !ok {
			continue
		}
		distance, duration := orsSummary(f.Properties)
		candidates = append(candidates, Candidate{
			DistanceMeters:  distance,
			DurationSeconds: duration,
			Geometry:        geo.FromLineString(line),
			LegBoundaries:   orsWayPoints(f.Properties),
		})
	}

	c.logger.Debug("ors route",
		"profile", req.Mode.orsProfile(),
		"stops", req.Stops(),
		"candidates", len(candidates),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return NormalizeLegs(req, candidates)
}

func orsSummary(props geojson.Properties) (distance, duration float64) {
	summary, ok := props["summary"].(map[string]interface{})
	if !ok {
		return 0, 0
	}
	distance, _ = summary["distance"].(float64)
	duration, _ = summary["duration"].(float64)
	return distance, duration
}

func orsWayPoints(props geojson.Properties) []int {
	raw, ok := props["way_points"].([]interface{})
	if !ok {
		return nil
	}
	out := make([]int, 0, len(raw))
	for _, v := range raw {
		f, ok := v.(float64)
		if !ok {
			return nil
		}
		out = append(out, int(f))
	}
	return out
}

// orsErrorMessage extracts the provider's message from an error body, which is
// either {"error": {"message": ...}}, {"error": "..."} or {"message": ...}.
func orsErrorMessage(raw []byte) string {
	var body struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return strings.TrimSpace(string(raw))
	}
	if len(body.Error) > 0 {
		var nested struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(body.Error, &nested) == nil && nested.Message != "" {
			return nested.Message
		}
		var s string
		if json.Unmarshal(body.Error, &s) == nil && s != "" {
			return s
		}
	}
	if body.Message != "" {
		return body.Message
	}
	return strings.TrimSpace(string(raw))
}
