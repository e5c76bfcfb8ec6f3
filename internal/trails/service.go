package trails

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"backend-taputapu/internal/db"
	"backend-taputapu/internal/logging"

	"github.com/redis/go-redis/v9"
)

const (
	cachePrefix = "taputapu:trails:"
	cacheTTL    = 6 * time.Hour
)

type Service struct {
	gen    Generator
	db     db.Querier
	redis  *redis.Client
	logger *slog.Logger
}

// NewService wires the trail search. gen may be nil when no API key is
// configured; rdb may be nil to disable result caching.
func NewService(gen Generator, q db.Querier, rdb *redis.Client, logger *slog.Logger) *Service {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Service{gen: gen, db: q, redis: rdb, logger: logger.With("component", "trails")}
}

// Search asks the generator for trails in or near area.
func (s *Service) Search(ctx context.Context, area string) ([]Trail, error) {
	area = strings.TrimSpace(area)
	if area == "" {
		return nil, ErrEmptyQuery
	}
	if s.gen == nil {
		return nil, ErrNotConfigured
	}

	key := cachePrefix + strings.ToLower(area)
	if cached, ok := s.cached(ctx, key); ok {
		return cached, nil
	}

	start := time.Now()
	text, err := s.gen.Generate(ctx, buildPrompt(area))
	if err != nil {
		logging.LogError(s.logger, "trail search failed", err, slog.String("area", area))
		return nil, err
	}
	found, err := parseTrails(text)
	if err != nil {
		logging.LogError(s.logger, "trail search returned bad json", err, slog.String("area", area))
		return nil, err
	}
	logging.LogOperation(s.logger, "trail_search",
		slog.String("area", area),
		slog.Int("results", len(found)),
		slog.Duration("took", time.Since(start)),
	)
	s.store(ctx, key, found)
	return found, nil
}

// SearchNear searches around a coordinate instead of a named area.
func (s *Service) SearchNear(ctx context.Context, lat, lng float64) ([]Trail, error) {
	return s.Search(ctx, fmt.Sprintf("latitude %.5f, longitude %.5f", lat, lng))
}

// parseTrails strips markdown code fences and decodes {"trails": [...]},
// keeping at most MaxResults named entries.
func parseTrails(text string) ([]Trail, error) {
	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```", "")
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrNoTrails
	}

	var body struct {
		Trails []Trail `json:"trails"`
	}
	if err := json.Unmarshal([]byte(text), &body); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	out := make([]Trail, 0, len(body.Trails))
	for _, t := range body.Trails {
		if t.Name == "" {
			continue
		}
		out = append(out, t)
		if len(out) == MaxResults {
			break
		}
	}
	if len(out) == 0 {
		return nil, ErrNoTrails
	}
	return out, nil
}

func (s *Service) cached(ctx context.Context, key string) ([]Trail, bool) {
	if s.redis == nil {
		return nil, false
	}
	val, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Error("cache get failed", "key", key, "error", err)
		}
		return nil, false
	}
	var out []Trail
	if err := json.Unmarshal(val, &out); err != nil || len(out) == 0 {
		return nil, false
	}
	s.logger.Debug("cache hit", "key", key)
	return out, true
}

func (s *Service) store(ctx context.Context, key string, trails []Trail) {
	if s.redis == nil {
		return
	}
	data, err := json.Marshal(trails)
	if err != nil {
		return
	}
	if err := s.redis.Set(ctx, key, data, cacheTTL).Err(); err != nil {
		s.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// ToggleFavorite adds the trail to the device's favorites, or removes it when
// a favorite with the same name exists. It reports whether the trail is now a
// favorite.
func (s *Service) ToggleFavorite(ctx context.Context, deviceID string, t Trail) (bool, error) {
	if t.Name == "" {
		return false, ErrNoTrails
	}
	tag, err := s.db.Exec(ctx, `DELETE FROM trail_favorites WHERE device_id=$1 AND name=$2`, deviceID, t.Name)
	if err != nil {
		return false, fmt.Errorf("delete favorite: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return false, nil
	}

	data, err := json.Marshal(t)
	if err != nil {
		return false, err
	}
	if _, err := s.db.Exec(ctx, `
		INSERT INTO trail_favorites (device_id, name, trail)
		VALUES ($1,$2,$3)
	`, deviceID, t.Name, data); err != nil {
		return false, fmt.Errorf("insert favorite: %w", err)
	}
	return true, nil
}

func (s *Service) Favorites(ctx context.Context, deviceID string) ([]Trail, error) {
	rows, err := s.db.Query(ctx, `
		SELECT trail FROM trail_favorites
		WHERE device_id=$1
		ORDER BY created_at DESC
	`, deviceID)
	if err != nil {
		return nil, fmt.Errorf("list favorites: %w", err)
	}
	defer rows.Close()

	favs := []Trail{}
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var t Trail
		if err := json.Unmarshal(raw, &t); err != nil {
			s.logger.Warn("skipping unreadable favorite", "device_id", deviceID, "error", err)
			continue
		}
		favs = append(favs, t)
	}
	return favs, rows.Err()
}
