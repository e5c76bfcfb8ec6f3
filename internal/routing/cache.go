package routing

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"backend-taputapu/internal/logging"

	"github.com/redis/go-redis/v9"
)

const cachePrefix = "taputapu:route:"

// Cache decorates a Provider with a Redis lookaside cache. Redis failures are
// logged and the request falls through to the provider.
type Cache struct {
	next   Provider
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewCache(next Provider, client *redis.Client, ttl time.Duration, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Cache{
		next:   next,
		client: client,
		ttl:    ttl,
		logger: logger.With("component", "route_cache"),
	}
}

// CacheKey identifies a request by mode and coordinates rounded to 5 decimals
// (about a metre).
func CacheKey(req Request) string {
	var b strings.Builder
	b.WriteString(cachePrefix)
	b.WriteString(string(req.Mode))
	b.WriteByte(':')
	for i, p := range req.Points {
		if i > 0 {
			b.WriteByte(';')
		}
		b.WriteString(strconv.FormatFloat(p.Lat, 'f', 5, 64))
		b.WriteByte(',')
		b.WriteString(strconv.FormatFloat(p.Lng, 'f', 5, 64))
	}
	return b.String()
}

func (c *Cache) Route(ctx context.Context, req Request) ([]Candidate, error) {
	if c.client == nil || c.ttl <= 0 {
		return c.next.Route(ctx, req)
	}
	key := CacheKey(req)

	val, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var cached []Candidate
		if jsonErr := json.Unmarshal(val, &cached); jsonErr == nil && len(cached) > 0 {
			c.logger.Debug("cache hit", "key", key, "size_bytes", len(val))
			return cached, nil
		}
		c.logger.Warn("discarding unreadable cache entry", "key", key)
	case errors.Is(err, redis.Nil):
		c.logger.Debug("cache miss", "key", key)
	default:
		c.logger.Error("cache get failed", "key", key, "error", err)
	}

	candidates, err := c.next.Route(ctx, req)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(candidates)
	if err == nil {
		err = c.client.Set(ctx, key, data, c.ttl).Err()
	}
	if err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
	return candidates, nil
}
