package routing

import (
	"log/slog"
	"strings"

	"backend-taputapu/internal/config"

	"github.com/redis/go-redis/v9"
)

// NewFromConfig builds the configured provider, wrapped in the Redis cache
// when a client is available.
func NewFromConfig(cfg config.Config, rdb *redis.Client, logger *slog.Logger) Provider {
	var p Provider
	switch strings.ToLower(cfg.RoutingProvider) {
	case "ors", "openrouteservice":
		p = NewORSClient(cfg.ORSBaseURL, cfg.ORSAPIKey, cfg.RoutingTimeout, logger)
	default:
		p = NewOSRMClient(cfg.OSRMFootURL, cfg.OSRMBikeURL, cfg.OSRMCarURL, cfg.RoutingTimeout, logger)
	}
	if rdb == nil || cfg.RouteCacheTTL <= 0 {
		return p
	}
	return NewCache(p, rdb, cfg.RouteCacheTTL, logger)
}
