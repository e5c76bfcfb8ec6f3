package config

import (
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	if cfg.ServerPort == "" {
		t.Fatalf("expected default server port")
	}
	if cfg.PostgresURL == "" {
		t.Fatalf("expected default postgres url")
	}
	if cfg.RoutingProvider != "osrm" {
		t.Fatalf("expected osrm provider, got %q", cfg.RoutingProvider)
	}
	if cfg.RoutingTimeout != 15*time.Second {
		t.Fatalf("unexpected routing timeout: %v", cfg.RoutingTimeout)
	}
	if !cfg.RouteFallback {
		t.Fatalf("expected fallback enabled by default")
	}
	if cfg.RerouteThresholdM != 50 {
		t.Fatalf("unexpected reroute threshold: %v", cfg.RerouteThresholdM)
	}
	if cfg.NoticeTTL != 4*time.Second {
		t.Fatalf("unexpected notice ttl: %v", cfg.NoticeTTL)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", ":9000")
	t.Setenv("POSTGRES_URL", "postgres://example")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("REDIS_PASSWORD", "pw")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("ROUTING_PROVIDER", "ors")
	t.Setenv("ORS_API_KEY", "key")
	t.Setenv("ROUTING_TIMEOUT", "3s")
	t.Setenv("ROUTE_FALLBACK", "false")
	t.Setenv("REROUTE_THRESHOLD_M", "120")

	cfg := Load()
	if cfg.ServerPort != ":9000" {
		t.Fatalf("expected override port")
	}
	if cfg.PostgresURL != "postgres://example" {
		t.Fatalf("expected override postgres")
	}
	if cfg.RedisAddr != "redis:6379" || cfg.RedisPassword != "pw" {
		t.Fatalf("expected override redis")
	}
	if cfg.JWTSecret != "secret" {
		t.Fatalf("expected override secret")
	}
	if cfg.RoutingProvider != "ors" || cfg.ORSAPIKey != "key" {
		t.Fatalf("expected override routing provider")
	}
	if cfg.RoutingTimeout != 3*time.Second {
		t.Fatalf("expected override timeout, got %v", cfg.RoutingTimeout)
	}
	if cfg.RouteFallback {
		t.Fatalf("expected fallback disabled")
	}
	if cfg.RerouteThresholdM != 120 {
		t.Fatalf("expected override threshold")
	}
}

func TestSlogLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := (Config{LogLevel: in}).SlogLevel(); got != want {
			t.Fatalf("level %q: got %v want %v", in, got, want)
		}
	}
}

func TestReadRejectsMalformedValues(t *testing.T) {
	t.Setenv("ROUTING_TIMEOUT", "fifteen seconds")
	t.Setenv("SERVER_PORT", ":9100")

	cfg, err := Read()
	if err == nil {
		t.Fatalf("expected decode error for malformed duration")
	}
	if !strings.Contains(strings.ToLower(err.Error()), "routing_timeout") {
		t.Fatalf("error should name the key: %v", err)
	}
	if cfg.ServerPort != ":9100" {
		t.Fatalf("valid keys should still decode, got %q", cfg.ServerPort)
	}

	if got := Load(); got.ServerPort != ":9100" {
		t.Fatalf("load should keep the valid keys, got %q", got.ServerPort)
	}
}
