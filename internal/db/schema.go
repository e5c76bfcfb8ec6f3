package db

import (
	"context"
	"fmt"
)

var schemaStatements = []string{
	`CREATE EXTENSION IF NOT EXISTS postgis`,
	`CREATE TABLE IF NOT EXISTS trips (
  id            UUID PRIMARY KEY,
  device_id     TEXT NOT NULL,
  name          TEXT NOT NULL DEFAULT '',
  mode          TEXT NOT NULL,
  recorded_at   TIMESTAMPTZ NOT NULL,
  distance_m    DOUBLE PRECISION NOT NULL,
  duration_s    DOUBLE PRECISION NOT NULL,
  pace          TEXT NOT NULL,
  calories_kcal INTEGER NOT NULL,
  path          GEOGRAPHY(LINESTRING, 4326) NOT NULL,
  created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`,
	`CREATE INDEX IF NOT EXISTS idx_trips_device ON trips (device_id, recorded_at DESC)`,
	`CREATE TABLE IF NOT EXISTS spots (
  id          UUID PRIMARY KEY,
  name        TEXT NOT NULL,
  description TEXT NOT NULL DEFAULT '',
  type        TEXT NOT NULL,
  location    GEOGRAPHY(POINT, 4326) NOT NULL,
  created_by  TEXT NOT NULL DEFAULT '',
  created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`,
	`CREATE INDEX IF NOT EXISTS idx_spots_location ON spots USING GIST (location)`,
	`CREATE TABLE IF NOT EXISTS devices (
  id         UUID PRIMARY KEY,
  name       TEXT NOT NULL DEFAULT '',
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`,
	`CREATE TABLE IF NOT EXISTS device_refresh_tokens (
  id         UUID PRIMARY KEY,
  device_id  UUID NOT NULL REFERENCES devices (id) ON DELETE CASCADE,
  token      TEXT UNIQUE NOT NULL,
  expires_at TIMESTAMPTZ NOT NULL,
  revoked_at TIMESTAMPTZ
)`,
	`CREATE TABLE IF NOT EXISTS trail_favorites (
  device_id  TEXT NOT NULL,
  name       TEXT NOT NULL,
  trail      JSONB NOT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  PRIMARY KEY (device_id, name)
)`,
}

// EnsureSchema creates the tables the API needs when they are missing.
func EnsureSchema(ctx context.Context, q Querier) error {
	for _, stmt := range schemaStatements {
		if _, err := q.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}
