package trip

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"backend-taputapu/internal/db"
	"backend-taputapu/internal/logging"
	"backend-taputapu/internal/navigation"
	"backend-taputapu/internal/routing"
	"backend-taputapu/internal/shared/geo"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/paulmach/orb/encoding/wkt"
)

type Service struct {
	db     db.Querier
	logger *slog.Logger
}

func NewService(db db.Querier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Service{db: db, logger: logger.With("component", "trip")}
}

func (s *Service) Save(ctx context.Context, t Trip) (Trip, error) {
	if err := t.validate(); err != nil {
		return Trip{}, err
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.DistanceMeters == 0 {
		t.DistanceMeters = geo.PathLength(t.Path)
	}
	row := s.db.QueryRow(ctx, `
		INSERT INTO trips (id, device_id, name, mode, recorded_at, distance_m, duration_s, pace, calories_kcal, path)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9, ST_GeogFromText($10))
		RETURNING created_at
	`, t.ID, t.DeviceID, t.Name, string(t.Mode), t.RecordedAt, t.DistanceMeters, t.DurationSeconds, t.Pace, t.Calories,
		wkt.MarshalString(geo.ToLineString(t.Path)))
	if err := row.Scan(&t.CreatedAt); err != nil {
		return Trip{}, fmt.Errorf("insert trip: %w", err)
	}
	logging.LogOperation(s.logger, "trip_saved",
		slog.String("trip_id", t.ID),
		slog.String("device_id", t.DeviceID),
		slog.Int("points", len(t.Path)),
	)
	return t, nil
}

// SaveRecording stores a finished navigation recording as a trip.
func (s *Service) SaveRecording(ctx context.Context, deviceID string, rec navigation.Recording) (string, error) {
	t, err := s.Save(ctx, Trip{
		DeviceID:        deviceID,
		Mode:            rec.Mode,
		RecordedAt:      rec.StartedAt,
		DistanceMeters:  rec.DistanceMeters,
		DurationSeconds: rec.DurationSeconds,
		Pace:            rec.Pace,
		Calories:        rec.CaloriesKcal,
		Path:            rec.Path,
	})
	if err != nil {
		return "", err
	}
	return t.ID, nil
}

func (s *Service) Get(ctx context.Context, id string) (Trip, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, device_id, name, mode, recorded_at, distance_m, duration_s, pace, calories_kcal, ST_AsText(path), created_at
		FROM trips WHERE id=$1
	`, id)
	var (
		t    Trip
		mode string
		path string
	)
	err := row.Scan(&t.ID, &t.DeviceID, &t.Name, &mode, &t.RecordedAt, &t.DistanceMeters, &t.DurationSeconds, &t.Pace, &t.Calories, &path, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Trip{}, ErrNotFound
	}
	if err != nil {
		return Trip{}, fmt.Errorf("select trip: %w", err)
	}
	t.Mode = routing.Mode(mode)
	ls, err := wkt.UnmarshalLineString(path)
	if err != nil {
		return Trip{}, fmt.Errorf("decode trip path: %w", err)
	}
	t.Path = geo.FromLineString(ls)
	return t, nil
}

func (s *Service) List(ctx context.Context, deviceID string) ([]Summary, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, name, mode, recorded_at, distance_m, duration_s, calories_kcal
		FROM trips WHERE device_id=$1
		ORDER BY recorded_at DESC
	`, deviceID)
	if err != nil {
		return nil, fmt.Errorf("list trips: %w", err)
	}
	defer rows.Close()

	trips := []Summary{}
	for rows.Next() {
		var (
			t    Summary
			mode string
		)
		if err := rows.Scan(&t.ID, &t.Name, &mode, &t.RecordedAt, &t.DistanceMeters, &t.DurationSeconds, &t.Calories); err != nil {
			return nil, err
		}
		t.Mode = routing.Mode(mode)
		trips = append(trips, t)
	}
	return trips, rows.Err()
}

func (s *Service) Rename(ctx context.Context, id, deviceID, name string) error {
	tag, err := s.db.Exec(ctx, `UPDATE trips SET name=$3 WHERE id=$1 AND device_id=$2`, id, deviceID, name)
	if err != nil {
		return fmt.Errorf("rename trip: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a trip owned by deviceID.
func (s *Service) Delete(ctx context.Context, id, deviceID string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM trips WHERE id=$1 AND device_id=$2`, id, deviceID)
	if err != nil {
		return fmt.Errorf("delete trip: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
