package spots

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"backend-taputapu/internal/db"
	"backend-taputapu/internal/logging"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const (
	DefaultRadiusKm = 5.0
	MaxRadiusKm     = 50.0
	searchLimit     = 50
)

type Service struct {
	db     db.Querier
	logger *slog.Logger
}

func NewService(db db.Querier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Service{db: db, logger: logger.With("component", "spots")}
}

func (s *Service) Create(ctx context.Context, input Spot) (Spot, error) {
	if err := input.validate(); err != nil {
		return Spot{}, err
	}
	input.ID = uuid.NewString()
	input.DistanceM = nil
	row := s.db.QueryRow(ctx, `
		INSERT INTO spots (id, name, description, type, location, created_by)
		VALUES ($1,$2,$3,$4, ST_SetSRID(ST_MakePoint($5,$6), 4326)::geography, $7)
		RETURNING created_at
	`, input.ID, input.Name, input.Description, string(input.Type), input.Lng, input.Lat, input.CreatedBy)
	if err := row.Scan(&input.CreatedAt); err != nil {
		return Spot{}, fmt.Errorf("insert spot: %w", err)
	}
	logging.LogOperation(s.logger, "spot_created", slog.String("spot_id", input.ID), slog.String("type", string(input.Type)))
	return input, nil
}

func (s *Service) Get(ctx context.Context, id string) (Spot, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, name, description, type, ST_Y(location::geometry), ST_X(location::geometry), created_by, created_at
		FROM spots WHERE id=$1
	`, id)
	var (
		sp Spot
		t  string
	)
	err := row.Scan(&sp.ID, &sp.Name, &sp.Description, &t, &sp.Lat, &sp.Lng, &sp.CreatedBy, &sp.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Spot{}, ErrNotFound
	}
	if err != nil {
		return Spot{}, fmt.Errorf("select spot: %w", err)
	}
	sp.Type = Type(t)
	return sp, nil
}

// Delete removes a spot created by deviceID.
func (s *Service) Delete(ctx context.Context, id, deviceID string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM spots WHERE id=$1 AND created_by=$2`, id, deviceID)
	if err != nil {
		return fmt.Errorf("delete spot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Nearby returns spots within radiusKm of (lat, lng), closest first. An
// empty kind matches every type.
func (s *Service) Nearby(ctx context.Context, lat, lng, radiusKm float64, kind Type) ([]Spot, error) {
	if radiusKm <= 0 {
		radiusKm = DefaultRadiusKm
	}
	if radiusKm > MaxRadiusKm {
		radiusKm = MaxRadiusKm
	}
	rows, err := s.db.Query(ctx, `
		SELECT id, name, description, type, ST_Y(location::geometry), ST_X(location::geometry), created_by, created_at,
		       ST_Distance(location, ST_SetSRID(ST_MakePoint($1,$2), 4326)::geography)
		FROM spots
		WHERE ST_DWithin(location, ST_SetSRID(ST_MakePoint($1,$2), 4326)::geography, $3)
		  AND ($4 = '' OR type = $4)
		ORDER BY 9
		LIMIT $5
	`, lng, lat, radiusKm*1000, string(kind), searchLimit)
	if err != nil {
		return nil, fmt.Errorf("search spots: %w", err)
	}
	defer rows.Close()

	results := []Spot{}
	for rows.Next() {
		var (
			sp   Spot
			t    string
			dist float64
		)
		if err := rows.Scan(&sp.ID, &sp.Name, &sp.Description, &t, &sp.Lat, &sp.Lng, &sp.CreatedBy, &sp.CreatedAt, &dist); err != nil {
			return nil, err
		}
		sp.Type = Type(t)
		sp.DistanceM = &dist
		results = append(results, sp)
	}
	return results, rows.Err()
}
