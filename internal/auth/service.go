package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"backend-taputapu/internal/db"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	accessTokenTTL  = 24 * time.Hour
	refreshTokenTTL = 90 * 24 * time.Hour
)

var ErrRefreshInvalid = errors.New("refresh token invalid")

type Service struct {
	secret []byte
	db     db.Querier
	now    func() time.Time
}

type Claims struct {
	DeviceID string `json:"device_id"`
	jwt.RegisteredClaims
}

func NewService(secret string, db db.Querier) *Service {
	return &Service{
		secret: []byte(secret),
		db:     db,
		now:    time.Now,
	}
}

// RegisterDevice creates an anonymous device identity and issues its tokens.
func (s *Service) RegisterDevice(ctx context.Context, req DeviceRequest) (Device, TokenResponse, error) {
	device := Device{ID: uuid.NewString(), Name: req.Name}
	row := s.db.QueryRow(ctx, `
		INSERT INTO devices (id, name)
		VALUES ($1,$2)
		RETURNING created_at
	`, device.ID, device.Name)
	if err := row.Scan(&device.CreatedAt); err != nil {
		return Device{}, TokenResponse{}, fmt.Errorf("insert device: %w", err)
	}

	tokens, err := s.GenerateTokens(ctx, device.ID)
	if err != nil {
		return Device{}, TokenResponse{}, err
	}
	return device, tokens, nil
}

func (s *Service) GenerateTokens(ctx context.Context, deviceID string) (TokenResponse, error) {
	access, err := s.signToken(deviceID, accessTokenTTL)
	if err != nil {
		return TokenResponse{}, err
	}

	refresh, err := s.signToken(deviceID, refreshTokenTTL)
	if err != nil {
		return TokenResponse{}, err
	}

	if err := s.saveRefreshToken(ctx, refresh, deviceID, refreshTokenTTL); err != nil {
		return TokenResponse{}, err
	}

	return TokenResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int64(accessTokenTTL.Seconds()),
	}, nil
}

// Refresh validates a refresh token, revokes it and issues a new pair.
func (s *Service) Refresh(ctx context.Context, token string) (TokenResponse, error) {
	deviceID, err := s.ValidateRefreshToken(ctx, token)
	if err != nil {
		return TokenResponse{}, err
	}
	if _, err := s.db.Exec(ctx, `
		UPDATE device_refresh_tokens SET revoked_at = NOW()
		WHERE token = $1
	`, token); err != nil {
		return TokenResponse{}, fmt.Errorf("revoke refresh token: %w", err)
	}
	return s.GenerateTokens(ctx, deviceID)
}

func (s *Service) ValidateRefreshToken(ctx context.Context, token string) (string, error) {
	claims, err := s.parseToken(token)
	if err != nil {
		return "", err
	}

	deviceID, expiresAt, err := s.lookupRefreshToken(ctx, token)
	if err != nil || deviceID != claims.DeviceID || s.now().After(expiresAt) {
		return "", ErrRefreshInvalid
	}
	return claims.DeviceID, nil
}

func (s *Service) ValidateAccessToken(token string) (string, error) {
	claims, err := s.parseToken(token)
	if err != nil {
		return "", err
	}
	return claims.DeviceID, nil
}

func (s *Service) signToken(deviceID string, ttl time.Duration) (string, error) {
	now := s.now()
	claims := Claims{
		DeviceID: deviceID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   deviceID,
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

func (s *Service) parseToken(token string) (*Claims, error) {
	return parseClaims(token, s.secret)
}

func parseClaims(token string, secret []byte) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(_ *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.DeviceID == "" {
		return nil, errors.New("token invalid")
	}
	return claims, nil
}

func (s *Service) saveRefreshToken(ctx context.Context, token, deviceID string, ttl time.Duration) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO device_refresh_tokens (id, device_id, token, expires_at)
		VALUES ($1,$2,$3,$4)
	`, uuid.NewString(), deviceID, token, s.now().Add(ttl))
	if err != nil {
		return fmt.Errorf("save refresh token: %w", err)
	}
	return nil
}

func (s *Service) lookupRefreshToken(ctx context.Context, token string) (string, time.Time, error) {
	row := s.db.QueryRow(ctx, `
		SELECT device_id, expires_at
		FROM device_refresh_tokens
		WHERE token = $1 AND revoked_at IS NULL
	`, token)
	var deviceID string
	var expiresAt time.Time
	if err := row.Scan(&deviceID, &expiresAt); err != nil {
		return "", time.Time{}, err
	}
	return deviceID, expiresAt, nil
}
