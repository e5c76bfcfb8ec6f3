package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"backend-taputapu/internal/auth"
	"backend-taputapu/internal/config"
	"backend-taputapu/internal/db"
	"backend-taputapu/internal/logging"
	"backend-taputapu/internal/navigation"
	"backend-taputapu/internal/routing"
	"backend-taputapu/internal/spots"
	"backend-taputapu/internal/stream"
	"backend-taputapu/internal/trails"
	"backend-taputapu/internal/trip"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

type Server struct {
	App        *fiber.App
	Cfg        config.Config
	DB         *pgxpool.Pool
	Redis      *redis.Client
	Stream     *stream.Hub
	Navigation *navigation.Registry
	Logger     *slog.Logger

	trailGen *trails.GeminiGenerator
}

func NewServer(cfg config.Config, pool *pgxpool.Pool, redisClient *redis.Client, log *slog.Logger) *Server {
	if log == nil {
		log = logging.Discard()
	}
	app := fiber.New(fiber.Config{ErrorHandler: errorHandler})
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(func(c *fiber.Ctx) error {
		c.SetUserContext(logging.WithLogger(c.UserContext(), log))
		return c.Next()
	})

	hub := stream.NewHub(redisClient, log)
	provider := routing.NewFromConfig(cfg, redisClient, log)
	registry := navigation.NewRegistry(provider, hub, navigation.Options{
		Fallback:          cfg.RouteFallback,
		RerouteThresholdM: cfg.RerouteThresholdM,
		NoticeTTL:         cfg.NoticeTTL,
		FetchTimeout:      cfg.RoutingTimeout,
	}, log)

	s := &Server{
		App:        app,
		Cfg:        cfg,
		DB:         pool,
		Redis:      redisClient,
		Stream:     hub,
		Navigation: registry,
		Logger:     log,
	}

	registerRoutes(s)
	return s
}

func registerRoutes(s *Server) {
	s.App.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "sessions": s.Navigation.Len()})
	})

	jwtMiddleware := auth.JWTMiddleware(s.Cfg.JWTSecret)
	q := querier(s.DB)

	trips := trip.NewService(q, s.Logger)
	var saver navigation.TripSaver
	if q != nil {
		saver = trips
	}

	auth.RegisterRoutes(s.App.Group("/auth"), auth.NewService(s.Cfg.JWTSecret, q))
	navigation.RegisterRoutes(s.App.Group("/navigation"), s.Navigation, saver, jwtMiddleware)
	trip.RegisterRoutes(s.App.Group("/trips"), trips, jwtMiddleware)
	spots.RegisterRoutes(s.App.Group("/spots"), spots.NewService(q, s.Logger), s.Navigation, jwtMiddleware)
	trails.RegisterRoutes(s.App.Group("/trails"), trails.NewService(s.trailGenerator(), q, s.Redis, s.Logger), jwtMiddleware)
	stream.RegisterRoutes(s.App.Group("/stream"), s.Stream, s.snapshot)
}

// Close stops navigation sessions and the stream hub.
func (s *Server) Close() error {
	s.Navigation.CloseAll()
	var errs []error
	if err := s.Stream.Close(); err != nil {
		errs = append(errs, err)
	}
	if s.trailGen != nil {
		if err := s.trailGen.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Server) snapshot(sessionID string) ([]byte, bool) {
	sess, err := s.Navigation.Get(sessionID)
	if err != nil {
		return nil, false
	}
	payload, err := json.Marshal(sess.Snapshot())
	if err != nil {
		logging.LogError(s.Logger, "encode snapshot", err, slog.String("session_id", sessionID))
		return nil, false
	}
	return payload, true
}

func (s *Server) trailGenerator() trails.Generator {
	if s.Cfg.GeminiAPIKey == "" {
		return nil
	}
	gen, err := trails.NewGeminiGenerator(context.Background(), s.Cfg.GeminiAPIKey, s.Cfg.GeminiModel)
	if err != nil {
		logging.LogError(s.Logger, "trail generator unavailable", err)
		return nil
	}
	s.trailGen = gen
	return gen
}

// querier avoids handing services a typed-nil pool.
func querier(pool *pgxpool.Pool) db.Querier {
	if pool == nil {
		return nil
	}
	return pool
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	if code >= fiber.StatusInternalServerError {
		logging.LogError(logging.FromContext(c.UserContext()), "request failed", err,
			slog.String("method", c.Method()),
			slog.String("path", c.Path()),
			slog.Int("status", code),
		)
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}
