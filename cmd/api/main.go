package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"backend-taputapu/internal/config"
	"backend-taputapu/internal/db"
	"backend-taputapu/internal/logging"
	"backend-taputapu/internal/server"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

const sweepInterval = time.Minute

var mainDepsProvider = defaultDeps
var mainRunner = realMain

func main() {
	mainRunner(mainDepsProvider())
}

type mainDeps struct {
	loadConfig      func() config.Config
	connectPostgres func(config.Config) (*pgxpool.Pool, error)
	connectRedis    func(config.Config) *redis.Client
	ensureSchema    func(context.Context, db.Querier) error
	notify          func(chan<- os.Signal, ...os.Signal)
	run             func(context.Context, config.Config, *pgxpool.Pool, *redis.Client, <-chan os.Signal, ListenFunc) error
}

func defaultDeps() mainDeps {
	return mainDeps{
		loadConfig:      config.Load,
		connectPostgres: db.ConnectPostgres,
		connectRedis:    db.ConnectRedis,
		ensureSchema:    db.EnsureSchema,
		notify:          signal.Notify,
		run:             Run,
	}
}

func realMain(deps mainDeps) {
	cfg := deps.loadConfig()
	logger := logging.NewStructuredLogger(os.Stdout, cfg.SlogLevel())
	slog.SetDefault(logger)

	pg, err := deps.connectPostgres(cfg)
	if err != nil {
		logging.LogError(logger, "postgres connection failed", err)
		pg = nil
	}
	if pg != nil && deps.ensureSchema != nil {
		if err := deps.ensureSchema(context.Background(), pg); err != nil {
			logging.LogError(logger, "schema setup failed", err)
		}
	}

	rdb := deps.connectRedis(cfg)
	if err := db.PingRedis(context.Background(), rdb); err != nil {
		logging.LogError(logger, "redis unavailable, continuing without it", err)
		_ = rdb.Close()
		rdb = nil
	}

	signals := make(chan os.Signal, 1)
	deps.notify(signals, syscall.SIGINT, syscall.SIGTERM)

	if err := deps.run(context.Background(), cfg, pg, rdb, signals, nil); err != nil {
		logging.LogError(logger, "server exited with error", err)
	}
}

type ListenFunc func(app *fiber.App, addr string) error

var defaultListen ListenFunc = func(app *fiber.App, addr string) error {
	return app.Listen(addr)
}

var shutdownFn = func(app *fiber.App, ctx context.Context) error {
	return app.ShutdownWithContext(ctx)
}

// Run starts the HTTP server and waits for termination signals.
func Run(ctx context.Context, cfg config.Config, pg *pgxpool.Pool, rdb *redis.Client, signals <-chan os.Signal, listen ListenFunc) error {
	logger := slog.Default()
	srv := server.NewServer(cfg, pg, rdb, logger)

	if listen == nil {
		listen = defaultListen
	}

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go srv.Navigation.Sweep(sweepCtx, sweepInterval, cfg.SessionIdleTimeout)

	errCh := make(chan error, 1)
	go func() {
		errCh <- listen(srv.App, cfg.ServerPort)
	}()

	select {
	case <-signals:
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			_ = srv.Close()
			return err
		}
	}

	logging.LogOperation(logger, "shutting down", slog.Int("sessions", srv.Navigation.Len()))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := shutdownFn(srv.App, shutdownCtx); err != nil {
		_ = srv.Close()
		return err
	}
	if err := srv.Close(); err != nil {
		logging.LogError(logger, "close server resources", err)
	}
	if pg != nil {
		pg.Close()
	}
	if rdb != nil {
		_ = rdb.Close()
	}
	return nil
}
