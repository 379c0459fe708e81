package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"backend-travelplanner/internal/config"
	"backend-travelplanner/internal/db"
	"backend-travelplanner/internal/logging"
	"backend-travelplanner/internal/server"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

var mainDepsProvider = defaultDeps
var mainRunner = realMain

var shutdownFn = func(app *fiber.App, ctx context.Context) error {
	return app.ShutdownWithContext(ctx)
}

func main() {
	mainRunner(mainDepsProvider())
}

type mainDeps struct {
	loadConfig      func() config.Config
	connectPostgres func(config.Config) (*pgxpool.Pool, error)
	connectRedis    func(config.Config) *redis.Client
	migrate         func(context.Context, db.Querier) error
	notify          func(chan<- os.Signal, ...os.Signal)
	run             func(context.Context, config.Config, *pgxpool.Pool, *redis.Client, <-chan os.Signal, ListenFunc) error
}

func defaultDeps() mainDeps {
	return mainDeps{
		loadConfig:      config.Load,
		connectPostgres: db.ConnectPostgres,
		connectRedis:    db.ConnectRedis,
		migrate:         db.Migrate,
		notify:          signal.Notify,
		run:             Run,
	}
}

func realMain(deps mainDeps) {
	cfg := deps.loadConfig()
	logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	pg, err := deps.connectPostgres(cfg)
	if err != nil {
		logging.Error().Err(err).Msg("postgres connection failed")
	}
	if pg != nil && cfg.MigrateOnStart && deps.migrate != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := deps.migrate(ctx, pg); err != nil {
			logging.Error().Err(err).Msg("schema migration failed")
		}
		cancel()
	}

	rdb := deps.connectRedis(cfg)
	if rdb != nil {
		if err := db.PingRedis(rdb); err != nil {
			logging.Warn().Err(err).Msg("redis unavailable, geocode cache and fan-out degraded")
		}
	}

	signals := make(chan os.Signal, 1)
	deps.notify(signals, syscall.SIGINT, syscall.SIGTERM)

	logging.Info().Str("addr", cfg.ServerPort).Msg("starting api")
	if err := deps.run(context.Background(), cfg, pg, rdb, signals, nil); err != nil {
		logging.Error().Err(err).Msg("server exited with error")
	}
}

type ListenFunc func(app *fiber.App, addr string) error

var defaultListen ListenFunc = func(app *fiber.App, addr string) error {
	return app.Listen(addr)
}

// Run starts the HTTP server and waits for termination signals.
func Run(ctx context.Context, cfg config.Config, pg *pgxpool.Pool, rdb *redis.Client, signals <-chan os.Signal, listen ListenFunc) error {
	srv := server.NewServer(cfg, pg, rdb)

	if listen == nil {
		listen = defaultListen
	}

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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := shutdownFn(srv.App, shutdownCtx); err != nil {
		return err
	}
	if err := srv.Close(); err != nil {
		logging.Warn().Err(err).Msg("closing stream hub")
	}
	if pg != nil {
		pg.Close()
	}
	if rdb != nil {
		_ = rdb.Close()
	}
	logging.Info().Msg("api stopped")
	return nil
}
