// Package app wires storage, locking, events and services from Config. Every
// command builds on it so the binaries agree on one storage layout.
package app

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-booking-engine/internal/api"
	"github.com/hackgods/clinic-booking-engine/internal/appointment"
	"github.com/hackgods/clinic-booking-engine/internal/availability"
	"github.com/hackgods/clinic-booking-engine/internal/config"
	"github.com/hackgods/clinic-booking-engine/internal/db"
	"github.com/hackgods/clinic-booking-engine/internal/metrics"
	redisclient "github.com/hackgods/clinic-booking-engine/internal/redis"
)

type App struct {
	Config       config.Config
	Registry     *prometheus.Registry
	Metrics      *metrics.Metrics
	Availability *availability.Service
	Appointments *appointment.Service
	Dependencies []api.Dependency

	closers []func()
}

func New(ctx context.Context, cfg config.Config, log zerolog.Logger) (*App, error) {
	a := &App{Config: cfg, Registry: prometheus.NewRegistry()}
	a.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.Metrics = metrics.New(a.Registry, "clinic")

	var (
		availRepo availability.Repository
		apptRepo  appointment.Repository
	)

	switch cfg.StorageDriver {
	case config.StoragePostgres:
		poolOpts := []db.PoolOption{db.WithMaxConns(cfg.PostgresMaxConns)}
		if cfg.LogLevel == "debug" {
			poolOpts = append(poolOpts, db.WithQueryLog(log.With().Str("component", "pgx").Logger()))
		}
		pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, poolOpts...)
		if err != nil {
			return nil, fmt.Errorf("postgres connection: %w", err)
		}
		a.closers = append(a.closers, pool.Close)
		if err := db.Migrate(ctx, pool); err != nil {
			a.Close()
			return nil, err
		}
		log.Info().Msg("connected to Postgres")

		availRepo = availability.NewPgRepository(pool)
		apptRepo = appointment.NewPgRepository(pool)
		a.Dependencies = append(a.Dependencies, api.Dependency{Name: "postgres", Critical: true, Ping: pool.Ping})
	default:
		log.Warn().Msg("using in-memory storage, data is lost on restart")
		availRepo = availability.NewMemoryRepository()
		apptRepo = appointment.NewMemoryRepository()
	}

	var (
		locker   redisclient.Locker
		notifier appointment.Notifier
	)
	if cfg.RedisEnabled {
		rdb, err := redisclient.NewRedisClient(ctx, redisclient.Options{
			Addr:     cfg.RedisAddr,
			Username: cfg.RedisUsername,
			Password: cfg.RedisPassword,
		})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("redis connection: %w", err)
		}
		a.closers = append(a.closers, func() {
			if err := rdb.Close(); err != nil {
				log.Error().Err(err).Msg("error closing redis")
			}
		})
		log.Info().Str("addr", cfg.RedisAddr).Msg("connected to Redis")

		locker = redisclient.NewRedisSessionLocker(rdb, cfg.LockTTL, cfg.LockWait)
		notifier = redisclient.NewPublisher(rdb, cfg.EventsChannel)
		a.Dependencies = append(a.Dependencies, api.Dependency{Name: "redis", Ping: pingRedis(rdb)})
	} else {
		log.Warn().Msg("redis disabled, session locks are process local")
		locker = redisclient.NewLocalLocker(cfg.LockWait)
	}

	a.Availability = availability.NewService(availRepo, cfg.AvailabilityCacheTTL, log)

	opts := []appointment.Option{
		appointment.WithLogger(log),
		appointment.WithMetrics(a.Metrics),
	}
	if notifier != nil {
		opts = append(opts, appointment.WithNotifier(notifier))
	}
	a.Appointments = appointment.NewService(apptRepo, a.Availability, locker, cfg, opts...)

	return a, nil
}

// Close releases connections in reverse order of creation.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func pingRedis(rdb *redis.Client) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	}
}
