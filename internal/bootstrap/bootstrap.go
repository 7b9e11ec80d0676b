package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-slot-booking/internal/api"
	"github.com/hackgods/clinic-slot-booking/internal/appointment"
	"github.com/hackgods/clinic-slot-booking/internal/config"
	"github.com/hackgods/clinic-slot-booking/internal/db"
	"github.com/hackgods/clinic-slot-booking/internal/lock"
	"github.com/hackgods/clinic-slot-booking/internal/messaging"
	redisclient "github.com/hackgods/clinic-slot-booking/internal/redis"
)

// App holds the wired booking core and the connections it owns.
type App struct {
	Service *appointment.Service
	Repo    appointment.Repository
	Pool    *pgxpool.Pool
	Redis   *redis.Client
	Checks  []api.Check

	closers []func() error
	log     *zap.Logger
}

// New connects storage, lock backend and optional publisher as configured.
func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	app := &App{log: log}

	if err := app.connectStorage(ctx, cfg); err != nil {
		app.Shutdown()
		return nil, err
	}

	locker, err := app.connectLocker(ctx, cfg)
	if err != nil {
		app.Shutdown()
		return nil, err
	}

	opts := []appointment.Option{}
	if cfg.AMQPURL != "" {
		pub, closeFn, err := messaging.Dial(cfg.AMQPURL, messaging.DefaultExchange)
		if err != nil {
			app.Shutdown()
			return nil, err
		}
		app.closers = append(app.closers, closeFn)
		opts = append(opts, appointment.WithPublisher(pub))
		log.Info("publishing events to rabbitmq", zap.String("exchange", messaging.DefaultExchange))
	}

	app.Service = appointment.NewService(app.Repo, locker, cfg.Policy(), cfg.Clock(), log, opts...)
	return app, nil
}

func (a *App) connectStorage(ctx context.Context, cfg config.Config) error {
	if cfg.Storage == config.StorageMemory {
		a.Repo = appointment.NewMemoryRepository()
		a.log.Warn("using in-memory storage; data is lost on restart")
		return nil
	}

	pgCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, db.PoolOptions{})
	if err != nil {
		return fmt.Errorf("postgres connection: %w", err)
	}
	a.Pool = pool
	a.closers = append(a.closers, func() error { pool.Close(); return nil })
	a.Checks = append(a.Checks, api.Check{Name: "postgres", Critical: true, Ping: pool.Ping})
	a.log.Info("connected to Postgres")

	if cfg.MigrateOnStart {
		n, err := db.Migrate(ctx, pool, a.log)
		if err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		a.log.Info("migrations complete", zap.Int("applied", n))
	}

	a.Repo = appointment.NewPgRepository(pool)
	return nil
}

func (a *App) connectLocker(ctx context.Context, cfg config.Config) (lock.Locker, error) {
	if cfg.LockBackend != config.LockRedis {
		return lock.NewKeyedMutex(), nil
	}

	rdb, err := redisclient.NewRedisClient(ctx, redisclient.Options{
		Addr:     cfg.RedisAddr,
		Username: cfg.RedisUsername,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		return nil, fmt.Errorf("redis connection: %w", err)
	}
	a.Redis = rdb
	a.closers = append(a.closers, rdb.Close)
	a.Checks = append(a.Checks, api.Check{
		Name:     "redis",
		Critical: true,
		Ping:     func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
	})
	a.log.Info("connected to Redis", zap.String("addr", cfg.RedisAddr))

	return redisclient.NewRedisSlotLocker(rdb, cfg.LockTTL, cfg.LockWait, a.log.Named("lock")), nil
}

// Shutdown closes connections in reverse order of opening.
func (a *App) Shutdown() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Warn("closing dependency", zap.Error(err))
		}
	}
	a.closers = nil
}
