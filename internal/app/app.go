package app

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"TodoAPI/internal/auth"
	"TodoAPI/internal/cache"
	"TodoAPI/internal/config"
	"TodoAPI/internal/repo"
	"TodoAPI/migrations"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
	"github.com/redis/go-redis/v9"
)

type App struct {
	cfg    config.Config
	log    *log.Logger
	pool   *pgxpool.Pool
	db     *sqlx.DB
	redis  *redis.Client
	router *gin.Engine
}

// New connects to Postgres and, when configured, Redis, applies pending
// migrations and builds the router.
func New(ctx context.Context, cfg config.Config, logger *log.Logger) (*App, error) {
	a := &App{cfg: cfg, log: logger}

	pool, db, err := OpenPostgres(ctx, cfg.PG)
	if err != nil {
		return nil, err
	}
	a.pool, a.db = pool, db

	if cfg.Redis.Enabled() {
		rdb, err := newRedis(ctx, cfg.Redis)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.redis = rdb
	} else {
		logger.Warn("redis not configured, cache and token revocation disabled")
	}

	if err := Migrate(ctx, db.DB, logger, "up"); err != nil {
		a.Close()
		return nil, err
	}

	tokens, err := auth.NewTokenIssuer(auth.TokenConfig{
		Secret:    cfg.Auth.SecretKey,
		Algorithm: cfg.Auth.Algorithm,
	})
	if err != nil {
		a.Close()
		return nil, err
	}

	deps := Deps{
		Config:   cfg,
		Logger:   logger,
		Users:    repo.NewPGUserRepo(db),
		Todos:    repo.NewPGTodoRepo(db),
		Subtasks: repo.NewPGSubtaskRepo(db),
		Tags:     repo.NewPGTagRepo(db),
		Tokens:   tokens,
		Hasher:   auth.NewBcryptHasher(cfg.Auth.BcryptCost),
		Ping:     db.PingContext,
	}
	if a.redis != nil {
		deps.Cache = cache.NewTodoCache(a.redis, cfg.Redis.DefaultTTL.Duration())
		deps.Denylist = auth.NewDenylist(a.redis)
	}
	a.router = NewRouter(deps)
	return a, nil
}

func (a *App) Router() *gin.Engine {
	return a.router
}

func (a *App) Close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.db != nil {
		_ = a.db.Close()
	}
	if a.pool != nil {
		a.pool.Close()
	}
}

// OpenPostgres opens a pgx pool and a database/sql handle on top of it.
// Closing the returned DB does not close the pool.
func OpenPostgres(ctx context.Context, cfg config.PGConfig) (*pgxpool.Pool, *sqlx.DB, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("pg parse config: %w", err)
	}
	pcfg.MaxConns = cfg.MaxConns
	pcfg.MinConns = cfg.MinConns
	pcfg.MaxConnIdleTime = cfg.MaxConnIdleTime.Duration()
	pcfg.MaxConnLifetime = cfg.MaxConnLifetime.Duration()

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, nil, fmt.Errorf("pg connect: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("pg ping: %w", err)
	}

	db := sqlx.NewDb(stdlib.OpenDBFromPool(pool), "pgx")
	return pool, db, nil
}

func newRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

// Migrate runs a goose command ("up", "down" or "status") against the
// migrations embedded in the binary.
func Migrate(ctx context.Context, db *sql.DB, logger *log.Logger, command string) error {
	goose.SetBaseFS(migrations.FS)
	goose.SetLogger(logger)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}

	var err error
	switch command {
	case "up":
		err = goose.UpContext(ctx, db, ".")
	case "down":
		err = goose.DownContext(ctx, db, ".")
	case "status":
		err = goose.StatusContext(ctx, db, ".")
	default:
		return fmt.Errorf("unknown migrate command %q", command)
	}
	if err != nil {
		return fmt.Errorf("goose %s: %w", command, err)
	}
	return nil
}
