// Package bootstrap собирает инфраструктуру, общую для всех бинарников:
// логгер, пул PostgreSQL и клиент Redis.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/featherlingo/featherlingo-api/config"
	"github.com/featherlingo/featherlingo-api/internal/infrastructure/persistence/postgres"
	"github.com/featherlingo/featherlingo-api/internal/infrastructure/persistence/redis"
	"github.com/featherlingo/featherlingo-api/pkg/logger"
	"github.com/featherlingo/featherlingo-api/pkg/retry"
)

// NewLogger создаёт корневой логгер по настройкам наблюдаемости.
func NewLogger(cfg *config.Config) *logger.Logger {
	opts := logger.DefaultOptions()
	opts.Level = logger.ParseLevel(cfg.Observability.LogLevel)
	opts.Format = cfg.Observability.LogFormat
	return logger.New(opts).With(
		logger.String("service", cfg.App.Name),
		logger.String("version", cfg.App.Version),
		logger.String("env", string(cfg.App.Environment)),
	)
}

// ConnectPostgres открывает пул, повторяя попытки, пока БД поднимается.
func ConnectPostgres(ctx context.Context, cfg config.DatabaseConfig, log *logger.Logger) (*postgres.Connection, error) {
	pgCfg := postgres.DefaultConfig()
	pgCfg.URL = cfg.URL
	if cfg.MaxOpenConns > 0 {
		pgCfg.MaxConns = int32(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		pgCfg.MinConns = int32(cfg.MaxIdleConns)
	}
	pgCfg.MaxConnLifetime = cfg.ConnMaxLifetime
	pgCfg.MaxConnIdleTime = cfg.ConnMaxIdleTime

	var conn *postgres.Connection
	err := retry.StartupRetrier().Do(ctx, func(ctx context.Context) error {
		c, err := postgres.NewConnection(ctx, pgCfg)
		if errors.Is(err, postgres.ErrInvalidConfig) {
			return retry.Permanent(err)
		}
		if err != nil {
			log.Warn("postgres not ready", logger.Err(err))
			return err
		}
		conn = c
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	log.Info("postgres connected")
	return conn, nil
}

// ErrRedisDisabled возвращается, когда Redis выключен конфигурацией.
var ErrRedisDisabled = errors.New("redis disabled by configuration")

// ConnectRedis подключается к Redis. Недоступный Redis - не фатальная
// ошибка для API: таблица лидеров читается из PostgreSQL.
func ConnectRedis(ctx context.Context, cfg config.RedisConfig, log *logger.Logger) (*redis.Cache, error) {
	if cfg.Disabled {
		return nil, ErrRedisDisabled
	}

	rCfg := redis.DefaultConfig()
	rCfg.URL = cfg.URL
	rCfg.Host = cfg.Host
	rCfg.Port = cfg.Port
	rCfg.Password = cfg.Password
	rCfg.DB = cfg.DB
	rCfg.PoolSize = cfg.PoolSize
	rCfg.MinIdleConns = cfg.MinIdleConns
	rCfg.DialTimeout = cfg.DialTimeout
	rCfg.ReadTimeout = cfg.ReadTimeout
	rCfg.WriteTimeout = cfg.WriteTimeout

	cache, err := redis.NewCache(ctx, rCfg)
	if err != nil {
		return nil, err
	}
	log.Info("redis connected")
	return cache, nil
}

// RedisLocker превращает AcquireLock в функцию блокировки для фоновых задач.
// Занятая блокировка - не ошибка, а acquired == false.
func RedisLocker(cache *redis.Cache, owner string) func(ctx context.Context, resource string, ttl time.Duration) (func(context.Context) error, bool, error) {
	return func(ctx context.Context, resource string, ttl time.Duration) (func(context.Context) error, bool, error) {
		lock, err := cache.AcquireLock(ctx, resource, owner, ttl)
		if errors.Is(err, redis.ErrLockHeld) {
			return nil, false, nil
		}
		if err != nil {
			return nil, false, err
		}
		return lock.Release, true, nil
	}
}
