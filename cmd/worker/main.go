// Package main - точка входа фонового процесса (Worker) FeatherLingo.
//
// Worker периодически пересобирает кеш таблицы лидеров в Redis из
// PostgreSQL. Несколько экземпляров безопасны: пересборку выполняет тот,
// кто взял блокировку в Redis.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"github.com/featherlingo/featherlingo-api/config"
	"github.com/featherlingo/featherlingo-api/internal/bootstrap"
	"github.com/featherlingo/featherlingo-api/internal/infrastructure/persistence/postgres"
	"github.com/featherlingo/featherlingo-api/internal/infrastructure/persistence/redis"
	"github.com/featherlingo/featherlingo-api/internal/infrastructure/scheduler"
	"github.com/featherlingo/featherlingo-api/internal/infrastructure/scheduler/jobs"
	"github.com/featherlingo/featherlingo-api/pkg/logger"
	"github.com/featherlingo/featherlingo-api/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. КОНФИГУРАЦИЯ И ЛОГИРОВАНИЕ
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	timeutil.SetLocation(cfg.App.Location)

	log := bootstrap.NewLogger(cfg).WithComponent("worker")
	defer log.Sync()

	if !cfg.Worker.Enabled {
		log.Info("worker disabled by configuration, exiting")
		return nil
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. ХРАНИЛИЩА
	// ─────────────────────────────────────────────────────────────────────────
	conn, err := bootstrap.ConnectPostgres(ctx, cfg.Database, log)
	if err != nil {
		return err
	}
	defer conn.Close()

	// Без Redis пересобирать нечего: API читает таблицу прямо из PostgreSQL.
	cache, err := bootstrap.ConnectRedis(ctx, cfg.Redis, log)
	if err != nil {
		return fmt.Errorf("worker needs redis: %w", err)
	}
	defer cache.Close()

	// ─────────────────────────────────────────────────────────────────────────
	// 3. ЗАДАЧИ
	// ─────────────────────────────────────────────────────────────────────────
	owner := fmt.Sprintf("worker-%s", uuid.NewString())
	rebuild := jobs.NewRebuildLeaderboardJob(
		postgres.NewLeaderboardRepository(conn),
		redis.NewLeaderboardCache(cache),
		bootstrap.RedisLocker(cache, owner),
		jobs.RebuildLeaderboardConfig{
			BatchSize: cfg.Worker.RebuildBatchSize,
			LockTTL:   cfg.Worker.JobTimeout,
		},
	)

	sched := scheduler.New(scheduler.Config{
		Logger:     log,
		Location:   cfg.App.Location,
		JobTimeout: cfg.Worker.JobTimeout,
	})
	// Первый прогон сразу: после рестарта Redis кеш пуст.
	if err := sched.Every(cfg.Worker.RebuildLeaderboardInterval, rebuild, true); err != nil {
		return err
	}

	sched.Start()
	log.Info("worker running",
		logger.String("owner", owner),
		logger.Duration("rebuild_interval", cfg.Worker.RebuildLeaderboardInterval),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 4. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	<-ctx.Done()
	log.Info("received shutdown signal")
	sched.Stop()

	for name, st := range sched.Stats() {
		log.Info("job summary",
			logger.String("job", name),
			logger.Int64("runs", st.Runs),
			logger.Int64("failures", st.Failures),
		)
	}
	return nil
}
