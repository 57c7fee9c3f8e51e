// Package main - точка входа REST API FeatherLingo.
//
// API обслуживает уроки, прогресс, серии, лиги, задания и таблицу лидеров.
// PostgreSQL - источник истины, Redis - необязательный кеш таблицы лидеров.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/featherlingo/featherlingo-api/config"
	"github.com/featherlingo/featherlingo-api/internal/application/command"
	"github.com/featherlingo/featherlingo-api/internal/application/eventhandler"
	"github.com/featherlingo/featherlingo-api/internal/application/query"
	"github.com/featherlingo/featherlingo-api/internal/bootstrap"
	"github.com/featherlingo/featherlingo-api/internal/infrastructure/auth"
	"github.com/featherlingo/featherlingo-api/internal/infrastructure/messaging"
	"github.com/featherlingo/featherlingo-api/internal/infrastructure/observability"
	"github.com/featherlingo/featherlingo-api/internal/infrastructure/persistence/postgres"
	"github.com/featherlingo/featherlingo-api/internal/infrastructure/persistence/redis"
	httpapi "github.com/featherlingo/featherlingo-api/internal/interface/http"
	"github.com/featherlingo/featherlingo-api/internal/interface/http/handlers"
	"github.com/featherlingo/featherlingo-api/pkg/circuitbreaker"
	"github.com/featherlingo/featherlingo-api/pkg/logger"
	"github.com/featherlingo/featherlingo-api/pkg/timeutil"
)

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

	log := bootstrap.NewLogger(cfg)
	defer log.Sync()
	log.Info("starting featherlingo API", logger.String("timezone", cfg.App.Timezone))

	gam, err := cfg.Gamification.Load()
	if err != nil {
		return fmt.Errorf("failed to load gamification config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. ТРАССИРОВКА
	// ─────────────────────────────────────────────────────────────────────────
	shutdownTracing, err := observability.InitTracing(ctx, log, observability.TracingConfig{
		Enabled:     cfg.Observability.TracingEnabled,
		ServiceName: cfg.App.Name,
		Environment: string(cfg.App.Environment),
		Version:     cfg.App.Version,
		Exporter:    cfg.Observability.TracingExporter,
		Endpoint:    cfg.Observability.TracingEndpoint,
		SampleRatio: cfg.Observability.TracingSampleRatio,
	})
	if err != nil {
		return fmt.Errorf("failed to init tracing: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 3. POSTGRESQL
	// ─────────────────────────────────────────────────────────────────────────
	conn, err := bootstrap.ConnectPostgres(ctx, cfg.Database, log)
	if err != nil {
		return err
	}
	defer conn.Close()

	if cfg.Database.AutoMigrate {
		applied, err := postgres.NewMigrator(conn).Migrate(ctx)
		if err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		log.Info("migrations applied", logger.Int("count", applied))
	}

	users := postgres.NewUserRepository(conn)
	follows := postgres.NewFollowRepository(conn)
	lessons := postgres.NewLessonRepository(conn)
	progressRepo := postgres.NewProgressRepository(conn)
	claims := postgres.NewQuestClaimRepository(conn)
	boardRepo := postgres.NewLeaderboardRepository(conn)

	health := handlers.NewCompositeHealthChecker(cfg.App.Version)
	health.AddCheck("postgres", handlers.PingCheck(conn), true)

	// ─────────────────────────────────────────────────────────────────────────
	// 4. REDIS (опционально)
	// ─────────────────────────────────────────────────────────────────────────
	var boardCache *redis.LeaderboardCache
	cache, err := bootstrap.ConnectRedis(ctx, cfg.Redis, log)
	switch {
	case errors.Is(err, bootstrap.ErrRedisDisabled):
		log.Info("redis disabled, leaderboard served from postgres")
	case err != nil:
		log.Warn("redis unavailable, leaderboard served from postgres", logger.Err(err))
	default:
		defer cache.Close()
		boardCache = redis.NewLeaderboardCache(cache)
		health.AddCheck("redis", handlers.PingCheck(cache), false)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. EVENT BUS
	// ─────────────────────────────────────────────────────────────────────────
	busCfg := messaging.DefaultInMemoryEventBusConfig()
	busCfg.Logger = log
	bus := messaging.NewInMemoryEventBus(busCfg)
	defer func() { _ = bus.Close() }()

	dispCfg := messaging.DefaultDispatcherConfig()
	dispCfg.Logger = log
	dispatcher := messaging.NewDispatcher(bus, dispCfg)

	features := cfg.Features
	cacheEnabled := func() bool { return features.Enabled(config.FeatureLeaderboardCache) }

	if boardCache != nil {
		boardSync := eventhandler.NewLeaderboardSync(users, boardCache, cacheEnabled)
		if err := dispatcher.Register("leaderboard-sync", boardSync.Handle, boardSync.EventTypes()...); err != nil {
			return fmt.Errorf("failed to register leaderboard sync: %w", err)
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. КОМАНДЫ И ЗАПРОСЫ
	// ─────────────────────────────────────────────────────────────────────────
	rt := command.NewRuntime(conn, bus, log, postgres.IsSerializationFailure)
	hasher := auth.NewPasswordHasher(cfg.Auth.BcryptCost)
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer, cfg.Auth.TokenTTL)

	lessonDeps := command.LessonDeps{Users: users, Lessons: lessons, Progress: progressRepo, Ladder: gam.Ladder}

	var warm query.WarmReader
	if boardCache != nil {
		warm = boardCache
	}
	// Серия ошибок Redis переключает чтение таблицы на PostgreSQL на время паузы.
	breaker := circuitbreaker.CacheBreaker("leaderboard-cache", func(name string, from, to circuitbreaker.State) {
		log.Warn("circuit breaker state changed",
			logger.String("breaker", name),
			logger.String("from", from.String()),
			logger.String("to", to.String()),
		)
	})
	leaderboard := query.NewLeaderboardHandler(boardRepo, warm, users, gam.Ladder, query.LeaderboardConfig{
		DefaultLimit: cfg.Gamification.LeaderboardDefault,
		MaxLimit:     cfg.Gamification.LeaderboardMax,
		UseCache:     cacheEnabled,
		Breaker:      breaker,
	})

	deps := httpapi.Dependencies{
		Tokens:      tokens,
		Register:    command.NewRegisterHandler(rt, users, hasher, gam.Ladder),
		Login:       command.NewLoginHandler(users, hasher, tokens),
		Follow:      command.NewFollowHandler(rt, users, follows),
		Profile:     query.NewProfileHandler(users, timeutil.Now),
		Lessons:     query.NewLessonsHandler(lessons, progressRepo),
		StartLesson: command.NewStartLessonHandler(rt, lessonDeps),
		SubmitLesson: command.NewSubmitLessonHandler(rt, lessonDeps, command.SubmitOptions{
			PassingScore:      cfg.Gamification.PassingScore,
			AwardLeaguePoints: func() bool { return features.Enabled(config.FeatureLeaguePointsFromLessons) },
		}),
		Progress:      query.NewProgressHandler(progressRepo),
		Reset:         command.NewResetProgressHandler(rt, progressRepo),
		LeaguePoints:  command.NewAddLeaguePointsHandler(rt, users, gam.Ladder),
		Leaderboard:   leaderboard,
		Quests:        query.NewQuestsHandler(users, progressRepo, claims, gam.Catalog, timeutil.Now),
		ClaimQuest:    command.NewClaimQuestHandler(rt, users, progressRepo, claims, gam.Catalog),
		Admin:         command.NewLessonAdminHandler(users, lessons),
		QuestsEnabled: func() bool { return features.Enabled(config.FeatureQuests) },
		FollowEnabled: func() bool { return features.Enabled(config.FeatureSocialFollow) },
		Health:        health,
		Logger:        log,
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 7. HTTP СЕРВЕР
	// ─────────────────────────────────────────────────────────────────────────
	server := httpapi.NewServer(httpapi.Config{
		Host:           cfg.HTTP.Host,
		Port:           cfg.HTTP.Port,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxBodyBytes:   cfg.HTTP.MaxBodyBytes,
		AllowedOrigins: cfg.HTTP.CORSOrigins,
		ServiceName:    cfg.App.Name,
		Tracing:        cfg.Observability.TracingEnabled,
		Debug:          cfg.App.Debug,
	}, deps)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(server.Start)
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("http shutdown failed", logger.Err(err))
		}
		if err := shutdownTracing(shutdownCtx); err != nil {
			log.Warn("tracing shutdown failed", logger.Err(err))
		}
		if n := dispatcher.DeadLetters().Size(); n > 0 {
			log.Warn("events left in dead-letter queue", logger.Int("count", n))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("featherlingo API stopped")
	return nil
}
