// Package http implements the REST API of the learning service on gin.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/featherlingo/featherlingo-api/internal/application/command"
	"github.com/featherlingo/featherlingo-api/internal/application/query"
	"github.com/featherlingo/featherlingo-api/internal/domain/league"
	"github.com/featherlingo/featherlingo-api/internal/domain/lesson"
	"github.com/featherlingo/featherlingo-api/internal/domain/progress"
	"github.com/featherlingo/featherlingo-api/internal/domain/quest"
	"github.com/featherlingo/featherlingo-api/internal/domain/user"
	"github.com/featherlingo/featherlingo-api/internal/interface/http/handlers"
	"github.com/featherlingo/featherlingo-api/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// SERVER CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config contains HTTP server configuration.
type Config struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// MaxBodyBytes caps request bodies (0 = unlimited).
	MaxBodyBytes int64

	// AllowedOrigins for CORS; empty or ["*"] allows any origin.
	AllowedOrigins []string

	// ServiceName is the span name prefix used by the tracing middleware.
	ServiceName string

	// Tracing enables otelgin spans for every request.
	Tracing bool

	// Debug switches gin to debug mode.
	Debug bool
}

// DefaultConfig returns default server configuration.
func DefaultConfig() Config {
	return Config{
		Host:           "0.0.0.0",
		Port:           8080,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   15 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxBodyBytes:   1 << 20,
		AllowedOrigins: []string{"*"},
		ServiceName:    "featherlingo-api",
	}
}

// Address returns the server address string.
func (c Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES
// Each use case is a narrow interface so handlers can be tested with stubs.
// ══════════════════════════════════════════════════════════════════════════════

type (
	// Registerer creates accounts.
	Registerer interface {
		Handle(ctx context.Context, cmd command.RegisterCommand) (*user.User, error)
	}
	// Authenticator logs users in.
	Authenticator interface {
		Handle(ctx context.Context, cmd command.LoginCommand) (*command.LoginResult, error)
	}
	// Follower manages follow relations.
	Follower interface {
		Follow(ctx context.Context, followerID, followeeID string) error
		Unfollow(ctx context.Context, followerID, followeeID string) error
	}
	// ProfileReader reads the caller profile.
	ProfileReader interface {
		Handle(ctx context.Context, userID string) (*query.ProfileDTO, error)
	}
	// LessonReader reads the lesson catalog.
	LessonReader interface {
		List(ctx context.Context, q query.ListLessonsQuery) ([]query.LessonSummaryDTO, error)
		Get(ctx context.Context, userID, lessonID string) (*query.LessonDetailDTO, error)
	}
	// LessonStarter starts lessons.
	LessonStarter interface {
		Handle(ctx context.Context, userID, lessonID string) (*progress.Progress, error)
	}
	// LessonSubmitter grades submissions.
	LessonSubmitter interface {
		Handle(ctx context.Context, cmd command.SubmitLessonCommand) (*command.SubmitLessonResult, error)
	}
	// ProgressReader reads the progress journal.
	ProgressReader interface {
		List(ctx context.Context, userID string) ([]query.ProgressDTO, error)
		Get(ctx context.Context, userID, lessonID string) (*query.ProgressDTO, error)
	}
	// ProgressResetter deletes a progress record.
	ProgressResetter interface {
		Handle(ctx context.Context, userID, lessonID string) error
	}
	// LeaguePointsAdder adds league points.
	LeaguePointsAdder interface {
		Handle(ctx context.Context, userID string, points int) (league.PointsChange, error)
	}
	// LeaderboardReader serves leaderboard, rank and tiers.
	LeaderboardReader interface {
		Top(ctx context.Context, q query.LeaderboardQuery) (*query.LeaderboardDTO, error)
		Rank(ctx context.Context, userID string) (*query.RankDTO, error)
		Tiers() []query.TierDTO
	}
	// QuestReader evaluates quests.
	QuestReader interface {
		Handle(ctx context.Context, userID string) ([]query.QuestDTO, error)
	}
	// QuestClaimer claims quest rewards.
	QuestClaimer interface {
		Handle(ctx context.Context, userID, questID string) (*quest.Claim, error)
	}
	// LessonAdmin manages lessons.
	LessonAdmin interface {
		Create(ctx context.Context, cmd command.CreateLessonCommand) (*lesson.Lesson, error)
		SetActive(ctx context.Context, actorID, lessonID string, active bool) (*lesson.Lesson, error)
	}
)

// Dependencies contains all dependencies required by HTTP handlers.
type Dependencies struct {
	Tokens TokenVerifier

	Register     Registerer
	Login        Authenticator
	Follow       Follower
	Profile      ProfileReader
	Lessons      LessonReader
	StartLesson  LessonStarter
	SubmitLesson LessonSubmitter
	Progress     ProgressReader
	Reset        ProgressResetter
	LeaguePoints LeaguePointsAdder
	Leaderboard  LeaderboardReader
	Quests       QuestReader
	ClaimQuest   QuestClaimer
	Admin        LessonAdmin

	// Optional feature switches, read on every request. nil means enabled.
	QuestsEnabled func() bool
	FollowEnabled func() bool

	Health handlers.HealthChecker
	Logger *logger.Logger
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVER
// ══════════════════════════════════════════════════════════════════════════════

// Server represents the HTTP server.
type Server struct {
	config     Config
	deps       Dependencies
	engine     *gin.Engine
	httpServer *http.Server
	logger     *logger.Logger

	mu        sync.RWMutex
	running   bool
	startedAt time.Time
}

// NewServer creates a new HTTP server with the given configuration and dependencies.
func NewServer(config Config, deps Dependencies) *Server {
	if deps.Logger == nil {
		deps.Logger = logger.Default()
	}
	if deps.Health == nil {
		deps.Health = handlers.NewNoopHealthChecker()
	}
	if config.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		config: config,
		deps:   deps,
		engine: gin.New(),
		logger: deps.Logger.WithComponent("http"),
	}
	s.setupMiddleware()
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         config.Address(),
		Handler:      s.engine,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) setupMiddleware() {
	s.engine.Use(requestIDMiddleware(s.logger))
	s.engine.Use(recoveryMiddleware())
	s.engine.Use(loggingMiddleware())
	if s.config.Tracing {
		s.engine.Use(otelgin.Middleware(s.config.ServiceName))
	}
	s.engine.Use(corsMiddleware(s.config.AllowedOrigins))
	s.engine.Use(bodyLimitMiddleware(s.config.MaxBodyBytes))

	s.engine.NoRoute(func(c *gin.Context) {
		fail(c, http.StatusNotFound, CodeNotFound, "route not found", c.Request.URL.Path)
	})
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	// ─────────────────────────────────────────────────────────────────────────
	// Health
	// ─────────────────────────────────────────────────────────────────────────
	health := handlers.NewHealthHandler(s.deps.Health)
	s.engine.GET("/health", health.Health)
	s.engine.GET("/ready", health.Ready)
	s.engine.GET("/live", health.Live)

	v1 := s.engine.Group("/api/v1")

	// ─────────────────────────────────────────────────────────────────────────
	// Public
	// ─────────────────────────────────────────────────────────────────────────
	v1.POST("/auth/register", s.handleRegister)
	v1.POST("/auth/login", s.handleLogin)

	// ─────────────────────────────────────────────────────────────────────────
	// Authenticated
	// ─────────────────────────────────────────────────────────────────────────
	api := v1.Group("")
	api.Use(authMiddleware(s.deps.Tokens))

	api.GET("/users/me", s.handleMe)
	follow := api.Group("/users/:id/follow", featureGate(s.deps.FollowEnabled))
	follow.POST("", s.handleFollow)
	follow.DELETE("", s.handleUnfollow)

	api.GET("/lessons", s.handleListLessons)
	api.GET("/lessons/:id", s.handleGetLesson)
	api.POST("/lessons/:id/start", s.handleStartLesson)
	api.POST("/lessons/:id/submit", s.handleSubmitLesson)

	api.GET("/progress", s.handleListProgress)
	api.GET("/progress/:lessonId", s.handleGetProgress)
	api.DELETE("/progress/:lessonId", s.handleResetProgress)

	api.POST("/league/points", s.handleAddLeaguePoints)
	api.GET("/league/tiers", s.handleTiers)
	api.GET("/league/leaderboard", s.handleLeaderboard)
	api.GET("/league/rank", s.handleRank)

	quests := api.Group("/quests", featureGate(s.deps.QuestsEnabled))
	quests.GET("", s.handleListQuests)
	quests.POST("/:id/claim", s.handleClaimQuest)

	admin := api.Group("/admin")
	admin.POST("/lessons", s.handleCreateLesson)
	admin.PATCH("/lessons/:id/active", s.handleSetLessonActive)
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVER LIFECYCLE
// ══════════════════════════════════════════════════════════════════════════════

// Start listens until Shutdown is called.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server already running")
	}
	s.running = true
	s.startedAt = time.Now()
	s.mu.Unlock()

	s.logger.Info("starting HTTP server", logger.String("address", s.config.Address()))

	err := s.httpServer.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// Uptime returns the server uptime.
func (s *Server) Uptime() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.running {
		return 0
	}
	return time.Since(s.startedAt)
}
