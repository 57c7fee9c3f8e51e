// Package main - консольная утилита администратора FeatherLingo:
// миграции, импорт уроков из XLSX, проверка конфигурации и ручная
// пересборка кеша таблицы лидеров.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/featherlingo/featherlingo-api/config"
	"github.com/featherlingo/featherlingo-api/internal/bootstrap"
	"github.com/featherlingo/featherlingo-api/internal/infrastructure/persistence/postgres"
	"github.com/featherlingo/featherlingo-api/pkg/logger"
	"github.com/featherlingo/featherlingo-api/pkg/timeutil"
)

var rootCmd = &cobra.Command{
	Use:           "featherlingo-admin",
	Short:         "Administrative tasks for the FeatherLingo API",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(importLessonsCmd)
	rootCmd.AddCommand(validateConfigCmd)
	rootCmd.AddCommand(rebuildLeaderboardCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// env - окружение одной команды: конфигурация, логгер и соединение с БД.
type env struct {
	cfg  *config.Config
	log  *logger.Logger
	conn *postgres.Connection
}

func (e *env) Close() {
	if e.conn != nil {
		e.conn.Close()
	}
	e.log.Sync()
}

// setup загружает конфигурацию и подключается к PostgreSQL.
func setup(ctx context.Context) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	timeutil.SetLocation(cfg.App.Location)

	log := bootstrap.NewLogger(cfg).WithComponent("admin")
	conn, err := bootstrap.ConnectPostgres(ctx, cfg.Database, log)
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, log: log, conn: conn}, nil
}
