package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/featherlingo/featherlingo-api/config"
	"github.com/featherlingo/featherlingo-api/internal/bootstrap"
	"github.com/featherlingo/featherlingo-api/internal/infrastructure/importer"
	"github.com/featherlingo/featherlingo-api/internal/infrastructure/persistence/postgres"
	"github.com/featherlingo/featherlingo-api/internal/infrastructure/persistence/redis"
	"github.com/featherlingo/featherlingo-api/internal/infrastructure/scheduler/jobs"
)

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATIONS
// ══════════════════════════════════════════════════════════════════════════════

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the database schema",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE: func(cmd *cobra.Command, _ []string) error {
		e, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		n, err := postgres.NewMigrator(e.conn).Migrate(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "applied %d migration(s)\n", n)
		return nil
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the latest migration",
	RunE: func(cmd *cobra.Command, _ []string) error {
		e, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		version, err := postgres.NewMigrator(e.conn).Rollback(cmd.Context())
		if err != nil {
			return err
		}
		if version == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "nothing to roll back")
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "rolled back migration %d\n", version)
		return nil
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "List migrations and whether they are applied",
	RunE: func(cmd *cobra.Command, _ []string) error {
		e, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		list, err := postgres.NewMigrator(e.conn).Status(cmd.Context())
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "VERSION\tNAME\tAPPLIED")
		for _, m := range list {
			applied := "pending"
			if m.IsApplied {
				applied = m.AppliedAt.Format("2006-01-02 15:04:05")
			}
			fmt.Fprintf(w, "%d\t%s\t%s\n", m.Version, m.Name, applied)
		}
		return w.Flush()
	},
}

// ══════════════════════════════════════════════════════════════════════════════
// LESSON IMPORT
// ══════════════════════════════════════════════════════════════════════════════

var importLessonsCmd = &cobra.Command{
	Use:   "import-lessons <file.xlsx>",
	Short: "Import lessons from an XLSX workbook, one exercise per row",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sheet, _ := cmd.Flags().GetString("sheet")
		activate, _ := cmd.Flags().GetBool("activate")
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		var writer importer.LessonWriter
		if !dryRun {
			e, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()
			writer = postgres.NewLessonRepository(e.conn)
		}

		res, err := importer.New(writer).ImportFile(cmd.Context(), args[0], importer.ImportConfig{
			SheetName: sheet,
			Activate:  activate,
			DryRun:    dryRun,
		})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "rows: %d, lessons: %d, written: %d\n", res.RowsProcessed, res.Lessons, res.Written)
		for _, msg := range res.Errors {
			fmt.Fprintf(out, "  error: %s\n", msg)
		}
		if len(res.Errors) > 0 {
			return fmt.Errorf("%d row(s) failed", len(res.Errors))
		}
		return nil
	},
}

// ══════════════════════════════════════════════════════════════════════════════
// CONFIG CHECK
// ══════════════════════════════════════════════════════════════════════════════

var validateConfigCmd = &cobra.Command{
	Use:   "validate-config",
	Short: "Validate environment, league ladder and quest catalog",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		gam, err := cfg.Gamification.Load()
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "LEAGUE\tMIN\tMAX")
		for _, t := range gam.Ladder.Tiers() {
			upper := "open"
			if t.MaxPoints > 0 {
				upper = fmt.Sprint(t.MaxPoints)
			}
			fmt.Fprintf(w, "%s\t%d\t%s\n", t.Name, t.MinPoints, upper)
		}
		fmt.Fprintln(w)
		fmt.Fprintln(w, "QUEST\tKIND\tMETRIC\tTARGET")
		for _, q := range gam.Catalog.All() {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", q.ID, q.Kind, q.Metric, q.Target)
		}
		if err := w.Flush(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "\nconfiguration OK (%s, timezone %s)\n", cfg.App.Environment, cfg.App.Timezone)
		return nil
	},
}

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD
// ══════════════════════════════════════════════════════════════════════════════

var rebuildLeaderboardCmd = &cobra.Command{
	Use:   "rebuild-leaderboard",
	Short: "Rebuild the Redis leaderboard cache from PostgreSQL once",
	RunE: func(cmd *cobra.Command, _ []string) error {
		e, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		cache, err := bootstrap.ConnectRedis(cmd.Context(), e.cfg.Redis, e.log)
		if err != nil {
			return err
		}
		defer cache.Close()

		job := jobs.NewRebuildLeaderboardJob(
			postgres.NewLeaderboardRepository(e.conn),
			redis.NewLeaderboardCache(cache),
			bootstrap.RedisLocker(cache, "admin-cli"),
			jobs.RebuildLeaderboardConfig{BatchSize: e.cfg.Worker.RebuildBatchSize},
		)
		if err := job.Run(cmd.Context()); err != nil {
			return err
		}
		if st := job.LastStats(); st != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "rebuilt %d entries across %d leagues in %s\n", st.Entries, st.Leagues, st.Duration)
		} else {
			fmt.Fprintln(cmd.ErrOrStderr(), "another process holds the rebuild lock, nothing done")
		}
		return nil
	},
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateStatusCmd)

	importLessonsCmd.Flags().String("sheet", "", "sheet name (default: first sheet)")
	importLessonsCmd.Flags().Bool("activate", false, "mark imported lessons active")
	importLessonsCmd.Flags().Bool("dry-run", false, "validate the workbook without writing")
}
