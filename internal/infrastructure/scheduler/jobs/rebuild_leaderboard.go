// Package jobs contains the periodic jobs run by the worker.
package jobs

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/featherlingo/featherlingo-api/internal/domain/league"
	"github.com/featherlingo/featherlingo-api/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// REBUILD LEADERBOARD JOB
// ══════════════════════════════════════════════════════════════════════════════

// RebuildLeaderboardName is the job name and the lock resource.
const RebuildLeaderboardName = "leaderboard-rebuild"

// EntrySource pages through every user as a leaderboard entry.
type EntrySource interface {
	Entries(ctx context.Context, offset, limit int) ([]league.Entry, error)
}

// BoardRebuilder atomically replaces the cached leaderboards.
type BoardRebuilder interface {
	Rebuild(ctx context.Context, entries []league.Entry) error
}

// Locker takes a cluster-wide lock. acquired is false when another
// worker holds it; release is only set when acquired.
type Locker func(ctx context.Context, resource string, ttl time.Duration) (release func(context.Context) error, acquired bool, err error)

// RebuildLeaderboardConfig configures the job.
type RebuildLeaderboardConfig struct {
	// BatchSize is the page size used when reading users.
	BatchSize int

	// LockTTL must outlive a full rebuild.
	LockTTL time.Duration
}

// DefaultRebuildLeaderboardConfig returns sensible defaults.
func DefaultRebuildLeaderboardConfig() RebuildLeaderboardConfig {
	return RebuildLeaderboardConfig{
		BatchSize: 500,
		LockTTL:   5 * time.Minute,
	}
}

// RebuildStats describes the last completed rebuild.
type RebuildStats struct {
	Entries   int
	Leagues   int
	Duration  time.Duration
	Completed time.Time
}

// RebuildLeaderboardJob recomputes the Redis leaderboards from PostgreSQL.
// The cache is only a projection of the users table, so a periodic
// rebuild repairs any drift left by lost events.
type RebuildLeaderboardJob struct {
	source EntrySource
	cache  BoardRebuilder
	lock   Locker
	config RebuildLeaderboardConfig

	last atomic.Pointer[RebuildStats]
}

// NewRebuildLeaderboardJob creates the job. lock may be nil for a single worker.
func NewRebuildLeaderboardJob(source EntrySource, cache BoardRebuilder, lock Locker, cfg RebuildLeaderboardConfig) *RebuildLeaderboardJob {
	def := DefaultRebuildLeaderboardConfig()
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = def.LockTTL
	}
	return &RebuildLeaderboardJob{source: source, cache: cache, lock: lock, config: cfg}
}

// Name returns the job name.
func (j *RebuildLeaderboardJob) Name() string {
	return RebuildLeaderboardName
}

// LastStats returns the stats of the last successful run, or nil.
func (j *RebuildLeaderboardJob) LastStats() *RebuildStats {
	return j.last.Load()
}

// Run rebuilds the cache unless another worker already holds the lock.
func (j *RebuildLeaderboardJob) Run(ctx context.Context) error {
	log := logger.FromContext(ctx)

	if j.lock != nil {
		release, acquired, err := j.lock(ctx, RebuildLeaderboardName, j.config.LockTTL)
		if err != nil {
			return fmt.Errorf("rebuild leaderboard: lock: %w", err)
		}
		if !acquired {
			log.Info("leaderboard rebuild skipped, lock held elsewhere")
			return nil
		}
		defer func() {
			// Release with a fresh context so a timed-out run still unlocks.
			relCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := release(relCtx); err != nil {
				log.Warn("failed to release rebuild lock", logger.Err(err))
			}
		}()
	}

	start := time.Now()
	entries, err := j.collect(ctx)
	if err != nil {
		return err
	}
	if err := j.cache.Rebuild(ctx, entries); err != nil {
		return fmt.Errorf("rebuild leaderboard: write cache: %w", err)
	}

	leagues := make(map[string]struct{})
	for _, e := range entries {
		leagues[e.League] = struct{}{}
	}
	stats := &RebuildStats{
		Entries:   len(entries),
		Leagues:   len(leagues),
		Duration:  time.Since(start),
		Completed: time.Now(),
	}
	j.last.Store(stats)

	log.Info("leaderboard rebuilt",
		logger.Int("entries", stats.Entries),
		logger.Int("leagues", stats.Leagues),
		logger.Latency(stats.Duration),
	)
	return nil
}

func (j *RebuildLeaderboardJob) collect(ctx context.Context) ([]league.Entry, error) {
	var all []league.Entry
	for offset := 0; ; offset += j.config.BatchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page, err := j.source.Entries(ctx, offset, j.config.BatchSize)
		if err != nil {
			return nil, fmt.Errorf("rebuild leaderboard: read page at %d: %w", offset, err)
		}
		all = append(all, page...)
		if len(page) < j.config.BatchSize {
			return all, nil
		}
	}
}
