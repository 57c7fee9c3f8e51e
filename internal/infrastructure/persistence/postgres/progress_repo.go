package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/featherlingo/featherlingo-api/internal/domain/progress"
	"github.com/featherlingo/featherlingo-api/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// ProgressRepository implements progress.Repository for PostgreSQL.
type ProgressRepository struct {
	conn *Connection
}

// NewProgressRepository creates a new ProgressRepository.
func NewProgressRepository(conn *Connection) *ProgressRepository {
	return &ProgressRepository{conn: conn}
}

const progressColumns = `
	id, user_id, lesson_id, status, score, best_score, attempts, results,
	time_spent, xp_earned, started_at, completed_at, version, created_at, updated_at`

// ─────────────────────────────────────────────────────────────────────────────
// CRUD Operations
// ─────────────────────────────────────────────────────────────────────────────

// Get returns progress of a user on a lesson.
func (r *ProgressRepository) Get(ctx context.Context, userID, lessonID string) (*progress.Progress, error) {
	query := `SELECT ` + progressColumns + ` FROM progress WHERE user_id = $1 AND lesson_id = $2`
	return r.scanProgress(r.conn.QueryRow(ctx, query, userID, lessonID))
}

// GetForUpdate returns progress and locks the row until the transaction ends.
func (r *ProgressRepository) GetForUpdate(ctx context.Context, userID, lessonID string) (*progress.Progress, error) {
	query := `SELECT ` + progressColumns + ` FROM progress WHERE user_id = $1 AND lesson_id = $2 FOR UPDATE`
	return r.scanProgress(r.conn.QueryRow(ctx, query, userID, lessonID))
}

// Create inserts a progress record. The (user_id, lesson_id) pair is unique.
func (r *ProgressRepository) Create(ctx context.Context, p *progress.Progress) error {
	query := `
		INSERT INTO progress (` + progressColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	results, err := marshalResults(p.Results)
	if err != nil {
		return err
	}

	_, err = r.conn.Exec(ctx, query,
		p.ID,
		p.UserID,
		p.LessonID,
		string(p.Status),
		p.Score,
		p.BestScore,
		p.Attempts,
		results,
		p.TimeSpent,
		p.XPEarned,
		p.StartedAt,
		p.CompletedAt,
		p.Version,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		// A parallel request created the row first; retrying re-reads it.
		if IsUniqueViolation(err) {
			return shared.WrapError("progress", "Create", shared.ErrConcurrentModification, "progress created concurrently", err)
		}
		if IsForeignKeyViolation(err) {
			return shared.ErrLessonNotFound
		}
		return fmt.Errorf("failed to create progress: %w", err)
	}

	return nil
}

// Update saves progress if its version is unchanged and bumps the version.
func (r *ProgressRepository) Update(ctx context.Context, p *progress.Progress) error {
	query := `
		UPDATE progress SET
			status = $1,
			score = $2,
			best_score = $3,
			attempts = $4,
			results = $5,
			time_spent = $6,
			xp_earned = $7,
			started_at = $8,
			completed_at = $9,
			version = version + 1,
			updated_at = $10
		WHERE id = $11 AND version = $12
	`
	results, err := marshalResults(p.Results)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	tag, err := r.conn.Exec(ctx, query,
		string(p.Status),
		p.Score,
		p.BestScore,
		p.Attempts,
		results,
		p.TimeSpent,
		p.XPEarned,
		p.StartedAt,
		p.CompletedAt,
		now,
		p.ID,
		p.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update progress: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.WrapError("progress", "Update", shared.ErrConcurrentModification,
			"progress was modified concurrently", nil)
	}

	p.Version++
	p.UpdatedAt = now
	return nil
}

// Delete removes the progress record.
func (r *ProgressRepository) Delete(ctx context.Context, userID, lessonID string) error {
	tag, err := r.conn.Exec(ctx,
		`DELETE FROM progress WHERE user_id = $1 AND lesson_id = $2`, userID, lessonID)
	if err != nil {
		return fmt.Errorf("failed to delete progress: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrProgressNotFound
	}
	return nil
}

// MarkRewarded records the first reward for a lesson. The row outlives
// Delete, so a reset lesson is not paid out again.
func (r *ProgressRepository) MarkRewarded(ctx context.Context, userID, lessonID string, at time.Time) (bool, error) {
	tag, err := r.conn.Exec(ctx, `
		INSERT INTO lesson_rewards (user_id, lesson_id, rewarded_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, lesson_id) DO NOTHING
	`, userID, lessonID, at)
	if err != nil {
		return false, fmt.Errorf("failed to mark lesson rewarded: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Queries
// ─────────────────────────────────────────────────────────────────────────────

// ListByUser returns all progress records of a user, most recent first.
func (r *ProgressRepository) ListByUser(ctx context.Context, userID string) ([]*progress.Progress, error) {
	query := `SELECT ` + progressColumns + ` FROM progress WHERE user_id = $1 ORDER BY updated_at DESC`

	rows, err := r.conn.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list progress: %w", err)
	}
	defer rows.Close()

	var list []*progress.Progress
	for rows.Next() {
		p, err := r.scanProgress(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, p)
	}

	return list, rows.Err()
}

// CompletedLessonIDs returns the set of lessons the user has completed.
func (r *ProgressRepository) CompletedLessonIDs(ctx context.Context, userID string) (map[string]bool, error) {
	rows, err := r.conn.Query(ctx,
		`SELECT lesson_id FROM progress WHERE user_id = $1 AND status = 'completed'`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query completed lessons: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan completed lessons: %w", err)
	}

	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set, nil
}

// CompletionStats counts completions since the given moment.
// A zero since counts all completions.
func (r *ProgressRepository) CompletionStats(ctx context.Context, userID string, since time.Time) (progress.CompletionStats, error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE score = 100)
		FROM progress
		WHERE user_id = $1 AND status = 'completed' AND completed_at >= $2
	`

	var stats progress.CompletionStats
	if err := r.conn.QueryRow(ctx, query, userID, since).Scan(&stats.Completed, &stats.Perfect); err != nil {
		return progress.CompletionStats{}, fmt.Errorf("failed to count completions: %w", err)
	}
	return stats, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Scanning
// ─────────────────────────────────────────────────────────────────────────────

func marshalResults(results []progress.ExerciseResult) ([]byte, error) {
	if results == nil {
		results = []progress.ExerciseResult{}
	}
	raw, err := json.Marshal(results)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal results: %w", err)
	}
	return raw, nil
}

func (r *ProgressRepository) scanProgress(row pgx.Row) (*progress.Progress, error) {
	var (
		p       progress.Progress
		status  string
		results []byte
	)

	err := row.Scan(
		&p.ID,
		&p.UserID,
		&p.LessonID,
		&status,
		&p.Score,
		&p.BestScore,
		&p.Attempts,
		&results,
		&p.TimeSpent,
		&p.XPEarned,
		&p.StartedAt,
		&p.CompletedAt,
		&p.Version,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrProgressNotFound
		}
		return nil, fmt.Errorf("failed to scan progress: %w", err)
	}

	if err := json.Unmarshal(results, &p.Results); err != nil {
		return nil, fmt.Errorf("failed to unmarshal results: %w", err)
	}
	p.Status = progress.Status(status)

	return &p, nil
}
