package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/featherlingo/featherlingo-api/internal/domain/lesson"
	"github.com/featherlingo/featherlingo-api/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LESSON REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// LessonRepository implements lesson.Repository for PostgreSQL.
// Exercises are stored as a JSONB array, indexed positionally by progress.
type LessonRepository struct {
	conn *Connection
}

// NewLessonRepository creates a new LessonRepository.
func NewLessonRepository(conn *Connection) *LessonRepository {
	return &LessonRepository{conn: conn}
}

const lessonColumns = `
	id, title, description, language, unit, lesson_order, difficulty, exercises,
	reward_xp, reward_feathers, prerequisites, is_active, created_at, updated_at`

// GetByID returns a lesson by ID.
func (r *LessonRepository) GetByID(ctx context.Context, id string) (*lesson.Lesson, error) {
	query := `SELECT ` + lessonColumns + ` FROM lessons WHERE id = $1`
	return r.scanLesson(r.conn.QueryRow(ctx, query, id))
}

// List returns lessons ordered by unit and position.
func (r *LessonRepository) List(ctx context.Context, filter lesson.ListFilter) ([]*lesson.Lesson, error) {
	var (
		conds []string
		args  []any
	)
	if filter.Language != "" {
		args = append(args, string(filter.Language))
		conds = append(conds, fmt.Sprintf("language = $%d", len(args)))
	}
	if filter.ActiveOnly {
		conds = append(conds, "is_active")
	}

	query := `SELECT ` + lessonColumns + ` FROM lessons`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	args = append(args, filter.Pagination.Limit(), filter.Pagination.Offset())
	query += fmt.Sprintf(` ORDER BY unit, lesson_order, id LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list lessons: %w", err)
	}
	defer rows.Close()

	var lessons []*lesson.Lesson
	for rows.Next() {
		l, err := r.scanLesson(rows)
		if err != nil {
			return nil, err
		}
		lessons = append(lessons, l)
	}

	return lessons, rows.Err()
}

// Create inserts a new lesson.
func (r *LessonRepository) Create(ctx context.Context, l *lesson.Lesson) error {
	query := `
		INSERT INTO lessons (` + lessonColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	args, err := lessonArgs(l)
	if err != nil {
		return err
	}

	if _, err := r.conn.Exec(ctx, query, args...); err != nil {
		if IsUniqueViolation(err) {
			return shared.Detail(shared.ErrLessonAlreadyExists, "lesson %q already exists", l.ID)
		}
		return fmt.Errorf("failed to create lesson: %w", err)
	}
	return nil
}

// Upsert inserts a lesson or replaces its content, keeping created_at.
func (r *LessonRepository) Upsert(ctx context.Context, l *lesson.Lesson) error {
	query := `
		INSERT INTO lessons (` + lessonColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			language = EXCLUDED.language,
			unit = EXCLUDED.unit,
			lesson_order = EXCLUDED.lesson_order,
			difficulty = EXCLUDED.difficulty,
			exercises = EXCLUDED.exercises,
			reward_xp = EXCLUDED.reward_xp,
			reward_feathers = EXCLUDED.reward_feathers,
			prerequisites = EXCLUDED.prerequisites,
			is_active = EXCLUDED.is_active,
			updated_at = EXCLUDED.updated_at
	`
	args, err := lessonArgs(l)
	if err != nil {
		return err
	}

	if _, err := r.conn.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to upsert lesson: %w", err)
	}
	return nil
}

// SetActive toggles lesson visibility.
func (r *LessonRepository) SetActive(ctx context.Context, id string, active bool) error {
	result, err := r.conn.Exec(ctx,
		`UPDATE lessons SET is_active = $1, updated_at = $2 WHERE id = $3`,
		active, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update lesson: %w", err)
	}
	if result.RowsAffected() == 0 {
		return shared.ErrLessonNotFound
	}
	return nil
}

func lessonArgs(l *lesson.Lesson) ([]any, error) {
	exercises, err := json.Marshal(l.Exercises)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal exercises: %w", err)
	}
	prereqs := l.Prerequisites
	if prereqs == nil {
		prereqs = []string{}
	}
	return []any{
		l.ID,
		l.Title,
		l.Description,
		string(l.Language),
		l.Unit,
		l.Order,
		string(l.Difficulty),
		exercises,
		l.Reward.XP,
		l.Reward.Feathers,
		prereqs,
		l.IsActive,
		l.CreatedAt,
		l.UpdatedAt,
	}, nil
}

func (r *LessonRepository) scanLesson(row pgx.Row) (*lesson.Lesson, error) {
	var (
		l                    lesson.Lesson
		language, difficulty string
		exercises            []byte
	)

	err := row.Scan(
		&l.ID,
		&l.Title,
		&l.Description,
		&language,
		&l.Unit,
		&l.Order,
		&difficulty,
		&exercises,
		&l.Reward.XP,
		&l.Reward.Feathers,
		&l.Prerequisites,
		&l.IsActive,
		&l.CreatedAt,
		&l.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrLessonNotFound
		}
		return nil, fmt.Errorf("failed to scan lesson: %w", err)
	}

	if err := json.Unmarshal(exercises, &l.Exercises); err != nil {
		return nil, fmt.Errorf("failed to unmarshal exercises of %s: %w", l.ID, err)
	}
	l.Language = shared.Language(language)
	l.Difficulty = lesson.Difficulty(difficulty)

	return &l, nil
}
