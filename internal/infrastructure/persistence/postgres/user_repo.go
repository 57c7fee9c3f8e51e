package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/featherlingo/featherlingo-api/internal/domain/league"
	"github.com/featherlingo/featherlingo-api/internal/domain/shared"
	"github.com/featherlingo/featherlingo-api/internal/domain/user"
)

// ══════════════════════════════════════════════════════════════════════════════
// USER REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// UserRepository implements user.Repository for PostgreSQL.
type UserRepository struct {
	conn *Connection
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(conn *Connection) *UserRepository {
	return &UserRepository{conn: conn}
}

const userColumns = `
	id, username, email, password_hash, display_name, native_language, learning_language, role,
	xp, feathers, streak_count, streak_level, streak_freezes, streak_goal, last_lesson_date,
	league, league_points, league_week, followers_count, following_count,
	version, created_at, updated_at`

// ─────────────────────────────────────────────────────────────────────────────
// CRUD Operations
// ─────────────────────────────────────────────────────────────────────────────

// Create creates a new user.
func (r *UserRepository) Create(ctx context.Context, u *user.User) error {
	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
		        $16, $17, $18, $19, $20, $21, $22, $23)
	`

	_, err := r.conn.Exec(ctx, query,
		u.ID,
		u.Username,
		u.Email,
		u.PasswordHash,
		u.DisplayName,
		string(u.NativeLanguage),
		string(u.LearningLanguage),
		string(u.Role),
		u.XP.Int(),
		u.Feathers,
		u.Streak.Count,
		u.Streak.Level,
		u.Streak.Freezes,
		u.Streak.Goal,
		u.Streak.LastLessonDate,
		u.League.League,
		u.League.Points,
		u.League.Week,
		u.FollowersCount,
		u.FollowingCount,
		u.Version,
		u.CreatedAt,
		u.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrUserAlreadyExists
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// GetByID returns a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*user.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.scanUser(r.conn.QueryRow(ctx, query, id))
}

// GetByIDForUpdate returns a user and locks the row until the transaction ends.
func (r *UserRepository) GetByIDForUpdate(ctx context.Context, id string) (*user.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 FOR UPDATE`
	return r.scanUser(r.conn.QueryRow(ctx, query, id))
}

// GetByLogin returns a user by username or email.
func (r *UserRepository) GetByLogin(ctx context.Context, login string) (*user.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1 OR email = LOWER($1)`
	return r.scanUser(r.conn.QueryRow(ctx, query, strings.TrimSpace(login)))
}

// Update saves the aggregate if its version is unchanged and bumps the version.
func (r *UserRepository) Update(ctx context.Context, u *user.User) error {
	query := `
		UPDATE users SET
			display_name = $1,
			native_language = $2,
			learning_language = $3,
			role = $4,
			xp = $5,
			feathers = $6,
			streak_count = $7,
			streak_level = $8,
			streak_freezes = $9,
			streak_goal = $10,
			last_lesson_date = $11,
			league = $12,
			league_points = $13,
			league_week = $14,
			followers_count = $15,
			following_count = $16,
			version = version + 1,
			updated_at = $17
		WHERE id = $18 AND version = $19
	`

	now := time.Now().UTC()
	result, err := r.conn.Exec(ctx, query,
		u.DisplayName,
		string(u.NativeLanguage),
		string(u.LearningLanguage),
		string(u.Role),
		u.XP.Int(),
		u.Feathers,
		u.Streak.Count,
		u.Streak.Level,
		u.Streak.Freezes,
		u.Streak.Goal,
		u.Streak.LastLessonDate,
		u.League.League,
		u.League.Points,
		u.League.Week,
		u.FollowersCount,
		u.FollowingCount,
		now,
		u.ID,
		u.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}

	if result.RowsAffected() == 0 {
		return r.missingOrStale(ctx, u.ID)
	}

	u.Version++
	u.UpdatedAt = now
	return nil
}

// missingOrStale distinguishes a deleted row from a version conflict.
func (r *UserRepository) missingOrStale(ctx context.Context, id string) error {
	var exists bool
	if err := r.conn.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check user: %w", err)
	}
	if !exists {
		return shared.ErrUserNotFound
	}
	return shared.WrapError("user", "Update", shared.ErrConcurrentModification, "user was modified concurrently", nil)
}

// ListAll returns users ordered by ID, used to rebuild the leaderboard cache.
func (r *UserRepository) ListAll(ctx context.Context, offset, limit int) ([]*user.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY id LIMIT $1 OFFSET $2`

	rows, err := r.conn.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*user.User
	for rows.Next() {
		u, err := r.scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}

	return users, rows.Err()
}

// ─────────────────────────────────────────────────────────────────────────────
// Scanning
// ─────────────────────────────────────────────────────────────────────────────

func (r *UserRepository) scanUser(row pgx.Row) (*user.User, error) {
	var (
		u                      user.User
		native, learning, role string
		xp                     int
		standing               league.Standing
	)

	err := row.Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.PasswordHash,
		&u.DisplayName,
		&native,
		&learning,
		&role,
		&xp,
		&u.Feathers,
		&u.Streak.Count,
		&u.Streak.Level,
		&u.Streak.Freezes,
		&u.Streak.Goal,
		&u.Streak.LastLessonDate,
		&standing.League,
		&standing.Points,
		&standing.Week,
		&u.FollowersCount,
		&u.FollowingCount,
		&u.Version,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}

	u.NativeLanguage = shared.Language(native)
	u.LearningLanguage = shared.Language(learning)
	u.Role = user.Role(role)
	u.XP = shared.XP(xp)
	u.League = standing

	return &u, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// FOLLOW REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// FollowRepository implements user.FollowRepository for PostgreSQL.
// Counters on users are maintained in the same statement batch.
type FollowRepository struct {
	conn *Connection
}

// NewFollowRepository creates a new FollowRepository.
func NewFollowRepository(conn *Connection) *FollowRepository {
	return &FollowRepository{conn: conn}
}

// Follow creates a follow edge and bumps both counters.
func (r *FollowRepository) Follow(ctx context.Context, followerID, followeeID string) error {
	if followerID == followeeID {
		return shared.ErrSelfFollow
	}

	return r.conn.RunInTx(ctx, func(ctx context.Context) error {
		_, err := r.conn.Exec(ctx,
			`INSERT INTO follows (follower_id, followee_id) VALUES ($1, $2)`,
			followerID, followeeID)
		if err != nil {
			if IsUniqueViolation(err) {
				return shared.ErrAlreadyFollowing
			}
			if IsForeignKeyViolation(err) {
				return shared.ErrUserNotFound
			}
			return fmt.Errorf("failed to follow: %w", err)
		}
		return r.adjustCounters(ctx, followerID, followeeID, 1)
	})
}

// Unfollow removes a follow edge and decrements both counters.
func (r *FollowRepository) Unfollow(ctx context.Context, followerID, followeeID string) error {
	return r.conn.RunInTx(ctx, func(ctx context.Context) error {
		result, err := r.conn.Exec(ctx,
			`DELETE FROM follows WHERE follower_id = $1 AND followee_id = $2`,
			followerID, followeeID)
		if err != nil {
			return fmt.Errorf("failed to unfollow: %w", err)
		}
		if result.RowsAffected() == 0 {
			return shared.ErrNotFollowing
		}
		return r.adjustCounters(ctx, followerID, followeeID, -1)
	})
}

func (r *FollowRepository) adjustCounters(ctx context.Context, followerID, followeeID string, delta int) error {
	if _, err := r.conn.Exec(ctx,
		`UPDATE users SET following_count = following_count + $1, version = version + 1 WHERE id = $2`,
		delta, followerID); err != nil {
		return fmt.Errorf("failed to update following count: %w", err)
	}
	if _, err := r.conn.Exec(ctx,
		`UPDATE users SET followers_count = followers_count + $1, version = version + 1 WHERE id = $2`,
		delta, followeeID); err != nil {
		return fmt.Errorf("failed to update followers count: %w", err)
	}
	return nil
}

// Followers returns IDs of users following userID.
func (r *FollowRepository) Followers(ctx context.Context, userID string) ([]string, error) {
	return r.ids(ctx, `SELECT follower_id FROM follows WHERE followee_id = $1 ORDER BY created_at DESC`, userID)
}

// Following returns IDs of users userID follows.
func (r *FollowRepository) Following(ctx context.Context, userID string) ([]string, error) {
	return r.ids(ctx, `SELECT followee_id FROM follows WHERE follower_id = $1 ORDER BY created_at DESC`, userID)
}

func (r *FollowRepository) ids(ctx context.Context, query, userID string) ([]string, error) {
	rows, err := r.conn.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query follows: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan follows: %w", err)
	}
	return ids, nil
}
