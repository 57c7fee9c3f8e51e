package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/featherlingo/featherlingo-api/internal/domain/league"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// LeaderboardRepository implements league.LeaderboardReader straight from the
// users table. It is the source of truth the Redis cache is rebuilt from.
type LeaderboardRepository struct {
	conn *Connection
}

// NewLeaderboardRepository creates a new LeaderboardRepository.
func NewLeaderboardRepository(conn *Connection) *LeaderboardRepository {
	return &LeaderboardRepository{conn: conn}
}

// Top returns the first limit users ordered by league points then XP.
// Equal (points, xp) pairs share a rank.
func (r *LeaderboardRepository) Top(ctx context.Context, leagueName string, limit int) ([]league.Entry, error) {
	query := `
		SELECT id, username, display_name, league, league_points, xp,
		       RANK() OVER (ORDER BY league_points DESC, xp DESC) AS rank
		FROM users
		WHERE ($1 = '' OR league = $1)
		ORDER BY league_points DESC, xp DESC, id
		LIMIT $2
	`

	rows, err := r.conn.Query(ctx, query, leagueName, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard: %w", err)
	}
	return r.scanEntries(rows)
}

// CountAhead counts users strictly ahead of entry.
func (r *LeaderboardRepository) CountAhead(ctx context.Context, leagueName string, entry league.Entry) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM users
		WHERE ($1 = '' OR league = $1)
		  AND (league_points > $2 OR (league_points = $2 AND xp > $3))
	`

	var n int
	if err := r.conn.QueryRow(ctx, query, leagueName, entry.Points, entry.XP).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count users ahead: %w", err)
	}
	return n, nil
}

// Entries pages through every user as a leaderboard entry, used by cache rebuilds.
func (r *LeaderboardRepository) Entries(ctx context.Context, offset, limit int) ([]league.Entry, error) {
	query := `
		SELECT id, username, display_name, league, league_points, xp, 0 AS rank
		FROM users
		ORDER BY id
		LIMIT $1 OFFSET $2
	`

	rows, err := r.conn.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to page leaderboard entries: %w", err)
	}
	return r.scanEntries(rows)
}

func (r *LeaderboardRepository) scanEntries(rows pgx.Rows) ([]league.Entry, error) {
	defer rows.Close()

	var entries []league.Entry
	for rows.Next() {
		var (
			e    league.Entry
			rank int64
		)
		if err := rows.Scan(&e.UserID, &e.Username, &e.DisplayName, &e.League, &e.Points, &e.XP, &rank); err != nil {
			return nil, fmt.Errorf("failed to scan leaderboard entry: %w", err)
		}
		e.Rank = int(rank)
		entries = append(entries, e)
	}

	return entries, rows.Err()
}
