package postgres

import (
	"context"
	"fmt"

	"github.com/featherlingo/featherlingo-api/internal/domain/quest"
	"github.com/featherlingo/featherlingo-api/internal/domain/shared"
)

// QuestClaimRepository implements quest.ClaimRepository for PostgreSQL.
// The (user_id, quest_id, period_key) unique key is the at-most-once guard.
type QuestClaimRepository struct {
	conn *Connection
}

// NewQuestClaimRepository creates a new QuestClaimRepository.
func NewQuestClaimRepository(conn *Connection) *QuestClaimRepository {
	return &QuestClaimRepository{conn: conn}
}

// Create records a claim.
func (r *QuestClaimRepository) Create(ctx context.Context, c *quest.Claim) error {
	query := `
		INSERT INTO quest_claims (id, user_id, quest_id, period_key, xp, feathers, claimed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.conn.Exec(ctx, query,
		c.ID, c.UserID, c.QuestID, c.PeriodKey, c.XP, c.Feathers, c.ClaimedAt)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrQuestAlreadyClaimed
		}
		return fmt.Errorf("failed to create quest claim: %w", err)
	}
	return nil
}

// ClaimedKeys returns quest.ClaimKey values of every claim the user made.
func (r *QuestClaimRepository) ClaimedKeys(ctx context.Context, userID string) (map[string]bool, error) {
	rows, err := r.conn.Query(ctx,
		`SELECT quest_id, period_key FROM quest_claims WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query quest claims: %w", err)
	}
	defer rows.Close()

	keys := make(map[string]bool)
	for rows.Next() {
		var questID, period string
		if err := rows.Scan(&questID, &period); err != nil {
			return nil, fmt.Errorf("failed to scan quest claim: %w", err)
		}
		keys[quest.ClaimKey(questID, period)] = true
	}

	return keys, rows.Err()
}
