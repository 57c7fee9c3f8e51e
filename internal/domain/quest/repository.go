package quest

import "context"

// ClaimRepository хранит полученные награды.
type ClaimRepository interface {
	// Create сохраняет получение награды.
	// Повтор (user, quest, period) даёт shared.ErrQuestAlreadyClaimed.
	Create(ctx context.Context, c *Claim) error

	// ClaimedKeys возвращает множество ClaimKey по пользователю.
	ClaimedKeys(ctx context.Context, userID string) (map[string]bool, error)
}
