// Package eventhandler содержит обработчики доменных событий.
// Обработчики реагируют на уже зафиксированные изменения и обновляют
// производные данные. Ошибка обработчика не откатывает команду.
package eventhandler

import (
	"context"
	"fmt"

	"github.com/featherlingo/featherlingo-api/internal/domain/league"
	"github.com/featherlingo/featherlingo-api/internal/domain/shared"
	"github.com/featherlingo/featherlingo-api/internal/domain/user"
	"github.com/featherlingo/featherlingo-api/pkg/logger"
)

// ═══════════════════════════════════════════════════════════════════════════
// LEADERBOARD SYNC HANDLER
// Переносит положение пользователя в кеш таблицы лидеров после каждого
// изменения XP или очков лиги. Источник истины - PostgreSQL, поэтому
// строка перечитывается из репозитория, а не берётся из события.
// ═══════════════════════════════════════════════════════════════════════════

// LeaderboardWriter - часть кеша, нужная синхронизации.
type LeaderboardWriter interface {
	Upsert(ctx context.Context, entry league.Entry, previousLeague string) error
}

// LeaderboardSync обновляет кеш таблицы лидеров.
type LeaderboardSync struct {
	users   user.Repository
	cache   LeaderboardWriter
	enabled func() bool
}

// NewLeaderboardSync создаёт обработчик. enabled == nil означает "всегда включён".
func NewLeaderboardSync(users user.Repository, cache LeaderboardWriter, enabled func() bool) *LeaderboardSync {
	return &LeaderboardSync{users: users, cache: cache, enabled: enabled}
}

// EventTypes - события, после которых строка таблицы могла измениться.
func (h *LeaderboardSync) EventTypes() []shared.EventType {
	return []shared.EventType{
		shared.EventUserRegistered,
		shared.EventLessonCompleted,
		shared.EventLeaguePointsAdded,
		shared.EventLeaguePromoted,
		shared.EventQuestClaimed,
	}
}

// Handle обновляет запись пользователя.
// Для повышения передаёт старую лигу, чтобы убрать пользователя из её таблицы.
func (h *LeaderboardSync) Handle(ctx context.Context, event shared.Event) error {
	if h.enabled != nil && !h.enabled() {
		return nil
	}

	userID := event.AggregateID()
	u, err := h.users.GetByID(ctx, userID)
	if err != nil {
		if shared.IsNotFound(err) {
			logger.FromContext(ctx).Warn("leaderboard sync: user disappeared", logger.UserID(userID))
			return nil
		}
		return err
	}

	previous := ""
	if e, ok := event.(shared.LeaguePointsEvent); ok {
		previous = e.OldLeague
	}

	if err := h.cache.Upsert(ctx, u.LeaderboardEntry(), previous); err != nil {
		return fmt.Errorf("leaderboard sync for %s: %w", userID, err)
	}
	return nil
}
