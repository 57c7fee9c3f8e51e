package quest

import (
	"context"
	"time"

	"github.com/featherlingo/featherlingo-api/internal/domain/progress"
	"github.com/featherlingo/featherlingo-api/pkg/timeutil"
)

// CompletionCounter - источник счётчиков пройденных уроков.
type CompletionCounter interface {
	CompletionStats(ctx context.Context, userID string, since time.Time) (progress.CompletionStats, error)
}

// Snapshot - значения пользователя, которые не требуют запросов.
type Snapshot struct {
	UserID        string
	CurrentStreak int
	TotalXP       int
	LeaguePoints  int
}

// CollectStats собирает Stats: день и неделя считаются в опорном поясе,
// неделя начинается в понедельник (как ISO-неделя в ключе периода).
func CollectStats(ctx context.Context, counter CompletionCounter, snap Snapshot, now time.Time) (Stats, error) {
	today, err := counter.CompletionStats(ctx, snap.UserID, timeutil.StartOfDay(now))
	if err != nil {
		return Stats{}, err
	}
	week, err := counter.CompletionStats(ctx, snap.UserID, timeutil.StartOfWeek(now))
	if err != nil {
		return Stats{}, err
	}
	total, err := counter.CompletionStats(ctx, snap.UserID, time.Time{})
	if err != nil {
		return Stats{}, err
	}

	return Stats{
		LessonsToday:    today.Completed,
		LessonsThisWeek: week.Completed,
		PerfectThisWeek: week.Perfect,
		LessonsTotal:    total.Completed,
		CurrentStreak:   snap.CurrentStreak,
		TotalXP:         snap.TotalXP,
		LeaguePoints:    snap.LeaguePoints,
	}, nil
}
