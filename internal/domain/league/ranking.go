package league

import (
	"context"
	"sort"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD ENTRY & ORDERING
// ══════════════════════════════════════════════════════════════════════════════

// AllLeagues - фильтр лидерборда без ограничения по лиге.
const AllLeagues = ""

// Entry - одна строка таблицы лидеров.
type Entry struct {
	UserID      string `json:"user_id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	League      string `json:"league"`
	Points      int    `json:"points"`
	XP          int    `json:"xp"`
	Rank        int    `json:"rank"`
}

// Ahead возвращает true, если a строго впереди b:
// сначала больше очков лиги, затем больше XP.
func Ahead(a, b Entry) bool {
	if a.Points != b.Points {
		return a.Points > b.Points
	}
	return a.XP > b.XP
}

// Sort упорядочивает записи и проставляет ранги.
// Ранг = число записей строго впереди + 1, равные записи делят ранг.
func Sort(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if Ahead(entries[i], entries[j]) {
			return true
		}
		if Ahead(entries[j], entries[i]) {
			return false
		}
		return entries[i].UserID < entries[j].UserID
	})
	for i := range entries {
		if i > 0 && !Ahead(entries[i-1], entries[i]) {
			entries[i].Rank = entries[i-1].Rank
			continue
		}
		entries[i].Rank = i + 1
	}
}

// RankOf считает ранг target среди entries.
func RankOf(target Entry, entries []Entry) int {
	ahead := 0
	for _, e := range entries {
		if e.UserID != target.UserID && Ahead(e, target) {
			ahead++
		}
	}
	return ahead + 1
}

// ══════════════════════════════════════════════════════════════════════════════
// READ MODEL INTERFACES
// ══════════════════════════════════════════════════════════════════════════════

// LeaderboardReader - источник таблицы лидеров (PostgreSQL или Redis).
type LeaderboardReader interface {
	// Top возвращает первые limit записей, упорядоченных по Ahead, с рангами.
	// league == AllLeagues означает общую таблицу.
	Top(ctx context.Context, league string, limit int) ([]Entry, error)

	// CountAhead возвращает число пользователей строго впереди entry.
	CountAhead(ctx context.Context, league string, entry Entry) (int, error)
}

// LeaderboardCache - производная копия таблицы в быстром хранилище.
type LeaderboardCache interface {
	LeaderboardReader

	// Upsert обновляет положение одного пользователя.
	Upsert(ctx context.Context, entry Entry, previousLeague string) error

	// Remove удаляет пользователя из всех таблиц.
	Remove(ctx context.Context, userID, league string) error

	// Rebuild полностью перестраивает таблицы.
	Rebuild(ctx context.Context, entries []Entry) error
}
