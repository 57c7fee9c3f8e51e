package query

import (
	"context"

	"github.com/featherlingo/featherlingo-api/internal/domain/league"
	"github.com/featherlingo/featherlingo-api/internal/domain/shared"
	"github.com/featherlingo/featherlingo-api/internal/domain/user"
	"github.com/featherlingo/featherlingo-api/pkg/circuitbreaker"
	"github.com/featherlingo/featherlingo-api/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD & RANK QUERIES
// Таблица читается из Redis, если кеш включён и прогрет, иначе из PostgreSQL.
// ══════════════════════════════════════════════════════════════════════════════

// Источники таблицы в ответе.
const (
	SourceCache    = "cache"
	SourceDatabase = "database"
)

// Значения лимита по умолчанию.
const (
	DefaultLeaderboardLimit = 20
	MaxLeaderboardLimit     = 100
)

// WarmReader - кеш таблицы, умеющий сказать, заполнен ли он.
type WarmReader interface {
	league.LeaderboardReader
	Warm(ctx context.Context) (bool, error)
}

// LeaderboardQuery - параметры запроса таблицы.
type LeaderboardQuery struct {
	// League - фильтр по лиге, пусто = общая таблица.
	League string
	// Limit - 0 означает значение по умолчанию.
	Limit int
}

// LeaderboardEntryDTO - строка таблицы.
type LeaderboardEntryDTO struct {
	Rank        int    `json:"rank"`
	UserID      string `json:"userId"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	League      string `json:"league"`
	Points      int    `json:"points"`
	XP          int    `json:"xp"`
}

// LeaderboardDTO - таблица лидеров.
type LeaderboardDTO struct {
	League  string                `json:"league,omitempty"`
	Entries []LeaderboardEntryDTO `json:"entries"`
	Source  string                `json:"source"`
}

// RankDTO - положение пользователя.
type RankDTO struct {
	UserID     string `json:"userId"`
	League     string `json:"league"`
	Points     int    `json:"points"`
	XP         int    `json:"xp"`
	GlobalRank int    `json:"globalRank"`
	LeagueRank int    `json:"leagueRank"`
}

// TierDTO - лига лестницы.
type TierDTO struct {
	Name      string `json:"name"`
	Level     int    `json:"level"`
	MinPoints int    `json:"minPoints"`
	// MaxPoints == nil у верхней лиги.
	MaxPoints *int `json:"maxPoints"`
}

// LeaderboardConfig - лимиты и переключатель кеша.
type LeaderboardConfig struct {
	DefaultLimit int
	MaxLimit     int
	// UseCache читается на каждый запрос, чтобы флаг можно было менять на лету.
	UseCache func() bool
	// Breaker - необязательный предохранитель чтений из кеша.
	Breaker *circuitbreaker.CircuitBreaker
}

// LeaderboardHandler обслуживает таблицу, ранг и лестницу.
type LeaderboardHandler struct {
	db     league.LeaderboardReader
	cache  WarmReader
	users  user.Repository
	ladder *league.Ladder
	cfg    LeaderboardConfig
}

// NewLeaderboardHandler создаёт LeaderboardHandler. cache может быть nil.
func NewLeaderboardHandler(db league.LeaderboardReader, cache WarmReader, users user.Repository,
	ladder *league.Ladder, cfg LeaderboardConfig) *LeaderboardHandler {
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = DefaultLeaderboardLimit
	}
	if cfg.MaxLimit <= 0 {
		cfg.MaxLimit = MaxLeaderboardLimit
	}
	if cache != nil && cfg.Breaker != nil {
		cache = &guardedCache{next: cache, cb: cfg.Breaker}
	}
	return &LeaderboardHandler{db: db, cache: cache, users: users, ladder: ladder, cfg: cfg}
}

// Top возвращает первые Limit записей.
// Limit вне [1, MaxLimit] - shared.ErrInvalidLeaderSize, неизвестная лига - NotFound.
func (h *LeaderboardHandler) Top(ctx context.Context, q LeaderboardQuery) (*LeaderboardDTO, error) {
	limit := q.Limit
	if limit == 0 {
		limit = h.cfg.DefaultLimit
	}
	if limit < 1 || limit > h.cfg.MaxLimit {
		return nil, shared.Detail(shared.ErrInvalidLeaderSize, "limit must be between 1 and %d", h.cfg.MaxLimit)
	}
	if q.League != league.AllLeagues {
		if _, err := h.ladder.Tier(q.League); err != nil {
			return nil, err
		}
	}

	reader, source := h.reader(ctx)
	entries, err := reader.Top(ctx, q.League, limit)
	if err != nil && source == SourceCache {
		logger.FromContext(ctx).Warn("leaderboard cache read failed, using database", logger.Err(err))
		source = SourceDatabase
		entries, err = h.db.Top(ctx, q.League, limit)
	}
	if err != nil {
		return nil, err
	}

	out := make([]LeaderboardEntryDTO, len(entries))
	for i, e := range entries {
		out[i] = LeaderboardEntryDTO{
			Rank:        e.Rank,
			UserID:      e.UserID,
			Username:    e.Username,
			DisplayName: e.DisplayName,
			League:      e.League,
			Points:      e.Points,
			XP:          e.XP,
		}
	}
	return &LeaderboardDTO{League: q.League, Entries: out, Source: source}, nil
}

// Rank считает общий ранг и ранг внутри своей лиги: число пользователей
// строго впереди + 1.
func (h *LeaderboardHandler) Rank(ctx context.Context, userID string) (*RankDTO, error) {
	u, err := h.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	entry := u.LeaderboardEntry()

	reader, source := h.reader(ctx)
	global, local, err := countRanks(ctx, reader, entry)
	if err != nil && source == SourceCache {
		logger.FromContext(ctx).Warn("leaderboard cache rank failed, using database", logger.Err(err))
		global, local, err = countRanks(ctx, h.db, entry)
	}
	if err != nil {
		return nil, err
	}

	return &RankDTO{
		UserID:     u.ID,
		League:     entry.League,
		Points:     entry.Points,
		XP:         entry.XP,
		GlobalRank: global,
		LeagueRank: local,
	}, nil
}

func countRanks(ctx context.Context, r league.LeaderboardReader, e league.Entry) (int, int, error) {
	global, err := r.CountAhead(ctx, league.AllLeagues, e)
	if err != nil {
		return 0, 0, err
	}
	local, err := r.CountAhead(ctx, e.League, e)
	if err != nil {
		return 0, 0, err
	}
	return global + 1, local + 1, nil
}

// Tiers возвращает лестницу лиг по возрастанию.
func (h *LeaderboardHandler) Tiers() []TierDTO {
	tiers := h.ladder.Tiers()
	out := make([]TierDTO, len(tiers))
	for i, t := range tiers {
		dto := TierDTO{Name: t.Name, Level: t.Level, MinPoints: t.MinPoints}
		if !t.IsOpenEnded() {
			upper := t.MaxPoints
			dto.MaxPoints = &upper
		}
		out[i] = dto
	}
	return out
}

// reader выбирает источник. Холодный или недоступный кеш - чтение из БД.
func (h *LeaderboardHandler) reader(ctx context.Context) (league.LeaderboardReader, string) {
	if h.cache == nil || h.cfg.UseCache == nil || !h.cfg.UseCache() {
		return h.db, SourceDatabase
	}
	warm, err := h.cache.Warm(ctx)
	if circuitbreaker.IsRejected(err) {
		return h.db, SourceDatabase
	}
	if err != nil {
		logger.FromContext(ctx).Warn("leaderboard cache unavailable", logger.Err(err))
		return h.db, SourceDatabase
	}
	if !warm {
		logger.FromContext(ctx).Debug("leaderboard cache is cold")
		return h.db, SourceDatabase
	}
	return h.cache, SourceCache
}

// ─── предохранитель ──────────────────────────────────────────────────────────

// guardedCache пропускает чтения кеша через предохранитель: после серии
// ошибок Redis не опрашивается, пока не истечёт пауза.
type guardedCache struct {
	next WarmReader
	cb   *circuitbreaker.CircuitBreaker
}

func (g *guardedCache) Warm(ctx context.Context) (bool, error) {
	var warm bool
	err := g.cb.Execute(ctx, func(ctx context.Context) error {
		var err error
		warm, err = g.next.Warm(ctx)
		return err
	})
	return warm, err
}

func (g *guardedCache) Top(ctx context.Context, leagueName string, limit int) ([]league.Entry, error) {
	var entries []league.Entry
	err := g.cb.Execute(ctx, func(ctx context.Context) error {
		var err error
		entries, err = g.next.Top(ctx, leagueName, limit)
		return err
	})
	return entries, err
}

func (g *guardedCache) CountAhead(ctx context.Context, leagueName string, entry league.Entry) (int, error) {
	var n int
	err := g.cb.Execute(ctx, func(ctx context.Context) error {
		var err error
		n, err = g.next.CountAhead(ctx, leagueName, entry)
		return err
	})
	return n, err
}
