package query

import (
	"context"

	"github.com/featherlingo/featherlingo-api/internal/domain/progress"
	"github.com/featherlingo/featherlingo-api/internal/domain/quest"
	"github.com/featherlingo/featherlingo-api/internal/domain/user"
	"github.com/featherlingo/featherlingo-api/pkg/timeutil"
)

// QuestDTO - задание с прогрессом пользователя.
type QuestDTO struct {
	ID          string       `json:"id"`
	Kind        string       `json:"kind"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Metric      string       `json:"metric"`
	Target      int          `json:"target"`
	Current     int          `json:"current"`
	Progress    float64      `json:"progress"`
	Completed   bool         `json:"completed"`
	Claimed     bool         `json:"claimed"`
	PeriodKey   string       `json:"periodKey"`
	Reward      quest.Reward `json:"reward"`
}

// QuestsHandler вычисляет задания каталога для пользователя.
type QuestsHandler struct {
	users    user.Repository
	progress progress.Repository
	claims   quest.ClaimRepository
	catalog  *quest.Catalog
	clock    timeutil.Clock
}

// NewQuestsHandler создаёт QuestsHandler.
func NewQuestsHandler(users user.Repository, progressRepo progress.Repository, claims quest.ClaimRepository,
	catalog *quest.Catalog, clock timeutil.Clock) *QuestsHandler {
	if clock == nil {
		clock = timeutil.Now
	}
	return &QuestsHandler{users: users, progress: progressRepo, claims: claims, catalog: catalog, clock: clock}
}

// Handle возвращает задания в порядке каталога.
func (h *QuestsHandler) Handle(ctx context.Context, userID string) ([]QuestDTO, error) {
	now := h.clock()

	u, err := h.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	stats, err := quest.CollectStats(ctx, h.progress, quest.Snapshot{
		UserID:        u.ID,
		CurrentStreak: u.Streak.Current(now),
		TotalXP:       u.XP.Int(),
		LeaguePoints:  u.League.Points,
	}, now)
	if err != nil {
		return nil, err
	}
	claimed, err := h.claims.ClaimedKeys(ctx, userID)
	if err != nil {
		return nil, err
	}

	statuses := quest.EvaluateAll(h.catalog, stats, claimed, now)
	out := make([]QuestDTO, len(statuses))
	for i, st := range statuses {
		d := st.Definition
		out[i] = QuestDTO{
			ID:          d.ID,
			Kind:        string(d.Kind),
			Title:       d.Title,
			Description: d.Description,
			Metric:      string(d.Metric),
			Target:      d.Target,
			Current:     st.Current,
			Progress:    st.Progress,
			Completed:   st.Completed,
			Claimed:     st.Claimed,
			PeriodKey:   st.PeriodKey,
			Reward:      d.Reward,
		}
	}
	return out, nil
}
