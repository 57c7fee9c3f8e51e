package quest

import (
	"time"

	"github.com/featherlingo/featherlingo-api/internal/domain/shared"
	"github.com/featherlingo/featherlingo-api/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// METRICS
// ══════════════════════════════════════════════════════════════════════════════

// Metric - имя агрегата, с которым сравнивается цель задания.
type Metric string

const (
	MetricLessonsCompletedToday Metric = "lessons_completed_today"
	MetricLessonsCompletedWeek  Metric = "lessons_completed_week"
	MetricPerfectScoresWeek     Metric = "perfect_scores_week"
	MetricLessonsCompletedTotal Metric = "lessons_completed_total"
	MetricCurrentStreak         Metric = "current_streak"
	MetricTotalXP               Metric = "total_xp"
	MetricLeaguePoints          Metric = "league_points"
)

// Stats - агрегаты пользователя, из которых считаются метрики.
type Stats struct {
	LessonsToday    int
	LessonsThisWeek int
	PerfectThisWeek int
	LessonsTotal    int
	CurrentStreak   int
	TotalXP         int
	LeaguePoints    int
}

// metrics - реестр: имя метрики -> функция над Stats.
// Новое задание на существующей метрике - это только запись в каталоге.
var metrics = map[Metric]func(Stats) int{
	MetricLessonsCompletedToday: func(s Stats) int { return s.LessonsToday },
	MetricLessonsCompletedWeek:  func(s Stats) int { return s.LessonsThisWeek },
	MetricPerfectScoresWeek:     func(s Stats) int { return s.PerfectThisWeek },
	MetricLessonsCompletedTotal: func(s Stats) int { return s.LessonsTotal },
	MetricCurrentStreak:         func(s Stats) int { return s.CurrentStreak },
	MetricTotalXP:               func(s Stats) int { return s.TotalXP },
	MetricLeaguePoints:          func(s Stats) int { return s.LeaguePoints },
}

// IsKnown проверяет, что метрика есть в реестре.
func (m Metric) IsKnown() bool {
	_, ok := metrics[m]
	return ok
}

// Value вычисляет метрику.
func (m Metric) Value(s Stats) int {
	fn, ok := metrics[m]
	if !ok {
		return 0
	}
	return fn(s)
}

// ══════════════════════════════════════════════════════════════════════════════
// EVALUATION
// ══════════════════════════════════════════════════════════════════════════════

// Status - вычисленное состояние задания для пользователя.
type Status struct {
	Definition Definition `json:"definition"`
	Current    int        `json:"current"`
	Progress   float64    `json:"progress"`
	Completed  bool       `json:"completed"`
	Claimed    bool       `json:"claimed"`
	PeriodKey  string     `json:"period_key"`
}

// Evaluate считает прогресс задания: min(current, target)/target.
func Evaluate(def Definition, stats Stats, now time.Time) Status {
	current := def.Metric.Value(stats)
	capped := current
	if capped > def.Target {
		capped = def.Target
	}
	if capped < 0 {
		capped = 0
	}
	return Status{
		Definition: def,
		Current:    capped,
		Progress:   float64(capped) / float64(def.Target),
		Completed:  current >= def.Target,
		PeriodKey:  PeriodKey(def.Kind, now),
	}
}

// EvaluateAll считает все задания каталога. claimed - множество
// ключей ClaimKey(questID, periodKey), по которым награда уже получена.
func EvaluateAll(c *Catalog, stats Stats, claimed map[string]bool, now time.Time) []Status {
	out := make([]Status, 0, c.Len())
	for _, def := range c.All() {
		st := Evaluate(def, stats, now)
		st.Claimed = claimed[ClaimKey(def.ID, st.PeriodKey)]
		out = append(out, st)
	}
	return out
}

// PeriodKey возвращает ключ периода: день, ISO-неделя или "all".
func PeriodKey(kind Kind, now time.Time) string {
	switch kind {
	case KindDaily:
		return timeutil.FormatDateStr(now)
	case KindWeekly:
		return timeutil.ISOWeekKey(now)
	default:
		return "all"
	}
}

// ClaimKey объединяет задание и период.
func ClaimKey(questID, periodKey string) string {
	return questID + "@" + periodKey
}

// ══════════════════════════════════════════════════════════════════════════════
// CLAIM
// ══════════════════════════════════════════════════════════════════════════════

// Claim - сохранённое получение награды. Уникально по (user, quest, period).
type Claim struct {
	ID        string
	UserID    string
	QuestID   string
	PeriodKey string
	XP        int
	Feathers  int
	ClaimedAt time.Time
}

// NewClaim создаёт запись о получении награды.
// Невыполненное задание даёт shared.ErrQuestNotCompleted,
// уже полученное - shared.ErrQuestAlreadyClaimed.
func NewClaim(id, userID string, st Status, now time.Time) (*Claim, error) {
	if !st.Completed {
		return nil, shared.Detail(shared.ErrQuestNotCompleted,
			"quest %q progress %d/%d", st.Definition.ID, st.Current, st.Definition.Target)
	}
	if st.Claimed {
		return nil, shared.ErrQuestAlreadyClaimed
	}
	return &Claim{
		ID:        id,
		UserID:    userID,
		QuestID:   st.Definition.ID,
		PeriodKey: st.PeriodKey,
		XP:        st.Definition.Reward.XP,
		Feathers:  st.Definition.Reward.Feathers,
		ClaimedAt: now,
	}, nil
}
