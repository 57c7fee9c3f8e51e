// Package quest содержит декларативный каталог заданий и достижений,
// вычисление прогресса по агрегатам и правило однократного получения награды.
package quest

import (
	"strings"

	"github.com/featherlingo/featherlingo-api/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// DEFINITIONS
// ══════════════════════════════════════════════════════════════════════════════

// Kind - периодичность задания.
type Kind string

const (
	KindDaily       Kind = "daily"
	KindWeekly      Kind = "weekly"
	KindAchievement Kind = "achievement"
)

// IsValid проверяет периодичность.
func (k Kind) IsValid() bool {
	return k == KindDaily || k == KindWeekly || k == KindAchievement
}

// Reward - награда за задание.
type Reward struct {
	XP       int `json:"xp" yaml:"xp"`
	Feathers int `json:"feathers" yaml:"feathers"`
}

// Definition - одна запись каталога.
type Definition struct {
	ID          string `json:"id" yaml:"id"`
	Kind        Kind   `json:"kind" yaml:"kind"`
	Title       string `json:"title" yaml:"title"`
	Description string `json:"description" yaml:"description"`
	Metric      Metric `json:"metric" yaml:"metric"`
	Target      int    `json:"target" yaml:"target"`
	Reward      Reward `json:"reward" yaml:"reward"`
}

// Validate проверяет запись каталога.
func (d Definition) Validate() error {
	if strings.TrimSpace(d.ID) == "" {
		return shared.Detail(shared.ErrInvalidQuest, "quest id is required")
	}
	if !d.Kind.IsValid() {
		return shared.Detail(shared.ErrInvalidQuest, "quest %q: unknown kind %q", d.ID, d.Kind)
	}
	if !d.Metric.IsKnown() {
		return shared.Detail(shared.ErrUnknownQuestMetric, "quest %q: unknown metric %q", d.ID, d.Metric)
	}
	if d.Target <= 0 {
		return shared.Detail(shared.ErrInvalidQuest, "quest %q: target must be positive", d.ID)
	}
	if d.Reward.XP < 0 || d.Reward.Feathers < 0 {
		return shared.Detail(shared.ErrInvalidQuest, "quest %q: reward cannot be negative", d.ID)
	}
	return nil
}

// Catalog - неизменяемый набор определений.
type Catalog struct {
	defs []Definition
	byID map[string]Definition
}

// NewCatalog проверяет определения и строит каталог.
func NewCatalog(defs []Definition) (*Catalog, error) {
	c := &Catalog{
		defs: make([]Definition, 0, len(defs)),
		byID: make(map[string]Definition, len(defs)),
	}
	for _, d := range defs {
		if err := d.Validate(); err != nil {
			return nil, err
		}
		if _, dup := c.byID[d.ID]; dup {
			return nil, shared.Detail(shared.ErrInvalidQuest, "duplicate quest id %q", d.ID)
		}
		c.defs = append(c.defs, d)
		c.byID[d.ID] = d
	}
	return c, nil
}

// DefaultDefinitions - каталог по умолчанию.
func DefaultDefinitions() []Definition {
	return []Definition{
		{ID: "daily_three_lessons", Kind: KindDaily, Title: "Triple threat", Description: "Complete 3 lessons today",
			Metric: MetricLessonsCompletedToday, Target: 3, Reward: Reward{XP: 30, Feathers: 5}},
		{ID: "weekly_perfect_five", Kind: KindWeekly, Title: "Perfectionist", Description: "Score 100 on 5 lessons this week",
			Metric: MetricPerfectScoresWeek, Target: 5, Reward: Reward{XP: 100, Feathers: 20}},
		{ID: "weekly_ten_lessons", Kind: KindWeekly, Title: "Steady learner", Description: "Complete 10 lessons this week",
			Metric: MetricLessonsCompletedWeek, Target: 10, Reward: Reward{XP: 80, Feathers: 15}},
		{ID: "streak_7", Kind: KindAchievement, Title: "Week on fire", Description: "Reach a 7-day streak",
			Metric: MetricCurrentStreak, Target: 7, Reward: Reward{XP: 50, Feathers: 10}},
		{ID: "streak_30", Kind: KindAchievement, Title: "Unstoppable", Description: "Reach a 30-day streak",
			Metric: MetricCurrentStreak, Target: 30, Reward: Reward{XP: 300, Feathers: 50}},
		{ID: "xp_1000", Kind: KindAchievement, Title: "Level up", Description: "Earn 1000 XP",
			Metric: MetricTotalXP, Target: 1000, Reward: Reward{XP: 0, Feathers: 25}},
		{ID: "lessons_50", Kind: KindAchievement, Title: "Scholar", Description: "Complete 50 lessons",
			Metric: MetricLessonsCompletedTotal, Target: 50, Reward: Reward{XP: 200, Feathers: 40}},
	}
}

// DefaultCatalog возвращает каталог по умолчанию.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(DefaultDefinitions())
	if err != nil {
		panic(err)
	}
	return c
}

// All возвращает копию определений в порядке каталога.
func (c *Catalog) All() []Definition {
	out := make([]Definition, len(c.defs))
	copy(out, c.defs)
	return out
}

// Get ищет определение по ID.
func (c *Catalog) Get(id string) (Definition, error) {
	d, ok := c.byID[id]
	if !ok {
		return Definition{}, shared.Detail(shared.ErrQuestNotFound, "quest %q not found", id)
	}
	return d, nil
}

// Len возвращает размер каталога.
func (c *Catalog) Len() int {
	return len(c.defs)
}
