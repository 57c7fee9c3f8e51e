// Package league содержит лестницу лиг, начисление очков лиги с повышением
// и правила ранжирования в таблице лидеров.
package league

import (
	"sort"

	"github.com/featherlingo/featherlingo-api/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// TIERS & LADDER
// ══════════════════════════════════════════════════════════════════════════════

// Tier - уровень лиги с диапазоном очков [MinPoints, MaxPoints).
// MaxPoints == 0 у верхней лиги означает отсутствие верхней границы.
type Tier struct {
	Name      string `json:"name" yaml:"name"`
	Level     int    `json:"level" yaml:"level"`
	MinPoints int    `json:"min_points" yaml:"min_points"`
	MaxPoints int    `json:"max_points" yaml:"max_points"`
}

// IsOpenEnded возвращает true для лиги без верхней границы.
func (t Tier) IsOpenEnded() bool {
	return t.MaxPoints == 0
}

// Contains проверяет, попадают ли очки в диапазон лиги.
func (t Tier) Contains(points int) bool {
	if points < t.MinPoints {
		return false
	}
	return t.IsOpenEnded() || points < t.MaxPoints
}

// Ladder - упорядоченная по возрастанию лестница лиг.
type Ladder struct {
	tiers []Tier
}

// NewLadder сортирует лиги по MinPoints и проверяет лестницу.
func NewLadder(tiers []Tier) (*Ladder, error) {
	sorted := make([]Tier, len(tiers))
	copy(sorted, tiers)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].MinPoints < sorted[j].MinPoints
	})
	l := &Ladder{tiers: sorted}
	if err := l.Validate(); err != nil {
		return nil, err
	}
	return l, nil
}

// MustLadder как NewLadder, но паникует. Для констант и тестов.
func MustLadder(tiers []Tier) *Ladder {
	l, err := NewLadder(tiers)
	if err != nil {
		panic(err)
	}
	return l
}

// DefaultTiers - лестница по умолчанию.
func DefaultTiers() []Tier {
	return []Tier{
		{Name: "Bronze", Level: 1, MinPoints: 0, MaxPoints: 1000},
		{Name: "Silver", Level: 2, MinPoints: 1000, MaxPoints: 2500},
		{Name: "Gold", Level: 3, MinPoints: 2500, MaxPoints: 5000},
		{Name: "Platinum", Level: 4, MinPoints: 5000, MaxPoints: 10000},
		{Name: "Diamond", Level: 5, MinPoints: 10000, MaxPoints: 20000},
		{Name: "Master", Level: 6, MinPoints: 20000, MaxPoints: 0},
	}
}

// DefaultLadder возвращает лестницу по умолчанию.
func DefaultLadder() *Ladder {
	return MustLadder(DefaultTiers())
}

// Validate проверяет, что диапазоны непрерывны и не пересекаются.
// Это предусловие конфигурации, а не проверка на каждый запрос.
func (l *Ladder) Validate() error {
	if len(l.tiers) == 0 {
		return shared.ErrEmptyLadder
	}
	if l.tiers[0].MinPoints != 0 {
		return shared.Detail(shared.ErrOverlappingTiers, "lowest tier %q must start at 0 points", l.tiers[0].Name)
	}

	names := make(map[string]bool, len(l.tiers))
	for i, t := range l.tiers {
		if t.Name == "" {
			return shared.Detail(shared.ErrOverlappingTiers, "tier %d has no name", i)
		}
		if names[t.Name] {
			return shared.Detail(shared.ErrOverlappingTiers, "duplicate tier %q", t.Name)
		}
		names[t.Name] = true

		last := i == len(l.tiers)-1
		if t.IsOpenEnded() && !last {
			return shared.Detail(shared.ErrOverlappingTiers, "only the top tier may be open-ended, %q is not on top", t.Name)
		}
		if !t.IsOpenEnded() && t.MaxPoints <= t.MinPoints {
			return shared.Detail(shared.ErrOverlappingTiers, "tier %q has empty range [%d, %d)", t.Name, t.MinPoints, t.MaxPoints)
		}
		if i > 0 {
			prev := l.tiers[i-1]
			if prev.MaxPoints != t.MinPoints {
				return shared.Detail(shared.ErrOverlappingTiers,
					"tier %q ends at %d but %q starts at %d", prev.Name, prev.MaxPoints, t.Name, t.MinPoints)
			}
			if t.Level <= prev.Level {
				return shared.Detail(shared.ErrOverlappingTiers, "tier levels must ascend (%q after %q)", t.Name, prev.Name)
			}
		}
	}
	return nil
}

// Tiers возвращает копию лестницы.
func (l *Ladder) Tiers() []Tier {
	out := make([]Tier, len(l.tiers))
	copy(out, l.tiers)
	return out
}

// Lowest возвращает стартовую лигу.
func (l *Ladder) Lowest() Tier {
	return l.tiers[0]
}

// TierFor возвращает самую высокую лигу, чей минимум не больше points.
func (l *Ladder) TierFor(points int) Tier {
	best := l.tiers[0]
	for _, t := range l.tiers {
		if t.MinPoints <= points {
			best = t
		}
	}
	return best
}

// Tier ищет лигу по имени.
func (l *Ladder) Tier(name string) (Tier, error) {
	for _, t := range l.tiers {
		if t.Name == name {
			return t, nil
		}
	}
	return Tier{}, shared.Detail(shared.ErrTierNotFound, "league tier %q not found", name)
}
