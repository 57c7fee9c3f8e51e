package user

import (
	"time"

	"github.com/featherlingo/featherlingo-api/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// STREAK TRACKER
// ══════════════════════════════════════════════════════════════════════════════

// DaysPerStreakLevel - сколько дней серии даёт один уровень серии.
const DaysPerStreakLevel = 7

// DefaultStreakGoal - цель серии по умолчанию.
const DefaultStreakGoal = 7

// Streak - серия дней подряд хотя бы с одним пройденным уроком.
// Даты сравниваются как календарные дни в опорном часовом поясе timeutil.
type Streak struct {
	Count   int `json:"count"`
	Level   int `json:"level"`
	Freezes int `json:"freezes"`
	Goal    int `json:"goal"`

	// LastLessonDate - полночь дня последнего пройденного урока, nil если не было.
	LastLessonDate *time.Time `json:"last_lesson_date,omitempty"`
}

// StreakChange - результат RecordCompletion.
type StreakChange struct {
	Old     int
	New     int
	Changed bool
}

// RecordCompletion учитывает пройденный урок в момент now.
//
//   - тот же день: без изменений;
//   - ровно на день позже: +1;
//   - иначе (пропуск или первая запись): серия = 1.
//
// Проверка "тот же день" идёт раньше проверки "следующий день",
// поэтому несколько уроков за день не увеличивают серию дважды.
func (s *Streak) RecordCompletion(now time.Time) StreakChange {
	change := StreakChange{Old: s.Count}
	today := timeutil.StartOfDay(now)

	switch {
	case s.LastLessonDate != nil && timeutil.IsSameDay(*s.LastLessonDate, today):
		// уже засчитано сегодня
	case s.LastLessonDate != nil && timeutil.IsConsecutiveDay(*s.LastLessonDate, today):
		s.Count++
	default:
		s.Count = 1
	}

	s.LastLessonDate = &today
	s.Level = s.Count / DaysPerStreakLevel
	if s.Goal <= 0 {
		s.Goal = DefaultStreakGoal
	}

	change.New = s.Count
	change.Changed = change.New != change.Old
	return change
}

// IsAlive возвращает true, если серию ещё можно продолжить сегодня.
func (s *Streak) IsAlive(now time.Time) bool {
	if s.LastLessonDate == nil || s.Count == 0 {
		return false
	}
	return timeutil.DaysBetween(*s.LastLessonDate, now) <= 1
}

// Current возвращает значение серии с учётом пропуска: если последний урок
// был раньше вчерашнего дня, серия фактически равна 0.
func (s *Streak) Current(now time.Time) int {
	if !s.IsAlive(now) {
		return 0
	}
	return s.Count
}
