// Package lesson содержит доменную модель урока: упражнения, базовые награды
// и пререквизиты. Упражнения неизменяемы после публикации, прогресс ссылается
// на них по индексу.
package lesson

import (
	"strings"
	"time"

	"github.com/featherlingo/featherlingo-api/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// ExerciseType - тип упражнения.
type ExerciseType string

const (
	ExerciseTranslate      ExerciseType = "translate"
	ExerciseMultipleChoice ExerciseType = "multiple_choice"
	ExerciseListen         ExerciseType = "listen"
	ExerciseSpeak          ExerciseType = "speak"
	ExerciseFillBlank      ExerciseType = "fill_blank"
	ExerciseMatch          ExerciseType = "match"
)

// IsValid проверяет, что тип известен.
func (t ExerciseType) IsValid() bool {
	switch t {
	case ExerciseTranslate, ExerciseMultipleChoice, ExerciseListen,
		ExerciseSpeak, ExerciseFillBlank, ExerciseMatch:
		return true
	}
	return false
}

// Difficulty - сложность урока.
type Difficulty string

const (
	DifficultyBeginner     Difficulty = "beginner"
	DifficultyIntermediate Difficulty = "intermediate"
	DifficultyAdvanced     Difficulty = "advanced"
)

// IsValid проверяет сложность.
func (d Difficulty) IsValid() bool {
	return d == DifficultyBeginner || d == DifficultyIntermediate || d == DifficultyAdvanced
}

// Exercise - одно упражнение урока.
type Exercise struct {
	Type          ExerciseType `json:"type"`
	Prompt        string       `json:"prompt"`
	Options       []string     `json:"options,omitempty"`
	CorrectAnswer string       `json:"correct_answer"`
	Points        int          `json:"points"`
}

// Reward - базовые значения награды за урок при счёте 100.
type Reward struct {
	XP       int `json:"xp"`
	Feathers int `json:"feathers"`
}

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: LESSON
// ══════════════════════════════════════════════════════════════════════════════

// Lesson - урок с упорядоченным списком упражнений.
type Lesson struct {
	ID            string
	Title         string
	Description   string
	Language      shared.Language
	Unit          int
	Order         int
	Difficulty    Difficulty
	Exercises     []Exercise
	Reward        Reward
	Prerequisites []string
	IsActive      bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewLessonParams - параметры создания урока.
type NewLessonParams struct {
	ID            string
	Title         string
	Description   string
	Language      string
	Unit          int
	Order         int
	Difficulty    Difficulty
	Exercises     []Exercise
	Reward        Reward
	Prerequisites []string
	IsActive      bool
}

// NewLesson создаёт урок с валидацией всех полей.
func NewLesson(p NewLessonParams) (*Lesson, error) {
	lang, err := shared.NewLanguage(p.Language)
	if err != nil {
		return nil, err
	}
	difficulty := p.Difficulty
	if difficulty == "" {
		difficulty = DifficultyBeginner
	}

	now := time.Now().UTC()
	l := &Lesson{
		ID:            p.ID,
		Title:         strings.TrimSpace(p.Title),
		Description:   strings.TrimSpace(p.Description),
		Language:      lang,
		Unit:          p.Unit,
		Order:         p.Order,
		Difficulty:    difficulty,
		Exercises:     p.Exercises,
		Reward:        p.Reward,
		Prerequisites: p.Prerequisites,
		IsActive:      p.IsActive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := l.Validate(); err != nil {
		return nil, err
	}
	return l, nil
}

// Validate проверяет инварианты урока.
func (l *Lesson) Validate() error {
	if l.ID == "" {
		return shared.Detail(shared.ErrInvalidLesson, "lesson id is required")
	}
	if l.Title == "" {
		return shared.Detail(shared.ErrInvalidLesson, "title is required")
	}
	if !l.Difficulty.IsValid() {
		return shared.Detail(shared.ErrInvalidLesson, "unknown difficulty %q", l.Difficulty)
	}
	if len(l.Exercises) == 0 {
		return shared.ErrLessonHasNoExercises
	}
	if l.Reward.XP < 0 || l.Reward.Feathers < 0 {
		return shared.Detail(shared.ErrInvalidLesson, "reward values cannot be negative")
	}
	for i, ex := range l.Exercises {
		if !ex.Type.IsValid() {
			return shared.Detail(shared.ErrInvalidExercise, "exercise %d: unknown type %q", i, ex.Type)
		}
		if strings.TrimSpace(ex.Prompt) == "" {
			return shared.Detail(shared.ErrInvalidExercise, "exercise %d: prompt is required", i)
		}
		if strings.TrimSpace(ex.CorrectAnswer) == "" {
			return shared.Detail(shared.ErrInvalidExercise, "exercise %d: correct answer is required", i)
		}
		if ex.Points < 0 {
			return shared.Detail(shared.ErrInvalidExercise, "exercise %d: points cannot be negative", i)
		}
	}
	for _, pre := range l.Prerequisites {
		if pre == l.ID {
			return shared.Detail(shared.ErrInvalidLesson, "lesson cannot require itself")
		}
	}
	return nil
}

// TotalExercises возвращает количество упражнений урока.
func (l *Lesson) TotalExercises() int {
	return len(l.Exercises)
}

// Exercise возвращает упражнение по индексу.
func (l *Lesson) Exercise(index int) (Exercise, error) {
	if index < 0 || index >= len(l.Exercises) {
		return Exercise{}, shared.Detail(shared.ErrInvalidExerciseIndex,
			"exercise index %d out of range [0, %d)", index, len(l.Exercises))
	}
	return l.Exercises[index], nil
}

// MissingPrerequisites возвращает пререквизиты, которых нет среди пройденных.
func (l *Lesson) MissingPrerequisites(completed map[string]bool) []string {
	var missing []string
	for _, id := range l.Prerequisites {
		if !completed[id] {
			missing = append(missing, id)
		}
	}
	return missing
}

// SetActive включает или выключает урок.
func (l *Lesson) SetActive(active bool) {
	l.IsActive = active
	l.UpdatedAt = time.Now().UTC()
}
