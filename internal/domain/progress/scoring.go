package progress

import (
	"math"
	"strings"

	"github.com/featherlingo/featherlingo-api/internal/domain/lesson"
	"github.com/featherlingo/featherlingo-api/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SCORING ENGINE
// ══════════════════════════════════════════════════════════════════════════════

// Answer - ответ пользователя на одно упражнение.
type Answer struct {
	ExerciseIndex int
	UserAnswer    string
	TimeSpent     int // секунды, необязательно
}

// ExerciseResult - результат проверки одного упражнения.
type ExerciseResult struct {
	Index        int    `json:"index"`
	IsCorrect    bool   `json:"is_correct"`
	UserAnswer   string `json:"user_answer"`
	TimeSpent    int    `json:"time_spent"`
	PointsEarned int    `json:"points_earned"`
}

// ScoreResult - итог проверки попытки.
type ScoreResult struct {
	Score          int
	CorrectAnswers int
	TotalExercises int
	Results        []ExerciseResult
}

// AnswersMatch сравнивает ответы без учёта регистра и пробелов по краям.
func AnswersMatch(submitted, expected string) bool {
	return strings.EqualFold(strings.TrimSpace(submitted), strings.TrimSpace(expected))
}

// Score проверяет ответы по упражнениям урока.
//
// Знаменатель - общее число упражнений урока, а не число ответов:
// отправка части упражнений даёт пропорционально меньший счёт.
// Функция чистая, сохранение результата - задача вызывающего кода.
func Score(exercises []lesson.Exercise, answers []Answer) (ScoreResult, error) {
	total := len(exercises)
	if total == 0 {
		return ScoreResult{}, shared.ErrLessonHasNoExercises
	}

	seen := make(map[int]bool, len(answers))
	results := make([]ExerciseResult, 0, len(answers))
	correct := 0

	for _, a := range answers {
		if a.ExerciseIndex < 0 || a.ExerciseIndex >= total {
			return ScoreResult{}, shared.Detail(shared.ErrInvalidExerciseIndex,
				"exercise index %d out of range [0, %d)", a.ExerciseIndex, total)
		}
		if seen[a.ExerciseIndex] {
			return ScoreResult{}, shared.Detail(shared.ErrDuplicateAnswer,
				"exercise %d answered more than once", a.ExerciseIndex)
		}
		if a.TimeSpent < 0 {
			return ScoreResult{}, shared.ErrInvalidTimeSpent
		}
		seen[a.ExerciseIndex] = true

		ex := exercises[a.ExerciseIndex]
		ok := AnswersMatch(a.UserAnswer, ex.CorrectAnswer)
		r := ExerciseResult{
			Index:      a.ExerciseIndex,
			IsCorrect:  ok,
			UserAnswer: a.UserAnswer,
			TimeSpent:  a.TimeSpent,
		}
		if ok {
			correct++
			r.PointsEarned = ex.Points
		}
		results = append(results, r)
	}

	return ScoreResult{
		Score:          Percent(correct, total),
		CorrectAnswers: correct,
		TotalExercises: total,
		Results:        results,
	}, nil
}

// Percent возвращает round(100 × part / whole).
func Percent(part, whole int) int {
	if whole <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(part) / float64(whole)))
}
