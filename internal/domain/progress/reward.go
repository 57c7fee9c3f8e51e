package progress

import (
	"math"

	"github.com/featherlingo/featherlingo-api/internal/domain/lesson"
)

// ══════════════════════════════════════════════════════════════════════════════
// REWARD ENGINE
// ══════════════════════════════════════════════════════════════════════════════

// PassingScore - минимальный счёт для завершения урока.
const PassingScore = 70

// Outcome - результат начисления награды.
type Outcome struct {
	Completed bool
	XP        int
	Feathers  int
}

// HasReward возвращает true, если есть что начислять.
func (o Outcome) HasReward() bool {
	return o.XP > 0 || o.Feathers > 0
}

// WithoutReward оставляет факт завершения, но обнуляет награду.
// Используется, когда награда за урок уже была выдана.
func (o Outcome) WithoutReward() Outcome {
	return Outcome{Completed: o.Completed}
}

// CalculateReward выводит награду из счёта и базовых значений урока.
// При счёте ниже порога награды нет.
func CalculateReward(score int, base lesson.Reward, threshold int) Outcome {
	if score < threshold {
		return Outcome{}
	}
	return Outcome{
		Completed: true,
		XP:        scale(base.XP, score),
		Feathers:  scale(base.Feathers, score),
	}
}

// scale возвращает round(base × score / 100).
func scale(base, score int) int {
	return int(math.Round(float64(base) * float64(score) / 100))
}
