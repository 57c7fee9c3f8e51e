package league

import (
	"math"

	"github.com/featherlingo/featherlingo-api/internal/domain/shared"
)

// MaxPoints - предел очков лиги, столбец хранит INTEGER.
const MaxPoints = math.MaxInt32

// Standing - положение пользователя в лиге.
type Standing struct {
	League string `json:"league"`
	Points int    `json:"points"`
	Week   int    `json:"week"`
}

// NewStanding возвращает положение нового пользователя.
func NewStanding(ladder *Ladder) Standing {
	return Standing{League: ladder.Lowest().Name, Points: 0, Week: 1}
}

// PointsChange - результат AddPoints.
type PointsChange struct {
	OldLeague string `json:"oldLeague"`
	NewLeague string `json:"newLeague"`
	OldPoints int    `json:"oldPoints"`
	NewPoints int    `json:"newPoints"`
	Promoted  bool   `json:"promoted"`
	Week      int    `json:"leagueWeek"`
}

// AddPoints начисляет очки лиги.
//
// Новая лига - самая высокая, чей минимум не больше нового итога.
// При смене лиги счётчик недель сбрасывается в 1, иначе увеличивается на 1.
func (s *Standing) AddPoints(ladder *Ladder, amount int) (PointsChange, error) {
	if amount < 0 {
		return PointsChange{}, shared.Detail(shared.ErrInvalidPoints, "points must be non-negative, got %d", amount)
	}
	if amount > MaxPoints-s.Points {
		return PointsChange{}, shared.Detail(shared.ErrInvalidPoints, "points total must not exceed %d", MaxPoints)
	}

	change := PointsChange{
		OldLeague: s.League,
		OldPoints: s.Points,
	}

	s.Points += amount
	tier := ladder.TierFor(s.Points)
	if tier.Name != s.League {
		s.League = tier.Name
		s.Week = 1
		change.Promoted = true
	} else {
		s.Week++
	}

	change.NewLeague = s.League
	change.NewPoints = s.Points
	change.Week = s.Week
	return change, nil
}
