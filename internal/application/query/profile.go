// Package query содержит операции чтения (CQRS - Queries).
// Запросы никогда не меняют состояние: только читают и собирают DTO.
package query

import (
	"context"
	"time"

	"github.com/featherlingo/featherlingo-api/internal/domain/user"
	"github.com/featherlingo/featherlingo-api/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROFILE QUERY
// Профиль текущего пользователя: уровень, серия, лига.
// ══════════════════════════════════════════════════════════════════════════════

// StreakDTO - серия в ответе API.
type StreakDTO struct {
	Count          int        `json:"count"`
	Current        int        `json:"current"`
	Level          int        `json:"level"`
	Freezes        int        `json:"freezes"`
	Goal           int        `json:"goal"`
	LastLessonDate *time.Time `json:"lastLessonDate,omitempty"`
}

// LeagueDTO - положение в лиге.
type LeagueDTO struct {
	Name   string `json:"name"`
	Points int    `json:"points"`
	Week   int    `json:"week"`
}

// ProfileDTO - профиль пользователя.
type ProfileDTO struct {
	ID               string    `json:"id"`
	Username         string    `json:"username"`
	Email            string    `json:"email"`
	DisplayName      string    `json:"displayName"`
	NativeLanguage   string    `json:"nativeLanguage"`
	LearningLanguage string    `json:"learningLanguage"`
	Role             string    `json:"role"`
	XP               int       `json:"xp"`
	Level            int       `json:"level"`
	LevelProgress    int       `json:"levelProgress"`
	NextLevelXP      int       `json:"nextLevelXp"`
	Feathers         int       `json:"feathers"`
	Streak           StreakDTO `json:"streak"`
	League           LeagueDTO `json:"league"`
	FollowersCount   int       `json:"followersCount"`
	FollowingCount   int       `json:"followingCount"`
	CreatedAt        time.Time `json:"createdAt"`
}

// NewProfileDTO собирает профиль. Current - серия с учётом пропущенных дней.
func NewProfileDTO(u *user.User, now time.Time) ProfileDTO {
	return ProfileDTO{
		ID:               u.ID,
		Username:         u.Username,
		Email:            u.Email,
		DisplayName:      u.DisplayName,
		NativeLanguage:   u.NativeLanguage.String(),
		LearningLanguage: u.LearningLanguage.String(),
		Role:             string(u.Role),
		XP:               u.XP.Int(),
		Level:            u.Level().Int(),
		LevelProgress:    u.XP.ProgressToNextLevel(),
		NextLevelXP:      (u.Level() + 1).RequiredXP(),
		Feathers:         u.Feathers,
		Streak: StreakDTO{
			Count:          u.Streak.Count,
			Current:        u.Streak.Current(now),
			Level:          u.Streak.Level,
			Freezes:        u.Streak.Freezes,
			Goal:           u.Streak.Goal,
			LastLessonDate: u.Streak.LastLessonDate,
		},
		League: LeagueDTO{
			Name:   u.League.League,
			Points: u.League.Points,
			Week:   u.League.Week,
		},
		FollowersCount: u.FollowersCount,
		FollowingCount: u.FollowingCount,
		CreatedAt:      u.CreatedAt,
	}
}

// ProfileHandler читает профиль.
type ProfileHandler struct {
	users user.Repository
	clock timeutil.Clock
}

// NewProfileHandler создаёт ProfileHandler.
func NewProfileHandler(users user.Repository, clock timeutil.Clock) *ProfileHandler {
	if clock == nil {
		clock = timeutil.Now
	}
	return &ProfileHandler{users: users, clock: clock}
}

// Handle возвращает профиль пользователя userID.
func (h *ProfileHandler) Handle(ctx context.Context, userID string) (*ProfileDTO, error) {
	u, err := h.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	dto := NewProfileDTO(u, h.clock())
	return &dto, nil
}
