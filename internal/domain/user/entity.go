// Package user содержит агрегат пользователя: счётчики XP и перьев, серию,
// положение в лиге и подписки. Все изменения счётчиков идут через методы
// агрегата, каждый из которых сохраняет инварианты.
package user

import (
	"regexp"
	"strings"
	"time"

	"github.com/featherlingo/featherlingo-api/internal/domain/league"
	"github.com/featherlingo/featherlingo-api/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// Role - роль пользователя.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// IsValid проверяет роль.
func (r Role) IsValid() bool {
	return r == RoleUser || r == RoleAdmin
}

var (
	usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_]{3,30}$`)
	emailRegex    = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

// MinPasswordLength - минимальная длина пароля.
const MinPasswordLength = 8

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: USER
// ══════════════════════════════════════════════════════════════════════════════

// User - агрегат пользователя.
// Инварианты: XP, перья и серия неотрицательны; уровень = floor(XP/1000)+1.
type User struct {
	ID               string
	Username         string
	Email            string
	PasswordHash     string
	DisplayName      string
	NativeLanguage   shared.Language
	LearningLanguage shared.Language
	Role             Role

	XP       shared.XP
	Feathers int
	Streak   Streak
	League   league.Standing

	FollowersCount int
	FollowingCount int

	// Version - счётчик оптимистичной блокировки.
	Version   int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewUserParams - параметры регистрации.
type NewUserParams struct {
	ID               string
	Username         string
	Email            string
	PasswordHash     string
	DisplayName      string
	NativeLanguage   string
	LearningLanguage string
}

// ValidateCredentials проверяет логин, почту и пароль до хеширования.
func ValidateCredentials(username, email, password string) error {
	if !usernameRegex.MatchString(strings.TrimSpace(username)) {
		return shared.ErrInvalidUsername
	}
	if !emailRegex.MatchString(strings.TrimSpace(email)) {
		return shared.ErrInvalidEmail
	}
	if len(password) < MinPasswordLength {
		return shared.ErrWeakPassword
	}
	return nil
}

// New создаёт пользователя в самой нижней лиге.
func New(p NewUserParams, ladder *league.Ladder) (*User, error) {
	if p.ID == "" {
		return nil, shared.NewDomainError("user", "New", shared.ErrInvalidID, "user id is required")
	}
	username := strings.TrimSpace(p.Username)
	if !usernameRegex.MatchString(username) {
		return nil, shared.ErrInvalidUsername
	}
	email := strings.ToLower(strings.TrimSpace(p.Email))
	if !emailRegex.MatchString(email) {
		return nil, shared.ErrInvalidEmail
	}
	if p.PasswordHash == "" {
		return nil, shared.ErrWeakPassword
	}

	native, err := optionalLanguage(p.NativeLanguage, "en")
	if err != nil {
		return nil, err
	}
	learning, err := optionalLanguage(p.LearningLanguage, "es")
	if err != nil {
		return nil, err
	}

	displayName := strings.TrimSpace(p.DisplayName)
	if displayName == "" {
		displayName = username
	}

	now := time.Now().UTC()
	return &User{
		ID:               p.ID,
		Username:         username,
		Email:            email,
		PasswordHash:     p.PasswordHash,
		DisplayName:      displayName,
		NativeLanguage:   native,
		LearningLanguage: learning,
		Role:             RoleUser,
		Streak:           Streak{Goal: DefaultStreakGoal},
		League:           league.NewStanding(ladder),
		Version:          1,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

func optionalLanguage(code, fallback string) (shared.Language, error) {
	if strings.TrimSpace(code) == "" {
		code = fallback
	}
	return shared.NewLanguage(code)
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN METHODS (атомарные переходы)
// ══════════════════════════════════════════════════════════════════════════════

// Level возвращает floor(XP/1000)+1.
func (u *User) Level() shared.Level {
	return u.XP.Level()
}

// IsAdmin возвращает true для администратора.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// GrantReward начисляет XP и перья. Отрицательные значения запрещены.
func (u *User) GrantReward(xp, feathers int) error {
	if xp < 0 || feathers < 0 {
		return shared.ErrNegativeReward
	}
	u.XP += shared.XP(xp)
	u.Feathers += feathers
	u.touch()
	return nil
}

// RecordLessonCompletion обновляет серию за пройденный урок.
func (u *User) RecordLessonCompletion(now time.Time) StreakChange {
	change := u.Streak.RecordCompletion(now)
	u.touch()
	return change
}

// ApplyLessonReward начисляет награду за пройденный урок и продлевает серию.
// Либо применяется всё, либо ничего.
func (u *User) ApplyLessonReward(xp, feathers int, now time.Time) (StreakChange, error) {
	if xp < 0 || feathers < 0 {
		return StreakChange{}, shared.ErrNegativeReward
	}
	u.XP += shared.XP(xp)
	u.Feathers += feathers
	change := u.Streak.RecordCompletion(now)
	u.touch()
	return change, nil
}

// ApplyQuestReward начисляет награду за задание. Серия не меняется.
func (u *User) ApplyQuestReward(xp, feathers int) error {
	return u.GrantReward(xp, feathers)
}

// AddLeaguePoints начисляет очки лиги с возможным повышением.
func (u *User) AddLeaguePoints(ladder *league.Ladder, amount int) (league.PointsChange, error) {
	change, err := u.League.AddPoints(ladder, amount)
	if err != nil {
		return league.PointsChange{}, err
	}
	u.touch()
	return change, nil
}

// LeaderboardEntry возвращает строку таблицы лидеров для пользователя.
func (u *User) LeaderboardEntry() league.Entry {
	return league.Entry{
		UserID:      u.ID,
		Username:    u.Username,
		DisplayName: u.DisplayName,
		League:      u.League.League,
		Points:      u.League.Points,
		XP:          u.XP.Int(),
	}
}

func (u *User) touch() {
	u.UpdatedAt = time.Now().UTC()
}
