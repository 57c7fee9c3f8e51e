package user

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/featherlingo/featherlingo-api/internal/domain/league"
	"github.com/featherlingo/featherlingo-api/internal/domain/shared"
)

func newTestUser(t *testing.T) *User {
	t.Helper()
	u, err := New(NewUserParams{
		ID:           "11111111-1111-1111-1111-111111111111",
		Username:     "maria_l",
		Email:        "Maria@Example.com",
		PasswordHash: "hash",
	}, league.DefaultLadder())
	require.NoError(t, err)
	return u
}

func TestNew_Defaults(t *testing.T) {
	u := newTestUser(t)

	assert.Equal(t, "maria@example.com", u.Email)
	assert.Equal(t, "maria_l", u.DisplayName)
	assert.Equal(t, RoleUser, u.Role)
	assert.Equal(t, "Bronze", u.League.League)
	assert.Equal(t, 1, u.League.Week)
	assert.Equal(t, 1, u.Level().Int())
	assert.Equal(t, 1, u.Version)
}

func TestNew_Validation(t *testing.T) {
	ladder := league.DefaultLadder()

	_, err := New(NewUserParams{ID: "x", Username: "a", Email: "a@b.co", PasswordHash: "h"}, ladder)
	assert.True(t, errors.Is(err, shared.ErrInvalidUsername))

	_, err = New(NewUserParams{ID: "x", Username: "valid_name", Email: "nope", PasswordHash: "h"}, ladder)
	assert.True(t, errors.Is(err, shared.ErrInvalidEmail))

	_, err = New(NewUserParams{ID: "x", Username: "valid_name", Email: "a@b.co", PasswordHash: "h", LearningLanguage: "spanish"}, ladder)
	assert.True(t, shared.IsValidation(err))
}

func TestValidateCredentials(t *testing.T) {
	assert.NoError(t, ValidateCredentials("learner_1", "l@x.io", "longenough"))
	assert.True(t, errors.Is(ValidateCredentials("learner_1", "l@x.io", "short"), shared.ErrWeakPassword))
}

func TestGrantReward_LevelFollowsXP(t *testing.T) {
	u := newTestUser(t)

	require.NoError(t, u.GrantReward(999, 3))
	assert.Equal(t, 1, u.Level().Int())

	require.NoError(t, u.GrantReward(1, 0))
	assert.Equal(t, 2, u.Level().Int())
	assert.Equal(t, 1000, u.XP.Int())
	assert.Equal(t, 3, u.Feathers)

	err := u.GrantReward(-1, 0)
	assert.True(t, errors.Is(err, shared.ErrNegativeReward))
	assert.Equal(t, 1000, u.XP.Int())
}

func TestRecordLessonCompletion(t *testing.T) {
	u := newTestUser(t)
	ch := u.RecordLessonCompletion(time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC))
	assert.Equal(t, 1, ch.New)
	assert.Equal(t, 1, u.Streak.Count)
}

func TestAddLeaguePoints_Promotion(t *testing.T) {
	u := newTestUser(t)
	ladder := league.DefaultLadder()

	ch, err := u.AddLeaguePoints(ladder, 1200)
	require.NoError(t, err)
	assert.True(t, ch.Promoted)
	assert.Equal(t, "Silver", u.League.League)

	entry := u.LeaderboardEntry()
	assert.Equal(t, 1200, entry.Points)
	assert.Equal(t, "Silver", entry.League)
}

func TestApplyLessonReward(t *testing.T) {
	u := newTestUser(t)
	day := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	ch, err := u.ApplyLessonReward(38, 4, day)
	require.NoError(t, err)
	assert.Equal(t, 38, u.XP.Int())
	assert.Equal(t, 4, u.Feathers)
	assert.Equal(t, 1, ch.New)

	ch, err = u.ApplyLessonReward(10, 1, day.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Equal(t, 2, ch.New)

	_, err = u.ApplyLessonReward(-5, 0, day.AddDate(0, 0, 2))
	assert.True(t, errors.Is(err, shared.ErrNegativeReward))
	assert.Equal(t, 48, u.XP.Int())
	assert.Equal(t, 2, u.Streak.Count)
}

func TestApplyQuestReward_KeepsStreak(t *testing.T) {
	u := newTestUser(t)
	require.NoError(t, u.ApplyQuestReward(50, 10))
	assert.Equal(t, 50, u.XP.Int())
	assert.Equal(t, 10, u.Feathers)
	assert.Equal(t, 0, u.Streak.Count)
}
