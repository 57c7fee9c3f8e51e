package command

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/featherlingo/featherlingo-api/internal/domain/lesson"
	"github.com/featherlingo/featherlingo-api/internal/domain/progress"
	"github.com/featherlingo/featherlingo-api/internal/domain/quest"
	"github.com/featherlingo/featherlingo-api/internal/domain/shared"
	"github.com/featherlingo/featherlingo-api/internal/domain/user"
)

var (
	baseReward = lesson.Reward{XP: 50, Feathers: 5}
	always     = func() bool { return true }
)

func TestSubmitLesson_PartialScoreScalesReward(t *testing.T) {
	f := newFixture()
	f.addUser("u1", nil)
	f.addLesson("l1", 4, baseReward, nil)

	h := NewSubmitLessonHandler(f.rt, f.deps, SubmitOptions{AwardLeaguePoints: always})
	res, err := h.Handle(context.Background(), SubmitLessonCommand{
		UserID: "u1", LessonID: "l1", Answers: answers(3, 4), TimeSpent: 90,
	})
	require.NoError(t, err)

	assert.Equal(t, 75, res.Score)
	assert.Equal(t, 3, res.CorrectAnswers)
	assert.Equal(t, 4, res.TotalExercises)
	assert.True(t, res.IsCompleted)
	require.NotNil(t, res.Rewards)
	assert.Equal(t, 38, res.Rewards.XP)
	assert.Equal(t, 4, res.Rewards.Feathers)
	assert.Equal(t, 38, res.TotalXP)
	assert.Equal(t, 1, res.Streak)
	require.NotNil(t, res.League)
	assert.Equal(t, 38, res.League.NewPoints)

	u := f.user("u1")
	assert.Equal(t, 38, u.XP.Int())
	assert.Equal(t, 4, u.Feathers)
	assert.Equal(t, 1, u.Streak.Count)
	assert.Equal(t, 38, u.League.Points)

	p := f.store.progress[progressKey("u1", "l1")]
	assert.Equal(t, progress.StatusCompleted, p.Status)
	assert.Equal(t, 38, p.XPEarned)
	assert.Equal(t, 90, p.TimeSpent)

	assert.Contains(t, f.events.types(), shared.EventLessonCompleted)
	assert.Contains(t, f.events.types(), shared.EventStreakUpdated)
}

func TestSubmitLesson_LeaguePointsDisabled(t *testing.T) {
	f := newFixture()
	f.addUser("u1", nil)
	f.addLesson("l1", 2, baseReward, nil)

	h := NewSubmitLessonHandler(f.rt, f.deps, SubmitOptions{AwardLeaguePoints: func() bool { return false }})
	res, err := h.Handle(context.Background(), SubmitLessonCommand{UserID: "u1", LessonID: "l1", Answers: answers(2, 2)})
	require.NoError(t, err)

	assert.Nil(t, res.League)
	assert.Equal(t, 0, f.user("u1").League.Points)
	assert.Equal(t, 50, f.user("u1").XP.Int())
}

func TestSubmitLesson_ResubmitCompletedIsConflict(t *testing.T) {
	f := newFixture()
	f.addUser("u1", nil)
	f.addLesson("l1", 2, baseReward, nil)
	h := NewSubmitLessonHandler(f.rt, f.deps, SubmitOptions{})

	_, err := h.Handle(context.Background(), SubmitLessonCommand{UserID: "u1", LessonID: "l1", Answers: answers(2, 2)})
	require.NoError(t, err)
	before := f.user("u1")

	_, err = h.Handle(context.Background(), SubmitLessonCommand{UserID: "u1", LessonID: "l1", Answers: answers(2, 2)})
	require.ErrorIs(t, err, shared.ErrAlreadyCompleted)
	assert.True(t, shared.IsConflict(err))

	after := f.user("u1")
	assert.Equal(t, before.XP, after.XP)
	assert.Equal(t, before.Feathers, after.Feathers)
	assert.Equal(t, before.League.Points, after.League.Points)
	assert.Equal(t, before.Streak.Count, after.Streak.Count)
}

func TestSubmitLesson_CompletedLessonRejectsBeforeValidation(t *testing.T) {
	f := newFixture()
	f.addUser("u1", nil)
	f.addLesson("l1", 2, baseReward, nil)
	h := NewSubmitLessonHandler(f.rt, f.deps, SubmitOptions{})
	ctx := context.Background()

	_, err := h.Handle(ctx, SubmitLessonCommand{UserID: "u1", LessonID: "l1", Answers: answers(2, 2)})
	require.NoError(t, err)

	cases := map[string]SubmitLessonCommand{
		"no answers":     {UserID: "u1", LessonID: "l1"},
		"bad index":      {UserID: "u1", LessonID: "l1", Answers: []progress.Answer{{ExerciseIndex: 9, UserAnswer: "x"}}},
		"negative time":  {UserID: "u1", LessonID: "l1", Answers: answers(2, 2), TimeSpent: -5},
		"duplicate item": {UserID: "u1", LessonID: "l1", Answers: []progress.Answer{{ExerciseIndex: 0}, {ExerciseIndex: 0}}},
	}
	for name, cmd := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := h.Handle(ctx, cmd)
			require.ErrorIs(t, err, shared.ErrAlreadyCompleted)
			assert.True(t, shared.IsConflict(err))
		})
	}
}

func TestSubmitLesson_FailedAttemptGrantsNothing(t *testing.T) {
	f := newFixture()
	f.addUser("u1", nil)
	f.addLesson("l1", 4, baseReward, nil)
	h := NewSubmitLessonHandler(f.rt, f.deps, SubmitOptions{})

	res, err := h.Handle(context.Background(), SubmitLessonCommand{UserID: "u1", LessonID: "l1", Answers: answers(1, 4)})
	require.NoError(t, err)
	assert.False(t, res.IsCompleted)
	assert.Nil(t, res.Rewards)
	assert.Equal(t, 25, res.Score)
	assert.Equal(t, 0, f.user("u1").XP.Int())
	assert.Equal(t, progress.StatusFailed, f.store.progress[progressKey("u1", "l1")].Status)
	assert.Contains(t, f.events.types(), shared.EventLessonFailed)

	// failed lessons may be retried
	res, err = h.Handle(context.Background(), SubmitLessonCommand{UserID: "u1", LessonID: "l1", Answers: answers(4, 4)})
	require.NoError(t, err)
	assert.True(t, res.IsCompleted)
	assert.Equal(t, 50, f.user("u1").XP.Int())
	assert.Equal(t, 2, f.store.progress[progressKey("u1", "l1")].Attempts)
}

func TestSubmitLesson_RetriesLostRace(t *testing.T) {
	f := newFixture()
	f.addUser("u1", nil)
	f.addLesson("l1", 2, baseReward, nil)
	f.store.failUserUpdates = 1

	h := NewSubmitLessonHandler(f.rt, f.deps, SubmitOptions{})
	res, err := h.Handle(context.Background(), SubmitLessonCommand{UserID: "u1", LessonID: "l1", Answers: answers(2, 2)})
	require.NoError(t, err)

	assert.True(t, res.IsCompleted)
	assert.Equal(t, 2, f.store.userUpdates)
	assert.Equal(t, 50, f.user("u1").XP.Int(), "reward must be applied exactly once")
}

func TestSubmitLesson_GivesUpAfterRepeatedConflicts(t *testing.T) {
	f := newFixture()
	f.addUser("u1", nil)
	f.addLesson("l1", 2, baseReward, nil)
	f.store.failUserUpdates = 10

	h := NewSubmitLessonHandler(f.rt, f.deps, SubmitOptions{})
	_, err := h.Handle(context.Background(), SubmitLessonCommand{UserID: "u1", LessonID: "l1", Answers: answers(2, 2)})
	require.ErrorIs(t, err, shared.ErrConcurrentModification)

	assert.Equal(t, 0, f.user("u1").XP.Int())
	_, stored := f.store.progress[progressKey("u1", "l1")]
	assert.False(t, stored, "progress write must roll back with the user update")
}

func TestSubmitLesson_Validation(t *testing.T) {
	f := newFixture()
	f.addUser("u1", nil)
	f.addLesson("l1", 2, baseReward, nil)
	h := NewSubmitLessonHandler(f.rt, f.deps, SubmitOptions{})
	ctx := context.Background()

	_, err := h.Handle(ctx, SubmitLessonCommand{UserID: "u1", LessonID: "l1"})
	assert.True(t, shared.IsValidation(err))

	_, err = h.Handle(ctx, SubmitLessonCommand{UserID: "u1", LessonID: "l1", Answers: answers(2, 2), TimeSpent: -1})
	assert.True(t, shared.IsValidation(err))

	_, err = h.Handle(ctx, SubmitLessonCommand{UserID: "u1", LessonID: "l1", Answers: []progress.Answer{{ExerciseIndex: 5, UserAnswer: "x"}}})
	assert.True(t, shared.IsValidation(err))

	_, err = h.Handle(ctx, SubmitLessonCommand{UserID: "u1", LessonID: "missing", Answers: answers(1, 1)})
	assert.True(t, shared.IsNotFound(err))
}

func TestSubmitLesson_InactiveLessonIsHidden(t *testing.T) {
	f := newFixture()
	f.addUser("u1", nil)
	f.addLesson("l1", 2, baseReward, func(l *lesson.Lesson) { l.IsActive = false })

	_, err := NewSubmitLessonHandler(f.rt, f.deps, SubmitOptions{}).Handle(context.Background(),
		SubmitLessonCommand{UserID: "u1", LessonID: "l1", Answers: answers(2, 2)})
	assert.ErrorIs(t, err, shared.ErrLessonNotFound)
}

func TestStartLesson_Prerequisites(t *testing.T) {
	f := newFixture()
	f.addUser("u1", nil)
	f.addLesson("basics", 1, baseReward, nil)
	f.addLesson("advanced", 1, baseReward, func(l *lesson.Lesson) { l.Prerequisites = []string{"basics"} })
	ctx := context.Background()
	start := NewStartLessonHandler(f.rt, f.deps)

	_, err := start.Handle(ctx, "u1", "advanced")
	require.ErrorIs(t, err, shared.ErrPrerequisitesNotMet)
	assert.True(t, shared.IsConflict(err))

	_, err = NewSubmitLessonHandler(f.rt, f.deps, SubmitOptions{}).Handle(ctx,
		SubmitLessonCommand{UserID: "u1", LessonID: "advanced", Answers: answers(1, 1)})
	require.ErrorIs(t, err, shared.ErrPrerequisitesNotMet)

	_, err = NewSubmitLessonHandler(f.rt, f.deps, SubmitOptions{}).Handle(ctx,
		SubmitLessonCommand{UserID: "u1", LessonID: "basics", Answers: answers(1, 1)})
	require.NoError(t, err)

	p, err := start.Handle(ctx, "u1", "advanced")
	require.NoError(t, err)
	assert.Equal(t, progress.StatusInProgress, p.Status)
}

func TestStartLesson_IsIdempotent(t *testing.T) {
	f := newFixture()
	f.addUser("u1", nil)
	f.addLesson("l1", 1, baseReward, nil)
	start := NewStartLessonHandler(f.rt, f.deps)

	first, err := start.Handle(context.Background(), "u1", "l1")
	require.NoError(t, err)
	second, err := start.Handle(context.Background(), "u1", "l1")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, f.events.types(), 1)
}

func TestResetProgress_KeepsEarnedXP(t *testing.T) {
	f := newFixture()
	f.addUser("u1", nil)
	f.addLesson("l1", 1, baseReward, nil)
	ctx := context.Background()

	_, err := NewSubmitLessonHandler(f.rt, f.deps, SubmitOptions{}).Handle(ctx,
		SubmitLessonCommand{UserID: "u1", LessonID: "l1", Answers: answers(1, 1)})
	require.NoError(t, err)

	reset := NewResetProgressHandler(f.rt, f.deps.Progress)
	require.NoError(t, reset.Handle(ctx, "u1", "l1"))
	assert.Equal(t, 50, f.user("u1").XP.Int())

	err = reset.Handle(ctx, "u1", "l1")
	assert.ErrorIs(t, err, shared.ErrProgressNotFound)
}

func TestResetProgress_RecompletionGrantsNoSecondReward(t *testing.T) {
	f := newFixture()
	f.addUser("u1", nil)
	f.addLesson("l1", 1, baseReward, nil)
	ctx := context.Background()
	submit := NewSubmitLessonHandler(f.rt, f.deps, SubmitOptions{AwardLeaguePoints: always})
	reset := NewResetProgressHandler(f.rt, f.deps.Progress)

	first, err := submit.Handle(ctx, SubmitLessonCommand{UserID: "u1", LessonID: "l1", Answers: answers(1, 1)})
	require.NoError(t, err)
	require.Equal(t, &Rewards{XP: 50, Feathers: 5}, first.Rewards)
	before := f.user("u1")

	require.NoError(t, reset.Handle(ctx, "u1", "l1"))

	second, err := submit.Handle(ctx, SubmitLessonCommand{UserID: "u1", LessonID: "l1", Answers: answers(1, 1)})
	require.NoError(t, err)
	assert.True(t, second.IsCompleted)
	assert.Equal(t, &Rewards{}, second.Rewards)
	assert.Nil(t, second.League)
	assert.Zero(t, second.Progress.XPEarned)

	after := f.user("u1")
	assert.Equal(t, before.XP, after.XP)
	assert.Equal(t, before.Feathers, after.Feathers)
	assert.Equal(t, before.League.Points, after.League.Points)
	assert.Equal(t, progress.StatusCompleted, f.store.progress[progressKey("u1", "l1")].Status)
}

func TestSubmitLesson_RewardMarkRollsBackWithFailedTx(t *testing.T) {
	f := newFixture()
	f.addUser("u1", nil)
	f.addLesson("l1", 1, baseReward, nil)
	f.store.failUserUpdates = 10
	h := NewSubmitLessonHandler(f.rt, f.deps, SubmitOptions{})

	_, err := h.Handle(context.Background(), SubmitLessonCommand{UserID: "u1", LessonID: "l1", Answers: answers(1, 1)})
	require.Error(t, err)
	assert.False(t, f.store.rewarded[progressKey("u1", "l1")])

	f.store.failUserUpdates = 0
	res, err := h.Handle(context.Background(), SubmitLessonCommand{UserID: "u1", LessonID: "l1", Answers: answers(1, 1)})
	require.NoError(t, err)
	assert.Equal(t, &Rewards{XP: 50, Feathers: 5}, res.Rewards)
}

func TestAddLeaguePoints(t *testing.T) {
	f := newFixture()
	f.addUser("u1", nil)
	h := NewAddLeaguePointsHandler(f.rt, f.deps.Users, f.deps.Ladder)
	ctx := context.Background()

	change, err := h.Handle(ctx, "u1", 900)
	require.NoError(t, err)
	assert.False(t, change.Promoted)
	assert.Equal(t, "Bronze", change.NewLeague)

	change, err = h.Handle(ctx, "u1", 200)
	require.NoError(t, err)
	assert.True(t, change.Promoted)
	assert.Equal(t, "Bronze", change.OldLeague)
	assert.Equal(t, "Silver", change.NewLeague)
	assert.Equal(t, 1100, change.NewPoints)
	assert.Equal(t, 1, change.Week)
	assert.Equal(t, "Silver", f.user("u1").League.League)

	_, err = h.Handle(ctx, "u1", -5)
	assert.True(t, shared.IsValidation(err))
	assert.Equal(t, 1100, f.user("u1").League.Points)

	_, err = h.Handle(ctx, "ghost", 10)
	assert.ErrorIs(t, err, shared.ErrUserNotFound)
}

func TestClaimQuest(t *testing.T) {
	f := newFixture()
	today := time.Date(2026, 6, 10, 0, 0, 0, 0, time.UTC)
	f.addUser("u1", func(u *user.User) { u.Streak.Count = 7; u.Streak.LastLessonDate = &today })
	f.addUser("u2", nil)
	h := NewClaimQuestHandler(f.rt, f.deps.Users, f.deps.Progress, claimRepo{f.store}, quest.DefaultCatalog())
	ctx := context.Background()

	claim, err := h.Handle(ctx, "u1", "streak_7")
	require.NoError(t, err)
	assert.Equal(t, "all", claim.PeriodKey)
	assert.Equal(t, 50, f.user("u1").XP.Int())
	assert.Equal(t, 10, f.user("u1").Feathers)
	assert.Equal(t, 0, f.user("u1").League.Points)

	_, err = h.Handle(ctx, "u1", "streak_7")
	require.ErrorIs(t, err, shared.ErrQuestAlreadyClaimed)
	assert.True(t, shared.IsConflict(err))
	assert.Equal(t, 50, f.user("u1").XP.Int())

	_, err = h.Handle(ctx, "u2", "streak_7")
	require.ErrorIs(t, err, shared.ErrQuestNotCompleted)
	assert.True(t, shared.IsValidation(err))

	_, err = h.Handle(ctx, "u1", "nope")
	assert.ErrorIs(t, err, shared.ErrQuestNotFound)
}

func TestRegisterAndLogin(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	reg := NewRegisterHandler(f.rt, f.deps.Users, plainHasher{}, f.deps.Ladder)

	u, err := reg.Handle(ctx, RegisterCommand{Username: "maria", Email: "Maria@Example.com", Password: "secret123"})
	require.NoError(t, err)
	assert.Equal(t, "Bronze", u.League.League)
	assert.Equal(t, "maria@example.com", u.Email)
	assert.Contains(t, f.events.types(), shared.EventUserRegistered)

	_, err = reg.Handle(ctx, RegisterCommand{Username: "maria", Email: "other@example.com", Password: "secret123"})
	assert.ErrorIs(t, err, shared.ErrUserAlreadyExists)

	_, err = reg.Handle(ctx, RegisterCommand{Username: "x", Email: "x@example.com", Password: "secret123"})
	assert.True(t, shared.IsValidation(err))

	login := NewLoginHandler(f.deps.Users, plainHasher{}, stubTokens{})
	res, err := login.Handle(ctx, LoginCommand{Login: "maria", Password: "secret123"})
	require.NoError(t, err)
	assert.Equal(t, "token-"+u.ID+"-user", res.Token)

	_, err = login.Handle(ctx, LoginCommand{Login: "maria", Password: "wrong-pass"})
	assert.ErrorIs(t, err, shared.ErrInvalidCredentials)
	_, err = login.Handle(ctx, LoginCommand{Login: "nobody", Password: "secret123"})
	assert.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestFollow(t *testing.T) {
	f := newFixture()
	f.addUser("u1", nil)
	f.addUser("u2", nil)
	h := NewFollowHandler(f.rt, f.deps.Users, followRepo{f.store})
	ctx := context.Background()

	require.NoError(t, h.Follow(ctx, "u1", "u2"))
	assert.ErrorIs(t, h.Follow(ctx, "u1", "u2"), shared.ErrAlreadyFollowing)
	assert.ErrorIs(t, h.Follow(ctx, "u1", "u1"), shared.ErrSelfFollow)
	assert.ErrorIs(t, h.Follow(ctx, "u1", "ghost"), shared.ErrUserNotFound)

	require.NoError(t, h.Unfollow(ctx, "u1", "u2"))
	assert.ErrorIs(t, h.Unfollow(ctx, "u1", "u2"), shared.ErrNotFollowing)
}

func TestLessonAdmin(t *testing.T) {
	f := newFixture()
	f.addUser("admin", func(u *user.User) { u.Role = user.RoleAdmin })
	f.addUser("u1", nil)
	h := NewLessonAdminHandler(f.deps.Users, f.deps.Lessons)
	ctx := context.Background()

	params := lesson.NewLessonParams{
		ID: "greetings", Title: "Greetings", Language: "es", Reward: baseReward,
		Exercises: []lesson.Exercise{{Type: lesson.ExerciseTranslate, Prompt: "hello", CorrectAnswer: "hola", Points: 10}},
	}

	_, err := h.Create(ctx, CreateLessonCommand{ActorID: "u1", Lesson: params})
	require.ErrorIs(t, err, shared.ErrAdminRequired)
	assert.True(t, shared.IsForbidden(err))

	l, err := h.Create(ctx, CreateLessonCommand{ActorID: "admin", Lesson: params})
	require.NoError(t, err)
	assert.False(t, l.IsActive)

	_, err = h.Create(ctx, CreateLessonCommand{ActorID: "admin", Lesson: params})
	assert.ErrorIs(t, err, shared.ErrLessonAlreadyExists)

	l, err = h.SetActive(ctx, "admin", "greetings", true)
	require.NoError(t, err)
	assert.True(t, l.IsActive)

	params.Exercises = nil
	params.ID = "empty"
	_, err = h.Create(ctx, CreateLessonCommand{ActorID: "admin", Lesson: params})
	assert.ErrorIs(t, err, shared.ErrLessonHasNoExercises)
}
