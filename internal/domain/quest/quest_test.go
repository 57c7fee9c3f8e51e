package quest

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/featherlingo/featherlingo-api/internal/domain/shared"
)

var monday = time.Date(2026, 6, 8, 15, 0, 0, 0, time.UTC)

func TestNewCatalog_Validation(t *testing.T) {
	_, err := NewCatalog([]Definition{{ID: "q", Kind: KindDaily, Metric: "nope", Target: 1}})
	assert.True(t, errors.Is(err, shared.ErrUnknownQuestMetric))

	_, err = NewCatalog([]Definition{{ID: "q", Kind: KindDaily, Metric: MetricTotalXP, Target: 0}})
	assert.True(t, errors.Is(err, shared.ErrInvalidQuest))

	dup := Definition{ID: "q", Kind: KindDaily, Metric: MetricTotalXP, Target: 1}
	_, err = NewCatalog([]Definition{dup, dup})
	assert.True(t, errors.Is(err, shared.ErrInvalidQuest))

	c := DefaultCatalog()
	assert.Equal(t, len(DefaultDefinitions()), c.Len())

	_, err = c.Get("missing")
	assert.True(t, shared.IsNotFound(err))
}

func TestEvaluate_ProgressCappedAtTarget(t *testing.T) {
	def := Definition{ID: "streak_7", Kind: KindAchievement, Metric: MetricCurrentStreak, Target: 7}

	st := Evaluate(def, Stats{CurrentStreak: 3}, monday)
	assert.Equal(t, 3, st.Current)
	assert.InDelta(t, 3.0/7.0, st.Progress, 1e-9)
	assert.False(t, st.Completed)
	assert.Equal(t, "all", st.PeriodKey)

	st = Evaluate(def, Stats{CurrentStreak: 12}, monday)
	assert.Equal(t, 7, st.Current)
	assert.Equal(t, 1.0, st.Progress)
	assert.True(t, st.Completed)
}

func TestPeriodKey(t *testing.T) {
	assert.Equal(t, "2026-06-08", PeriodKey(KindDaily, monday))
	assert.Equal(t, "2026-W24", PeriodKey(KindWeekly, monday))
	assert.Equal(t, "all", PeriodKey(KindAchievement, monday))
}

func TestEvaluateAll_MarksClaimed(t *testing.T) {
	c := DefaultCatalog()
	stats := Stats{LessonsToday: 3, CurrentStreak: 7}
	claimed := map[string]bool{ClaimKey("daily_three_lessons", "2026-06-08"): true}

	statuses := EvaluateAll(c, stats, claimed, monday)
	require.Len(t, statuses, c.Len())

	byID := map[string]Status{}
	for _, s := range statuses {
		byID[s.Definition.ID] = s
	}
	assert.True(t, byID["daily_three_lessons"].Completed)
	assert.True(t, byID["daily_three_lessons"].Claimed)
	assert.True(t, byID["streak_7"].Completed)
	assert.False(t, byID["streak_7"].Claimed)
	assert.False(t, byID["streak_30"].Completed)

	// next day the daily quest is claimable again
	next := EvaluateAll(c, stats, claimed, monday.AddDate(0, 0, 1))
	for _, s := range next {
		if s.Definition.ID == "daily_three_lessons" {
			assert.False(t, s.Claimed)
		}
	}
}

func TestNewClaim(t *testing.T) {
	def := Definition{ID: "xp_1000", Kind: KindAchievement, Metric: MetricTotalXP, Target: 1000, Reward: Reward{Feathers: 25}}

	_, err := NewClaim("c1", "u1", Evaluate(def, Stats{TotalXP: 10}, monday), monday)
	assert.True(t, errors.Is(err, shared.ErrQuestNotCompleted))
	assert.True(t, shared.IsValidation(err))

	st := Evaluate(def, Stats{TotalXP: 1500}, monday)
	claim, err := NewClaim("c1", "u1", st, monday)
	require.NoError(t, err)
	assert.Equal(t, 25, claim.Feathers)
	assert.Equal(t, "all", claim.PeriodKey)

	st.Claimed = true
	_, err = NewClaim("c2", "u1", st, monday)
	assert.True(t, errors.Is(err, shared.ErrQuestAlreadyClaimed))
	assert.True(t, shared.IsConflict(err))
}
