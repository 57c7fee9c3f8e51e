package quest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/featherlingo/featherlingo-api/internal/domain/progress"
)

type sinceCounter struct {
	calls []time.Time
	err   error
}

func (c *sinceCounter) CompletionStats(_ context.Context, _ string, since time.Time) (progress.CompletionStats, error) {
	c.calls = append(c.calls, since)
	if c.err != nil {
		return progress.CompletionStats{}, c.err
	}
	switch {
	case since.IsZero():
		return progress.CompletionStats{Completed: 40, Perfect: 12}, nil
	case since.Weekday() == time.Monday:
		return progress.CompletionStats{Completed: 9, Perfect: 5}, nil
	default:
		return progress.CompletionStats{Completed: 2, Perfect: 1}, nil
	}
}

func TestCollectStats(t *testing.T) {
	// Wednesday 10 June 2026; the ISO week starts on Monday 8 June.
	now := time.Date(2026, 6, 10, 15, 0, 0, 0, time.UTC)
	counter := &sinceCounter{}

	stats, err := CollectStats(context.Background(), counter, Snapshot{
		UserID: "u1", CurrentStreak: 4, TotalXP: 1200, LeaguePoints: 300,
	}, now)
	require.NoError(t, err)

	require.Len(t, counter.calls, 3)
	assert.Equal(t, time.Date(2026, 6, 10, 0, 0, 0, 0, time.UTC), counter.calls[0])
	assert.Equal(t, time.Date(2026, 6, 8, 0, 0, 0, 0, time.UTC), counter.calls[1])
	assert.True(t, counter.calls[2].IsZero())

	assert.Equal(t, Stats{
		LessonsToday:    2,
		LessonsThisWeek: 9,
		PerfectThisWeek: 5,
		LessonsTotal:    40,
		CurrentStreak:   4,
		TotalXP:         1200,
		LeaguePoints:    300,
	}, stats)
}

func TestCollectStats_Error(t *testing.T) {
	_, err := CollectStats(context.Background(), &sinceCounter{err: errors.New("db down")}, Snapshot{UserID: "u1"}, time.Now())
	assert.Error(t, err)
}
