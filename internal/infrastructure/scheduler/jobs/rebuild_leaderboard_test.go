package jobs

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/featherlingo/featherlingo-api/internal/domain/league"
)

type pagedSource struct {
	entries []league.Entry
	calls   int
	err     error
}

func (p *pagedSource) Entries(_ context.Context, offset, limit int) ([]league.Entry, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	if offset >= len(p.entries) {
		return nil, nil
	}
	end := min(offset+limit, len(p.entries))
	return p.entries[offset:end], nil
}

type capturingCache struct {
	got []league.Entry
	err error
}

func (c *capturingCache) Rebuild(_ context.Context, entries []league.Entry) error {
	c.got = entries
	return c.err
}

func makeEntries(n int) []league.Entry {
	out := make([]league.Entry, n)
	for i := range out {
		name := "Bronze"
		if i%2 == 1 {
			name = "Silver"
		}
		out[i] = league.Entry{UserID: fmt.Sprintf("u%d", i), League: name, Points: i}
	}
	return out
}

func TestRebuildLeaderboard_PagesEverything(t *testing.T) {
	src := &pagedSource{entries: makeEntries(7)}
	cache := &capturingCache{}
	job := NewRebuildLeaderboardJob(src, cache, nil, RebuildLeaderboardConfig{BatchSize: 3})

	require.NoError(t, job.Run(context.Background()))

	assert.Len(t, cache.got, 7)
	assert.Equal(t, 3, src.calls)
	stats := job.LastStats()
	require.NotNil(t, stats)
	assert.Equal(t, 7, stats.Entries)
	assert.Equal(t, 2, stats.Leagues)
}

func TestRebuildLeaderboard_ExactMultipleOfBatch(t *testing.T) {
	src := &pagedSource{entries: makeEntries(6)}
	cache := &capturingCache{}
	job := NewRebuildLeaderboardJob(src, cache, nil, RebuildLeaderboardConfig{BatchSize: 3})

	require.NoError(t, job.Run(context.Background()))
	assert.Len(t, cache.got, 6)
	assert.Equal(t, 3, src.calls)
}

func TestRebuildLeaderboard_SkipsWhenLocked(t *testing.T) {
	src := &pagedSource{entries: makeEntries(2)}
	cache := &capturingCache{}
	held := func(context.Context, string, time.Duration) (func(context.Context) error, bool, error) {
		return nil, false, nil
	}
	job := NewRebuildLeaderboardJob(src, cache, held, RebuildLeaderboardConfig{})

	require.NoError(t, job.Run(context.Background()))
	assert.Zero(t, src.calls)
	assert.Nil(t, job.LastStats())
}

func TestRebuildLeaderboard_ReleasesLock(t *testing.T) {
	var resource string
	released := false
	lock := func(_ context.Context, res string, _ time.Duration) (func(context.Context) error, bool, error) {
		resource = res
		return func(context.Context) error { released = true; return nil }, true, nil
	}
	cache := &capturingCache{err: errors.New("redis down")}
	job := NewRebuildLeaderboardJob(&pagedSource{entries: makeEntries(1)}, cache, lock, RebuildLeaderboardConfig{})

	err := job.Run(context.Background())
	assert.ErrorContains(t, err, "redis down")
	assert.Equal(t, RebuildLeaderboardName, resource)
	assert.True(t, released)
}

func TestRebuildLeaderboard_SourceError(t *testing.T) {
	cache := &capturingCache{}
	job := NewRebuildLeaderboardJob(&pagedSource{err: errors.New("timeout")}, cache, nil, RebuildLeaderboardConfig{})

	assert.ErrorContains(t, job.Run(context.Background()), "timeout")
	assert.Nil(t, cache.got)
}
