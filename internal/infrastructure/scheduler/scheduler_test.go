package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingJob struct {
	name  string
	runs  atomic.Int32
	err   error
	panic bool
}

func (j *countingJob) Name() string { return j.name }

func (j *countingJob) Run(ctx context.Context) error {
	j.runs.Add(1)
	if j.panic {
		panic("boom")
	}
	return j.err
}

func TestScheduler_Every(t *testing.T) {
	s := New(Config{})

	job := &countingJob{name: "tick"}
	require.NoError(t, s.Every(20*time.Millisecond, job, true))
	s.Start()
	defer s.Stop()

	assert.Eventually(t, func() bool { return job.runs.Load() >= 2 }, time.Second, 5*time.Millisecond)
	assert.GreaterOrEqual(t, s.Stats()["tick"].Runs, int64(1))
}

func TestScheduler_RegisterValidation(t *testing.T) {
	s := New(Config{})

	assert.ErrorIs(t, s.Every(time.Second, nil, false), ErrNilJob)
	assert.ErrorIs(t, s.Every(0, &countingJob{name: "a"}, false), ErrInvalidInterval)

	require.NoError(t, s.Every(time.Hour, &countingJob{name: "a"}, false))
	assert.ErrorIs(t, s.Every(time.Hour, &countingJob{name: "a"}, false), ErrJobExists)
}

func TestScheduler_RunNowRecordsFailures(t *testing.T) {
	s := New(Config{JobTimeout: time.Second})

	failing := &countingJob{name: "fail", err: errors.New("db down")}
	panicking := &countingJob{name: "panic", panic: true}
	require.NoError(t, s.Every(time.Hour, failing, false))
	require.NoError(t, s.Every(time.Hour, panicking, false))

	assert.EqualError(t, s.RunNow("fail"), "db down")
	assert.ErrorContains(t, s.RunNow("panic"), "panicked")
	assert.ErrorIs(t, s.RunNow("missing"), ErrJobNotFound)

	stats := s.Stats()
	assert.Equal(t, int64(1), stats["fail"].Failures)
	assert.Equal(t, "db down", stats["fail"].LastError)
	assert.Equal(t, int64(1), stats["panic"].Failures)
}

func TestScheduler_RunNowAfterStop(t *testing.T) {
	s := New(Config{})
	require.NoError(t, s.Every(time.Hour, &countingJob{name: "a"}, false))
	s.Start()
	s.Stop()

	assert.ErrorIs(t, s.RunNow("a"), ErrSchedulerStopped)
}
