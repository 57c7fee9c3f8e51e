package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errFlaky = errors.New("flaky")

func fastRetrier(opts ...Option) *Retrier {
	return New(append([]Option{
		WithMaxAttempts(4),
		WithInitialDelay(time.Millisecond),
		WithMaxDelay(2 * time.Millisecond),
	}, opts...)...)
}

func TestRetrier_RetriesRetryableErrors(t *testing.T) {
	calls := 0
	var retried []int
	r := fastRetrier(WithOnRetry(func(attempt int, _ error, _ time.Duration) {
		retried = append(retried, attempt)
	}))

	err := r.Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return Retryable(errFlaky)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, retried)
}

func TestRetrier_GivesUpAndUnwraps(t *testing.T) {
	calls := 0
	err := fastRetrier().Do(context.Background(), func(context.Context) error {
		calls++
		return Retryable(errFlaky)
	})
	assert.Equal(t, 4, calls)
	assert.ErrorIs(t, err, errFlaky)
	assert.False(t, IsRetryable(err))
}

func TestRetrier_PermanentStopsImmediately(t *testing.T) {
	calls := 0
	r := fastRetrier(WithRetryIf(func(error) bool { return true }))

	err := r.Do(context.Background(), func(context.Context) error {
		calls++
		return Permanent(errFlaky)
	})
	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, err, errFlaky)
	assert.True(t, IsPermanent(Permanent(errFlaky)))
	assert.NoError(t, Permanent(nil))
}

func TestDatabaseRetrier_UsesPredicate(t *testing.T) {
	calls := 0
	r := DatabaseRetrier(func(err error) bool { return errors.Is(err, errFlaky) })

	err := r.Do(context.Background(), func(context.Context) error {
		calls++
		return errors.New("constraint")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)

	calls = 0
	err = r.Do(context.Background(), func(context.Context) error {
		calls++
		return errFlaky
	})
	assert.ErrorIs(t, err, errFlaky)
	assert.Equal(t, 3, calls)
}
