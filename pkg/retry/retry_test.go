package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPolicy(maxAttempts int) Policy {
	return Policy{
		MaxAttempts:     maxAttempts,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
		Multiplier:      2.0,
	}
}

func TestRetrySucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastPolicy(3), func() error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryRecoversAfterTransientFailures(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastPolicy(3), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryExhaustsAttempts(t *testing.T) {
	calls := 0
	boom := errors.New("still failing")
	err := Retry(context.Background(), fastPolicy(3), func() error {
		calls++
		return boom
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 3, calls)
}

func TestRetryStopsOnFatalError(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastPolicy(5), func() error {
		calls++
		return NewFatalError(errors.New("broken request"))
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls, "fatal errors must not be retried")
}

func TestRetryCallbackReceivesAttempts(t *testing.T) {
	var attempts []int
	calls := 0
	err := RetryWithCallback(context.Background(), fastPolicy(3), func() error {
		calls++
		return errors.New("transient")
	}, func(attempt int, err error, nextDelay time.Duration) {
		attempts = append(attempts, attempt)
		assert.Error(t, err)
		assert.Greater(t, nextDelay, time.Duration(0))
	})
	require.Error(t, err)
	assert.Equal(t, []int{1, 2}, attempts, "callback fires before each scheduled retry")
	assert.Equal(t, 3, calls)
}

func TestRetryHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	err := Retry(ctx, Policy{
		MaxAttempts:     10,
		InitialInterval: time.Hour,
		MaxInterval:     time.Hour,
		Multiplier:      2.0,
	}, func() error {
		calls++
		cancel()
		return errors.New("transient")
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls, "cancellation stops further attempts")
}

func TestRetryableErrorWrapping(t *testing.T) {
	base := errors.New("root cause")
	wrapped := NewRetryableError(base)
	assert.True(t, wrapped.IsRetryable())
	assert.ErrorIs(t, wrapped, base)

	fatal := NewFatalError(base)
	assert.True(t, fatal.IsFatal())
	assert.ErrorIs(t, fatal, base)

	assert.Nil(t, NewRetryableError(nil))
	assert.Nil(t, NewFatalError(nil))
}
