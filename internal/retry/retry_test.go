package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPolicy() Policy {
	return Policy{MaxAttempts: 3, Delay: time.Millisecond, Multiplier: 1}
}

func TestDo_SucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	got, err := Do(context.Background(), fastPolicy(), func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", &RetryableError{Service: "embed", StatusCode: 503}
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 3, calls)
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	calls := 0
	var retried []int
	p := fastPolicy()
	p.OnRetry = func(attempt int, _ error, _ time.Duration) { retried = append(retried, attempt) }

	boom := errors.New("boom")
	_, err := Do(context.Background(), p, func(context.Context) (int, error) {
		calls++
		return 0, boom
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, retried)
}

func TestDo_PermanentStopsImmediately(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), fastPolicy(), func(context.Context) (int, error) {
		calls++
		return 0, Permanent(errors.New("unauthorized"))
	})
	require.Error(t, err)
	assert.True(t, IsPermanent(err))
	assert.Equal(t, 1, calls)
}

func TestDo_MaxElapsedBoundsWaiting(t *testing.T) {
	p := Policy{MaxAttempts: 10, Delay: time.Hour, MaxElapsed: 20 * time.Millisecond}
	start := time.Now()
	_, err := Do(context.Background(), p, func(context.Context) (int, error) {
		return 0, &RetryableError{Service: "chat", StatusCode: 429}
	})
	require.Error(t, err)
	assert.True(t, IsTransient(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestDo_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	_, err := Do(ctx, fastPolicy(), func(ctx context.Context) (int, error) {
		calls++
		return 0, ctx.Err()
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestBackoff(t *testing.T) {
	fixed := Policy{Delay: time.Second, Multiplier: 1}
	assert.Equal(t, time.Second, fixed.Backoff(1))
	assert.Equal(t, time.Second, fixed.Backoff(3))

	exp := Policy{Delay: time.Second, Multiplier: 2, MaxDelay: 5 * time.Second}
	assert.Equal(t, time.Second, exp.Backoff(1))
	assert.Equal(t, 2*time.Second, exp.Backoff(2))
	assert.Equal(t, 5*time.Second, exp.Backoff(4))

	jittered := Policy{Delay: time.Second, Multiplier: 1, Jitter: true}
	for range 20 {
		d := jittered.Backoff(1)
		assert.GreaterOrEqual(t, d, time.Second)
		assert.Less(t, d, 1500*time.Millisecond)
	}
}

func TestRetryableErrorMessageTruncated(t *testing.T) {
	long := make([]byte, 500)
	for i := range long {
		long[i] = 'a'
	}
	err := &RetryableError{Service: "embed", StatusCode: 500, Message: string(long)}
	assert.Less(t, len(err.Error()), 300)
}
