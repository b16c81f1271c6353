package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedSleeps struct {
	delays []time.Duration
}

func (r *recordedSleeps) Sleep(_ context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return nil
}

func TestDo_SucceedsAfterRetries(t *testing.T) {
	sleeps := &recordedSleeps{}
	calls := 0

	err := Do(context.Background(), Policy{
		MaxAttempts: 3,
		BackOff:     Constant(500 * time.Millisecond),
		Sleep:       sleeps.Sleep,
	}, func(_ context.Context, attempt int) error {
		calls++
		if attempt < 3 {
			return errors.New("deadlock detected")
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{500 * time.Millisecond, 500 * time.Millisecond}, sleeps.delays)
}

func TestDo_Exhausted(t *testing.T) {
	cause := errors.New("connection reset")

	err := Do(context.Background(), Policy{
		MaxAttempts: 2,
		Sleep:       (&recordedSleeps{}).Sleep,
	}, func(context.Context, int) error { return cause })

	var exhausted *ExhaustedError
	require.True(t, errors.As(err, &exhausted))
	assert.Equal(t, 2, exhausted.Attempts)
	assert.True(t, errors.Is(err, cause))
}

func TestDo_ExponentialSchedule(t *testing.T) {
	sleeps := &recordedSleeps{}

	_ = Do(context.Background(), Policy{
		MaxAttempts: 4,
		BackOff:     Exponential(time.Second, time.Minute),
		Sleep:       sleeps.Sleep,
	}, func(context.Context, int) error { return errors.New("timeout") })

	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, sleeps.delays)
}

func TestDo_PermanentStopsImmediately(t *testing.T) {
	cause := errors.New("ITEM_LOGIN_REQUIRED")
	calls := 0

	err := Do(context.Background(), Policy{MaxAttempts: 5}, func(context.Context, int) error {
		calls++
		return Permanent(cause)
	})

	assert.Equal(t, 1, calls)
	assert.Equal(t, cause, err)
}

func TestDo_NotRetryable(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Policy{
		MaxAttempts: 5,
		Retryable:   func(error) bool { return false },
	}, func(context.Context, int) error {
		calls++
		return errors.New("bad request")
	})

	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_ContextCancelledBetweenAttempts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	err := Do(ctx, Policy{MaxAttempts: 3, BackOff: Constant(time.Hour)}, func(context.Context, int) error {
		calls++
		cancel()
		return errors.New("temporary")
	})

	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 1, calls)
}
