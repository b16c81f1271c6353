package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carson-networks/ingest-server/internal/ledger"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type failingStore struct{}

func (failingStore) Increment(context.Context, string, time.Duration, time.Time) (int64, time.Time, error) {
	return 0, time.Time{}, errors.New("connection refused")
}

func newTestLimiter(limit int64, window time.Duration) (*Limiter, *fakeClock) {
	clock := &fakeClock{now: time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)}
	logger, _ := test.NewNullLogger()
	l := NewLimiter(NewMemoryStore(time.Minute), Policy{Prefix: "test:", Limit: limit, Window: window}, logger).
		WithClock(clock.Now)
	return l, clock
}

func TestLimiter_FixedWindow(t *testing.T) {
	l, clock := newTestLimiter(2, 60*time.Second)
	ctx := context.Background()

	first, err := l.Allow(ctx, "user:1")
	require.NoError(t, err)
	assert.True(t, first.Allowed)
	assert.Equal(t, int64(1), first.Remaining)

	clock.Advance(10 * time.Second)
	second, err := l.Allow(ctx, "user:1")
	require.NoError(t, err)
	assert.True(t, second.Allowed)
	assert.Equal(t, int64(0), second.Remaining)

	clock.Advance(10 * time.Second)
	third, err := l.Allow(ctx, "user:1")
	assert.False(t, third.Allowed)
	var exceeded *ledger.RateLimitExceeded
	require.True(t, errors.As(err, &exceeded))
	assert.Equal(t, int64(2), exceeded.Limit)
	assert.Equal(t, int64(0), exceeded.Remaining)

	clock.Advance(41 * time.Second)
	fourth, err := l.Allow(ctx, "user:1")
	require.NoError(t, err)
	assert.True(t, fourth.Allowed)
	assert.Equal(t, int64(1), fourth.Remaining)
}

func TestLimiter_WindowNotExtendedByRequests(t *testing.T) {
	l, clock := newTestLimiter(10, time.Minute)
	ctx := context.Background()

	first, err := l.Allow(ctx, "user:1")
	require.NoError(t, err)

	clock.Advance(50 * time.Second)
	later, err := l.Allow(ctx, "user:1")
	require.NoError(t, err)

	assert.Equal(t, first.ResetAt, later.ResetAt)
}

func TestLimiter_IdentitiesAreIndependent(t *testing.T) {
	l, _ := newTestLimiter(1, time.Minute)
	ctx := context.Background()

	_, err := l.Allow(ctx, "user:1")
	require.NoError(t, err)
	_, err = l.Allow(ctx, "user:1")
	assert.Error(t, err)

	res, err := l.Allow(ctx, "user:2")
	assert.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestLimiter_MissingIdentityFailsOpen(t *testing.T) {
	l, _ := newTestLimiter(1, time.Minute)

	for i := 0; i < 5; i++ {
		res, err := l.Allow(context.Background(), "")
		require.NoError(t, err)
		assert.True(t, res.Allowed)
		assert.True(t, res.Bypassed)
	}
}

func TestLimiter_StoreFailureFailsOpen(t *testing.T) {
	logger, hook := test.NewNullLogger()
	l := NewLimiter(failingStore{}, DefaultAPIPolicy, logger)

	res, err := l.Allow(context.Background(), "ip:10.0.0.1")

	assert.NoError(t, err)
	assert.True(t, res.Allowed)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
}

func TestIdentity(t *testing.T) {
	assert.Equal(t, "user:abc", Identity("abc", "10.0.0.1"))
	assert.Equal(t, "ip:10.0.0.1", Identity("", "10.0.0.1"))
	assert.Equal(t, "", Identity("", ""))
}
