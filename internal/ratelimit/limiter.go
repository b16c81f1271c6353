package ratelimit

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/carson-networks/ingest-server/internal/ledger"
)

// CounterStore increments a windowed counter atomically. The window's reset
// time is fixed by the first increment and is not extended by later ones.
type CounterStore interface {
	Increment(ctx context.Context, key string, window time.Duration, now time.Time) (count int64, resetAt time.Time, err error)
}

// Policy is one fixed-window limit.
type Policy struct {
	Prefix string
	Limit  int64
	Window time.Duration
}

var (
	// DefaultImportPolicy is strict: imports are expensive.
	DefaultImportPolicy = Policy{Prefix: "ratelimit:import:", Limit: 5, Window: time.Hour}
	// DefaultAPIPolicy covers general traffic.
	DefaultAPIPolicy = Policy{Prefix: "ratelimit:api:", Limit: 100, Window: time.Minute}
)

// Result describes the state of the caller's window after a request.
type Result struct {
	Allowed   bool
	Bypassed  bool
	Limit     int64
	Remaining int64
	ResetAt   time.Time
}

// Limiter applies a Policy against a CounterStore.
type Limiter struct {
	store  CounterStore
	policy Policy
	now    func() time.Time
	log    logrus.FieldLogger
}

func NewLimiter(store CounterStore, policy Policy, log logrus.FieldLogger) *Limiter {
	return &Limiter{
		store:  store,
		policy: policy,
		now:    time.Now,
		log:    log,
	}
}

// WithClock replaces the limiter's time source.
func (l *Limiter) WithClock(now func() time.Time) *Limiter {
	l.now = now
	return l
}

func (l *Limiter) Policy() Policy {
	return l.policy
}

// Allow counts one request for identity. A rejected request returns a
// *ledger.RateLimitExceeded error alongside the result.
//
// Requests with no identity are allowed without counting: the limiter
// mitigates abuse, it does not authenticate. A failing counter store also
// lets the request through.
func (l *Limiter) Allow(ctx context.Context, identity string) (Result, error) {
	if identity == "" {
		return Result{Allowed: true, Bypassed: true, Limit: l.policy.Limit, Remaining: l.policy.Limit}, nil
	}

	count, resetAt, err := l.store.Increment(ctx, l.policy.Prefix+identity, l.policy.Window, l.now())
	if err != nil {
		l.log.WithError(err).WithField("key", l.policy.Prefix+identity).Warn("RateLimiter.Allow.storeError")
		return Result{Allowed: true, Bypassed: true, Limit: l.policy.Limit, Remaining: l.policy.Limit}, nil
	}

	remaining := l.policy.Limit - count
	if remaining < 0 {
		remaining = 0
	}
	result := Result{
		Allowed:   count <= l.policy.Limit,
		Limit:     l.policy.Limit,
		Remaining: remaining,
		ResetAt:   resetAt,
	}
	if !result.Allowed {
		return result, &ledger.RateLimitExceeded{Limit: result.Limit, Remaining: result.Remaining, ResetAt: resetAt}
	}
	return result, nil
}

// Identity picks the counter identity: the user when known, else the client IP.
func Identity(userID, ip string) string {
	switch {
	case userID != "":
		return "user:" + userID
	case ip != "":
		return "ip:" + ip
	}
	return ""
}
