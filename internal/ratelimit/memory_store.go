package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

type counterWindow struct {
	count   int64
	resetAt time.Time
}

// MemoryStore keeps counters in process. Expired windows are evicted by the
// cache janitor; window boundaries themselves follow the caller's clock.
type MemoryStore struct {
	mu    sync.Mutex
	cache *cache.Cache
}

var _ CounterStore = (*MemoryStore)(nil)

func NewMemoryStore(cleanupInterval time.Duration) *MemoryStore {
	return &MemoryStore{cache: cache.New(cache.NoExpiration, cleanupInterval)}
}

func (s *MemoryStore) Increment(_ context.Context, key string, window time.Duration, now time.Time) (int64, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok := s.cache.Get(key); ok {
		w := v.(*counterWindow)
		if now.Before(w.resetAt) {
			w.count++
			return w.count, w.resetAt, nil
		}
	}

	w := &counterWindow{count: 1, resetAt: now.Add(window)}
	s.cache.Set(key, w, window)
	return w.count, w.resetAt, nil
}
