package server

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// RateLimiter allows one event per key every minInterval. It remembers a
// bounded number of keys; the least recently seen are forgotten first.
type RateLimiter struct {
	mu          sync.Mutex
	minInterval time.Duration
	lastSeen    *lru.Cache[string, time.Time]
	now         func() time.Time
}

func NewRateLimiter(minInterval time.Duration, maxKeys int) *RateLimiter {
	if maxKeys <= 0 {
		maxKeys = 10000
	}
	cache, err := lru.New[string, time.Time](maxKeys)
	if err != nil {
		// only fails for a non-positive size
		panic(err)
	}
	return &RateLimiter{
		minInterval: minInterval,
		lastSeen:    cache,
		now:         time.Now,
	}
}

func (r *RateLimiter) Allow(key string) (bool, time.Duration) {
	if r == nil || r.minInterval <= 0 {
		return true, 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	last, ok := r.lastSeen.Get(key)
	if !ok {
		r.lastSeen.Add(key, now)
		return true, 0
	}
	elapsed := now.Sub(last)
	if elapsed < r.minInterval {
		return false, r.minInterval - elapsed
	}
	r.lastSeen.Add(key, now)
	return true, 0
}
