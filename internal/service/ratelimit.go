package service

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	limiterIdleTTL         = 10 * time.Minute
	limiterCleanupInterval = time.Minute
)

// limiterStore maintains per-key rate limiters and drops entries that have
// been idle for a while so the map does not grow with every conversation a
// user ever typed in.
type limiterStore struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	entries map[string]*limiterEntry
	stopCh  chan struct{}
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newLimiterStore(perSecond float64, burst int) *limiterStore {
	s := &limiterStore{
		limit:   rate.Limit(perSecond),
		burst:   burst,
		entries: make(map[string]*limiterEntry),
		stopCh:  make(chan struct{}),
	}
	go s.cleanupLoop()
	return s
}

func (s *limiterStore) cleanupLoop() {
	ticker := time.NewTicker(limiterCleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			cutoff := time.Now().Add(-limiterIdleTTL)
			s.mu.Lock()
			for k, e := range s.entries {
				if e.lastSeen.Before(cutoff) {
					delete(s.entries, k)
				}
			}
			s.mu.Unlock()
		case <-s.stopCh:
			return
		}
	}
}

// Stop stops the cleanup goroutine (useful for tests).
func (s *limiterStore) Stop() {
	close(s.stopCh)
}

func (s *limiterStore) Allow(key string) bool {
	s.mu.Lock()
	e, ok := s.entries[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(s.limit, s.burst)}
		s.entries[key] = e
	}
	e.lastSeen = time.Now()
	s.mu.Unlock()
	return e.limiter.Allow()
}
