package services

import (
	"sync"
	"time"
)

// RateLimitResult reports the outcome of a sliding-window check for one
// source identifier. Remaining and ResetAt feed the standard
// X-RateLimit-* response headers.
type RateLimitResult struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RateLimiterConfig holds the sliding window parameters
type RateLimiterConfig struct {
	MaxRequests int
	Window      time.Duration
}

// SlidingWindowLimiter enforces N requests per window, keyed by source
// identifier. Each key has its own lock so unrelated sources never
// contend; check-and-admit for one key is a single atomic unit.
type SlidingWindowLimiter struct {
	config RateLimiterConfig

	mu      sync.Mutex
	sources map[string]*sourceWindow
}

type sourceWindow struct {
	mu         sync.Mutex
	timestamps []time.Time
}

// NewSlidingWindowLimiter creates a new SlidingWindowLimiter
func NewSlidingWindowLimiter(config RateLimiterConfig) *SlidingWindowLimiter {
	return &SlidingWindowLimiter{
		config:  config,
		sources: make(map[string]*sourceWindow),
	}
}

// Check performs an atomic check-and-admit for the source identifier.
// Admitted requests count toward the window; denied requests do not, so
// repeated denials report an identical ResetAt.
func (l *SlidingWindowLimiter) Check(sourceID string) RateLimitResult {
	window := l.window(sourceID)

	window.mu.Lock()
	defer window.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-l.config.Window)

	// Prune entries that slid out of the window
	live := window.timestamps[:0]
	for _, ts := range window.timestamps {
		if ts.After(cutoff) {
			live = append(live, ts)
		}
	}
	window.timestamps = live

	result := RateLimitResult{Limit: l.config.MaxRequests}

	if len(window.timestamps) >= l.config.MaxRequests {
		result.Allowed = false
		result.Remaining = 0
		result.ResetAt = window.timestamps[0].Add(l.config.Window)
		return result
	}

	window.timestamps = append(window.timestamps, now)
	result.Allowed = true
	result.Remaining = l.config.MaxRequests - len(window.timestamps)
	result.ResetAt = window.timestamps[0].Add(l.config.Window)
	return result
}

// Purge drops source entries whose whole window has expired. Called
// periodically by the cleanup manager to bound memory.
func (l *SlidingWindowLimiter) Purge() int {
	cutoff := time.Now().Add(-l.config.Window)

	l.mu.Lock()
	defer l.mu.Unlock()

	purged := 0
	for id, window := range l.sources {
		window.mu.Lock()
		stale := len(window.timestamps) == 0 || !window.timestamps[len(window.timestamps)-1].After(cutoff)
		window.mu.Unlock()
		if stale {
			delete(l.sources, id)
			purged++
		}
	}
	return purged
}

func (l *SlidingWindowLimiter) window(sourceID string) *sourceWindow {
	l.mu.Lock()
	defer l.mu.Unlock()

	window, ok := l.sources[sourceID]
	if !ok {
		window = &sourceWindow{}
		l.sources[sourceID] = window
	}
	return window
}
