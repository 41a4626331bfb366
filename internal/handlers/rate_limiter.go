package handlers

import (
	"strings"
	"sync"
	"time"
)

// Login and registration share a fixed-window throttle keyed by client IP.
// Counts live in process memory; each instance enforces its own window, which
// is enough to damp credential stuffing without shared state.
type rateLimiter interface {
	Allow(key string) bool
}

type fixedWindowLimiter struct {
	limit  int
	window time.Duration
	clock  func() time.Time

	mu      sync.Mutex
	windows map[string]attemptWindow
}

type attemptWindow struct {
	startedAt time.Time
	attempts  int
}

func newFixedWindowLimiter(limit int, window time.Duration, clock func() time.Time) rateLimiter {
	if limit <= 0 || window <= 0 {
		return nil
	}
	if clock == nil {
		clock = time.Now
	}
	return &fixedWindowLimiter{
		limit:   limit,
		window:  window,
		clock:   clock,
		windows: make(map[string]attemptWindow),
	}
}

func (l *fixedWindowLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	key = strings.TrimSpace(key)
	if key == "" {
		key = "anonymous"
	}
	now := l.clock()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.dropStaleLocked(now)

	current, ok := l.windows[key]
	if !ok {
		l.windows[key] = attemptWindow{startedAt: now, attempts: 1}
		return true
	}
	if current.attempts >= l.limit {
		return false
	}
	current.attempts++
	l.windows[key] = current
	return true
}

func (l *fixedWindowLimiter) dropStaleLocked(now time.Time) {
	for key, w := range l.windows {
		if now.Sub(w.startedAt) >= l.window {
			delete(l.windows, key)
		}
	}
}
