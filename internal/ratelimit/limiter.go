// Package ratelimit implements fixed-window admission control keyed by
// (caller, endpoint). Counters are in-memory and best-effort: a process
// restart resets them, which is an accepted soft-limit approximation.
package ratelimit

import (
	"sync"
	"time"
)

type key struct {
	caller   string
	endpoint string
}

type window struct {
	startedAt time.Time
	hits      int
}

// Limiter admits at most `limit` requests per window per (caller, endpoint).
// Windows are anchored to the first request of each caller, not to epoch
// boundaries, so resets do not synchronize across callers. The increment and
// the check happen under one lock so concurrent bursts cannot undercount.
type Limiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	now     func() time.Time
	windows map[key]*window
	maxKeys int
}

func NewLimiter(limit int, windowSize time.Duration) *Limiter {
	if limit <= 0 {
		limit = 10
	}
	if windowSize <= 0 {
		windowSize = time.Minute
	}

	return &Limiter{
		limit:   limit,
		window:  windowSize,
		now:     func() time.Time { return time.Now().UTC() },
		windows: make(map[key]*window),
		maxKeys: 10000,
	}
}

// WithClock substitutes the wall clock, for deterministic window tests.
func (l *Limiter) WithClock(now func() time.Time) *Limiter {
	l.now = now
	return l
}

// Admit reports whether the request may proceed. When denied, retryAfter is
// the time remaining until the caller's window resets, never below one
// second so a Retry-After header rounds to something actionable.
func (l *Limiter) Admit(caller, endpoint string) (bool, time.Duration) {
	now := l.now()
	k := key{caller: caller, endpoint: endpoint}

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[k]
	if !ok || now.Sub(w.startedAt) >= l.window {
		l.windows[k] = &window{startedAt: now, hits: 1}
		l.sweepLocked(now)
		return true, 0
	}

	if w.hits >= l.limit {
		retryAfter := w.startedAt.Add(l.window).Sub(now)
		if retryAfter < time.Second {
			retryAfter = time.Second
		}
		return false, retryAfter
	}

	w.hits++
	return true, 0
}

// sweepLocked drops expired windows once the key map outgrows its cap.
// Called with l.mu held.
func (l *Limiter) sweepLocked(now time.Time) {
	if len(l.windows) <= l.maxKeys {
		return
	}

	for k, w := range l.windows {
		if now.Sub(w.startedAt) >= l.window {
			delete(l.windows, k)
		}
	}
}
