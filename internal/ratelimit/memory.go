// Package ratelimit provides fixed-window request counting per credential.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// windowKey identifies one credential's counter within one window.
type windowKey struct {
	keyID string
	index int64
}

// MemoryLimiter implements a fixed-window counter keyed by
// (credential, windowIndex) where windowIndex = floor(now / window).
// Check-and-increment happens under one lock so concurrent requests at a
// window boundary can neither double-count nor under-count.
type MemoryLimiter struct {
	mu        sync.Mutex
	window    time.Duration
	counts    map[windowKey]int
	lastEvict int64
	nowFunc   func() time.Time
}

// NewMemoryLimiter creates a limiter with the given window duration.
func NewMemoryLimiter(window time.Duration) *MemoryLimiter {
	if window <= 0 {
		window = time.Minute
	}
	return &MemoryLimiter{
		window:  window,
		counts:  make(map[windowKey]int),
		nowFunc: time.Now,
	}
}

// Allow increments the current window's counter and reports true while the
// count stays within limit. A denied request does not consume budget.
func (l *MemoryLimiter) Allow(_ context.Context, keyID string, limit int) (bool, int, error) {
	if limit <= 0 {
		limit = 1
	}
	now := l.nowFunc()
	idx := now.UnixNano() / int64(l.window)
	key := windowKey{keyID: keyID, index: idx}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.evict(idx)

	count := l.counts[key]
	if count >= limit {
		return false, 0, nil
	}
	l.counts[key] = count + 1
	return true, limit - count - 1, nil
}

// evict drops counters from windows older than the previous one. Windows are
// never explicitly closed; stale keys simply become unreachable and are
// swept once per window rollover.
func (l *MemoryLimiter) evict(currentIdx int64) {
	if currentIdx == l.lastEvict {
		return
	}
	l.lastEvict = currentIdx
	for k := range l.counts {
		if k.index < currentIdx-1 {
			delete(l.counts, k)
		}
	}
}
