package store

import "time"

// RetryPolicy bounds the primary-tier write attempts. The backoff schedule is
// a plain sequence of delays so tests can substitute a zero-delay schedule.
type RetryPolicy struct {
	Attempts       int
	Backoff        []time.Duration // delay before attempt 2, 3, ...
	AttemptTimeout time.Duration
}

// DefaultRetryPolicy is three attempts with 1s/2s/4s backoff and a 5s
// per-attempt timeout.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Attempts:       3,
		Backoff:        []time.Duration{time.Second, 2 * time.Second, 4 * time.Second},
		AttemptTimeout: 5 * time.Second,
	}
}

// delayBefore returns the pause preceding the given 1-based attempt number.
func (p RetryPolicy) delayBefore(attempt int) time.Duration {
	idx := attempt - 2
	if idx < 0 || idx >= len(p.Backoff) {
		return 0
	}
	return p.Backoff[idx]
}
