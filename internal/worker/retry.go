package worker

import (
	"math"
	"time"
)

// RetryPolicy is an exponential backoff schedule. MaxRetries counts retries
// after the first attempt; zero means a failed job is not retried.
type RetryPolicy struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// Exhausted reports whether a job that has failed attempts times is done.
func (r RetryPolicy) Exhausted(attempts int) bool {
	return attempts > r.MaxRetries
}

// NextDelay returns the wait before retry number attempt (1-based), capped at MaxDelay.
func (r RetryPolicy) NextDelay(attempt int) time.Duration {
	base := r.InitialDelay
	if base <= 0 {
		base = time.Second
	}
	factor := r.BackoffFactor
	if factor <= 0 {
		factor = 2
	}
	if attempt < 1 {
		attempt = 1
	}

	d := time.Duration(float64(base) * math.Pow(factor, float64(attempt-1)))
	if d <= 0 || (r.MaxDelay > 0 && d > r.MaxDelay) {
		if r.MaxDelay > 0 {
			return r.MaxDelay
		}
		return base
	}
	return d
}
