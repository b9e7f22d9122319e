// Unified retry policy.
//
// Generation retries and submission retries share one policy shape (max
// attempts, exponential backoff schedule) parameterized per component, so
// failure semantics stay consistent and testable in one place.
package services

import "time"

// RetryPolicy describes a bounded exponential backoff schedule.
type RetryPolicy struct {
	// MaxAttempts is the total try budget, including the first attempt.
	MaxAttempts int
	// Base is the delay before the first retry.
	Base time.Duration
	// Multiplier grows the delay per subsequent retry.
	Multiplier float64
	// Cap bounds any single delay; zero means uncapped.
	Cap time.Duration
}

// SubmissionRetryPolicy is the default schedule for platform dispatch:
// base 30s, doubling per retry, six attempts total.
func SubmissionRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 6, Base: 30 * time.Second, Multiplier: 2}
}

// GenerationRetryPolicy is the default schedule for generation requests.
func GenerationRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, Base: 5 * time.Second, Multiplier: 2}
}

// Exhausted reports whether the budget allows no further attempt after the
// given completed attempt number.
func (p RetryPolicy) Exhausted(attempt int) bool {
	return attempt >= p.MaxAttempts
}

// Backoff returns the delay to wait after the given completed attempt number
// (1-based). Attempt numbers past the budget return the capped maximum.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := float64(p.Base)
	for i := 1; i < attempt; i++ {
		d *= p.Multiplier
	}
	out := time.Duration(d)
	if p.Cap > 0 && out > p.Cap {
		out = p.Cap
	}
	return out
}
