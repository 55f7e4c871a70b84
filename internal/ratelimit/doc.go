// Package ratelimit wraps single outbound calls with classification-driven retry and backoff.
//
// # Classification
//
// A failed call is sorted into one of three classes by [Classify]:
//   - [ClassRateLimited] : the error exposes RetryAfter() time.Duration
//   - [ClassFatal] : the error exposes Fatal() bool returning true, or the context ended
//   - [ClassTransient] : everything else, retried up to the attempt cap
//
// Upstream packages opt in by implementing those methods on their error types,
// so this package never depends on a particular API client.
//
// # Backoff
//
// For 0-based attempt n the wait is base*2^n plus a uniform jitter in [0, MaxJitter).
// A rate-limited wait is raised to the hint (or the policy default) and every wait is capped by MaxWait.
//
// Exhausting every attempt returns an error matching [ErrExhaustedRetries] that still wraps the last upstream error.
package ratelimit
