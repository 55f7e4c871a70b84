package services

import (
	"errors"
	"fmt"
	"time"
)

// ErrRateLimited indicates the API answered 429. Wait carries the Retry-After hint, zero when absent.
type ErrRateLimited struct {
	Wait time.Duration
	Err  error
}

func (e ErrRateLimited) Error() string {
	return fmt.Errorf("rate_limited: %w", e.Err).Error()
}

func (e ErrRateLimited) Unwrap() error {
	return e.Err
}

// RetryAfter exposes the hint to the retry client.
func (e ErrRateLimited) RetryAfter() time.Duration {
	return e.Wait
}

// ErrTransient indicates a 5xx response or a network failure worth retrying.
type ErrTransient struct {
	Status int
	Err    error
}

func (e ErrTransient) Error() string {
	return fmt.Errorf("transient: %w", e.Err).Error()
}

func (e ErrTransient) Unwrap() error {
	return e.Err
}

// ErrFatal indicates a failure that retrying cannot fix (bad credentials, not found, bad request).
type ErrFatal struct {
	Status int
	Err    error
}

func (e ErrFatal) Error() string {
	return fmt.Errorf("fatal: %w", e.Err).Error()
}

func (e ErrFatal) Unwrap() error {
	return e.Err
}

// Fatal marks the error as non-retryable.
func (e ErrFatal) Fatal() bool {
	return true
}

func errorTypeLabel(err error) string {
	if err == nil {
		return "unknown"
	}
	var rateLimited ErrRateLimited
	if errors.As(err, &rateLimited) {
		return "rate_limited"
	}
	var transient ErrTransient
	if errors.As(err, &transient) {
		return "transient"
	}
	var fatal ErrFatal
	if errors.As(err, &fatal) {
		return "fatal"
	}
	return "other"
}
