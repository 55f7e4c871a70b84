package ratelimit

import (
	"context"
	"errors"
	"time"
)

// Class is the retry disposition of a failed call.
type Class int

const (
	ClassTransient Class = iota
	ClassRateLimited
	ClassFatal
)

func (c Class) String() string {
	switch c {
	case ClassRateLimited:
		return "rate_limited"
	case ClassFatal:
		return "fatal"
	default:
		return "transient"
	}
}

type rateLimited interface {
	RetryAfter() time.Duration
}

type fatal interface {
	Fatal() bool
}

// Classify sorts err and returns the rate-limit hint when one is present.
func Classify(err error) (Class, time.Duration) {
	if err == nil {
		return ClassTransient, 0
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ClassFatal, 0
	}

	var rl rateLimited
	if errors.As(err, &rl) {
		return ClassRateLimited, rl.RetryAfter()
	}

	var f fatal
	if errors.As(err, &f) && f.Fatal() {
		return ClassFatal, 0
	}

	return ClassTransient, 0
}
