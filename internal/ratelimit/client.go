package ratelimit

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/chartx/internal/metrics"
	"github.com/desertthunder/chartx/internal/models"
	"github.com/desertthunder/chartx/internal/shared"
)

// ErrExhaustedRetries is matched by the error returned once every attempt has failed.
var ErrExhaustedRetries = fmt.Errorf("retries exhausted")

// Sleeper blocks for d or until ctx is done.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// SleeperFunc adapts a function to [Sleeper].
type SleeperFunc func(ctx context.Context, d time.Duration) error

func (f SleeperFunc) Sleep(ctx context.Context, d time.Duration) error {
	return f(ctx, d)
}

// TimerSleeper sleeps on a real timer and returns ctx.Err() on cancellation.
type TimerSleeper struct{}

func (TimerSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// ClientOpts configures a [Client]. Zero values are replaced with defaults.
type ClientOpts struct {
	Policy  models.RetryPolicy
	Sleeper Sleeper
	Jitter  func() float64 // returns a value in [0, 1)
	Logger  *log.Logger
	Metrics *metrics.Metrics
}

// Client executes calls under a [models.RetryPolicy].
type Client struct {
	policy  models.RetryPolicy
	sleeper Sleeper
	jitter  func() float64
	logger  *log.Logger
	metrics *metrics.Metrics
}

// NewClient creates a [Client], defaulting to [models.DefaultRetryPolicy], a real timer and math/rand jitter.
func NewClient(opts ClientOpts) *Client {
	if opts.Policy.MaxAttempts <= 0 {
		opts.Policy = models.DefaultRetryPolicy()
	}
	if opts.Sleeper == nil {
		opts.Sleeper = TimerSleeper{}
	}
	if opts.Jitter == nil {
		opts.Jitter = rand.Float64
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	return &Client{
		policy:  opts.Policy,
		sleeper: opts.Sleeper,
		jitter:  opts.Jitter,
		logger:  opts.Logger,
		metrics: opts.Metrics,
	}
}

// Policy returns the policy the client was built with.
func (c *Client) Policy() models.RetryPolicy {
	return c.policy
}

// Sleep delegates to the client's [Sleeper] so callers share one clock.
func (c *Client) Sleep(ctx context.Context, d time.Duration) error {
	return c.sleeper.Sleep(ctx, d)
}

// Call runs fn until it succeeds, fails fatally, or the attempt cap is reached.
func (c *Client) Call(ctx context.Context, op string, fn func(context.Context) error) error {
	var lastErr error

	for attempt := 0; attempt < c.policy.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		class, hint := Classify(err)
		c.metrics.IncError(op, class.String())

		if class == ClassFatal {
			c.logger.Debug("call failed, not retrying", "op", op, "attempt", attempt+1, "reason", class, "error", err)
			return err
		}

		if attempt == c.policy.MaxAttempts-1 {
			break
		}

		wait := c.Backoff(attempt, class, hint)
		c.logger.Warn("call failed, backing off", "op", op, "attempt", attempt+1, "wait", wait, "reason", class, "error", err)
		c.metrics.IncRetry(op, class.String())

		if err := c.sleeper.Sleep(ctx, wait); err != nil {
			return err
		}
	}

	c.logger.Error("retries exhausted", "op", op, "attempts", c.policy.MaxAttempts, "error", lastErr)
	return fmt.Errorf("%s: %w after %d attempts: %w", op, ErrExhaustedRetries, c.policy.MaxAttempts, lastErr)
}

// Do is the value-returning form of [Client.Call].
func Do[T any](ctx context.Context, c *Client, op string, fn func(context.Context) (T, error)) (T, error) {
	var result T
	err := c.Call(ctx, op, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		result = v
		return nil
	})
	return result, err
}

// Backoff computes the wait before retrying after the 0-based attempt.
func (c *Client) Backoff(attempt int, class Class, hint time.Duration) time.Duration {
	p := c.policy

	exp := float64(p.BaseDelay) * math.Pow(2, float64(attempt))
	jitter := c.jitter() * float64(p.MaxJitter)
	wait := exp + jitter

	if class == ClassRateLimited {
		if hint <= 0 {
			hint = p.DefaultHint
		}
		wait = math.Max(wait, float64(hint))
	}

	if wait > float64(p.MaxWait) {
		return p.MaxWait
	}
	return time.Duration(wait)
}
