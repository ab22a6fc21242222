package coordinator

import (
	"math"
	"strings"
	"time"
)

// BackoffStrategy selects how RetryPolicy.Delay scales with attempt number.
type BackoffStrategy string

const (
	BackoffConstant    BackoffStrategy = "constant"
	BackoffLinear      BackoffStrategy = "linear"
	BackoffExponential BackoffStrategy = "exponential"
)

// RetryPolicy governs whether and how many times the coordinator retries a
// transient failure from a player-triggered action (purchase, prestige
// reset) within the same call. Delay is computed for the caller's
// ErrorHandler to log or expose, but the coordinator never sleeps on it:
// the core has no awaits, so a policy's InitialDelay/MaxDelay only shape
// the number recorded alongside a retry, not real wall-clock waiting.
type RetryPolicy struct {
	MaxAttempts     int
	InitialDelay    time.Duration
	MaxDelay        time.Duration
	BackoffStrategy BackoffStrategy
	// RetryableErrors restricts retries to errors whose message contains one
	// of these substrings. Empty means every error is retryable.
	RetryableErrors []string
}

// DefaultRetryPolicy makes up to 3 attempts (2 retries) with exponential
// backoff.
func DefaultRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts:     3,
		InitialDelay:    100 * time.Millisecond,
		MaxDelay:        2 * time.Second,
		BackoffStrategy: BackoffExponential,
	}
}

// NoRetryPolicy never retries: the first failure is final.
func NoRetryPolicy() *RetryPolicy { return &RetryPolicy{MaxAttempts: 1} }

// ShouldRetry reports whether err matches this policy's retryable set.
func (rp *RetryPolicy) ShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if len(rp.RetryableErrors) == 0 {
		return true
	}
	msg := err.Error()
	for _, pattern := range rp.RetryableErrors {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

// Delay computes the nominal backoff before retry attempt (1-indexed).
func (rp *RetryPolicy) Delay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	var delay time.Duration
	switch rp.BackoffStrategy {
	case BackoffConstant:
		delay = rp.InitialDelay
	case BackoffLinear:
		delay = rp.InitialDelay * time.Duration(attempt)
	case BackoffExponential:
		delay = time.Duration(float64(rp.InitialDelay) * math.Pow(2, float64(attempt-1)))
	default:
		delay = rp.InitialDelay
	}
	if rp.MaxDelay > 0 && delay > rp.MaxDelay {
		delay = rp.MaxDelay
	}
	return delay
}

// ErrorHandler observes a retried action's failed attempts. delay is the
// policy's nominal backoff for the next attempt (not actually waited on).
type ErrorHandler func(action string, attempt int, delay time.Duration, err error)

// Execute runs fn up to MaxAttempts times, calling onError after every
// failed attempt that will be retried. A nil policy or MaxAttempts <= 0
// runs fn exactly once. Returns the last error if every attempt failed.
func (rp *RetryPolicy) Execute(fn func() error, onError func(attempt int, delay time.Duration, err error)) error {
	if rp == nil || rp.MaxAttempts <= 0 {
		return fn()
	}
	var lastErr error
	for attempt := 1; attempt <= rp.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if attempt >= rp.MaxAttempts || !rp.ShouldRetry(err) {
			break
		}
		if onError != nil {
			onError(attempt, rp.Delay(attempt), err)
		}
	}
	return lastErr
}

// retryAction runs fn under the coordinator's configured retry policy,
// routing failed attempts through its configured error handler.
func (c *Coordinator) retryAction(name string, fn func() error) error {
	return c.retryPolicy.Execute(fn, func(attempt int, delay time.Duration, err error) {
		if c.onError != nil {
			c.onError(name, attempt, delay, err)
		}
	})
}
