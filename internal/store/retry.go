package store

import (
	"time"

	"github.com/sethvargo/go-retry"
)

// Default retry settings.
const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = time.Second
	DefaultMaxDelay    = 5 * time.Second
)

// RetryPolicy describes how the Executor spaces retries of transient failures.
// The delay after failed attempt i (0-based) is min(BaseDelay*2^i, MaxDelay).
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryPolicy returns three attempts with delays of 1s then 2s,
// capped at 5s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: DefaultMaxAttempts,
		BaseDelay:   DefaultBaseDelay,
		MaxDelay:    DefaultMaxDelay,
	}
}

// normalized fills zero or invalid fields with defaults.
func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = DefaultBaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = DefaultMaxDelay
	}
	if p.MaxDelay < p.BaseDelay {
		p.MaxDelay = p.BaseDelay
	}
	return p
}

// Backoff returns the delay sequence for a call allowed maxAttempts attempts:
// it yields maxAttempts-1 delays and then stops.
func (p RetryPolicy) Backoff(maxAttempts int) retry.Backoff {
	p = p.normalized()
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	b := retry.NewExponential(p.BaseDelay)
	b = retry.WithCappedDuration(p.MaxDelay, b)
	return retry.WithMaxRetries(uint64(maxAttempts-1), b)
}
