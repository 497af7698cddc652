package queue

import (
	"math"
	"time"

	"vidforge/internal/config"
)

// RetryPolicy bounds job attempts and spaces retries exponentially.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64
}

// DefaultRetryPolicy allows three attempts with 10s and 20s waits between them.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: 10 * time.Second, Multiplier: 2}
}

// PolicyFromConfig builds the policy from [queue] settings.
func PolicyFromConfig(cfg config.Queue) RetryPolicy {
	return RetryPolicy{
		MaxAttempts: cfg.MaxAttempts,
		BaseDelay:   time.Duration(cfg.BackoffBaseSeconds) * time.Second,
		Multiplier:  cfg.BackoffMultiplier,
	}
}

// Backoff returns the wait before the attempt following failed attempt n (1-based).
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	mult := p.Multiplier
	if mult < 1 {
		mult = 1
	}
	return time.Duration(float64(p.BaseDelay) * math.Pow(mult, float64(attempt-1)))
}

// Exhausted reports whether attempt n was the last one allowed.
func (p RetryPolicy) Exhausted(attempt int) bool {
	return attempt >= p.MaxAttempts
}
