// internal/scheduler/retry.go
package scheduler

import (
	"math"
	"math/rand"
	"time"

	"github.com/andresuchdata/freshrisk/internal/config"
)

// minRetryDelay floors the backoff so jitter can never produce a busy loop.
const minRetryDelay = 100 * time.Millisecond

// jitterFraction spreads retries by ±10% so failing jobs do not thunder in
// lockstep.
const jitterFraction = 0.1

// RetryPolicy decides how many times a failed job function is re-invoked and
// how long to wait between attempts.
type RetryPolicy struct {
	MaxRetries      int
	BaseDelay       time.Duration
	MaxDelay        time.Duration
	ExponentialBase float64
}

func NewRetryPolicy(cfg config.SchedulerConfig) RetryPolicy {
	return RetryPolicy{
		MaxRetries:      cfg.MaxRetries,
		BaseDelay:       cfg.BaseDelay,
		MaxDelay:        cfg.MaxDelay,
		ExponentialBase: cfg.ExponentialBase,
	}
}

// Delay returns the backoff before retry number attempt (1-based):
// base × exponential_base^(attempt-1), capped at MaxDelay, with jitter.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	delay := float64(p.BaseDelay) * math.Pow(p.ExponentialBase, float64(attempt-1))
	if delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}

	delay *= 1 + jitterFraction*(2*rand.Float64()-1)

	if delay < float64(minRetryDelay) {
		delay = float64(minRetryDelay)
	}
	return time.Duration(delay)
}
