// Package backoff computes how long a failed sync job waits before it is
// requeued. Strategies are stateless and safe for concurrent use.
package backoff

import (
	"math"
	"math/rand/v2"
	"time"

	"github.com/xraph/docsync/syncjob"
)

// MaxDelay caps every strategy built by ForPolicy.
const MaxDelay = time.Hour

// Strategy computes the delay before a retry attempt.
type Strategy interface {
	// Delay returns how long to wait before retry attempt n (1-indexed).
	Delay(attempt int) time.Duration
}

// StrategyFunc adapts a function to Strategy.
type StrategyFunc func(attempt int) time.Duration

// Delay calls f.
func (f StrategyFunc) Delay(attempt int) time.Duration { return f(attempt) }

// Constant waits the same interval before every retry.
type Constant struct {
	Interval time.Duration
}

// NewConstant creates a constant strategy.
func NewConstant(interval time.Duration) *Constant {
	return &Constant{Interval: interval}
}

// Delay returns the fixed interval.
func (c *Constant) Delay(int) time.Duration { return c.Interval }

// Linear waits Base × attempt, capped at Max.
type Linear struct {
	Base time.Duration
	Max  time.Duration
}

// NewLinear creates a linear strategy.
func NewLinear(base, maxDelay time.Duration) *Linear {
	return &Linear{Base: base, Max: maxDelay}
}

// Delay returns Base × attempt, capped at Max.
func (l *Linear) Delay(attempt int) time.Duration {
	return capped(l.Base*time.Duration(max(attempt, 1)), l.Max)
}

// Exponential waits Base × 2^(attempt-1), capped at Max. With Jitter the
// delay is drawn uniformly from [0, that value].
type Exponential struct {
	Base   time.Duration
	Max    time.Duration
	Jitter bool
}

// NewExponential creates an exponential strategy without jitter.
func NewExponential(base, maxDelay time.Duration) *Exponential {
	return &Exponential{Base: base, Max: maxDelay}
}

// NewExponentialWithJitter creates an exponential strategy with full jitter.
func NewExponentialWithJitter(base, maxDelay time.Duration) *Exponential {
	return &Exponential{Base: base, Max: maxDelay, Jitter: true}
}

// Delay returns the exponential delay for attempt.
func (e *Exponential) Delay(attempt int) time.Duration {
	f := float64(e.Base) * math.Pow(2, float64(max(attempt, 1)-1))
	if e.Max > 0 && f > float64(e.Max) {
		f = float64(e.Max)
	}
	if e.Jitter {
		f *= rand.Float64() //nolint:gosec // jitter does not need crypto rand
	}
	return time.Duration(f)
}

func capped(d, limit time.Duration) time.Duration {
	if limit > 0 && d > limit {
		return limit
	}
	return d
}

// ForPolicy returns the strategy a sync job type's backoff policy selects,
// with base as the type's retry delay. Unknown policies fall back to
// constant.
func ForPolicy(policy syncjob.BackoffPolicy, base time.Duration) Strategy {
	switch policy {
	case syncjob.BackoffLinear:
		return NewLinear(base, MaxDelay)
	case syncjob.BackoffExponential:
		return NewExponential(base, MaxDelay)
	default:
		return NewConstant(base)
	}
}

// ForType is ForPolicy applied to t's policy and retry delay.
func ForType(t *syncjob.Type) Strategy {
	return ForPolicy(t.Backoff, t.RetryDelay())
}
